package storage

import (
	"context"
	"math"
	"testing"
)

// ============================================================
// Hashes
// ============================================================

func TestEngine_HashBasics(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	added, err := e.HSet(ctx, []byte("h"), pFV("f1", "v1", "f2", "v2"))
	if err != nil || added != 2 {
		t.Fatalf("HSet = (%d, %v), want (2, nil)", added, err)
	}

	// Updating an existing field is not counted.
	added, err = e.HSet(ctx, []byte("h"), pFV("f1", "updated", "f3", "v3"))
	if err != nil || added != 1 {
		t.Fatalf("HSet mixed = (%d, %v), want (1, nil)", added, err)
	}

	v, found, err := e.HGet(ctx, []byte("h"), []byte("f1"))
	if err != nil || !found || string(v) != "updated" {
		t.Errorf("HGet(f1) = (%q, %v, %v)", v, found, err)
	}
	if _, found, _ := e.HGet(ctx, []byte("h"), []byte("nope")); found {
		t.Error("HGet(nope) reported found")
	}

	if n, _ := e.HLen(ctx, []byte("h")); n != 3 {
		t.Errorf("HLen = %d, want 3", n)
	}

	vals, err := e.HMGet(ctx, []byte("h"), [][]byte{[]byte("f2"), []byte("nope"), []byte("f3")})
	if err != nil {
		t.Fatal(err)
	}
	if string(vals[0]) != "v2" || vals[1] != nil || string(vals[2]) != "v3" {
		t.Errorf("HMGet = %q", vals)
	}

	all, err := e.HGetAll(ctx, []byte("h"))
	if err != nil || len(all) != 3 {
		t.Fatalf("HGetAll = %d pairs, err %v", len(all), err)
	}
}

func TestEngine_HDel(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.HSet(ctx, []byte("h"), pFV("a", "1", "b", "2", "c", "3")); err != nil {
		t.Fatal(err)
	}

	removed, err := e.HDel(ctx, []byte("h"), [][]byte{[]byte("a"), []byte("nope"), []byte("b")})
	if err != nil || removed != 2 {
		t.Fatalf("HDel = (%d, %v), want (2, nil)", removed, err)
	}
	if n, _ := e.HLen(ctx, []byte("h")); n != 1 {
		t.Errorf("HLen after HDel = %d, want 1", n)
	}

	// Deleting the last field removes the key.
	if _, err := e.HDel(ctx, []byte("h"), [][]byte{[]byte("c")}); err != nil {
		t.Fatal(err)
	}
	if exists, _ := e.Exists(ctx, []byte("h")); exists {
		t.Error("empty hash still exists")
	}
}

func TestEngine_HSetDuplicateFieldInCall(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	added, err := e.HSet(ctx, []byte("h"), pFV("f", "first", "f", "second"))
	if err != nil || added != 1 {
		t.Fatalf("HSet dup = (%d, %v), want (1, nil)", added, err)
	}
	v, _, _ := e.HGet(ctx, []byte("h"), []byte("f"))
	if string(v) != "second" {
		t.Errorf("HGet = %q, want last-wins", v)
	}
}

// ============================================================
// Sets
// ============================================================

func TestEngine_SetBasics(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	added, err := e.SAdd(ctx, []byte("s"), [][]byte{[]byte("a"), []byte("b"), []byte("a")})
	if err != nil || added != 2 {
		t.Fatalf("SAdd = (%d, %v), want (2, nil)", added, err)
	}
	added, err = e.SAdd(ctx, []byte("s"), [][]byte{[]byte("b"), []byte("c")})
	if err != nil || added != 1 {
		t.Fatalf("SAdd second = (%d, %v), want (1, nil)", added, err)
	}

	if ok, _ := e.SIsMember(ctx, []byte("s"), []byte("a")); !ok {
		t.Error("SIsMember(a) = false")
	}
	if ok, _ := e.SIsMember(ctx, []byte("s"), []byte("zz")); ok {
		t.Error("SIsMember(zz) = true")
	}
	if n, _ := e.SCard(ctx, []byte("s")); n != 3 {
		t.Errorf("SCard = %d, want 3", n)
	}

	removed, err := e.SRem(ctx, []byte("s"), [][]byte{[]byte("a"), []byte("nope")})
	if err != nil || removed != 1 {
		t.Fatalf("SRem = (%d, %v), want (1, nil)", removed, err)
	}
	members, _ := e.SMembers(ctx, []byte("s"))
	if len(members) != 2 {
		t.Errorf("SMembers = %q, want 2 members", members)
	}
}

// ============================================================
// Lists
// ============================================================

func TestEngine_ListPushPop(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	n, err := e.RPush(ctx, []byte("l"), [][]byte{[]byte("b"), []byte("c")})
	if err != nil || n != 2 {
		t.Fatalf("RPush = (%d, %v), want (2, nil)", n, err)
	}
	n, err = e.LPush(ctx, []byte("l"), [][]byte{[]byte("a")})
	if err != nil || n != 3 {
		t.Fatalf("LPush = (%d, %v), want (3, nil)", n, err)
	}

	got, err := e.LRange(ctx, []byte("l"), 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	wantOrder(t, got, "a", "b", "c")

	popped, err := e.LPop(ctx, []byte("l"), 1)
	if err != nil || len(popped) != 1 || string(popped[0]) != "a" {
		t.Fatalf("LPop = (%q, %v)", popped, err)
	}
	popped, err = e.RPop(ctx, []byte("l"), 2)
	if err != nil {
		t.Fatal(err)
	}
	wantOrder(t, popped, "c", "b")

	// The list is now empty and the key gone.
	if exists, _ := e.Exists(ctx, []byte("l")); exists {
		t.Error("empty list still exists")
	}
	popped, err = e.LPop(ctx, []byte("l"), 1)
	if err != nil || len(popped) != 0 {
		t.Errorf("LPop on missing = (%q, %v), want empty", popped, err)
	}
}

func TestEngine_LPushOrdering(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// LPUSH pushes one by one: last argument ends up at the head.
	if _, err := e.LPush(ctx, []byte("l"), [][]byte{[]byte("x"), []byte("y"), []byte("z")}); err != nil {
		t.Fatal(err)
	}
	got, _ := e.LRange(ctx, []byte("l"), 0, -1)
	wantOrder(t, got, "z", "y", "x")
}

func TestEngine_LRangeIndexing(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	vals := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}
	if _, err := e.RPush(ctx, []byte("l"), vals); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{"full", 0, -1, []string{"a", "b", "c", "d", "e"}},
		{"middle", 1, 3, []string{"b", "c", "d"}},
		{"negative start", -2, -1, []string{"d", "e"}},
		{"clipped stop", 3, 100, []string{"d", "e"}},
		{"inverted", 3, 1, nil},
		{"start past end", 10, 20, nil},
		{"negative beyond head", -100, 0, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.LRange(ctx, []byte("l"), tt.start, tt.stop)
			if err != nil {
				t.Fatal(err)
			}
			wantOrder(t, got, tt.want...)
		})
	}
}

// ============================================================
// Sorted sets
// ============================================================

func TestEngine_ZSetBasics(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	added, err := e.ZAdd(ctx, []byte("z"), []ScoreMember{
		{Score: math.Inf(-1), Member: []byte("a")},
		{Score: 0, Member: []byte("b")},
		{Score: 1.5, Member: []byte("c")},
		{Score: math.Inf(1), Member: []byte("d")},
	})
	if err != nil || added != 4 {
		t.Fatalf("ZAdd = (%d, %v), want (4, nil)", added, err)
	}

	got, err := e.ZRange(ctx, []byte("z"), 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	wantMembers(t, got, "a", "b", "c", "d")
	if !math.IsInf(got[0].Score, -1) || got[1].Score != 0 || got[2].Score != 1.5 || !math.IsInf(got[3].Score, 1) {
		t.Errorf("ZRange scores = %v", got)
	}

	score, found, err := e.ZScore(ctx, []byte("z"), []byte("c"))
	if err != nil || !found || score != 1.5 {
		t.Errorf("ZScore(c) = (%v, %v, %v)", score, found, err)
	}
	if _, found, _ := e.ZScore(ctx, []byte("z"), []byte("nope")); found {
		t.Error("ZScore(nope) reported found")
	}
	if n, _ := e.ZCard(ctx, []byte("z")); n != 4 {
		t.Errorf("ZCard = %d, want 4", n)
	}
}

func TestEngine_ZAddScoreUpdate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.ZAdd(ctx, []byte("z"), []ScoreMember{{1, []byte("m")}, {2, []byte("n")}}); err != nil {
		t.Fatal(err)
	}

	// Score update: not counted as added, old score-index entry gone.
	added, err := e.ZAdd(ctx, []byte("z"), []ScoreMember{{10, []byte("m")}})
	if err != nil || added != 0 {
		t.Fatalf("ZAdd update = (%d, %v), want (0, nil)", added, err)
	}

	got, _ := e.ZRange(ctx, []byte("z"), 0, -1)
	wantMembers(t, got, "n", "m")
	if n, _ := e.ZCard(ctx, []byte("z")); n != 2 {
		t.Errorf("ZCard after update = %d, want 2", n)
	}
}

func TestEngine_ZRemAndTieOrdering(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.ZAdd(ctx, []byte("z"), []ScoreMember{
		{1, []byte("bb")}, {1, []byte("aa")}, {1, []byte("cc")},
	}); err != nil {
		t.Fatal(err)
	}

	// Equal scores order members byte-lexicographically.
	got, _ := e.ZRange(ctx, []byte("z"), 0, -1)
	wantMembers(t, got, "aa", "bb", "cc")

	removed, err := e.ZRem(ctx, []byte("z"), [][]byte{[]byte("bb"), []byte("nope")})
	if err != nil || removed != 1 {
		t.Fatalf("ZRem = (%d, %v), want (1, nil)", removed, err)
	}
	got, _ = e.ZRange(ctx, []byte("z"), 0, -1)
	wantMembers(t, got, "aa", "cc")

	// Removing everything removes the key.
	if _, err := e.ZRem(ctx, []byte("z"), [][]byte{[]byte("aa"), []byte("cc")}); err != nil {
		t.Fatal(err)
	}
	if exists, _ := e.Exists(ctx, []byte("z")); exists {
		t.Error("empty zset still exists")
	}
}

func TestEngine_ZRangeIndexing(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.ZAdd(ctx, []byte("z"), []ScoreMember{
		{1, []byte("a")}, {2, []byte("b")}, {3, []byte("c")}, {4, []byte("d")},
	}); err != nil {
		t.Fatal(err)
	}

	got, _ := e.ZRange(ctx, []byte("z"), 1, 2)
	wantMembers(t, got, "b", "c")

	got, _ = e.ZRange(ctx, []byte("z"), -2, -1)
	wantMembers(t, got, "c", "d")

	got, _ = e.ZRange(ctx, []byte("z"), 2, 1)
	if len(got) != 0 {
		t.Errorf("inverted ZRange = %v, want empty", got)
	}
}

// ============================================================
// Helpers
// ============================================================

func wantOrder(t *testing.T, got [][]byte, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d values %q, want %d %q", len(got), got, len(want), want)
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("value %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func wantMembers(t *testing.T, got []ScoreMember, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d members %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if string(got[i].Member) != want[i] {
			t.Errorf("member %d = %q, want %q", i, got[i].Member, want[i])
		}
	}
}
