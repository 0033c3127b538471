package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(Config{
		Path:         t.TempDir(),
		InMemory:     true,
		ReapInterval: -1, // reap on demand in tests
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return e
}

// ============================================================
// Strings
// ============================================================

func TestEngine_SetGet(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.Set(ctx, []byte("key"), []byte("value")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, found, err := e.Get(ctx, []byte("key"))
	if err != nil || !found {
		t.Fatalf("Get() = found=%v err=%v", found, err)
	}
	if string(v) != "value" {
		t.Errorf("Get() = %q, want value", v)
	}

	_, found, err = e.Get(ctx, []byte("missing"))
	if err != nil {
		t.Fatalf("Get(missing) error = %v", err)
	}
	if found {
		t.Error("Get(missing) reported found")
	}
}

func TestEngine_IncrDecr(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	v, err := e.IncrBy(ctx, []byte("counter"), 1)
	if err != nil || v != 1 {
		t.Fatalf("IncrBy from absent = (%d, %v), want (1, nil)", v, err)
	}
	v, err = e.IncrBy(ctx, []byte("counter"), 10)
	if err != nil || v != 11 {
		t.Fatalf("IncrBy = (%d, %v), want (11, nil)", v, err)
	}
	v, err = e.IncrBy(ctx, []byte("counter"), -11)
	if err != nil || v != 0 {
		t.Fatalf("IncrBy(-11) = (%d, %v), want (0, nil)", v, err)
	}
}

func TestEngine_IncrErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.Set(ctx, []byte("text"), []byte("not-a-number")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.IncrBy(ctx, []byte("text"), 1); !errors.Is(err, ErrNotInteger) {
		t.Errorf("IncrBy on text error = %v, want ErrNotInteger", err)
	}

	if err := e.Set(ctx, []byte("max"), []byte("9223372036854775807")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.IncrBy(ctx, []byte("max"), 1); !errors.Is(err, ErrNotInteger) {
		t.Errorf("IncrBy overflow error = %v, want ErrNotInteger", err)
	}
	if _, err := e.IncrBy(ctx, []byte("max"), -1); err != nil {
		t.Errorf("IncrBy(-1) on max = %v, want nil", err)
	}
}

func TestEngine_Append(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	n, err := e.Append(ctx, []byte("k"), []byte("Hello"))
	if err != nil || n != 5 {
		t.Fatalf("Append = (%d, %v), want (5, nil)", n, err)
	}
	n, err = e.Append(ctx, []byte("k"), []byte(" World"))
	if err != nil || n != 11 {
		t.Fatalf("Append = (%d, %v), want (11, nil)", n, err)
	}
	v, _, _ := e.Get(ctx, []byte("k"))
	if string(v) != "Hello World" {
		t.Errorf("Get after Append = %q", v)
	}
}

// ============================================================
// Type safety and type overwrite
// ============================================================

func TestEngine_WrongType(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.HSet(ctx, []byte("h"), pFV("f", "v")); err != nil {
		t.Fatal(err)
	}

	if _, _, err := e.Get(ctx, []byte("h")); !IsWrongType(err) {
		t.Errorf("Get on hash error = %v, want ErrWrongType", err)
	}
	if _, err := e.SAdd(ctx, []byte("h"), [][]byte{[]byte("m")}); !IsWrongType(err) {
		t.Errorf("SAdd on hash error = %v, want ErrWrongType", err)
	}
	if _, err := e.LPush(ctx, []byte("h"), [][]byte{[]byte("m")}); !IsWrongType(err) {
		t.Errorf("LPush on hash error = %v, want ErrWrongType", err)
	}

	// The failed operations must not have mutated anything.
	n, err := e.HLen(ctx, []byte("h"))
	if err != nil || n != 1 {
		t.Errorf("HLen after rejected ops = (%d, %v), want (1, nil)", n, err)
	}
}

func TestEngine_SetOverwritesAnyType(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.HSet(ctx, []byte("conflict_key"), pFV("f1", "v1", "f2", "v2")); err != nil {
		t.Fatal(err)
	}
	if err := e.Set(ctx, []byte("conflict_key"), []byte("new_string_val")); err != nil {
		t.Fatalf("Set over hash error = %v", err)
	}

	if _, _, err := e.HGet(ctx, []byte("conflict_key"), []byte("f1")); !IsWrongType(err) {
		t.Errorf("HGet after overwrite error = %v, want ErrWrongType", err)
	}
	v, found, err := e.Get(ctx, []byte("conflict_key"))
	if err != nil || !found || string(v) != "new_string_val" {
		t.Errorf("Get after overwrite = (%q, %v, %v)", v, found, err)
	}
}

// ============================================================
// DEL, EXISTS, version isolation
// ============================================================

func TestEngine_DelIsImmediate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	members := [][]byte{[]byte("m1"), []byte("m2"), []byte("m3")}
	if _, err := e.SAdd(ctx, []byte("s"), members); err != nil {
		t.Fatal(err)
	}

	deleted, err := e.Del(ctx, []byte("s"))
	if err != nil || !deleted {
		t.Fatalf("Del = (%v, %v), want (true, nil)", deleted, err)
	}

	if exists, _ := e.Exists(ctx, []byte("s")); exists {
		t.Error("key exists after Del")
	}
	got, err := e.SMembers(ctx, []byte("s"))
	if err != nil || len(got) != 0 {
		t.Errorf("SMembers after Del = (%v, %v), want empty", got, err)
	}

	deleted, err = e.Del(ctx, []byte("s"))
	if err != nil || deleted {
		t.Errorf("second Del = (%v, %v), want (false, nil)", deleted, err)
	}
}

func TestEngine_VersionIsolation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	old := [][]byte{[]byte("old_m1"), []byte("old_m2"), []byte("old_m3")}
	if n, err := e.SAdd(ctx, []byte("s"), old); err != nil || n != 3 {
		t.Fatalf("SAdd = (%d, %v)", n, err)
	}
	if _, err := e.Del(ctx, []byte("s")); err != nil {
		t.Fatal(err)
	}

	fresh := [][]byte{[]byte("new_m1"), []byte("new_m2")}
	if n, err := e.SAdd(ctx, []byte("s"), fresh); err != nil || n != 2 {
		t.Fatalf("SAdd after Del = (%d, %v)", n, err)
	}

	got, err := e.SMembers(ctx, []byte("s"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("SMembers = %d members, want exactly 2", len(got))
	}
	for _, m := range got {
		if string(m) != "new_m1" && string(m) != "new_m2" {
			t.Errorf("old incarnation member leaked: %q", m)
		}
	}
}

// ============================================================
// TTL lifecycle
// ============================================================

func TestEngine_TTLLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.TTL(ctx, []byte("missing")); err != nil {
		t.Fatal(err)
	}
	if ttl, _ := e.TTL(ctx, []byte("missing")); ttl != -2 {
		t.Errorf("TTL(missing) = %d, want -2", ttl)
	}

	if err := e.Set(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if ttl, _ := e.TTL(ctx, []byte("k")); ttl != -1 {
		t.Errorf("TTL without deadline = %d, want -1", ttl)
	}

	okRes, err := e.Expire(ctx, []byte("k"), 100)
	if err != nil || !okRes {
		t.Fatalf("Expire = (%v, %v)", okRes, err)
	}
	ttl, _ := e.TTL(ctx, []byte("k"))
	if ttl < 98 || ttl > 100 {
		t.Errorf("TTL after Expire 100 = %d", ttl)
	}

	if okRes, _ := e.Expire(ctx, []byte("missing"), 10); okRes {
		t.Error("Expire on missing key returned true")
	}
}

func TestEngine_ExpiredKeyIsGone(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.Set(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Expire(ctx, []byte("k"), 1); err != nil {
		t.Fatal(err)
	}

	time.Sleep(1100 * time.Millisecond)

	if exists, _ := e.Exists(ctx, []byte("k")); exists {
		t.Error("key exists after expiry")
	}
	if ttl, _ := e.TTL(ctx, []byte("k")); ttl != -2 {
		t.Errorf("TTL after expiry = %d, want -2", ttl)
	}
}

// Prefix isolation end to end: expiring user1 must not touch user12.
func TestEngine_PrefixIsolation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.ZAdd(ctx, []byte("user1"), []ScoreMember{{1, []byte("m1")}}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ZAdd(ctx, []byte("user12"), []ScoreMember{{2, []byte("m2")}}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Expire(ctx, []byte("user1"), 1); err != nil {
		t.Fatal(err)
	}

	time.Sleep(1100 * time.Millisecond)

	if n, _ := e.ZCard(ctx, []byte("user12")); n != 1 {
		t.Errorf("ZCard(user12) = %d, want 1", n)
	}
	score, found, err := e.ZScore(ctx, []byte("user12"), []byte("m2"))
	if err != nil || !found || score != 2 {
		t.Errorf("ZScore(user12, m2) = (%v, %v, %v), want (2, true, nil)", score, found, err)
	}
	if exists, _ := e.Exists(ctx, []byte("user1")); exists {
		t.Error("user1 still exists after expiry")
	}
}

// ============================================================
// FLUSH and restart behavior
// ============================================================

func TestEngine_Flush(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_ = e.Set(ctx, []byte("a"), []byte("1"))
	_, _ = e.SAdd(ctx, []byte("b"), [][]byte{[]byte("m")})
	_, _ = e.LPush(ctx, []byte("c"), [][]byte{[]byte("x")})

	if err := e.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	for _, k := range []string{"a", "b", "c"} {
		if exists, _ := e.Exists(ctx, []byte(k)); exists {
			t.Errorf("key %q exists after Flush", k)
		}
	}

	// The engine stays usable and versions stay monotonic.
	if _, err := e.SAdd(ctx, []byte("b"), [][]byte{[]byte("fresh")}); err != nil {
		t.Fatal(err)
	}
	got, _ := e.SMembers(ctx, []byte("b"))
	if len(got) != 1 || string(got[0]) != "fresh" {
		t.Errorf("SMembers after Flush = %v", got)
	}
}

func TestEngine_VersionSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e, err := Open(Config{Path: dir, ReapInterval: -1})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Set(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	before := e.versions.Current()
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	e2, err := Open(Config{Path: dir, ReapInterval: -1})
	if err != nil {
		t.Fatal(err)
	}
	defer e2.Close()

	if cur := e2.versions.Current(); cur < before {
		t.Errorf("version floor after restart = %d, want >= %d", cur, before)
	}
	v, found, err := e2.Get(ctx, []byte("k"))
	if err != nil || !found || string(v) != "v" {
		t.Errorf("Get after restart = (%q, %v, %v)", v, found, err)
	}
}

// pFV builds FieldValue pairs from alternating field/value strings.
func pFV(pairs ...string) []FieldValue {
	out := make([]FieldValue, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, FieldValue{Field: []byte(pairs[i]), Value: []byte(pairs[i+1])})
	}
	return out
}
