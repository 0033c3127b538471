package command

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/nimbis-db/nimbis/internal/resp"
	"github.com/nimbis-db/nimbis/internal/storage"
)

// parseScore parses a ZADD score: a float, "inf", "+inf" or "-inf".
// NaN is rejected.
func parseScore(arg []byte) (float64, bool) {
	switch strings.ToLower(string(arg)) {
	case "inf", "+inf":
		return math.Inf(1), true
	case "-inf":
		return math.Inf(-1), true
	}
	f, err := strconv.ParseFloat(string(arg), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ZADD key score member [score member ...]
type zaddCmd struct{}

func (zaddCmd) Meta() Meta {
	return Meta{Name: "ZADD", Arity: -4, Route: RouteKey}
}

func (zaddCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	if (len(args)-1)%2 != 0 {
		return resp.Error("ERR syntax error")
	}
	entries := make([]storage.ScoreMember, 0, (len(args)-1)/2)
	for i := 1; i+1 < len(args); i += 2 {
		score, ok := parseScore(args[i])
		if !ok {
			return resp.Error("ERR value is not a valid float")
		}
		entries = append(entries, storage.ScoreMember{Score: score, Member: args[i+1]})
	}
	added, err := eng.ZAdd(ctx, args[0], entries)
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(added)
}

// ZRANGE key start stop [WITHSCORES]
type zrangeCmd struct{}

func (zrangeCmd) Meta() Meta {
	return Meta{Name: "ZRANGE", Arity: -4, Route: RouteKey}
}

func (zrangeCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	start, ok1 := parseIntArg(args[1])
	stop, ok2 := parseIntArg(args[2])
	if !ok1 || !ok2 {
		return resp.Error("ERR value is not an integer or out of range")
	}

	withScores := false
	if len(args) > 3 {
		if len(args) > 4 || !strings.EqualFold(string(args[3]), "WITHSCORES") {
			return resp.Error("ERR syntax error")
		}
		withScores = true
	}

	entries, err := eng.ZRange(ctx, args[0], start, stop)
	if err != nil {
		return errorReply(err)
	}

	if !withScores {
		elems := make([]resp.Value, len(entries))
		for i, e := range entries {
			elems[i] = resp.BulkString(e.Member)
		}
		return resp.ArraySlice(elems)
	}

	elems := make([]resp.Value, 0, len(entries)*2)
	for _, e := range entries {
		elems = append(elems,
			resp.BulkString(e.Member),
			resp.BulkStringStr(resp.FormatDouble(e.Score)))
	}
	return resp.ArraySlice(elems)
}

// ZSCORE key member
type zscoreCmd struct{}

func (zscoreCmd) Meta() Meta {
	return Meta{Name: "ZSCORE", Arity: 3, Route: RouteKey}
}

func (zscoreCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	score, found, err := eng.ZScore(ctx, args[0], args[1])
	if err != nil {
		return errorReply(err)
	}
	if !found {
		return resp.Null
	}
	return resp.BulkStringStr(resp.FormatDouble(score))
}

// ZREM key member [member ...]
type zremCmd struct{}

func (zremCmd) Meta() Meta {
	return Meta{Name: "ZREM", Arity: -3, Route: RouteKey}
}

func (zremCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	removed, err := eng.ZRem(ctx, args[0], args[1:])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(removed)
}

// ZCARD key
type zcardCmd struct{}

func (zcardCmd) Meta() Meta {
	return Meta{Name: "ZCARD", Arity: 2, Route: RouteKey}
}

func (zcardCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	n, err := eng.ZCard(ctx, args[0])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(n)
}
