package command

import (
	"context"

	"github.com/nimbis-db/nimbis/internal/resp"
	"github.com/nimbis-db/nimbis/internal/storage"
)

// LPUSH key element [element ...]
type lpushCmd struct{}

func (lpushCmd) Meta() Meta {
	return Meta{Name: "LPUSH", Arity: -3, Route: RouteKey}
}

func (lpushCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	n, err := eng.LPush(ctx, args[0], args[1:])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(n)
}

// RPUSH key element [element ...]
type rpushCmd struct{}

func (rpushCmd) Meta() Meta {
	return Meta{Name: "RPUSH", Arity: -3, Route: RouteKey}
}

func (rpushCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	n, err := eng.RPush(ctx, args[0], args[1:])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(n)
}

// LPOP key [count]
//
// Without count, pops one element and replies with a bulk string (null on
// a missing key). With count, replies with an array of up to count
// elements, empty on a missing key.
type lpopCmd struct{}

func (lpopCmd) Meta() Meta {
	return Meta{Name: "LPOP", Arity: -2, Route: RouteKey}
}

func (lpopCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	return popReply(ctx, eng, args, eng.LPop)
}

// RPOP key [count]
type rpopCmd struct{}

func (rpopCmd) Meta() Meta {
	return Meta{Name: "RPOP", Arity: -2, Route: RouteKey}
}

func (rpopCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	return popReply(ctx, eng, args, eng.RPop)
}

func popReply(ctx context.Context, eng *storage.Engine, args [][]byte,
	pop func(context.Context, []byte, int64) ([][]byte, error)) resp.Value {

	if len(args) > 2 {
		return resp.Error("ERR syntax error")
	}

	hasCount := len(args) == 2
	count := int64(1)
	if hasCount {
		n, ok := parseIntArg(args[1])
		if !ok || n < 0 {
			return resp.Error("ERR value is out of range, must be positive")
		}
		count = n
	}

	popped, err := pop(ctx, args[0], count)
	if err != nil {
		return errorReply(err)
	}

	if !hasCount {
		if len(popped) == 0 {
			return resp.Null
		}
		return resp.BulkString(popped[0])
	}

	elems := make([]resp.Value, len(popped))
	for i, v := range popped {
		elems[i] = resp.BulkString(v)
	}
	return resp.ArraySlice(elems)
}

// LLEN key
type llenCmd struct{}

func (llenCmd) Meta() Meta {
	return Meta{Name: "LLEN", Arity: 2, Route: RouteKey}
}

func (llenCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	n, err := eng.LLen(ctx, args[0])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(n)
}

// LRANGE key start stop
type lrangeCmd struct{}

func (lrangeCmd) Meta() Meta {
	return Meta{Name: "LRANGE", Arity: 4, Route: RouteKey}
}

func (lrangeCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	start, ok1 := parseIntArg(args[1])
	stop, ok2 := parseIntArg(args[2])
	if !ok1 || !ok2 {
		return resp.Error("ERR value is not an integer or out of range")
	}
	values, err := eng.LRange(ctx, args[0], start, stop)
	if err != nil {
		return errorReply(err)
	}
	elems := make([]resp.Value, len(values))
	for i, v := range values {
		elems[i] = resp.BulkString(v)
	}
	return resp.ArraySlice(elems)
}
