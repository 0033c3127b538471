package command

import (
	"context"

	"github.com/nimbis-db/nimbis/internal/resp"
	"github.com/nimbis-db/nimbis/internal/storage"
)

// HSET key field value [field value ...]
type hsetCmd struct{}

func (hsetCmd) Meta() Meta {
	return Meta{Name: "HSET", Arity: -4, Route: RouteKey}
}

func (hsetCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	if (len(args)-1)%2 != 0 {
		return arityError("HSET")
	}
	pairs := make([]storage.FieldValue, 0, (len(args)-1)/2)
	for i := 1; i+1 < len(args); i += 2 {
		pairs = append(pairs, storage.FieldValue{Field: args[i], Value: args[i+1]})
	}
	added, err := eng.HSet(ctx, args[0], pairs)
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(added)
}

// HGET key field
type hgetCmd struct{}

func (hgetCmd) Meta() Meta {
	return Meta{Name: "HGET", Arity: 3, Route: RouteKey}
}

func (hgetCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	v, found, err := eng.HGet(ctx, args[0], args[1])
	if err != nil {
		return errorReply(err)
	}
	if !found {
		return resp.Null
	}
	return resp.BulkString(v)
}

// HDEL key field [field ...]
type hdelCmd struct{}

func (hdelCmd) Meta() Meta {
	return Meta{Name: "HDEL", Arity: -3, Route: RouteKey}
}

func (hdelCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	removed, err := eng.HDel(ctx, args[0], args[1:])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(removed)
}

// HLEN key
type hlenCmd struct{}

func (hlenCmd) Meta() Meta {
	return Meta{Name: "HLEN", Arity: 2, Route: RouteKey}
}

func (hlenCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	n, err := eng.HLen(ctx, args[0])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(n)
}

// HMGET key field [field ...]
type hmgetCmd struct{}

func (hmgetCmd) Meta() Meta {
	return Meta{Name: "HMGET", Arity: -3, Route: RouteKey}
}

func (hmgetCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	values, err := eng.HMGet(ctx, args[0], args[1:])
	if err != nil {
		return errorReply(err)
	}
	elems := make([]resp.Value, len(values))
	for i, v := range values {
		elems[i] = resp.BulkString(v)
	}
	return resp.ArraySlice(elems)
}

// HGETALL key
type hgetallCmd struct{}

func (hgetallCmd) Meta() Meta {
	return Meta{Name: "HGETALL", Arity: 2, Route: RouteKey}
}

func (hgetallCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	pairs, err := eng.HGetAll(ctx, args[0])
	if err != nil {
		return errorReply(err)
	}
	elems := make([]resp.Value, 0, len(pairs)*2)
	for _, fv := range pairs {
		elems = append(elems, resp.BulkString(fv.Field), resp.BulkString(fv.Value))
	}
	return resp.ArraySlice(elems)
}
