package command

import (
	"context"

	"github.com/nimbis-db/nimbis/internal/resp"
	"github.com/nimbis-db/nimbis/internal/storage"
)

// GET key
type getCmd struct{}

func (getCmd) Meta() Meta {
	return Meta{Name: "GET", Arity: 2, Route: RouteKey}
}

func (getCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	v, found, err := eng.Get(ctx, args[0])
	if err != nil {
		return errorReply(err)
	}
	if !found {
		return resp.Null
	}
	return resp.BulkString(v)
}

// SET key value
//
// Overwrites a key of any type; prior collection records are orphaned by
// the fresh version.
type setCmd struct{}

func (setCmd) Meta() Meta {
	return Meta{Name: "SET", Arity: 3, Route: RouteKey}
}

func (setCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	if err := eng.Set(ctx, args[0], args[1]); err != nil {
		return errorReply(err)
	}
	return resp.OK
}

// INCR key
type incrCmd struct{}

func (incrCmd) Meta() Meta {
	return Meta{Name: "INCR", Arity: 2, Route: RouteKey}
}

func (incrCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	n, err := eng.IncrBy(ctx, args[0], 1)
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(n)
}

// DECR key
type decrCmd struct{}

func (decrCmd) Meta() Meta {
	return Meta{Name: "DECR", Arity: 2, Route: RouteKey}
}

func (decrCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	n, err := eng.IncrBy(ctx, args[0], -1)
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(n)
}

// APPEND key value
type appendCmd struct{}

func (appendCmd) Meta() Meta {
	return Meta{Name: "APPEND", Arity: 3, Route: RouteKey}
}

func (appendCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	n, err := eng.Append(ctx, args[0], args[1])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(n)
}
