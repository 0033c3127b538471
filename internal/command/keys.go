package command

import (
	"context"

	"github.com/nimbis-db/nimbis/internal/resp"
	"github.com/nimbis-db/nimbis/internal/storage"
)

// DEL key [key ...]
//
// Multi-key: the runtime scatters keys to their shards and sums the
// integer replies. Each shard-local invocation sees only its own keys.
type delCmd struct{}

func (delCmd) Meta() Meta {
	return Meta{Name: "DEL", Arity: -2, Route: RouteMultiKey}
}

func (delCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	var n int64
	for _, key := range args {
		deleted, err := eng.Del(ctx, key)
		if err != nil {
			return errorReply(err)
		}
		if deleted {
			n++
		}
	}
	return resp.Integer(n)
}

// EXISTS key [key ...]
type existsCmd struct{}

func (existsCmd) Meta() Meta {
	return Meta{Name: "EXISTS", Arity: -2, Route: RouteMultiKey}
}

func (existsCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	var n int64
	for _, key := range args {
		exists, err := eng.Exists(ctx, key)
		if err != nil {
			return errorReply(err)
		}
		if exists {
			n++
		}
	}
	return resp.Integer(n)
}

// EXPIRE key seconds
type expireCmd struct{}

func (expireCmd) Meta() Meta {
	return Meta{Name: "EXPIRE", Arity: 3, Route: RouteKey}
}

func (expireCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	seconds, ok := parseIntArg(args[1])
	if !ok {
		return resp.Error("ERR value is not an integer or out of range")
	}
	set, err := eng.Expire(ctx, args[0], seconds)
	if err != nil {
		return errorReply(err)
	}
	if !set {
		return resp.Integer(0)
	}
	return resp.Integer(1)
}

// TTL key
type ttlCmd struct{}

func (ttlCmd) Meta() Meta {
	return Meta{Name: "TTL", Arity: 2, Route: RouteKey}
}

func (ttlCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	ttl, err := eng.TTL(ctx, args[0])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(ttl)
}

// FLUSHDB
//
// Broadcast: every shard wipes its five engines.
type flushDBCmd struct{}

func (flushDBCmd) Meta() Meta {
	return Meta{Name: "FLUSHDB", Arity: 1, Route: RouteBroadcast}
}

func (flushDBCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	if err := eng.Flush(ctx); err != nil {
		return errorReply(err)
	}
	return resp.OK
}
