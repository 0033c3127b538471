package command

import (
	"context"

	"github.com/nimbis-db/nimbis/internal/resp"
	"github.com/nimbis-db/nimbis/internal/storage"
)

// SADD key member [member ...]
type saddCmd struct{}

func (saddCmd) Meta() Meta {
	return Meta{Name: "SADD", Arity: -3, Route: RouteKey}
}

func (saddCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	added, err := eng.SAdd(ctx, args[0], args[1:])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(added)
}

// SREM key member [member ...]
type sremCmd struct{}

func (sremCmd) Meta() Meta {
	return Meta{Name: "SREM", Arity: -3, Route: RouteKey}
}

func (sremCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	removed, err := eng.SRem(ctx, args[0], args[1:])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(removed)
}

// SMEMBERS key
type smembersCmd struct{}

func (smembersCmd) Meta() Meta {
	return Meta{Name: "SMEMBERS", Arity: 2, Route: RouteKey}
}

func (smembersCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	members, err := eng.SMembers(ctx, args[0])
	if err != nil {
		return errorReply(err)
	}
	elems := make([]resp.Value, len(members))
	for i, m := range members {
		elems[i] = resp.BulkString(m)
	}
	return resp.ArraySlice(elems)
}

// SISMEMBER key member
type sismemberCmd struct{}

func (sismemberCmd) Meta() Meta {
	return Meta{Name: "SISMEMBER", Arity: 3, Route: RouteKey}
}

func (sismemberCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	ok, err := eng.SIsMember(ctx, args[0], args[1])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.Integer(0)
	}
	return resp.Integer(1)
}

// SCARD key
type scardCmd struct{}

func (scardCmd) Meta() Meta {
	return Meta{Name: "SCARD", Arity: 2, Route: RouteKey}
}

func (scardCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	n, err := eng.SCard(ctx, args[0])
	if err != nil {
		return errorReply(err)
	}
	return resp.Integer(n)
}
