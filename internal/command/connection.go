package command

import (
	"context"

	"github.com/nimbis-db/nimbis/internal/resp"
	"github.com/nimbis-db/nimbis/internal/storage"
)

// PING [message]
type pingCmd struct{}

func (pingCmd) Meta() Meta {
	return Meta{Name: "PING", Arity: -1, Route: RouteAny}
}

func (c pingCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	switch len(args) {
	case 0:
		return resp.SimpleString("PONG")
	case 1:
		return resp.BulkString(args[0])
	default:
		return arityError("PING")
	}
}
