package command

import (
	"context"
	"strings"

	"github.com/nimbis-db/nimbis/internal/resp"
	"github.com/nimbis-db/nimbis/internal/server/config"
	"github.com/nimbis-db/nimbis/internal/storage"
)

// CONFIG GET pattern | CONFIG SET key value
//
// Grouped command: the subcommand selects the arity rule. Broadcast per
// the routing table; all shards see the same process-wide config, so the
// gather step deduplicates identical replies.
type configCmd struct {
	dyn *config.Dynamic
}

func (configCmd) Meta() Meta {
	return Meta{Name: "CONFIG", Arity: -3, Route: RouteBroadcast}
}

func (c configCmd) Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value {
	sub := strings.ToUpper(string(args[0]))
	switch sub {
	case "GET":
		return c.doGet(args[1:])
	case "SET":
		if len(args) != 3 {
			return arityError("CONFIG")
		}
		return c.doSet(args[1], args[2])
	default:
		return resp.Error("ERR unknown CONFIG subcommand '" + string(args[0]) + "'")
	}
}

func (c configCmd) doGet(patterns [][]byte) resp.Value {
	// Field order of the reply follows the sorted match order; duplicate
	// matches across patterns collapse.
	seen := make(map[string]bool)
	var elems []resp.Value
	for _, pattern := range patterns {
		for _, name := range c.dyn.MatchFields(string(pattern)) {
			if seen[name] {
				continue
			}
			seen[name] = true
			value, err := c.dyn.GetField(name)
			if err != nil {
				continue
			}
			elems = append(elems, resp.BulkStringStr(name), resp.BulkStringStr(value))
		}
	}
	return resp.ArraySlice(elems)
}

func (c configCmd) doSet(name, value []byte) resp.Value {
	if err := c.dyn.SetField(string(name), string(value)); err != nil {
		return resp.Error("ERR " + err.Error())
	}
	return resp.OK
}
