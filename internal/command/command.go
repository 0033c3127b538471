// Package command implements the Redis command set on top of the storage
// engine: per-command metadata with arity validation, a case-insensitive
// command table, and the routing classes the worker runtime uses to place
// each command on its shard.
package command

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nimbis-db/nimbis/internal/resp"
	"github.com/nimbis-db/nimbis/internal/server/config"
	"github.com/nimbis-db/nimbis/internal/storage"
)

// Route classifies how the worker runtime dispatches a command.
type Route int

const (
	// RouteKey commands operate on a single key: the first argument is
	// hashed to pick the owning shard.
	RouteKey Route = iota

	// RouteMultiKey commands scatter their keys across shards; integer
	// replies are summed on gather.
	RouteMultiKey

	// RouteBroadcast commands go to every shard and reduce the replies.
	RouteBroadcast

	// RouteAny commands touch no keys and run on the connection's own
	// worker.
	RouteAny
)

// Meta describes one command. Arity counts tokens including the command
// name: positive means exactly that many, negative means at least that
// many.
type Meta struct {
	Name  string
	Arity int
	Route Route
}

// ValidateArity reports whether a token count satisfies the arity rule.
func (m Meta) ValidateArity(tokens int) bool {
	if m.Arity > 0 {
		return tokens == m.Arity
	}
	return tokens >= -m.Arity
}

// Cmd is one executable command. Do receives the arguments after the
// command name; arity has already been validated.
type Cmd interface {
	Meta() Meta
	Do(ctx context.Context, eng *storage.Engine, args [][]byte) resp.Value
}

// Execute validates arity against the full token list (command name
// included) and runs the command.
func Execute(ctx context.Context, c Cmd, eng *storage.Engine, tokens [][]byte) resp.Value {
	m := c.Meta()
	if !m.ValidateArity(len(tokens)) {
		return arityError(m.Name)
	}
	return c.Do(ctx, eng, tokens[1:])
}

// Table maps upper-ASCII command names to commands. Built once at startup
// and read concurrently without locks.
type Table struct {
	cmds map[string]Cmd
}

// NewTable builds the full command table. The dynamic config is captured
// by the CONFIG command.
func NewTable(dyn *config.Dynamic) *Table {
	t := &Table{cmds: make(map[string]Cmd)}

	t.register(
		pingCmd{},

		delCmd{}, existsCmd{}, expireCmd{}, ttlCmd{}, flushDBCmd{},

		getCmd{}, setCmd{}, incrCmd{}, decrCmd{}, appendCmd{},

		hsetCmd{}, hgetCmd{}, hdelCmd{}, hlenCmd{}, hmgetCmd{}, hgetallCmd{},

		lpushCmd{}, rpushCmd{}, lpopCmd{}, rpopCmd{}, llenCmd{}, lrangeCmd{},

		saddCmd{}, sremCmd{}, smembersCmd{}, sismemberCmd{}, scardCmd{},

		zaddCmd{}, zrangeCmd{}, zscoreCmd{}, zremCmd{}, zcardCmd{},
	)
	t.register(configCmd{dyn: dyn})

	return t
}

func (t *Table) register(cmds ...Cmd) {
	for _, c := range cmds {
		t.cmds[c.Meta().Name] = c
	}
}

// Get looks a command up by name, case-insensitively.
func (t *Table) Get(name string) (Cmd, bool) {
	c, ok := t.cmds[NormalizeName(name)]
	return c, ok
}

// Names returns the registered command names, unordered.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.cmds))
	for name := range t.cmds {
		out = append(out, name)
	}
	return out
}

// NormalizeName uppercases an ASCII command name without allocating when
// it is already uppercase.
func NormalizeName(name string) string {
	if strings.ContainsAny(name, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(name)
	}
	return name
}

// InternalErrorReply is the wire message for engine-level failures. The
// connection handler closes the connection after sending it.
const InternalErrorReply = "ERR internal error"

// wrongTypeReply is sent verbatim for type mismatches, matching Redis.
const wrongTypeReply = "WRONGTYPE Operation against a key holding the wrong kind of value"

// UnknownCommandReply renders the reply for a name the table does not
// know.
func UnknownCommandReply(name string) resp.Value {
	return resp.Error("ERR unknown command '" + strings.ToLower(name) + "'")
}

func arityError(name string) resp.Value {
	return resp.Error("ERR wrong number of arguments for '" + strings.ToLower(name) + "' command")
}

// errorReply maps a storage error to its wire form. Engine failures are
// logged with their stable code and surfaced as an internal error.
func errorReply(err error) resp.Value {
	if storage.IsWrongType(err) {
		return resp.Error(wrongTypeReply)
	}
	var serr *storage.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case storage.ErrNotInteger.Code:
			return resp.Error("ERR value is not an integer or out of range")
		default:
			slog.Default().Error("storage error", "code", serr.Code, "error", err)
			return resp.Error(InternalErrorReply)
		}
	}
	slog.Default().Error("storage error", "error", err)
	return resp.Error(InternalErrorReply)
}

// parseIntArg parses a base-10 int64 argument.
func parseIntArg(arg []byte) (int64, bool) {
	n, err := strconv.ParseInt(string(arg), 10, 64)
	return n, err == nil
}
