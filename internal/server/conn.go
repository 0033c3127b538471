package server

import (
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/nimbis-db/nimbis/internal/command"
	"github.com/nimbis-db/nimbis/internal/resp"
)

// readBufSize is the per-connection socket read buffer.
const readBufSize = 4096

// pendingReply is one slot in the ordered response list: either an
// immediate value (errors decided at parse/dispatch time) or an await
// closure gathering shard replies.
type pendingReply struct {
	immediate resp.Value
	await     func() resp.Value
}

func (p *pendingReply) resolve() resp.Value {
	if p.await != nil {
		return p.await()
	}
	return p.immediate
}

// conn is one client connection, owned by a single worker.
type conn struct {
	srv     *Server
	owner   *worker
	netConn net.Conn
	parser  *resp.Parser
	limiter *rate.Limiter
	logger  *slog.Logger

	// quit is set when QUIT was parsed; the connection closes after the
	// pending replies flush.
	quit bool
}

func newConn(srv *Server, owner *worker, nc net.Conn) *conn {
	id := ulid.MustNew(ulid.Now(), rand.Reader).String()

	var limiter *rate.Limiter
	if limit := srv.dyn.Snapshot().RateLimit; limit > 0 {
		limiter = rate.NewLimiter(rate.Limit(limit), limit)
	}

	return &conn{
		srv:     srv,
		owner:   owner,
		netConn: nc,
		parser:  resp.NewParser(),
		limiter: limiter,
		logger:  srv.logger.With("conn", id, "remote", nc.RemoteAddr().String()),
	}
}

// serve runs the connection loop: read, drain frames, dispatch, flush
// replies in request order. Framing and I/O errors close the connection;
// command errors are replied in-band.
func (c *conn) serve() {
	defer c.netConn.Close()

	buf := make([]byte, readBufSize)
	var wbuf []byte

	for {
		n, err := c.netConn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.logger.Debug("connection read error", "error", err)
			}
			return
		}
		c.parser.Feed(buf[:n])

		pending, fatalErr := c.drainAndDispatch()

		// Flush whatever completed, in request order, before acting on a
		// framing error.
		wbuf = wbuf[:0]
		internal := false
		for _, p := range pending {
			v := p.resolve()
			if v.Typ == resp.TypeError && string(v.Str) == command.InternalErrorReply {
				internal = true
			}
			wbuf = resp.AppendValue(wbuf, v)
		}
		if fatalErr != nil {
			wbuf = resp.AppendValue(wbuf, protocolErrorReply(fatalErr))
		}
		if len(wbuf) > 0 {
			if _, err := c.netConn.Write(wbuf); err != nil {
				c.logger.Debug("connection write error", "error", err)
				return
			}
		}

		if fatalErr != nil || internal || c.quit {
			return
		}
	}
}

// drainAndDispatch parses every complete frame in the buffer and routes
// the resulting commands. The returned error is a framing error and is
// fatal to the connection.
func (c *conn) drainAndDispatch() ([]*pendingReply, error) {
	var pending []*pendingReply

	// Single-shard requests accumulate into one batch per worker and are
	// sent after the buffer drains, so a pipelined burst costs each
	// worker one wakeup.
	batches := make(map[int][]*cmdRequest)

	for {
		frame, ok, err := c.parser.Next()
		if err != nil {
			c.flushBatches(batches)
			return pending, err
		}
		if !ok {
			break
		}

		tokens, ok := frameTokens(frame)
		if !ok {
			pending = append(pending, &pendingReply{
				immediate: resp.Error("ERR protocol error: expected array of bulk strings"),
			})
			continue
		}
		if len(tokens) == 0 {
			continue
		}

		if c.limiter != nil && !c.limiter.Allow() {
			pending = append(pending, &pendingReply{
				immediate: resp.Error("ERR rate limit exceeded"),
			})
			continue
		}

		name := command.NormalizeName(string(tokens[0]))
		if name == "QUIT" {
			pending = append(pending, &pendingReply{immediate: resp.OK})
			c.quit = true
			break
		}

		cmd, found := c.srv.table.Get(name)
		if !found {
			pending = append(pending, &pendingReply{immediate: command.UnknownCommandReply(name)})
			continue
		}

		pending = append(pending, c.dispatch(cmd, tokens, batches))
	}

	c.flushBatches(batches)
	return pending, nil
}

// dispatch routes one command per its routing class and returns the reply
// slot to await.
func (c *conn) dispatch(cmd command.Cmd, tokens [][]byte, batches map[int][]*cmdRequest) *pendingReply {
	switch meta := cmd.Meta(); meta.Route {
	case command.RouteAny:
		return c.enqueue(cmd, tokens, c.owner.idx, batches)

	case command.RouteBroadcast:
		// Broadcast commands route without keys (FLUSHDB is a single
		// token).
		return c.broadcast(cmd, tokens, batches)

	default:
		// Key-routed commands without a key token still need their
		// arity error; run them on the connection's own worker.
		if len(tokens) < 2 {
			return c.enqueue(cmd, tokens, c.owner.idx, batches)
		}
		if meta.Route == command.RouteMultiKey {
			return c.scatterKeys(cmd, tokens, batches)
		}
		return c.enqueue(cmd, tokens, shardOf(tokens[1], len(c.srv.workers)), batches)
	}
}

// enqueue adds a request to one worker's pending batch.
func (c *conn) enqueue(cmd command.Cmd, tokens [][]byte, shard int, batches map[int][]*cmdRequest) *pendingReply {
	req := &cmdRequest{cmd: cmd, tokens: tokens, reply: make(chan resp.Value, 1)}
	batches[shard] = append(batches[shard], req)
	return &pendingReply{await: func() resp.Value { return <-req.reply }}
}

// scatterKeys splits a multi-key command's keys by owning shard, issues
// per-shard sub-commands, and sums the integer replies on gather. An
// error from any shard wins over the sum; partial effects remain, as
// multi-shard commands are not atomic.
func (c *conn) scatterKeys(cmd command.Cmd, tokens [][]byte, batches map[int][]*cmdRequest) *pendingReply {
	name := tokens[0]
	keysByShard := make(map[int][][]byte)
	for _, key := range tokens[1:] {
		shard := shardOf(key, len(c.srv.workers))
		keysByShard[shard] = append(keysByShard[shard], key)
	}

	reqs := make([]*cmdRequest, 0, len(keysByShard))
	for shard, keys := range keysByShard {
		subTokens := append([][]byte{name}, keys...)
		req := &cmdRequest{cmd: cmd, tokens: subTokens, reply: make(chan resp.Value, 1)}
		batches[shard] = append(batches[shard], req)
		reqs = append(reqs, req)
	}

	return &pendingReply{await: func() resp.Value {
		var sum int64
		for _, req := range reqs {
			v := <-req.reply
			if v.Typ == resp.TypeError {
				return v
			}
			sum += v.Int
		}
		return resp.Integer(sum)
	}}
}

// broadcast sends the full command to every shard and reduces: FLUSHDB
// requires all shards to acknowledge; config commands return identical
// replies on every shard, so the first one stands (deduplication).
func (c *conn) broadcast(cmd command.Cmd, tokens [][]byte, batches map[int][]*cmdRequest) *pendingReply {
	reqs := make([]*cmdRequest, len(c.srv.workers))
	for shard := range c.srv.workers {
		req := &cmdRequest{cmd: cmd, tokens: tokens, reply: make(chan resp.Value, 1)}
		batches[shard] = append(batches[shard], req)
		reqs[shard] = req
	}

	return &pendingReply{await: func() resp.Value {
		first := resp.OK
		for i, req := range reqs {
			v := <-req.reply
			if v.Typ == resp.TypeError {
				first = v
				continue
			}
			if i == 0 {
				first = v
			}
		}
		return first
	}}
}

// flushBatches sends each worker its accumulated sub-batch.
func (c *conn) flushBatches(batches map[int][]*cmdRequest) {
	for shard, reqs := range batches {
		if len(reqs) == 0 {
			continue
		}
		if !c.srv.workers[shard].inbox.put(message{batch: reqs}) {
			// Worker is shutting down; fail the requests in-band.
			for _, req := range reqs {
				req.reply <- resp.Error("ERR server shutting down")
			}
		}
		batches[shard] = nil
	}
}

// frameTokens flattens a parsed frame into command tokens. Inline
// commands already arrive as arrays of bulk strings.
func frameTokens(v resp.Value) ([][]byte, bool) {
	if v.Typ != resp.TypeArray {
		return nil, false
	}
	tokens := make([][]byte, len(v.Elems))
	for i, e := range v.Elems {
		switch e.Typ {
		case resp.TypeBulkString, resp.TypeSimpleString:
			tokens[i] = e.Str
		default:
			return nil, false
		}
	}
	return tokens, true
}

// protocolErrorReply renders a framing error for the wire, stripping the
// package's error prefix.
func protocolErrorReply(err error) resp.Value {
	detail := strings.TrimPrefix(err.Error(), "resp: protocol error: ")
	return resp.Error("ERR protocol error: " + detail)
}
