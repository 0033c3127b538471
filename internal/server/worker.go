package server

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/nimbis-db/nimbis/internal/command"
	"github.com/nimbis-db/nimbis/internal/resp"
	"github.com/nimbis-db/nimbis/internal/storage"
)

// smartBatchSize caps how many inbox messages a worker drains per wakeup.
const smartBatchSize = 256

// cmdRequest is one command routed to a shard worker. The reply channel
// has capacity 1 so the worker never blocks on a vanished connection.
type cmdRequest struct {
	cmd    command.Cmd
	tokens [][]byte
	reply  chan resp.Value
}

// message is one inbox item: either a freshly accepted connection or a
// batch of commands for this worker's shard.
type message struct {
	conn  net.Conn
	batch []*cmdRequest
}

// mailbox is an unbounded multi-producer single-consumer queue. The
// signal channel wakes the worker; take drains several messages per
// wakeup to amortize scheduling.
type mailbox struct {
	mu     sync.Mutex
	items  []message
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) put(msg message) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// take blocks until at least one message is queued (or the mailbox
// closes), then returns up to max messages.
func (m *mailbox) take(max int) ([]message, bool) {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			n := len(m.items)
			if n > max {
				n = max
			}
			out := make([]message, n)
			copy(out, m.items[:n])
			m.items = m.items[n:]
			m.mu.Unlock()
			return out, true
		}
		if m.closed {
			m.mu.Unlock()
			return nil, false
		}
		m.mu.Unlock()

		if _, ok := <-m.signal; !ok {
			// Closed while idle; loop once more to drain stragglers.
			m.mu.Lock()
			drained := m.items
			m.items = nil
			m.mu.Unlock()
			if len(drained) > 0 {
				return drained, true
			}
			return nil, false
		}
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	close(m.signal)
}

// worker owns one shard: its storage engine and the only goroutine that
// executes commands against it. Per-key total order and read-modify-write
// atomicity follow from that single consumer.
type worker struct {
	idx    int
	srv    *Server
	eng    *storage.Engine
	inbox  *mailbox
	logger *slog.Logger
	doneCh chan struct{}
}

func newWorker(idx int, srv *Server, eng *storage.Engine, logger *slog.Logger) *worker {
	return &worker{
		idx:    idx,
		srv:    srv,
		eng:    eng,
		inbox:  newMailbox(),
		logger: logger.With("worker", idx),
		doneCh: make(chan struct{}),
	}
}

func (w *worker) run() {
	defer close(w.doneCh)

	for {
		msgs, ok := w.inbox.take(smartBatchSize)
		if !ok {
			return
		}
		for _, msg := range msgs {
			switch {
			case msg.conn != nil:
				w.srv.startConn(w, msg.conn)
			default:
				for _, req := range msg.batch {
					req.reply <- w.execute(req)
				}
			}
		}
	}
}

func (w *worker) stop() {
	w.inbox.close()
	<-w.doneCh
}

// execute runs one command against this worker's shard. A panic in
// command code is confined to the request.
func (w *worker) execute(req *cmdRequest) (v resp.Value) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("command panicked", "command", req.cmd.Meta().Name, "panic", r)
			v = resp.Error(command.InternalErrorReply)
		}
	}()

	v = command.Execute(context.Background(), req.cmd, w.eng, req.tokens)

	if w.srv.metrics != nil {
		w.srv.metrics.CommandsProcessed.WithLabelValues(req.cmd.Meta().Name).Inc()
		if v.IsError() {
			w.srv.metrics.CommandErrors.Inc()
		}
	}
	return v
}
