// Package server implements the Nimbis network front end: a TCP acceptor
// that hands connections to sharded workers round-robin, per-connection
// frame handling with strict pipelined response order, and key-affine
// routing with scatter/gather for multi-key and broadcast commands.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/nimbis-db/nimbis/internal/command"
	"github.com/nimbis-db/nimbis/internal/server/config"
	"github.com/nimbis-db/nimbis/internal/storage"
	"github.com/nimbis-db/nimbis/internal/telemetry/metric"
)

// Server owns the listener, the workers and their shard engines.
type Server struct {
	dyn     *config.Dynamic
	table   *command.Table
	logger  *slog.Logger
	metrics *metric.Collector

	workers []*worker
	ln      net.Listener
	nextRR  atomic.Uint64
	running atomic.Bool

	wg sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// New assembles a server over one engine per worker. The engines slice
// length fixes the shard count for the life of the process.
func New(dyn *config.Dynamic, table *command.Table, engines []*storage.Engine, logger *slog.Logger, metrics *metric.Collector) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		dyn:     dyn,
		table:   table,
		logger:  logger,
		metrics: metrics,
		conns:   make(map[net.Conn]struct{}),
	}
	for i, eng := range engines {
		s.workers = append(s.workers, newWorker(i, s, eng, logger))
	}
	return s
}

// Start binds the TCP port and launches the workers and the accept loop.
// A bind failure is returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.dyn.Snapshot()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.ln = ln
	s.running.Store(true)

	for _, w := range s.workers {
		w := w
		go w.run()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	s.logger.Info("server listening", "addr", ln.Addr().String(), "workers", len(s.workers))
	return nil
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Shutdown closes the listener, drops open connections, and stops the
// workers after their inboxes drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.connMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		for _, w := range s.workers {
			w.stop()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return firstErr
}

// acceptLoop hands each accepted socket to the next worker round-robin.
// The acceptor does no parsing.
func (s *Server) acceptLoop(ctx context.Context) {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.logger.Error("accept failed", "error", err)
			return
		}

		if s.metrics != nil {
			s.metrics.ConnectionsAccepted.Inc()
		}

		next := int(s.nextRR.Add(1)-1) % len(s.workers)
		if !s.workers[next].inbox.put(message{conn: c}) {
			_ = c.Close()
		}
	}
}

// startConn is called on the owning worker's goroutine for each new
// connection; the handler itself runs as its own task.
func (s *Server) startConn(owner *worker, nc net.Conn) {
	s.connMu.Lock()
	s.conns[nc] = struct{}{}
	s.connMu.Unlock()

	if s.metrics != nil {
		s.metrics.ConnectionsActive.Inc()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.connMu.Lock()
			delete(s.conns, nc)
			s.connMu.Unlock()
			if s.metrics != nil {
				s.metrics.ConnectionsActive.Dec()
			}
		}()
		newConn(s, owner, nc).serve()
	}()
}
