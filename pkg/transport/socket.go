package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/pbs/pkg/logging"
)

// DefaultMaxConnections caps concurrent socket clients. Clients beyond the
// cap wait in the accept queue until a slot frees.
const DefaultMaxConnections = 16

// ServerOption configures a SocketServer.
type ServerOption func(*SocketServer)

// WithMaxConnections sets the concurrent connection cap.
func WithMaxConnections(n int) ServerOption {
	return func(s *SocketServer) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithServerLogger sets the diagnostics logger.
func WithServerLogger(logger *logging.Logger) ServerOption {
	return func(s *SocketServer) {
		s.logger = logger
	}
}

// SocketServer serves the line protocol to TCP clients. All connections
// share one dispatcher, which serializes their commands.
type SocketServer struct {
	addr       string
	dispatcher Dispatcher
	maxConns   int
	logger     *logging.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewSocketServer creates a server for addr ("host:port").
func NewSocketServer(addr string, d Dispatcher, opts ...ServerOption) *SocketServer {
	s := &SocketServer{
		addr:       addr,
		dispatcher: d,
		maxConns:   DefaultMaxConnections,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the server address. It is called by ListenAndServe and only
// needs to be called directly to learn the bound address first.
func (s *SocketServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = netutil.LimitListener(ln, s.maxConns)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *SocketServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds the address and serves until ctx is canceled or
// Close is called. Open connections are closed on shutdown; a command
// already dispatched still runs to completion.
func (s *SocketServer) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	s.logger.Infof("Listening on %s (max %d connections)", ln.Addr(), s.maxConns)

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		_ = ln.Close()
		return nil
	})

	g.Go(func() error {
		defer cancel()
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) || gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept failed: %w", err)
			}

			g.Go(func() error {
				s.handleConn(gctx, conn)
				return nil
			})
		}
	})

	err := g.Wait()
	cancel()
	s.logger.Infof("Socket server stopped")
	return err
}

// Close stops accepting connections.
func (s *SocketServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *SocketServer) handleConn(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()[:8]
	s.logger.Debugf("Connection %s from %s opened", id, conn.RemoteAddr())

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer func() {
		stop()
		_ = conn.Close()
		s.logger.Debugf("Connection %s closed", id)
	}()

	if err := serveLines(ctx, s.dispatcher, conn, conn); err != nil && ctx.Err() == nil {
		s.logger.Warnf("Connection %s: %v", id, err)
	}
}
