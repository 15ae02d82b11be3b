// Package server accepts reliable connections, allocates player identities
// and routes each session's messages into the world.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"

	"skirmish/internal/net/udp"
	"skirmish/internal/proto"
	"skirmish/internal/session"
	"skirmish/internal/telemetry"
	"skirmish/internal/world"
	"skirmish/logging"
)

const (
	CounterAccepted   = "sessions.accepted"
	CounterRejected   = "sessions.rejected"
	CounterClosed     = "sessions.closed"
	CounterFramesIn   = "frames.in"
	CounterViolations = "sessions.protocol_violations"
)

type Config struct {
	MaxFrame     int
	QueueSize    int
	WriteTimeout time.Duration
	Logger       telemetry.Logger
	Publisher    logging.Publisher
	Counters     *telemetry.Counters
}

// Server owns the session arena. The arena lock is never held while calling
// into the world, so session teardown cannot deadlock against a tick.
type Server struct {
	world    *world.World
	cfg      Config
	logger   telemetry.Logger
	counters *telemetry.Counters

	nextID atomic.Uint32

	mu       deadlock.Mutex
	sessions map[uint32]*session.Session
	closed   bool

	wg sync.WaitGroup
}

// Stats summarises the arena for diagnostics.
type Stats struct {
	Sessions int               `json:"sessions"`
	LastID   uint32            `json:"lastId"`
	Counters map[string]uint64 `json:"counters"`
}

func New(w *world.World, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	counters := cfg.Counters
	if counters == nil {
		counters = &telemetry.Counters{}
	}
	if cfg.MaxFrame <= 0 {
		cfg.MaxFrame = proto.DefaultMaxFrame
	}
	return &Server{
		world:    w,
		cfg:      cfg,
		logger:   logger,
		counters: counters,
		sessions: make(map[uint32]*session.Session),
	}
}

func (s *Server) MaxFrame() int { return s.cfg.MaxFrame }

func (s *Server) WriteTimeout() time.Duration { return s.cfg.WriteTimeout }

// Attach runs one connection as a player until it ends. Identities are never
// reused within the process.
func (s *Server) Attach(ctx context.Context, conn session.FrameConn) error {
	id := s.nextID.Add(1)
	sess := session.New(id, conn, session.Config{
		QueueSize: s.cfg.QueueSize,
		Logger:    s.logger,
		Publisher: s.cfg.Publisher,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return session.ErrClosed
	}
	s.sessions[id] = sess
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if err := s.world.Join(id, sess); err != nil {
		s.remove(id)
		conn.Close()
		s.counters.Add(CounterRejected, 1)
		s.logger.Printf("rejected %s: %v", conn.RemoteAddr(), err)
		return fmt.Errorf("join %d: %w", id, err)
	}
	s.counters.Add(CounterAccepted, 1)
	return sess.Run(ctx, s)
}

// Dispatch implements session.Dispatcher. Server-only kinds from a client end
// the session.
func (s *Server) Dispatch(id uint32, msg proto.Message) error {
	if !msg.Kind().FromClient() {
		return fmt.Errorf("%w: %s", proto.ErrDirection, msg.Kind())
	}
	s.counters.Add(CounterFramesIn, 1)
	s.world.Handle(id, msg)
	return nil
}

// Disconnected implements session.Dispatcher.
func (s *Server) Disconnected(id uint32, err error) {
	reason := disconnectReason(err)
	if reason == "protocol" {
		s.counters.Add(CounterViolations, 1)
	}
	s.world.Leave(id, reason)
	s.remove(id)
	s.counters.Add(CounterClosed, 1)
}

func (s *Server) remove(id uint32) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func disconnectReason(err error) string {
	switch {
	case err == nil:
		return "closed"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "eof"
	case errors.Is(err, session.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, session.ErrClosed), errors.Is(err, context.Canceled):
		return "closed"
	case proto.IsViolation(err), errors.Is(err, session.ErrNotBinary):
		return "protocol"
	default:
		return "error"
	}
}

// ServeTCP accepts connections until ctx is cancelled or ln is closed.
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.logger.Printf("accept error: %v; retrying in %v", err, backoff)
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		go s.Attach(ctx, session.NewStreamConn(conn, s.cfg.MaxFrame, s.cfg.WriteTimeout))
	}
}

// ServeUDP feeds inbound datagrams to the world's endpoint registry.
func (s *Server) ServeUDP(ctx context.Context, l *udp.Listener) error {
	return l.Serve(ctx, s.world.HandleDatagram)
}

// Close terminates every session and waits for their disconnects to be
// reported.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	open := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.Close()
	}
	s.wg.Wait()
}

func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) Stats() Stats {
	return Stats{
		Sessions: s.SessionCount(),
		LastID:   s.nextID.Load(),
		Counters: s.counters.Snapshot(),
	}
}
