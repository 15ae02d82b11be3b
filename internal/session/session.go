// Package session owns one reliable connection: the framed read loop, the
// single-writer outgoing queue and disconnect reporting.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/ksuid"

	"skirmish/internal/proto"
	"skirmish/internal/telemetry"
	"skirmish/logging"
	loggingnetwork "skirmish/logging/network"
)

// DefaultQueueSize bounds the outgoing frames buffered per session.
const DefaultQueueSize = 1024

var (
	ErrQueueFull = errors.New("session: outgoing queue full")
	ErrClosed    = errors.New("session: closed")
)

// Dispatcher receives decoded messages and the final disconnect. Both are
// called only from the goroutine running Session.Run.
type Dispatcher interface {
	Dispatch(id uint32, msg proto.Message) error
	Disconnected(id uint32, err error)
}

type Config struct {
	QueueSize int
	Logger    telemetry.Logger
	Publisher logging.Publisher
}

type Session struct {
	id        uint32
	traceID   string
	conn      FrameConn
	queue     chan []byte
	done      chan struct{}
	logger    telemetry.Logger
	publisher logging.Publisher

	closeOnce sync.Once
	mu        sync.Mutex
	cause     error
}

func New(id uint32, conn FrameConn, cfg Config) *Session {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Session{
		id:        id,
		traceID:   ksuid.New().String(),
		conn:      conn,
		queue:     make(chan []byte, size),
		done:      make(chan struct{}),
		logger:    logger,
		publisher: pub,
	}
}

func (s *Session) ID() uint32 { return s.id }

// TraceID is a sortable unique id attached to the session's log events.
func (s *Session) TraceID() string { return s.traceID }

func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr() }

// Done is closed once the session has been terminated.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the session ended, or nil while it is running.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Enqueue hands a complete frame to the writer without blocking. A full
// queue means the peer stopped reading; the session is terminated and the
// frame dropped. The disconnect is reported later from Run, never from here.
func (s *Session) Enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- frame:
		return true
	default:
		s.terminate(ErrQueueFull)
		return false
	}
}

// Close terminates the session. Run still reports the disconnect.
func (s *Session) Close() {
	s.terminate(ErrClosed)
}

func (s *Session) terminate(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.cause = cause
		s.mu.Unlock()
		close(s.done)
		s.conn.Close()
	})
}

// Run drives the session until the connection fails, a frame violates the
// protocol, the dispatcher rejects a message, or ctx is cancelled. It calls
// d.Disconnected exactly once before returning the cause.
func (s *Session) Run(ctx context.Context, d Dispatcher) error {
	stop := context.AfterFunc(ctx, func() { s.terminate(ctx.Err()) })
	defer stop()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()

	s.terminate(s.readLoop(d))
	<-writerDone

	cause := s.Err()
	s.report(ctx, cause)
	d.Disconnected(s.id, cause)
	return cause
}

func (s *Session) readLoop(d Dispatcher) error {
	for {
		body, err := s.conn.ReadFrame()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		msg, err := proto.Decode(body)
		if err != nil {
			return err
		}
		if err := d.Dispatch(s.id, msg); err != nil {
			return err
		}
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.queue:
			if err := s.conn.WriteFrame(frame); err != nil {
				s.terminate(fmt.Errorf("write frame: %w", err))
				return
			}
		}
	}
}

func (s *Session) report(ctx context.Context, cause error) {
	actor := logging.EntityRef{ID: s.traceID, Kind: logging.EntityKindSession}
	extra := map[string]any{"player": s.id}
	switch {
	case errors.Is(cause, ErrQueueFull):
		loggingnetwork.QueueOverflow(ctx, s.publisher, 0, actor, loggingnetwork.QueueOverflowPayload{Capacity: cap(s.queue)}, extra)
	case proto.IsViolation(cause):
		s.logger.Printf("session %d (%s) protocol violation: %v", s.id, s.conn.RemoteAddr(), cause)
		loggingnetwork.ProtocolViolation(ctx, s.publisher, 0, actor, loggingnetwork.ViolationPayload{
			Error:  cause.Error(),
			Remote: s.conn.RemoteAddr(),
		}, extra)
	}
}
