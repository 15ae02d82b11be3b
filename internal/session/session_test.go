package session

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"skirmish/internal/proto"
	"skirmish/logging"
	"skirmish/logging/sinks"
	loggingnetwork "skirmish/logging/network"
)

type recordingDispatcher struct {
	mu           sync.Mutex
	messages     []proto.Message
	disconnects  int
	lastErr      error
	disconnected chan struct{}
	reject       error
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{disconnected: make(chan struct{})}
}

func (d *recordingDispatcher) Dispatch(_ uint32, msg proto.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return d.reject
}

func (d *recordingDispatcher) Disconnected(_ uint32, err error) {
	d.mu.Lock()
	d.disconnects++
	d.lastErr = err
	first := d.disconnects == 1
	d.mu.Unlock()
	if first {
		close(d.disconnected)
	}
}

func (d *recordingDispatcher) snapshot() ([]proto.Message, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]proto.Message(nil), d.messages...), d.disconnects, d.lastErr
}

func runSession(t *testing.T, sess *Session, d Dispatcher) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() {
		result <- sess.Run(context.Background(), d)
	}()
	return result
}

func waitResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not stop")
		return nil
	}
}

func TestSessionDispatchesInOrderAndReportsOnce(t *testing.T) {
	server, client := net.Pipe()
	sess := New(4, NewStreamConn(server, 0, 0), Config{})
	d := newRecordingDispatcher()
	result := runSession(t, sess, d)

	for _, msg := range []proto.Message{proto.ClientReady{}, proto.ChatMessage{Text: "hi"}, proto.PlayerShoot{}} {
		frame, err := proto.EncodeFrame(msg)
		if err != nil {
			t.Fatalf("EncodeFrame returned error: %v", err)
		}
		if _, err := client.Write(frame); err != nil {
			t.Fatalf("client write failed: %v", err)
		}
	}
	client.Close()

	err := waitResult(t, result)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF cause, got %v", err)
	}
	messages, disconnects, lastErr := d.snapshot()
	if disconnects != 1 {
		t.Fatalf("Disconnected called %d times, want 1", disconnects)
	}
	if !errors.Is(lastErr, io.EOF) {
		t.Fatalf("Disconnected got %v", lastErr)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Kind() != proto.KindClientReady || messages[1].Kind() != proto.KindChatMessage || messages[2].Kind() != proto.KindPlayerShoot {
		t.Fatalf("messages out of order: %#v", messages)
	}
}

func TestSessionEndsOnProtocolViolation(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	memory := sinks.NewMemorySink()
	sess := New(2, NewStreamConn(server, 0, 0), Config{Publisher: memory})
	d := newRecordingDispatcher()
	result := runSession(t, sess, d)

	go client.Write(proto.AppendFrame(nil, []byte{250}))

	err := waitResult(t, result)
	if !errors.Is(err, proto.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, disconnects, _ := d.snapshot(); disconnects != 1 {
		t.Fatalf("Disconnected called %d times, want 1", disconnects)
	}
	events := memory.OfType(loggingnetwork.EventProtocolViolation)
	if len(events) != 1 || events[0].Actor.Kind != logging.EntityKindSession || events[0].Actor.ID != sess.TraceID() {
		t.Fatalf("unexpected violation events: %+v", events)
	}
}

func TestSessionRejectsOversizedFrame(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	sess := New(2, NewStreamConn(server, 64, 0), Config{})
	result := runSession(t, sess, newRecordingDispatcher())

	go client.Write([]byte{65, 0, 0, 0})

	if err := waitResult(t, result); !errors.Is(err, proto.ErrFrameLength) {
		t.Fatalf("expected ErrFrameLength, got %v", err)
	}
}

func TestSessionDispatchErrorEndsSession(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	sess := New(2, NewStreamConn(server, 0, 0), Config{})
	d := newRecordingDispatcher()
	d.reject = proto.ErrDirection
	result := runSession(t, sess, d)

	go client.Write(proto.MustEncodeFrame(proto.Leave{ID: 1}))

	if err := waitResult(t, result); !errors.Is(err, proto.ErrDirection) {
		t.Fatalf("expected dispatcher error to end session, got %v", err)
	}
}

func TestSessionWritesQueuedFrames(t *testing.T) {
	server, client := net.Pipe()
	sess := New(1, NewStreamConn(server, 0, time.Second), Config{})
	result := runSession(t, sess, newRecordingDispatcher())

	if !sess.Enqueue(proto.MustEncodeFrame(proto.PlayerHit{Target: 2, Shooter: 1, Health: 75})) {
		t.Fatalf("Enqueue returned false on a live session")
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := proto.ReadFrame(client, 0)
	if err != nil {
		t.Fatalf("ReadFrame returned error: %v", err)
	}
	msg, err := proto.Decode(body)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if hit, ok := msg.(proto.PlayerHit); !ok || hit.Health != 75 {
		t.Fatalf("unexpected message %#v", msg)
	}

	sess.Close()
	if err := waitResult(t, result); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if sess.Enqueue([]byte{1}) {
		t.Fatalf("Enqueue after close should return false")
	}
}

func TestSessionQueueOverflowTerminates(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	sess := New(3, NewStreamConn(server, 0, 0), Config{QueueSize: 1})
	d := newRecordingDispatcher()
	result := runSession(t, sess, d)

	frame := proto.MustEncodeFrame(proto.Leave{ID: 9})
	accepted := 0
	for i := 0; i < 8; i++ {
		if !sess.Enqueue(frame) {
			break
		}
		accepted++
	}
	if accepted >= 8 {
		t.Fatalf("expected queue to overflow with nobody reading")
	}

	if err := waitResult(t, result); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	select {
	case <-d.disconnected:
	default:
		t.Fatalf("expected Disconnected to have been reported")
	}
}

func TestWebSocketConnCarriesFrames(t *testing.T) {
	frames := make(chan []byte, 1)
	errs := make(chan error, 2)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errs <- err
			return
		}
		conn := NewWebSocketConn(ws, 0, time.Second)
		defer conn.Close()
		body, err := conn.ReadFrame()
		if err != nil {
			errs <- err
			return
		}
		frames <- body
		_, err = conn.ReadFrame()
		errs <- err
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	if err := client.WriteMessage(websocket.BinaryMessage, proto.MustEncodeFrame(proto.ClientReady{})); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	select {
	case body := <-frames:
		if len(body) != 1 || proto.Kind(body[0]) != proto.KindClientReady {
			t.Fatalf("unexpected body % x", body)
		}
	case err := <-errs:
		t.Fatalf("server error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}

	if err := client.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	select {
	case err := <-errs:
		if !errors.Is(err, ErrNotBinary) {
			t.Fatalf("expected ErrNotBinary, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for text rejection")
	}
}
