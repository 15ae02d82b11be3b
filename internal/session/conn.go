package session

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"skirmish/internal/proto"
)

// FrameConn is a reliable carrier of length-prefixed frames. ReadFrame
// returns a frame body (kind byte and payload); WriteFrame takes a complete
// frame including its prefix. Reads and writes may run on different
// goroutines but writes are never concurrent with each other.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
	RemoteAddr() string
}

var ErrNotBinary = errors.New("session: websocket message is not binary")

// StreamConn carries frames over a byte stream such as TCP.
type StreamConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	maxFrame     int
	writeTimeout time.Duration
}

func NewStreamConn(conn net.Conn, maxFrame int, writeTimeout time.Duration) *StreamConn {
	if maxFrame <= 0 {
		maxFrame = proto.DefaultMaxFrame
	}
	return &StreamConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		maxFrame:     maxFrame,
		writeTimeout: writeTimeout,
	}
}

func (c *StreamConn) ReadFrame() ([]byte, error) {
	return proto.ReadFrame(c.reader, c.maxFrame)
}

func (c *StreamConn) WriteFrame(frame []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(frame)
	return err
}

func (c *StreamConn) Close() error {
	return c.conn.Close()
}

func (c *StreamConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// WebSocketConn carries one length-prefixed frame per binary message.
type WebSocketConn struct {
	conn         *websocket.Conn
	maxFrame     int
	writeTimeout time.Duration
}

func NewWebSocketConn(conn *websocket.Conn, maxFrame int, writeTimeout time.Duration) *WebSocketConn {
	if maxFrame <= 0 {
		maxFrame = proto.DefaultMaxFrame
	}
	conn.SetReadLimit(int64(maxFrame + proto.HeaderSize))
	return &WebSocketConn{conn: conn, maxFrame: maxFrame, writeTimeout: writeTimeout}
}

func (c *WebSocketConn) ReadFrame() ([]byte, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if messageType != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: type %d", ErrNotBinary, messageType)
	}
	return proto.SplitFrame(data, c.maxFrame)
}

func (c *WebSocketConn) WriteFrame(frame []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *WebSocketConn) Close() error {
	return c.conn.Close()
}

func (c *WebSocketConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
