package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"skirmish/internal/proto"
	"skirmish/internal/session"
	"skirmish/internal/telemetry"
)

const defaultBuffer = 256

var ErrNotJoined = errors.New("client: no local identity yet")

type DialConfig struct {
	// DatagramAddr is the server's UDP endpoint. Empty disables datagrams.
	DatagramAddr string
	MaxFrame     int
	QueueSize    int
	Buffer       int
	WriteTimeout time.Duration
	Logger       telemetry.Logger
}

// Conn is a client connection: a reliable session to the server plus an
// optional datagram socket.
type Conn struct {
	sess      *session.Session
	messages  chan proto.Message
	datagrams chan proto.Datagram
	udp       *net.UDPConn
	localID   atomic.Uint32
	runDone   chan struct{}
}

// Dial connects over TCP.
func Dial(ctx context.Context, addr string, cfg DialConfig) (*Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return start(ctx, session.NewStreamConn(raw, cfg.MaxFrame, cfg.WriteTimeout), cfg)
}

// DialWebSocket connects through the HTTP gateway, e.g. ws://host:8080/ws.
func DialWebSocket(ctx context.Context, url string, cfg DialConfig) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return start(ctx, session.NewWebSocketConn(ws, cfg.MaxFrame, cfg.WriteTimeout), cfg)
}

func start(ctx context.Context, fc session.FrameConn, cfg DialConfig) (*Conn, error) {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	c := &Conn{
		messages: make(chan proto.Message, buffer),
		runDone:  make(chan struct{}),
	}
	if cfg.DatagramAddr != "" {
		raddr, err := net.ResolveUDPAddr("udp", cfg.DatagramAddr)
		if err != nil {
			fc.Close()
			return nil, fmt.Errorf("resolve %s: %w", cfg.DatagramAddr, err)
		}
		udpConn, err := net.DialUDP("udp", nil, raddr)
		if err != nil {
			fc.Close()
			return nil, fmt.Errorf("dial udp %s: %w", cfg.DatagramAddr, err)
		}
		c.udp = udpConn
		c.datagrams = make(chan proto.Datagram, buffer)
		go c.readDatagrams()
	}

	c.sess = session.New(0, fc, session.Config{QueueSize: cfg.QueueSize, Logger: cfg.Logger})
	go func() {
		defer close(c.runDone)
		c.sess.Run(context.WithoutCancel(ctx), c)
	}()
	return c, nil
}

// Dispatch implements session.Dispatcher for the inbound side.
func (c *Conn) Dispatch(_ uint32, msg proto.Message) error {
	if msg.Kind().FromClient() {
		return fmt.Errorf("%w: %s", proto.ErrDirection, msg.Kind())
	}
	if join, ok := msg.(proto.Join); ok && join.Local {
		c.localID.Store(join.Player.ID)
	}
	select {
	case c.messages <- msg:
		return nil
	case <-c.sess.Done():
		return session.ErrClosed
	}
}

func (c *Conn) Disconnected(uint32, error) {
	close(c.messages)
	if c.udp != nil {
		c.udp.Close()
	}
}

func (c *Conn) readDatagrams() {
	defer close(c.datagrams)
	buf := make([]byte, proto.DatagramSize+1)
	for {
		n, err := c.udp.Read(buf)
		if err != nil {
			return
		}
		var dg proto.Datagram
		if n != proto.DatagramSize || dg.UnmarshalBinary(buf[:n]) != nil {
			continue
		}
		select {
		case c.datagrams <- dg:
		default:
		}
	}
}

// Messages yields reliable messages in arrival order and is closed when the
// connection ends.
func (c *Conn) Messages() <-chan proto.Message { return c.messages }

// Datagrams yields pose updates; nil when datagrams are disabled. Updates
// are dropped when the reader falls behind.
func (c *Conn) Datagrams() <-chan proto.Datagram { return c.datagrams }

func (c *Conn) LocalID() uint32 { return c.localID.Load() }

func (c *Conn) Done() <-chan struct{} { return c.runDone }

// Err reports why the connection ended.
func (c *Conn) Err() error { return c.sess.Err() }

func (c *Conn) Send(msg proto.Message) error {
	if msg == nil {
		return proto.ErrNilMessage
	}
	if !msg.Kind().FromClient() {
		return fmt.Errorf("%w: %s", proto.ErrDirection, msg.Kind())
	}
	frame, err := proto.EncodeFrame(msg)
	if err != nil {
		return err
	}
	if !c.sess.Enqueue(frame) {
		if cause := c.sess.Err(); cause != nil {
			return cause
		}
		return session.ErrClosed
	}
	return nil
}

func (c *Conn) SendInput(in Input) error { return c.Send(in.Message()) }

func (c *Conn) Shoot() error { return c.Send(proto.PlayerShoot{}) }

func (c *Conn) Ready() error { return c.Send(proto.ClientReady{}) }

// Chat sends text cut to the chat field size.
func (c *Conn) Chat(text string) error {
	return c.Send(proto.ChatMessage{Text: proto.TruncateChat(text)})
}

// SendDatagram announces this client's datagram endpoint to the server. A
// zero ID is filled with the local identity.
func (c *Conn) SendDatagram(dg proto.Datagram) error {
	if c.udp == nil {
		return errors.New("client: datagrams disabled")
	}
	if dg.ID == 0 {
		dg.ID = c.LocalID()
	}
	if dg.ID == 0 {
		return ErrNotJoined
	}
	payload, err := dg.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = c.udp.Write(payload)
	return err
}

// Feed applies everything received to p until the connection or ctx ends.
func (c *Conn) Feed(ctx context.Context, p *Predictor) error {
	datagrams := c.datagrams
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.messages:
			if !ok {
				return c.Err()
			}
			p.Apply(msg)
		case dg, ok := <-datagrams:
			if !ok {
				datagrams = nil
				continue
			}
			p.ApplyDatagram(dg)
		}
	}
}

// Close ends the connection and waits for the session to finish.
func (c *Conn) Close() {
	c.sess.Close()
	<-c.runDone
}
