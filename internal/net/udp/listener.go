package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"skirmish/internal/proto"
	"skirmish/internal/telemetry"
	"skirmish/logging"
	loggingnetwork "skirmish/logging/network"
)

const (
	CounterReceived  = "udp.received"
	CounterDiscarded = "udp.discarded"
	CounterSent      = "udp.sent"
	CounterSendError = "udp.send_errors"
)

// Handler receives every well-formed datagram.
type Handler func(dg proto.Datagram, from netip.AddrPort)

type ListenerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Counters  *telemetry.Counters
}

// Listener owns the UDP socket for both directions of the fast path.
type Listener struct {
	conn      *net.UDPConn
	logger    telemetry.Logger
	publisher logging.Publisher
	counters  *telemetry.Counters
}

// Listen binds addr (for example ":1338").
func Listen(addr string, cfg ListenerConfig) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp addr %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %q: %w", addr, err)
	}
	return NewListener(conn, cfg), nil
}

func NewListener(conn *net.UDPConn, cfg ListenerConfig) *Listener {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	counters := cfg.Counters
	if counters == nil {
		counters = &telemetry.Counters{}
	}
	return &Listener{conn: conn, logger: logger, publisher: pub, counters: counters}
}

func (l *Listener) LocalAddr() netip.AddrPort {
	return l.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Serve receives datagrams until ctx is cancelled or the socket is closed.
// Datagrams that are not exactly proto.DatagramSize bytes, or that fail to
// decode, are dropped without affecting any session.
func (l *Listener) Serve(ctx context.Context, handle Handler) error {
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()

	buf := make([]byte, proto.DatagramSize+1)
	for {
		n, from, err := l.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Printf("udp read failed: %v", err)
			continue
		}
		l.counters.Add(CounterReceived, 1)
		var dg proto.Datagram
		if err := dg.UnmarshalBinary(buf[:n]); err != nil {
			l.counters.Add(CounterDiscarded, 1)
			loggingnetwork.DatagramDiscarded(ctx, l.publisher, 0, loggingnetwork.DatagramPayload{
				Size:   n,
				Remote: from.String(),
				Reason: err.Error(),
			}, nil)
			continue
		}
		handle(dg, from)
	}
}

// Send pushes each datagram once. Failures are counted and skipped.
func (l *Listener) Send(batch []Outgoing) {
	for _, out := range batch {
		if _, err := l.conn.WriteToUDPAddrPort(out.Payload, out.Addr); err != nil {
			l.counters.Add(CounterSendError, 1)
			continue
		}
		l.counters.Add(CounterSent, 1)
	}
}

func (l *Listener) Close() error {
	return l.conn.Close()
}
