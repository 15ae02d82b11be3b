package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"skirmish/internal/proto"
	"skirmish/internal/server"
	"skirmish/internal/world"
)

func startServer(t *testing.T) (*world.World, string) {
	t.Helper()
	w := world.New(world.DefaultConfig(), world.Deps{})
	srv := server.New(w, server.Config{WriteTimeout: time.Second})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.ServeTCP(ctx, ln)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return w, ln.Addr().String()
}

func dial(t *testing.T, addr string) *Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := Dial(ctx, addr, DialConfig{})
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnReceivesLocalJoinAndSendsReady(t *testing.T) {
	w, addr := startServer(t)
	c := dial(t, addr)

	select {
	case msg := <-c.Messages():
		join, ok := msg.(proto.Join)
		if !ok || !join.Local || join.Player.ID != 1 {
			t.Fatalf("first message = %#v, want local join for 1", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no join received")
	}
	if c.LocalID() != 1 {
		t.Fatalf("LocalID = %d, want 1", c.LocalID())
	}

	if err := c.Ready(); err != nil {
		t.Fatalf("Ready returned error: %v", err)
	}
	waitFor(t, "ready flag", func() bool {
		ps, ok := w.Player(1)
		return ok && ps.Ready
	})
}

func TestConnRejectsServerKinds(t *testing.T) {
	_, addr := startServer(t)
	c := dial(t, addr)
	if err := c.Send(proto.Leave{ID: 1}); !errors.Is(err, proto.ErrDirection) {
		t.Fatalf("Send(Leave) error = %v, want ErrDirection", err)
	}
	if err := c.Send(nil); !errors.Is(err, proto.ErrNilMessage) {
		t.Fatalf("Send(nil) error = %v, want ErrNilMessage", err)
	}
}

func TestConnFeedsPredictor(t *testing.T) {
	_, addr := startServer(t)
	first := dial(t, addr)
	p := NewPredictor(Config{})

	ctx, cancel := context.WithCancel(context.Background())
	fed := make(chan error, 1)
	go func() { fed <- first.Feed(ctx, p) }()

	dial(t, addr)
	waitFor(t, "both players in view", func() bool {
		return p.LocalID() == 1 && len(p.View().Players) == 2
	})

	if err := first.Chat("hello"); err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	waitFor(t, "chat echo", func() bool {
		chat := p.View().Chat
		return len(chat) == 1 && chat[0].Sender == 1 && chat[0].Text == "hello"
	})

	cancel()
	if err := <-fed; !errors.Is(err, context.Canceled) {
		t.Fatalf("Feed returned %v, want context.Canceled", err)
	}
}

func TestConnClosesMessagesOnDisconnect(t *testing.T) {
	_, addr := startServer(t)
	c := dial(t, addr)
	c.Close()
	for range c.Messages() {
	}
	if err := c.Send(proto.ClientReady{}); err == nil {
		t.Fatalf("Send after Close succeeded")
	}
	if err := c.SendDatagram(proto.Datagram{}); err == nil {
		t.Fatalf("SendDatagram without endpoint succeeded")
	}
}
