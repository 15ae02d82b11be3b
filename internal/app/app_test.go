package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"skirmish/internal/client"
	"skirmish/internal/config"
	"skirmish/internal/proto"
	"skirmish/logging"
	logginglifecycle "skirmish/logging/lifecycle"
	loggingsinks "skirmish/logging/sinks"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunServesAllChannels(t *testing.T) {
	cfg := config.Default()
	cfg.TCPAddr = "127.0.0.1:0"
	cfg.UDPAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"

	memory := loggingsinks.NewMemorySink()
	ready := make(chan Addrs, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{
			Sinks: []logging.NamedSink{{Name: "memory", Sink: memory}},
			Ready: func(a Addrs) { ready <- a },
		})
	}()

	var addrs Addrs
	select {
	case addrs = <-ready:
	case err := <-done:
		t.Fatalf("Run exited early: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatalf("server never became ready")
	}

	conn, err := client.Dial(ctx, addrs.TCP, client.DialConfig{DatagramAddr: addrs.UDP})
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer conn.Close()

	msg := <-conn.Messages()
	if join, ok := msg.(proto.Join); !ok || !join.Local {
		t.Fatalf("first message = %#v, want local join", msg)
	}
	if err := conn.SendDatagram(proto.Datagram{Rotation: mgl32.QuatIdent()}); err != nil {
		t.Fatalf("SendDatagram returned error: %v", err)
	}

	select {
	case dg, ok := <-conn.Datagrams():
		if !ok || dg.ID != conn.LocalID() {
			t.Fatalf("unexpected datagram %+v ok=%v", dg, ok)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no datagram pushed back")
	}

	resp, err := http.Get("http://" + addrs.HTTP + "/diagnostics")
	if err != nil {
		t.Fatalf("GET /diagnostics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	var diag struct {
		World struct {
			Players   int `json:"players"`
			Endpoints int `json:"endpoints"`
		} `json:"world"`
	}
	if err := json.Unmarshal(body, &diag); err != nil {
		t.Fatalf("decode diagnostics: %v (%s)", err, body)
	}
	if diag.World.Players != 1 || diag.World.Endpoints != 1 {
		t.Fatalf("unexpected diagnostics: %s", body)
	}

	waitFor(t, "player joined event", func() bool {
		return len(memory.OfType(logginglifecycle.EventPlayerJoined)) == 1
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestRunFailsOnBadAddress(t *testing.T) {
	cfg := config.Default()
	cfg.TCPAddr = "127.0.0.1:0"
	cfg.UDPAddr = "127.0.0.1:99999"
	cfg.HTTPAddr = "127.0.0.1:0"
	err := Run(context.Background(), cfg, Options{Sinks: []logging.NamedSink{}})
	if err == nil {
		t.Fatalf("expected listen error")
	}
}
