package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"skirmish/logging"
)

func TestConsoleSinkFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	err := sink.Write(logging.Event{
		Type:     "combat.damage",
		Tick:     7,
		Actor:    logging.PlayerRef(1),
		Targets:  []logging.EntityRef{logging.PlayerRef(2)},
		Severity: logging.SeverityInfo,
		Payload:  map[string]int{"amount": 25},
	})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"[combat.damage]", "tick=7", "actor=player:1", "targets=player:2", "severity=info", `payload={"amount":25}`} {
		if !strings.Contains(line, want) {
			t.Fatalf("console output %q missing %q", line, want)
		}
	}
}

func TestJSONSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	if err := sink.Write(logging.Event{Type: "match.state_changed", Tick: 3}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if decoded["type"] != "match.state_changed" {
		t.Fatalf("unexpected type field: %v", decoded["type"])
	}
}

func TestMemorySinkOfType(t *testing.T) {
	sink := NewMemorySink()
	sink.Publish(context.Background(), logging.Event{Type: "a"})
	sink.Publish(context.Background(), logging.Event{Type: "b"})
	sink.Publish(context.Background(), logging.Event{Type: "a"})
	if got := len(sink.OfType("a")); got != 2 {
		t.Fatalf("expected 2 events of type a, got %d", got)
	}
	sink.Reset()
	if got := len(sink.Events()); got != 0 {
		t.Fatalf("expected reset to clear events, got %d", got)
	}
}

func TestEncodeRedisEventIsMsgpack(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	data, err := EncodeRedisEvent(logging.Event{
		Type:     "lifecycle.player_joined",
		Tick:     42,
		Time:     at,
		Actor:    logging.PlayerRef(9),
		Severity: logging.SeverityWarn,
		TraceID:  "trace",
	})
	if err != nil {
		t.Fatalf("EncodeRedisEvent returned error: %v", err)
	}
	var decoded logging.Event
	if err := msgpack.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("msgpack decode failed: %v", err)
	}
	if decoded.Type != "lifecycle.player_joined" || decoded.Tick != 42 || decoded.Actor.ID != "9" || decoded.TraceID != "trace" {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
	if !decoded.Time.Equal(at) {
		t.Fatalf("time mismatch: got %v want %v", decoded.Time, at)
	}
}
