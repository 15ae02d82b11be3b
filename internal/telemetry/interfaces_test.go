package telemetry

import (
	"bytes"
	"log"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WrapLogger(log.New(&buf, "", 0))
		logger.Printf("hello %s", "arena")
		if got := buf.String(); got != "hello arena\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestCounters(t *testing.T) {
	var counters Counters
	counters.Add("udp.discarded", 2)
	counters.Add("udp.discarded", 3)
	counters.Add("frames.in", 1)

	if got := counters.Load("udp.discarded"); got != 5 {
		t.Fatalf("unexpected counter value: got %d want 5", got)
	}
	keys := counters.Keys()
	if len(keys) != 2 || keys[0] != "frames.in" || keys[1] != "udp.discarded" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	var nilCounters *Counters
	nilCounters.Add("ignored", 1)
	if got := nilCounters.Load("ignored"); got != 0 {
		t.Fatalf("nil counters should read zero, got %d", got)
	}
}
