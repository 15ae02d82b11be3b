package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads wall time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router stamps published events and hands each one to every sink's lane.
// Publishing never blocks: a full lane drops the event for that sink only.
type Router struct {
	clock       Clock
	minSeverity Severity
	fields      map[string]any
	warnEvery   time.Duration
	fallback    *log.Logger

	mu     sync.RWMutex
	closed bool
	lanes  []*lane
	wg     sync.WaitGroup

	eventsTotal atomic.Uint64
}

type SinkStats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

type RouterStats struct {
	EventsTotal  uint64               `json:"eventsTotal"`
	DroppedTotal uint64               `json:"droppedTotal"`
	Sinks        map[string]SinkStats `json:"sinks,omitempty"`
}

func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 512
	}
	warnEvery := cfg.DropWarnInterval
	if warnEvery <= 0 {
		warnEvery = 5 * time.Second
	}
	r := &Router{
		clock:       clock,
		minSeverity: cfg.MinimumSeverity,
		fields:      cfg.CloneFields(),
		warnEvery:   warnEvery,
		fallback:    log.New(os.Stderr, "[logging] ", log.LstdFlags),
	}
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		l := &lane{name: named.Name, sink: named.Sink, events: make(chan Event, size), fallback: r.fallback}
		r.lanes = append(r.lanes, l)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			l.run()
		}()
	}
	return r, nil
}

// Publish filters, stamps and fans an event out. Untyped events and events
// below the minimum severity are ignored.
func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || event.Severity < r.minSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	r.eventsTotal.Add(1)
	for _, l := range r.lanes {
		l.offer(event, r.warnEvery)
	}
}

// Close stops accepting events, waits for the lanes to drain and closes the
// sinks. It returns the first sink close error.
func (r *Router) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for _, l := range r.lanes {
		close(l.events)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, l := range r.lanes {
		if err := l.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{EventsTotal: r.eventsTotal.Load()}
	if len(r.lanes) == 0 {
		return stats
	}
	stats.Sinks = make(map[string]SinkStats, len(r.lanes))
	for _, l := range r.lanes {
		s := l.stats()
		stats.DroppedTotal += s.Dropped
		stats.Sinks[l.name] = s
	}
	return stats
}

// lane owns one sink: a bounded queue, a writer goroutine and counters. After
// a write error the lane discards events until its backoff expires.
type lane struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
	nextWarn  atomic.Int64

	failures  int
	holdUntil time.Time
}

func (l *lane) offer(event Event, warnEvery time.Duration) {
	select {
	case l.events <- Clone(event):
	default:
		l.dropped.Add(1)
		now := time.Now().UnixNano()
		next := l.nextWarn.Load()
		if now >= next && l.nextWarn.CompareAndSwap(next, now+warnEvery.Nanoseconds()) {
			l.fallback.Printf("sink %s lane full, dropping type=%s tick=%d", l.name, event.Type, event.Tick)
		}
	}
}

func (l *lane) run() {
	for event := range l.events {
		if !l.holdUntil.IsZero() && time.Now().Before(l.holdUntil) {
			l.failed.Add(1)
			continue
		}
		if err := l.sink.Write(event); err != nil {
			l.failed.Add(1)
			l.failures++
			backoff := time.Duration(1<<min(l.failures, 5)) * time.Second
			l.holdUntil = time.Now().Add(backoff)
			l.fallback.Printf("sink %s failed: %v (holding for %s)", l.name, err, backoff)
			continue
		}
		l.failures = 0
		l.holdUntil = time.Time{}
		l.delivered.Add(1)
	}
}

func (l *lane) stats() SinkStats {
	return SinkStats{
		Delivered: l.delivered.Load(),
		Dropped:   l.dropped.Load(),
		Failed:    l.failed.Load(),
	}
}
