package world

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"skirmish/internal/proto"
	"skirmish/logging/sinks"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type recordingPeer struct {
	frames [][]byte
}

func (p *recordingPeer) Enqueue(frame []byte) bool {
	p.frames = append(p.frames, frame)
	return true
}

func (p *recordingPeer) messages(t *testing.T) []proto.Message {
	t.Helper()
	out := make([]proto.Message, 0, len(p.frames))
	for _, frame := range p.frames {
		body, err := proto.SplitFrame(frame, 0)
		if err != nil {
			t.Fatalf("peer received invalid frame: %v", err)
		}
		msg, err := proto.Decode(body)
		if err != nil {
			t.Fatalf("peer received undecodable frame: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func (p *recordingPeer) reset() {
	p.frames = nil
}

// ofKind filters a peer's messages down to one concrete type.
func ofKind[T proto.Message](t *testing.T, p *recordingPeer) []T {
	t.Helper()
	var out []T
	for _, msg := range p.messages(t) {
		if typed, ok := msg.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

type harness struct {
	world  *World
	clock  *fakeClock
	events *sinks.MemorySink
	peers  map[uint32]*recordingPeer
}

// openArena is the default tuning without colliders or gravity so tests can
// place players freely.
func openArena() Config {
	cfg := DefaultConfig()
	cfg.Colliders = nil
	cfg.Gravity = 0
	return cfg
}

func newHarness(t *testing.T, cfg Config, ids ...uint32) *harness {
	t.Helper()
	h := &harness{
		clock:  newFakeClock(),
		events: sinks.NewMemorySink(),
		peers:  make(map[uint32]*recordingPeer),
	}
	h.world = New(cfg, Deps{Publisher: h.events, Clock: h.clock})
	for _, id := range ids {
		h.join(t, id)
	}
	return h
}

func (h *harness) join(t *testing.T, id uint32) *recordingPeer {
	t.Helper()
	peer := &recordingPeer{}
	if err := h.world.Join(id, peer); err != nil {
		t.Fatalf("Join(%d) returned error: %v", id, err)
	}
	h.peers[id] = peer
	return peer
}

func (h *harness) startMatch() {
	h.world.mu.Lock()
	h.world.state = proto.StateInProgress
	h.world.mu.Unlock()
}

func (h *harness) place(id uint32, pos mgl32.Vec3) {
	h.world.mu.Lock()
	defer h.world.mu.Unlock()
	h.world.players[id].setPosition(pos)
}

func (h *harness) player(t *testing.T, id uint32) *Player {
	t.Helper()
	h.world.mu.Lock()
	defer h.world.mu.Unlock()
	p, ok := h.world.players[id]
	if !ok {
		t.Fatalf("player %d missing", id)
	}
	copied := *p
	return &copied
}

func (h *harness) mutate(id uint32, fn func(p *Player)) {
	h.world.mu.Lock()
	defer h.world.mu.Unlock()
	fn(h.world.players[id])
}

func (h *harness) resetPeers() {
	for _, peer := range h.peers {
		peer.reset()
	}
}

func (h *harness) tick() TickResult {
	return h.world.Tick(h.clock.Now())
}

func addr(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), port)
}
