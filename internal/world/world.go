// Package world is the authoritative arena simulation: players, static
// colliders, the match state machine and the per-tick snapshot.
package world

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/netip"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"

	"skirmish/internal/net/udp"
	"skirmish/internal/proto"
	"skirmish/logging"
	logginglifecycle "skirmish/logging/lifecycle"
)

var (
	ErrWorldFull       = errors.New("world: player limit reached")
	ErrDuplicatePlayer = errors.New("world: player already present")
	ErrInvalidPlayer   = errors.New("world: invalid player id")
)

// Peer is the outgoing half of a player's reliable session. Enqueue must not
// block; a false return means the frame was dropped.
type Peer interface {
	Enqueue(frame []byte) bool
}

// Deps bundles runtime dependencies required to construct a World.
type Deps struct {
	Publisher logging.Publisher
	Clock     logging.Clock
	RNG       RNGFactory
}

// World is guarded by a single mutex held for one Join, Leave, Handle,
// HandleDatagram or Tick call and never across I/O.
type World struct {
	config    Config
	publisher logging.Publisher
	clock     logging.Clock
	rng       *rand.Rand

	mu         deadlock.Mutex
	players    map[uint32]*Player
	peers      map[uint32]Peer
	endpoints  *udp.Registry
	state      proto.MatchState
	winner     uint32
	gameOverAt time.Time
	tick       uint64
}

// TickResult is what one Tick produced for delivery outside the lock.
type TickResult struct {
	Tick    uint64
	State   proto.MatchState
	Players int
	Pushes  []udp.Outgoing
}

// Diagnostics is a read-only summary for the HTTP surface.
type Diagnostics struct {
	State     string `json:"state"`
	Winner    uint32 `json:"winner,omitempty"`
	Players   int    `json:"players"`
	Endpoints int    `json:"endpoints"`
	Tick      uint64 `json:"tick"`
	Colliders int    `json:"colliders"`
	Seed      string `json:"seed"`
}

// New constructs a world with normalized configuration and a seeded RNG.
func New(cfg Config, deps Deps) *World {
	normalized := cfg.normalized()

	factory := deps.RNG
	if factory == nil {
		factory = NewDeterministicRNG
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	return &World{
		config:    normalized,
		publisher: publisher,
		clock:     clock,
		rng:       factory(normalized.Seed, "spawn"),
		players:   make(map[uint32]*Player),
		peers:     make(map[uint32]Peer),
		endpoints: udp.NewRegistry(),
		state:     proto.StateLobby,
	}
}

// Config returns the normalized configuration captured at construction time.
func (w *World) Config() Config {
	return w.config
}

// Join admits a player and replicates it. The newcomer learns its own entry
// first (marked local), everyone else learns about the newcomer, and then the
// newcomer receives every existing player and the current match state.
func (w *World) Join(id uint32, peer Peer) error {
	if id == 0 || peer == nil {
		return ErrInvalidPlayer
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.players[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicatePlayer, id)
	}
	if len(w.players) >= w.config.MaxPlayers {
		logginglifecycle.JoinRejected(context.Background(), w.publisher, w.tick, logging.PlayerRef(id), logginglifecycle.JoinRejectedPayload{Reason: "full"}, nil)
		return ErrWorldFull
	}

	existing := w.sortedPlayersLocked()
	player := newPlayer(id)
	w.randomSpawnLocked(player)
	w.players[id] = player
	w.peers[id] = peer

	self := player.snapshot()
	peer.Enqueue(proto.MustEncodeFrame(proto.Join{Player: self, Local: true}))
	w.broadcastExceptLocked(id, proto.Join{Player: self})
	for _, other := range existing {
		peer.Enqueue(proto.MustEncodeFrame(proto.Join{Player: other.snapshot()}))
	}
	peer.Enqueue(proto.MustEncodeFrame(w.stateMessageLocked()))

	logginglifecycle.PlayerJoined(context.Background(), w.publisher, w.tick, logging.PlayerRef(id), logginglifecycle.PlayerJoinedPayload{
		SpawnX:  player.Position.X(),
		SpawnY:  player.Position.Y(),
		SpawnZ:  player.Position.Z(),
		Players: len(w.players),
	}, nil)
	return nil
}

// Leave removes the player, its peer and its endpoint together and tells
// everyone remaining. Unknown identities are ignored.
func (w *World) Leave(id uint32, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.players[id]; !ok {
		return
	}
	delete(w.players, id)
	delete(w.peers, id)
	w.endpoints.Remove(id)
	w.broadcastLocked(proto.Leave{ID: id})

	logginglifecycle.PlayerLeft(context.Background(), w.publisher, w.tick, logging.PlayerRef(id), logginglifecycle.PlayerLeftPayload{
		Reason:  reason,
		Players: len(w.players),
	}, nil)
}

// Handle applies one client message. Messages naming an absent player, or
// arriving in a state that does not accept them, are ignored.
func (w *World) Handle(id uint32, msg proto.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()

	player, ok := w.players[id]
	if !ok {
		return
	}
	switch m := msg.(type) {
	case proto.PlayerInput:
		w.applyInputLocked(player, m)
	case proto.PlayerShoot:
		w.shootLocked(player)
	case proto.ClientReady:
		if w.state == proto.StateLobby {
			player.Ready = true
		}
	case proto.ChatMessage:
		m.Text = proto.TruncateChat(m.Text)
		if m.Text == "" {
			return
		}
		m.Sender = id
		w.broadcastLocked(m)
	}
}

// HandleDatagram refreshes the sender's UDP endpoint. Position data in the
// datagram is ignored; the server owns positions.
func (w *World) HandleDatagram(dg proto.Datagram, from netip.AddrPort) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.players[dg.ID]; !ok {
		return
	}
	w.endpoints.Register(dg.ID, from)
}

// Tick advances the match by one step at time now, broadcasts the roster and
// returns the datagrams to push once the lock is released.
func (w *World) Tick(now time.Time) TickResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tick++
	w.advanceStateLocked(now)
	if w.state == proto.StateInProgress {
		for _, p := range w.sortedPlayersLocked() {
			w.settleLocked(p)
		}
	}

	players := w.sortedPlayersLocked()
	if len(players) > 0 {
		roster := make([]proto.PlayerState, 0, len(players))
		for _, p := range players {
			roster = append(roster, p.snapshot())
		}
		w.broadcastLocked(proto.RosterSnapshot{Players: roster})
	}

	return TickResult{
		Tick:    w.tick,
		State:   w.state,
		Players: len(players),
		Pushes:  w.datagramsLocked(players),
	}
}

func (w *World) datagramsLocked(players []*Player) []udp.Outgoing {
	endpoints := w.endpoints.Endpoints()
	if len(endpoints) == 0 || len(players) == 0 {
		return nil
	}
	payloads := make([][]byte, 0, len(players))
	for _, p := range players {
		dg := p.datagram()
		payload, err := dg.MarshalBinary()
		if err != nil {
			continue
		}
		payloads = append(payloads, payload)
	}
	pushes := make([]udp.Outgoing, 0, len(endpoints)*len(payloads))
	for _, endpoint := range endpoints {
		for _, payload := range payloads {
			pushes = append(pushes, udp.Outgoing{Addr: endpoint.Addr, Payload: payload})
		}
	}
	return pushes
}

// State reports the current match phase and winner.
func (w *World) State() (proto.MatchState, uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.winner
}

// Player returns a copy of one player's replicated state.
func (w *World) Player(id uint32) (proto.PlayerState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return proto.PlayerState{}, false
	}
	return p.snapshot(), true
}

// Players returns every player's replicated state ordered by identity.
func (w *World) Players() []proto.PlayerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	sorted := w.sortedPlayersLocked()
	out := make([]proto.PlayerState, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, p.snapshot())
	}
	return out
}

func (w *World) Diagnostics() Diagnostics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Diagnostics{
		State:     w.state.String(),
		Winner:    w.winner,
		Players:   len(w.players),
		Endpoints: w.endpoints.Len(),
		Tick:      w.tick,
		Colliders: len(w.config.Colliders),
		Seed:      w.config.Seed,
	}
}

func (w *World) sortedPlayersLocked() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) stateMessageLocked() proto.GameStateChanged {
	msg := proto.GameStateChanged{State: w.state}
	if w.state == proto.StateGameOver {
		msg.Winner = w.winner
	}
	return msg
}

// broadcastLocked encodes msg once and queues it on every peer. Peers that
// cannot take the frame drop themselves; the caller is never blocked.
func (w *World) broadcastLocked(msg proto.Message) {
	w.broadcastExceptLocked(0, msg)
}

func (w *World) broadcastExceptLocked(skip uint32, msg proto.Message) {
	if len(w.peers) == 0 {
		return
	}
	frame := proto.MustEncodeFrame(msg)
	for id, peer := range w.peers {
		if id == skip {
			continue
		}
		peer.Enqueue(frame)
	}
}
