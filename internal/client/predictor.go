// Package client is the player-side half of the protocol: local prediction,
// reconciliation against authoritative updates, remote interpolation and the
// connection that feeds them.
package client

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"skirmish/internal/proto"
	"skirmish/internal/world"
)

const (
	// DefaultSpeed matches the server: one 0.1 step per 50 ms input.
	DefaultSpeed              = 2.0
	DefaultVisualRate         = 15.0
	DefaultSnapEpsilon        = 1e-4
	DefaultChatHistory        = 10
	DefaultProjectileSpeed    = 100.0
	DefaultProjectileLifetime = time.Second
	// maxInterpolation caps the measured gap between remote updates.
	maxInterpolation = 0.25
)

// Input is the per-frame control state a front end hands to the client.
type Input struct {
	Up       bool
	Down     bool
	Left     bool
	Right    bool
	Rotation mgl32.Quat
}

// Message converts the input to its wire form.
func (in Input) Message() proto.PlayerInput {
	return proto.PlayerInput{Up: in.Up, Down: in.Down, Left: in.Left, Right: in.Right, Rotation: in.Rotation}
}

func (in Input) moving() bool {
	return in.Up || in.Down || in.Left || in.Right
}

type Config struct {
	Speed              float32
	VisualRate         float32
	SnapEpsilon        float32
	ChatHistory        int
	ProjectileSpeed    float32
	ProjectileLifetime time.Duration
}

func (cfg Config) normalized() Config {
	if cfg.Speed <= 0 {
		cfg.Speed = DefaultSpeed
	}
	if cfg.VisualRate <= 0 {
		cfg.VisualRate = DefaultVisualRate
	}
	if cfg.SnapEpsilon <= 0 {
		cfg.SnapEpsilon = DefaultSnapEpsilon
	}
	if cfg.ChatHistory <= 0 {
		cfg.ChatHistory = DefaultChatHistory
	}
	if cfg.ProjectileSpeed <= 0 {
		cfg.ProjectileSpeed = DefaultProjectileSpeed
	}
	if cfg.ProjectileLifetime <= 0 {
		cfg.ProjectileLifetime = DefaultProjectileLifetime
	}
	return cfg
}

// Entity is one player as the client sees it. Target is the latest
// authoritative (or, for the local player, predicted) position; Visual is what
// a renderer draws. The local Visual eases straight toward Target. A remote
// Visual eases toward a point that walks from Previous to Target over the
// measured gap between the last two updates.
type Entity struct {
	ID       uint32
	Local    bool
	Target   mgl32.Vec3
	Previous mgl32.Vec3
	Visual   mgl32.Vec3
	Rotation mgl32.Quat
	Health   int32
	Kills    int32
	Deaths   int32
	Ready    bool

	elapsed  float32
	interval float32
}

// anchor is the point the visual position eases toward.
func (e *Entity) anchor() mgl32.Vec3 {
	if e.Local || e.interval <= 0 {
		return e.Target
	}
	t := e.elapsed / e.interval
	if t >= 1 {
		return e.Target
	}
	return e.Previous.Add(e.Target.Sub(e.Previous).Mul(t))
}

// retarget records an authoritative position. The local target is simply
// overwritten; a remote entity restarts its interpolation from wherever it
// currently is, timed by the gap since the previous update.
func (e *Entity) retarget(pos mgl32.Vec3) {
	if e.Local {
		e.Previous = e.Target
		e.Target = pos
		return
	}
	from := e.anchor()
	if e.elapsed > 0 {
		e.interval = min(e.elapsed, maxInterpolation)
	}
	e.Previous = from
	e.Target = pos
	e.elapsed = 0
}

// Alive reports whether the entity has health left.
func (e Entity) Alive() bool { return e.Health > 0 }

// Projectile is a cosmetic tracer.
type Projectile struct {
	Shooter   uint32
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Age       time.Duration
}

type ChatLine struct {
	Sender uint32
	Text   string
}

// View is the snapshot a renderer reads each frame.
type View struct {
	LocalID     uint32
	State       proto.MatchState
	Winner      uint32
	Players     []Entity
	Projectiles []Projectile
	Chat        []ChatLine
}

// Predictor holds the client's copy of the match. It is safe for concurrent
// use so a network goroutine may Apply while the frame loop Steps.
type Predictor struct {
	cfg Config

	mu          sync.Mutex
	localID     uint32
	state       proto.MatchState
	winner      uint32
	entities    map[uint32]*Entity
	projectiles []Projectile
	chat        []ChatLine
}

func NewPredictor(cfg Config) *Predictor {
	return &Predictor{
		cfg:      cfg.normalized(),
		state:    proto.StateLobby,
		entities: make(map[uint32]*Entity),
	}
}

// LocalID is the identity the server assigned to this client, or zero before
// the local join arrives.
func (p *Predictor) LocalID() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.localID
}

// Step advances one frame of dt seconds. The local player is moved by input
// during a match while alive, with no collision checks; every entity's visual
// position then eases toward its target.
func (p *Predictor) Step(dt float32, in Input) {
	if dt <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if local, ok := p.entities[p.localID]; ok && p.state == proto.StateInProgress && local.Alive() {
		local.Rotation = world.NormalizeRotation(in.Rotation)
		if in.moving() {
			delta := world.Displacement(local.Rotation, p.cfg.Speed*dt, in.Up, in.Down, in.Left, in.Right)
			local.Target = local.Target.Add(delta)
		}
	}

	factor := float32(1 - math.Exp(-float64(p.cfg.VisualRate*dt)))
	for _, e := range p.entities {
		if !e.Local {
			e.elapsed += dt
		}
		e.Visual = ease(e.Visual, e.anchor(), factor, p.cfg.SnapEpsilon)
	}

	p.stepProjectilesLocked(dt)
}

func ease(visual, target mgl32.Vec3, factor, epsilon float32) mgl32.Vec3 {
	diff := target.Sub(visual)
	if diff.Len() < epsilon {
		return target
	}
	next := visual.Add(diff.Mul(factor))
	if target.Sub(next).Len() < epsilon {
		return target
	}
	return next
}

func (p *Predictor) stepProjectilesLocked(dt float32) {
	elapsed := time.Duration(float64(dt) * float64(time.Second))
	kept := p.projectiles[:0]
	for _, proj := range p.projectiles {
		proj.Age += elapsed
		if proj.Age >= p.cfg.ProjectileLifetime {
			continue
		}
		proj.Position = proj.Position.Add(proj.Direction.Mul(p.cfg.ProjectileSpeed * dt))
		kept = append(kept, proj)
	}
	p.projectiles = kept
}

// Apply folds one reliable server message into the client state.
// Authoritative positions overwrite targets outright.
func (p *Predictor) Apply(msg proto.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch m := msg.(type) {
	case proto.Join:
		if m.Local {
			p.localID = m.Player.ID
		}
		p.upsertLocked(m.Player)
	case proto.Leave:
		delete(p.entities, m.ID)
	case proto.RosterSnapshot:
		seen := make(map[uint32]struct{}, len(m.Players))
		for _, ps := range m.Players {
			seen[ps.ID] = struct{}{}
			p.upsertLocked(ps)
		}
		for id := range p.entities {
			if _, ok := seen[id]; !ok {
				delete(p.entities, id)
			}
		}
	case proto.PlayerHit:
		if e, ok := p.entities[m.Target]; ok {
			e.Health = m.Health
		}
	case proto.PlayerRespawn:
		if e, ok := p.entities[m.ID]; ok {
			e.Health = m.Health
			e.Previous = m.Position
			e.Target = m.Position
			e.Visual = m.Position
			e.elapsed = 0
		}
	case proto.ProjectileSpawn:
		p.projectiles = append(p.projectiles, Projectile{Shooter: m.Shooter, Position: m.Origin, Direction: m.Direction})
	case proto.GameStateChanged:
		p.state = m.State
		p.winner = m.Winner
	case proto.ChatMessage:
		p.chat = append(p.chat, ChatLine{Sender: m.Sender, Text: m.Text})
		if over := len(p.chat) - p.cfg.ChatHistory; over > 0 {
			p.chat = append([]ChatLine(nil), p.chat[over:]...)
		}
	}
}

// ApplyDatagram folds an unreliable pose update. The latest datagram wins.
func (p *Predictor) ApplyDatagram(dg proto.Datagram) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entities[dg.ID]
	if !ok {
		return
	}
	e.retarget(dg.Position)
	if !e.Local {
		e.Rotation = dg.Rotation
	}
}

// upsertLocked copies authoritative state into an entity. The local player's
// rotation stays under local control.
func (p *Predictor) upsertLocked(ps proto.PlayerState) {
	e, ok := p.entities[ps.ID]
	if !ok {
		e = &Entity{ID: ps.ID, Visual: ps.Position, Target: ps.Position, Rotation: ps.Rotation}
		p.entities[ps.ID] = e
	}
	e.Local = ps.ID == p.localID
	e.retarget(ps.Position)
	if !e.Local {
		e.Rotation = ps.Rotation
	}
	e.Health = ps.Health
	e.Kills = ps.Kills
	e.Deaths = ps.Deaths
	e.Ready = ps.Ready
}

// View copies the current state for rendering.
func (p *Predictor) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	players := make([]Entity, 0, len(p.entities))
	for _, e := range p.entities {
		players = append(players, *e)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return View{
		LocalID:     p.localID,
		State:       p.state,
		Winner:      p.winner,
		Players:     players,
		Projectiles: append([]Projectile(nil), p.projectiles...),
		Chat:        append([]ChatLine(nil), p.chat...),
	}
}
