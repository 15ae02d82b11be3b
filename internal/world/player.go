package world

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"skirmish/internal/proto"
)

// Player is the authoritative state of one participant. Box is only ever
// written through setPosition.
type Player struct {
	ID       uint32
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Box      Box
	Health   int
	Kills    int
	Deaths   int
	Ready    bool
	DiedAt   time.Time
}

func newPlayer(id uint32) *Player {
	p := &Player{ID: id, Rotation: mgl32.QuatIdent(), Health: MaxHealth}
	p.setPosition(mgl32.Vec3{})
	return p
}

func (p *Player) setPosition(pos mgl32.Vec3) {
	p.Position = pos
	p.Box = BoxAt(pos)
}

func (p *Player) alive() bool {
	return p.Health > 0
}

// damage subtracts amount, clamping at zero, and reports whether the hit was
// fatal.
func (p *Player) damage(amount int) bool {
	p.Health -= amount
	if p.Health <= 0 {
		p.Health = 0
		return true
	}
	return false
}

func (p *Player) resetStats() {
	p.Health = MaxHealth
	p.Kills = 0
	p.Deaths = 0
	p.DiedAt = time.Time{}
}

func (p *Player) snapshot() proto.PlayerState {
	return proto.PlayerState{
		ID:       p.ID,
		Position: p.Position,
		Rotation: p.Rotation,
		BoxMin:   p.Box.Min,
		BoxMax:   p.Box.Max,
		Health:   int32(p.Health),
		Kills:    int32(p.Kills),
		Deaths:   int32(p.Deaths),
		Ready:    p.Ready,
	}
}

func (p *Player) datagram() proto.Datagram {
	return proto.Datagram{ID: p.ID, Position: p.Position, Rotation: p.Rotation}
}
