package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"skirmish/internal/proto"
)

// applyInputLocked moves a living player during a match. The rotation is
// always taken from the input; the step is rejected whole if the new box
// touches a static collider or another living player.
func (w *World) applyInputLocked(p *Player, input proto.PlayerInput) {
	if w.state != proto.StateInProgress || !p.alive() {
		return
	}
	p.Rotation = NormalizeRotation(input.Rotation)
	delta := Displacement(p.Rotation, w.config.MoveStep, input.Up, input.Down, input.Left, input.Right)
	if delta == (mgl32.Vec3{}) {
		return
	}
	w.tryMoveLocked(p, p.Position.Add(delta), true)
}

// settleLocked drops a living player by the gravity step unless that would
// put it into static geometry.
func (w *World) settleLocked(p *Player) {
	if w.config.Gravity == 0 || !p.alive() {
		return
	}
	w.tryMoveLocked(p, p.Position.Sub(mgl32.Vec3{0, w.config.Gravity, 0}), false)
}

// tryMoveLocked commits target only if the resulting box is clear, and
// reports whether it did. Position and box never diverge.
func (w *World) tryMoveLocked(p *Player, target mgl32.Vec3, checkPlayers bool) bool {
	box := BoxAt(target)
	if w.hitsColliderLocked(box) {
		return false
	}
	if checkPlayers && w.hitsPlayerLocked(p.ID, box) {
		return false
	}
	p.setPosition(target)
	return true
}

func (w *World) hitsColliderLocked(box Box) bool {
	for _, c := range w.config.Colliders {
		if box.Overlaps(c) {
			return true
		}
	}
	return false
}

func (w *World) hitsPlayerLocked(self uint32, box Box) bool {
	for id, other := range w.players {
		if id == self || !other.alive() {
			continue
		}
		if box.Overlaps(other.Box) {
			return true
		}
	}
	return false
}
