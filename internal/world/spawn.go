package world

import "github.com/go-gl/mathgl/mgl32"

// randomSpawnLocked places p at a random integer x/z in the spawn square at
// spawn height. Candidates that touch a collider or a living player are
// retried; after SpawnAttempts the last candidate is used regardless.
func (w *World) randomSpawnLocked(p *Player) {
	var candidate mgl32.Vec3
	for attempt := 0; attempt < w.config.SpawnAttempts; attempt++ {
		candidate = mgl32.Vec3{
			float32(randomInt(w.rng, w.config.SpawnRange)),
			w.config.SpawnHeight,
			float32(randomInt(w.rng, w.config.SpawnRange)),
		}
		box := BoxAt(candidate)
		if !w.hitsColliderLocked(box) && !w.hitsPlayerLocked(p.ID, box) {
			break
		}
	}
	p.setPosition(candidate)
}
