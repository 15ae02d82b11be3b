package world

import (
	"context"

	"skirmish/internal/proto"
	"skirmish/logging"
	loggingcombat "skirmish/logging/combat"
)

// shootLocked resolves a hitscan shot. The tracer is broadcast first; then
// living targets are tested in ascending identity order and only the first
// one inside range and cone is hit.
func (w *World) shootLocked(shooter *Player) {
	if w.state != proto.StateInProgress || !shooter.alive() {
		return
	}
	forward := Forward(shooter.Rotation)
	w.broadcastLocked(proto.ProjectileSpawn{
		Shooter:   shooter.ID,
		Origin:    shooter.Position,
		Direction: forward,
	})

	ctx := context.Background()
	actor := logging.PlayerRef(shooter.ID)
	for _, target := range w.sortedPlayersLocked() {
		if target.ID == shooter.ID || !target.alive() {
			continue
		}
		offset := target.Position.Sub(shooter.Position)
		distance := offset.Len()
		if distance == 0 || distance >= w.config.ShotRange {
			continue
		}
		if forward.Dot(offset.Mul(1/distance)) <= w.config.ShotCone {
			continue
		}

		fatal := target.damage(w.config.Damage)
		w.broadcastLocked(proto.PlayerHit{Target: target.ID, Shooter: shooter.ID, Health: int32(target.Health)})
		loggingcombat.Damage(ctx, w.publisher, w.tick, actor, logging.PlayerRef(target.ID), loggingcombat.DamagePayload{
			Amount:       w.config.Damage,
			TargetHealth: target.Health,
			Distance:     distance,
		}, nil)
		if fatal {
			w.killLocked(shooter, target)
		}
		loggingcombat.Shot(ctx, w.publisher, w.tick, actor, loggingcombat.ShotPayload{Hit: true}, nil)
		return
	}
	loggingcombat.Shot(ctx, w.publisher, w.tick, actor, loggingcombat.ShotPayload{}, nil)
}

func (w *World) killLocked(shooter, target *Player) {
	now := w.clock.Now()
	shooter.Kills++
	target.Deaths++
	target.DiedAt = now
	loggingcombat.Defeat(context.Background(), w.publisher, w.tick, logging.PlayerRef(shooter.ID), logging.PlayerRef(target.ID), loggingcombat.DefeatPayload{
		ShooterKills: shooter.Kills,
		TargetDeaths: target.Deaths,
	}, nil)
	if w.state == proto.StateInProgress && shooter.Kills >= w.config.KillsToWin {
		w.endMatchLocked(shooter.ID, now)
	}
}
