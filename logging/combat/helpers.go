package combat

import (
	"context"

	"skirmish/logging"
)

const (
	// EventShot is emitted for every accepted shoot request.
	EventShot logging.EventType = "combat.shot"
	// EventDamage is emitted when a shot lands on a target.
	EventDamage logging.EventType = "combat.damage"
	// EventDefeat is emitted when a hit brings a target to zero health.
	EventDefeat logging.EventType = "combat.defeat"
)

type ShotPayload struct {
	Hit bool `json:"hit" msgpack:"hit"`
}

// DamagePayload captures the amount dealt to a single target.
type DamagePayload struct {
	Amount       int     `json:"amount" msgpack:"amount"`
	TargetHealth int     `json:"targetHealth" msgpack:"targetHealth"`
	Distance     float32 `json:"distance" msgpack:"distance"`
}

// DefeatPayload records the scoreboard after a kill.
type DefeatPayload struct {
	ShooterKills int `json:"shooterKills" msgpack:"shooterKills"`
	TargetDeaths int `json:"targetDeaths" msgpack:"targetDeaths"`
}

func Shot(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ShotPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventShot,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}

// Damage publishes a combat damage event for a single target.
func Damage(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload DamagePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDamage,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}

// Defeat publishes a combat defeat event for the eliminated player.
func Defeat(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload DefeatPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDefeat,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}
