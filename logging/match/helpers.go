package match

import (
	"context"

	"skirmish/logging"
)

const (
	// EventStateChanged is emitted on every match state transition.
	EventStateChanged logging.EventType = "match.state_changed"
	// EventRespawn is emitted when a dead player re-enters the arena.
	EventRespawn logging.EventType = "match.respawn"
)

type StateChangedPayload struct {
	From    string `json:"from" msgpack:"from"`
	To      string `json:"to" msgpack:"to"`
	Winner  uint32 `json:"winner,omitempty" msgpack:"winner,omitempty"`
	Players int    `json:"players" msgpack:"players"`
}

type RespawnPayload struct {
	X float32 `json:"x" msgpack:"x"`
	Y float32 `json:"y" msgpack:"y"`
	Z float32 `json:"z" msgpack:"z"`
	// DeadFor is the time spent dead in milliseconds.
	DeadFor int64 `json:"deadForMs" msgpack:"deadForMs"`
}

// StateChanged publishes a match transition with the world as actor.
func StateChanged(ctx context.Context, pub logging.Publisher, tick uint64, payload StateChangedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStateChanged,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
		Payload:  payload,
		Extra:    extra,
	})
}

func Respawn(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RespawnPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRespawn,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
		Payload:  payload,
		Extra:    extra,
	})
}
