package lifecycle

import (
	"context"

	"skirmish/logging"
)

const (
	// EventPlayerJoined is emitted when a player enters the world.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerLeft is emitted when a player's session ends.
	EventPlayerLeft logging.EventType = "lifecycle.player_left"
	// EventJoinRejected is emitted when the world refuses a connection.
	EventJoinRejected logging.EventType = "lifecycle.join_rejected"
)

// PlayerJoinedPayload captures the spawn point handed to a new player.
type PlayerJoinedPayload struct {
	SpawnX  float32 `json:"spawnX" msgpack:"spawnX"`
	SpawnY  float32 `json:"spawnY" msgpack:"spawnY"`
	SpawnZ  float32 `json:"spawnZ" msgpack:"spawnZ"`
	Players int     `json:"players" msgpack:"players"`
}

// PlayerLeftPayload captures why a session ended.
type PlayerLeftPayload struct {
	Reason  string `json:"reason" msgpack:"reason"`
	Players int    `json:"players" msgpack:"players"`
}

type JoinRejectedPayload struct {
	Reason string `json:"reason" msgpack:"reason"`
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// PlayerLeft publishes a player departure event.
func PlayerLeft(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerLeftPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerLeft,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

func JoinRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload JoinRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventJoinRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
