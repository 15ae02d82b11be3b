package proto

import (
	"errors"
	"fmt"
)

// ErrDirection reports a server-only kind arriving from a client.
var ErrDirection = errors.New("proto: kind not accepted from client")

// Kind is the one-byte discriminant that precedes every reliable payload.
type Kind uint8

const (
	KindJoin Kind = iota + 1
	KindLeave
	KindRosterSnapshot
	KindPlayerInput
	KindPlayerShoot
	KindProjectileSpawn
	KindPlayerHit
	KindPlayerRespawn
	KindGameStateChanged
	KindClientReady
	KindChatMessage

	kindMax
)

var kindNames = [...]string{
	KindJoin:             "join",
	KindLeave:            "leave",
	KindRosterSnapshot:   "roster_snapshot",
	KindPlayerInput:      "player_input",
	KindPlayerShoot:      "player_shoot",
	KindProjectileSpawn:  "projectile_spawn",
	KindPlayerHit:        "player_hit",
	KindPlayerRespawn:    "player_respawn",
	KindGameStateChanged: "game_state_changed",
	KindClientReady:      "client_ready",
	KindChatMessage:      "chat_message",
}

// Valid reports whether k names a known message kind.
func (k Kind) Valid() bool {
	return k > 0 && k < kindMax
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// FromClient reports whether clients may send k. Everything else is
// server-originated and arriving from a client is a protocol violation.
func (k Kind) FromClient() bool {
	switch k {
	case KindPlayerInput, KindPlayerShoot, KindClientReady, KindChatMessage:
		return true
	default:
		return false
	}
}

// IsViolation reports whether err means the peer broke the wire protocol, as
// opposed to the transport failing underneath it.
func IsViolation(err error) bool {
	for _, target := range []error{ErrEmptyFrame, ErrUnknownKind, ErrPayloadSize, ErrMalformed, ErrFrameLength, ErrDirection} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
