package proto

import (
	"fmt"
	"unicode/utf8"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MaxRoster bounds the number of entries in a roster snapshot and the
	// number of players a world admits.
	MaxRoster = 16
	// ChatTextSize is the fixed width of the chat text buffer.
	ChatTextSize = 128
)

// MatchState is the replicated phase of the match.
type MatchState uint8

const (
	StateLobby MatchState = iota
	StateInProgress
	StateGameOver
)

func (s MatchState) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateInProgress:
		return "in_progress"
	case StateGameOver:
		return "game_over"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func (s MatchState) valid() bool {
	return s <= StateGameOver
}

// PlayerState is the replicated view of one player.
type PlayerState struct {
	ID       uint32
	Position mgl32.Vec3
	Rotation mgl32.Quat
	BoxMin   mgl32.Vec3
	BoxMax   mgl32.Vec3
	Health   int32
	Kills    int32
	Deaths   int32
	Ready    bool
}

// Message is one decoded reliable payload. The concrete type determines the
// kind; consumers switch over the concrete types below.
type Message interface {
	Kind() Kind
}

// Join announces a player. Local is set only on the copy sent to the player
// that owns the entry.
type Join struct {
	Player PlayerState
	Local  bool
}

type Leave struct {
	ID uint32
}

// RosterSnapshot carries every current player, sorted by identity.
type RosterSnapshot struct {
	Players []PlayerState
}

// PlayerInput requests one movement step along each held direction. The
// rotation is the client's look direction.
type PlayerInput struct {
	Up       bool
	Down     bool
	Left     bool
	Right    bool
	Rotation mgl32.Quat
}

type PlayerShoot struct{}

// ProjectileSpawn is a cosmetic tracer; hits are resolved on the server.
type ProjectileSpawn struct {
	Shooter   uint32
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

type PlayerHit struct {
	Target  uint32
	Shooter uint32
	Health  int32
}

type PlayerRespawn struct {
	ID       uint32
	Position mgl32.Vec3
	Health   int32
}

// GameStateChanged announces a match transition. Winner is zero unless State
// is StateGameOver.
type GameStateChanged struct {
	State  MatchState
	Winner uint32
}

type ClientReady struct{}

// ChatMessage carries up to ChatTextSize bytes of text. The server overwrites
// Sender with the session's identity.
type ChatMessage struct {
	Sender uint32
	Text   string
}

func (Join) Kind() Kind             { return KindJoin }
func (Leave) Kind() Kind            { return KindLeave }
func (RosterSnapshot) Kind() Kind   { return KindRosterSnapshot }
func (PlayerInput) Kind() Kind      { return KindPlayerInput }
func (PlayerShoot) Kind() Kind      { return KindPlayerShoot }
func (ProjectileSpawn) Kind() Kind  { return KindProjectileSpawn }
func (PlayerHit) Kind() Kind        { return KindPlayerHit }
func (PlayerRespawn) Kind() Kind    { return KindPlayerRespawn }
func (GameStateChanged) Kind() Kind { return KindGameStateChanged }
func (ClientReady) Kind() Kind      { return KindClientReady }
func (ChatMessage) Kind() Kind      { return KindChatMessage }

// TruncateChat shortens text to fit the chat buffer without splitting a UTF-8
// sequence.
func TruncateChat(text string) string {
	if len(text) <= ChatTextSize {
		return text
	}
	cut := ChatTextSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
