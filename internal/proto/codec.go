package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrEmptyFrame  = errors.New("proto: empty frame")
	ErrUnknownKind = errors.New("proto: unknown message kind")
	ErrPayloadSize = errors.New("proto: payload size mismatch")
	ErrMalformed   = errors.New("proto: malformed payload")
	ErrChatTooLong = errors.New("proto: chat text exceeds buffer")
	ErrNilMessage  = errors.New("proto: nil message")
	errUnsupported = errors.New("proto: unsupported message type")
)

const (
	vec3Size        = 12
	quatSize        = 16
	PlayerStateSize = 4 + vec3Size + quatSize + vec3Size + vec3Size + 4 + 4 + 4 + 1
)

// payloadSizes lists the fixed payload size of each kind. The roster is the
// only variable layout and is validated against its count byte.
var payloadSizes = [...]int{
	KindJoin:             PlayerStateSize + 1,
	KindLeave:            4,
	KindRosterSnapshot:   -1,
	KindPlayerInput:      1 + quatSize,
	KindPlayerShoot:      0,
	KindProjectileSpawn:  4 + vec3Size + vec3Size,
	KindPlayerHit:        4 + 4 + 4,
	KindPlayerRespawn:    4 + vec3Size + 4,
	KindGameStateChanged: 1 + 4,
	KindClientReady:      0,
	KindChatMessage:      4 + ChatTextSize,
}

const (
	inputUp uint8 = 1 << iota
	inputDown
	inputLeft
	inputRight
)

// Encode renders msg as a kind byte followed by its payload.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	w := writer{buf: make([]byte, 0, 1+encodedSize(msg))}
	w.u8(uint8(msg.Kind()))
	switch m := msg.(type) {
	case Join:
		w.player(m.Player)
		w.boolean(m.Local)
	case Leave:
		w.u32(m.ID)
	case RosterSnapshot:
		if len(m.Players) > MaxRoster {
			return nil, fmt.Errorf("%w: roster of %d exceeds %d", ErrMalformed, len(m.Players), MaxRoster)
		}
		w.u8(uint8(len(m.Players)))
		for _, p := range m.Players {
			w.player(p)
		}
	case PlayerInput:
		var flags uint8
		if m.Up {
			flags |= inputUp
		}
		if m.Down {
			flags |= inputDown
		}
		if m.Left {
			flags |= inputLeft
		}
		if m.Right {
			flags |= inputRight
		}
		w.u8(flags)
		w.quat(m.Rotation)
	case PlayerShoot, ClientReady:
	case ProjectileSpawn:
		w.u32(m.Shooter)
		w.vec3(m.Origin)
		w.vec3(m.Direction)
	case PlayerHit:
		w.u32(m.Target)
		w.u32(m.Shooter)
		w.i32(m.Health)
	case PlayerRespawn:
		w.u32(m.ID)
		w.vec3(m.Position)
		w.i32(m.Health)
	case GameStateChanged:
		w.u8(uint8(m.State))
		w.u32(m.Winner)
	case ChatMessage:
		if len(m.Text) > ChatTextSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrChatTooLong, len(m.Text))
		}
		w.u32(m.Sender)
		var text [ChatTextSize]byte
		copy(text[:], m.Text)
		w.buf = append(w.buf, text[:]...)
	default:
		return nil, fmt.Errorf("%w: %T", errUnsupported, msg)
	}
	return w.buf, nil
}

func encodedSize(msg Message) int {
	if roster, ok := msg.(RosterSnapshot); ok {
		return 1 + len(roster.Players)*PlayerStateSize
	}
	if size := payloadSizes[msg.Kind()]; size > 0 {
		return size
	}
	return 0
}

// Decode parses a kind byte and payload. Any error means the peer violated
// the protocol; callers must not try to interpret the frame further.
func Decode(body []byte) (Message, error) {
	if len(body) == 0 {
		return nil, ErrEmptyFrame
	}
	kind := Kind(body[0])
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, body[0])
	}
	payload := body[1:]
	if err := checkSize(kind, payload); err != nil {
		return nil, err
	}

	r := reader{buf: payload}
	var msg Message
	switch kind {
	case KindJoin:
		player := r.player()
		msg = Join{Player: player, Local: r.boolean()}
	case KindLeave:
		msg = Leave{ID: r.u32()}
	case KindRosterSnapshot:
		count := int(r.u8())
		players := make([]PlayerState, 0, count)
		for i := 0; i < count; i++ {
			players = append(players, r.player())
		}
		msg = RosterSnapshot{Players: players}
	case KindPlayerInput:
		flags := r.u8()
		if flags&^(inputUp|inputDown|inputLeft|inputRight) != 0 {
			return nil, fmt.Errorf("%w: input flags %#x", ErrMalformed, flags)
		}
		msg = PlayerInput{
			Up:       flags&inputUp != 0,
			Down:     flags&inputDown != 0,
			Left:     flags&inputLeft != 0,
			Right:    flags&inputRight != 0,
			Rotation: r.quat(),
		}
	case KindPlayerShoot:
		msg = PlayerShoot{}
	case KindProjectileSpawn:
		msg = ProjectileSpawn{Shooter: r.u32(), Origin: r.vec3(), Direction: r.vec3()}
	case KindPlayerHit:
		msg = PlayerHit{Target: r.u32(), Shooter: r.u32(), Health: r.i32()}
	case KindPlayerRespawn:
		msg = PlayerRespawn{ID: r.u32(), Position: r.vec3(), Health: r.i32()}
	case KindGameStateChanged:
		state := MatchState(r.u8())
		if !state.valid() {
			return nil, fmt.Errorf("%w: match state %d", ErrMalformed, state)
		}
		msg = GameStateChanged{State: state, Winner: r.u32()}
	case KindClientReady:
		msg = ClientReady{}
	case KindChatMessage:
		sender := r.u32()
		text := r.bytes(ChatTextSize)
		if end := bytes.IndexByte(text, 0); end >= 0 {
			text = text[:end]
		}
		msg = ChatMessage{Sender: sender, Text: string(text)}
	}
	if r.err != nil {
		return nil, r.err
	}
	return msg, nil
}

func checkSize(kind Kind, payload []byte) error {
	if kind == KindRosterSnapshot {
		if len(payload) == 0 {
			return fmt.Errorf("%w: %s missing count", ErrPayloadSize, kind)
		}
		count := int(payload[0])
		if count > MaxRoster {
			return fmt.Errorf("%w: roster count %d exceeds %d", ErrMalformed, count, MaxRoster)
		}
		if want := 1 + count*PlayerStateSize; len(payload) != want {
			return fmt.Errorf("%w: %s want %d bytes got %d", ErrPayloadSize, kind, want, len(payload))
		}
		return nil
	}
	if want := payloadSizes[kind]; len(payload) != want {
		return fmt.Errorf("%w: %s want %d bytes got %d", ErrPayloadSize, kind, want, len(payload))
	}
	return nil
}

type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *writer) vec3(v mgl32.Vec3) {
	w.f32(v[0])
	w.f32(v[1])
	w.f32(v[2])
}

func (w *writer) quat(q mgl32.Quat) {
	w.f32(q.W)
	w.vec3(q.V)
}

func (w *writer) player(p PlayerState) {
	w.u32(p.ID)
	w.vec3(p.Position)
	w.quat(p.Rotation)
	w.vec3(p.BoxMin)
	w.vec3(p.BoxMax)
	w.i32(p.Health)
	w.i32(p.Kills)
	w.i32(p.Deaths)
	w.boolean(p.Ready)
}

// reader consumes a payload whose size has already been validated. The first
// content error sticks and later reads return zero values.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.off+n > len(r.buf) {
		if r.err == nil {
			r.err = fmt.Errorf("%w: short payload", ErrPayloadSize)
		}
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 { return r.bytes(1)[0] }

func (r *reader) boolean() bool {
	v := r.u8()
	if v > 1 && r.err == nil {
		r.err = fmt.Errorf("%w: boolean byte %d", ErrMalformed, v)
	}
	return v == 1
}

func (r *reader) u32() uint32 { return binary.LittleEndian.Uint32(r.bytes(4)) }

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) f32() float32 {
	v := math.Float32frombits(r.u32())
	if (math.IsNaN(float64(v)) || math.IsInf(float64(v), 0)) && r.err == nil {
		r.err = fmt.Errorf("%w: non-finite float", ErrMalformed)
	}
	return v
}

func (r *reader) vec3() mgl32.Vec3 {
	return mgl32.Vec3{r.f32(), r.f32(), r.f32()}
}

func (r *reader) quat() mgl32.Quat {
	w := r.f32()
	return mgl32.Quat{W: w, V: r.vec3()}
}

func (r *reader) player() PlayerState {
	return PlayerState{
		ID:       r.u32(),
		Position: r.vec3(),
		Rotation: r.quat(),
		BoxMin:   r.vec3(),
		BoxMax:   r.vec3(),
		Health:   r.i32(),
		Kills:    r.i32(),
		Deaths:   r.i32(),
		Ready:    r.boolean(),
	}
}
