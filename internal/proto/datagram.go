package proto

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DatagramSize is the exact size of an unreliable position update.
const DatagramSize = 4 + vec3Size + quatSize

var ErrDatagramSize = errors.New("proto: datagram size mismatch")

// Datagram is the unreliable fast-path update: one player's pose. It travels
// without framing, one per UDP datagram.
type Datagram struct {
	ID       uint32
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

var (
	_ encoding.BinaryMarshaler   = (*Datagram)(nil)
	_ encoding.BinaryUnmarshaler = (*Datagram)(nil)
)

func (d *Datagram) MarshalBinary() ([]byte, error) {
	return d.AppendBinary(make([]byte, 0, DatagramSize))
}

// AppendBinary appends the encoded datagram to dst.
func (d *Datagram) AppendBinary(dst []byte) ([]byte, error) {
	w := writer{buf: dst}
	w.u32(d.ID)
	w.vec3(d.Position)
	w.quat(d.Rotation)
	return w.buf, nil
}

func (d *Datagram) UnmarshalBinary(data []byte) error {
	if len(data) != DatagramSize {
		return fmt.Errorf("%w: got %d bytes want %d", ErrDatagramSize, len(data), DatagramSize)
	}
	d.ID = binary.LittleEndian.Uint32(data[0:4])
	var floats [7]float32
	for i := range floats {
		off := 4 + i*4
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: non-finite float in datagram", ErrMalformed)
		}
		floats[i] = v
	}
	d.Position = mgl32.Vec3{floats[0], floats[1], floats[2]}
	d.Rotation = mgl32.Quat{W: floats[3], V: mgl32.Vec3{floats[4], floats[5], floats[6]}}
	return nil
}
