package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// HalfExtent is the fixed half size of every player's bounding box.
var HalfExtent = mgl32.Vec3{0.5, 1.0, 0.5}

var (
	forwardAxis = mgl32.Vec3{0, 0, -1}
	rightAxis   = mgl32.Vec3{1, 0, 0}
)

// Box is an axis-aligned bounding box with closed extents.
type Box struct {
	Min mgl32.Vec3 `json:"min"`
	Max mgl32.Vec3 `json:"max"`
}

// BoxAt derives a player's box from its position.
func BoxAt(pos mgl32.Vec3) Box {
	return Box{Min: pos.Sub(HalfExtent), Max: pos.Add(HalfExtent)}
}

// Overlaps reports whether the boxes intersect on all three axes. Touching
// faces count as overlap.
func (b Box) Overlaps(o Box) bool {
	for axis := 0; axis < 3; axis++ {
		if b.Max[axis] < o.Min[axis] || o.Max[axis] < b.Min[axis] {
			return false
		}
	}
	return true
}

// NormalizeRotation returns q scaled to unit length, with the norm taken in
// float64 so components near the float32 limit cannot overflow it. A
// quaternion that cannot be normalized becomes the identity.
func NormalizeRotation(q mgl32.Quat) mgl32.Quat {
	w, x, y, z := float64(q.W), float64(q.V[0]), float64(q.V[1]), float64(q.V[2])
	n := math.Sqrt(w*w + x*x + y*y + z*z)
	if n == 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		return mgl32.QuatIdent()
	}
	out := mgl32.Quat{W: float32(w / n), V: mgl32.Vec3{float32(x / n), float32(y / n), float32(z / n)}}
	if math.Abs(float64(out.Len())-1) > 1e-4 {
		return mgl32.QuatIdent()
	}
	return out
}

// Forward is the look direction for rot.
func Forward(rot mgl32.Quat) mgl32.Vec3 {
	return rot.Rotate(forwardAxis)
}

// Right is the strafe direction for rot.
func Right(rot mgl32.Quat) mgl32.Vec3 {
	return rot.Rotate(rightAxis)
}

// Displacement sums one step along each held direction. Opposite directions
// cancel.
func Displacement(rot mgl32.Quat, step float32, up, down, left, right bool) mgl32.Vec3 {
	forward := Forward(rot)
	side := Right(rot)
	var delta mgl32.Vec3
	if up {
		delta = delta.Add(forward.Mul(step))
	}
	if down {
		delta = delta.Sub(forward.Mul(step))
	}
	if left {
		delta = delta.Sub(side.Mul(step))
	}
	if right {
		delta = delta.Add(side.Mul(step))
	}
	return delta
}
