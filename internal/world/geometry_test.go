package world

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestBoxAtDerivesFromHalfExtent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		pos := mgl32.Vec3{rng.Float32()*40 - 20, rng.Float32()*4 - 2, rng.Float32()*40 - 20}
		box := BoxAt(pos)
		if box.Min != pos.Sub(mgl32.Vec3{0.5, 1.0, 0.5}) || box.Max != pos.Add(mgl32.Vec3{0.5, 1.0, 0.5}) {
			t.Fatalf("BoxAt(%v) = %+v", pos, box)
		}
	}
}

func TestOverlapsUsesClosedIntervals(t *testing.T) {
	a := Box{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}
	tests := []struct {
		name string
		b    Box
		want bool
	}{
		{"touching face", Box{Min: mgl32.Vec3{1, 0, 0}, Max: mgl32.Vec3{2, 1, 1}}, true},
		{"contained", Box{Min: mgl32.Vec3{0.2, 0.2, 0.2}, Max: mgl32.Vec3{0.8, 0.8, 0.8}}, true},
		{"gap on x", Box{Min: mgl32.Vec3{1.01, 0, 0}, Max: mgl32.Vec3{2, 1, 1}}, false},
		{"overlap on two axes only", Box{Min: mgl32.Vec3{0.5, 0.5, 2}, Max: mgl32.Vec3{1.5, 1.5, 3}}, false},
	}
	for _, tc := range tests {
		if got := a.Overlaps(tc.b); got != tc.want {
			t.Fatalf("%s: Overlaps = %v want %v", tc.name, got, tc.want)
		}
		if got := tc.b.Overlaps(a); got != tc.want {
			t.Fatalf("%s: overlap must be symmetric", tc.name)
		}
	}
}

func TestNormalizeRotation(t *testing.T) {
	if got := NormalizeRotation(mgl32.Quat{}); got != mgl32.QuatIdent() {
		t.Fatalf("zero quaternion should become identity, got %v", got)
	}
	got := NormalizeRotation(mgl32.Quat{W: 2})
	if math.Abs(float64(got.Len())-1) > 1e-6 {
		t.Fatalf("expected unit quaternion, got length %f", got.Len())
	}

	huge := float32(3e38)
	for _, q := range []mgl32.Quat{
		{W: huge, V: mgl32.Vec3{huge, huge, huge}},
		{W: -huge, V: mgl32.Vec3{0, huge, 0}},
		{W: 1e-40, V: mgl32.Vec3{1e-40, 0, 0}},
	} {
		got := NormalizeRotation(q)
		if math.Abs(float64(got.Len())-1) > 1e-5 {
			t.Fatalf("NormalizeRotation(%v) length = %f want 1", q, got.Len())
		}
		if l := Forward(got).Len(); math.Abs(float64(l)-1) > 1e-5 {
			t.Fatalf("forward for %v has length %f want 1", q, l)
		}
	}
}

func TestDisplacementComposes(t *testing.T) {
	ident := mgl32.QuatIdent()
	if got := Displacement(ident, 0.1, true, true, false, false); got != (mgl32.Vec3{}) {
		t.Fatalf("opposite directions should cancel, got %v", got)
	}
	got := Displacement(ident, 0.1, true, false, false, true)
	want := mgl32.Vec3{0.1, 0, -0.1}
	if !got.ApproxEqual(want) {
		t.Fatalf("up+right displacement = %v want %v", got, want)
	}

	turned := mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0})
	if fwd := Forward(turned); !fwd.ApproxEqualThreshold(mgl32.Vec3{-1, 0, 0}, 1e-5) {
		t.Fatalf("forward after a quarter turn = %v", fwd)
	}
}
