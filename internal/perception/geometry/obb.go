// Package geometry provides the distance and overlap primitives used by the
// matching strategies. All functions are pure; degenerate boxes resolve to
// defined values instead of NaN.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// extentEpsilon is the smallest box extent treated as non-zero. Boxes with a
// length, width or height at or below this are considered degenerate.
const extentEpsilon = 1e-9

// OrientedBoundingBox represents a 7-DOF (7 Degrees of Freedom) 3D bounding box.
//
// 7-DOF parameters:
//   - Center: Centre position (metres)
//   - Length: Box extent along heading direction (metres)
//   - Width: Box extent perpendicular to heading (metres)
//   - Height: Box extent along Z-axis (metres)
//   - Yaw: Heading around Z-axis (radians)
type OrientedBoundingBox struct {
	Center r3.Vec
	Length float64
	Width  float64
	Height float64
	Yaw    float64
}

// Area returns the bird's-eye-view footprint area.
func (b OrientedBoundingBox) Area() float64 {
	return b.Length * b.Width
}

// Volume returns the box volume.
func (b OrientedBoundingBox) Volume() float64 {
	return b.Area() * b.Height
}

// IsDegenerateBEV reports whether the footprint has no area.
func (b OrientedBoundingBox) IsDegenerateBEV() bool {
	return b.Length <= extentEpsilon || b.Width <= extentEpsilon
}

// IsDegenerate reports whether the box has no volume.
func (b OrientedBoundingBox) IsDegenerate() bool {
	return b.IsDegenerateBEV() || b.Height <= extentEpsilon
}

// Footprint returns the four BEV corners in counter-clockwise order, starting
// at the front-left corner.
func (b OrientedBoundingBox) Footprint() [4]r2.Vec {
	hl, hw := b.Length/2, b.Width/2
	local := [4]r2.Vec{
		{X: hl, Y: hw},
		{X: -hl, Y: hw},
		{X: -hl, Y: -hw},
		{X: hl, Y: -hw},
	}
	center := r2.Vec{X: b.Center.X, Y: b.Center.Y}
	var out [4]r2.Vec
	for i, c := range local {
		out[i] = r2.Add(center, r2.Rotate(c, b.Yaw, r2.Vec{}))
	}
	return out
}

// FootprintCorners3D returns the footprint corners lifted to the box centre
// height.
func (b OrientedBoundingBox) FootprintCorners3D() [4]r3.Vec {
	var out [4]r3.Vec
	for i, c := range b.Footprint() {
		out[i] = r3.Vec{X: c.X, Y: c.Y, Z: b.Center.Z}
	}
	return out
}

// zRange returns the vertical extent [min, max] of the box.
func (b OrientedBoundingBox) zRange() (float64, float64) {
	return b.Center.Z - b.Height/2, b.Center.Z + b.Height/2
}

// NormalizeAngle wraps an angle into (-π, π].
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return a
	}
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// HeadingDifference returns the absolute angular difference between two
// yaws, folded into [0, π].
func HeadingDifference(a, b float64) float64 {
	return math.Abs(NormalizeAngle(a - b))
}

// HeadingWeight returns (1 + cos Δyaw) / 2: 1 for a perfect heading match,
// 0 for a 180° error.
func HeadingWeight(estimatedYaw, groundTruthYaw float64) float64 {
	w := (1 + math.Cos(HeadingDifference(estimatedYaw, groundTruthYaw))) / 2
	return math.Max(0, math.Min(1, w))
}

// YawFromQuaternion extracts the heading from a [w, x, y, z] quaternion.
func YawFromQuaternion(q [4]float64) float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return NormalizeAngle(math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z)))
}
