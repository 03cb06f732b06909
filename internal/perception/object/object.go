package object

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/geometry"
)

// UnknownPointCount marks an object whose supporting point count was not
// recorded. Such objects pass minimum-point filtering.
const UnknownPointCount = -1

// DynamicObject is one estimated or ground-truth object in one frame.
// Values are treated as immutable once placed in a Frame.
type DynamicObject struct {
	Timestamp time.Time
	FrameID   FrameID

	Position r3.Vec
	Length   float64 // metres, along heading
	Width    float64 // metres
	Height   float64 // metres
	Yaw      float64 // radians, (-π, π]
	Velocity *r3.Vec // nil when unknown

	// Confidence is the detector score in [0, 1]. Ground truth carries 1.
	Confidence float64
	Label      Label
	PointCount int    // UnknownPointCount when not recorded
	UUID       string // empty when the source has none
}

// Box returns the oriented bounding box of the object.
func (o DynamicObject) Box() geometry.OrientedBoundingBox {
	return geometry.OrientedBoundingBox{
		Center: o.Position,
		Length: o.Length,
		Width:  o.Width,
		Height: o.Height,
		Yaw:    o.Yaw,
	}
}

// Area returns the BEV footprint area.
func (o DynamicObject) Area() float64 { return o.Box().Area() }

// Volume returns the box volume.
func (o DynamicObject) Volume() float64 { return o.Box().Volume() }

// Distance returns the 3D distance from the frame origin.
func (o DynamicObject) Distance() float64 { return r3.Norm(o.Position) }

// DistanceBEV returns the X-Y distance from the frame origin.
func (o DynamicObject) DistanceBEV() float64 { return math.Hypot(o.Position.X, o.Position.Y) }

// DistanceFrom returns the 3D distance to p.
func (o DynamicObject) DistanceFrom(p r3.Vec) float64 { return r3.Norm(r3.Sub(o.Position, p)) }

// DistanceBEVFrom returns the X-Y distance to p.
func (o DynamicObject) DistanceBEVFrom(p r3.Vec) float64 {
	return math.Hypot(o.Position.X-p.X, o.Position.Y-p.Y)
}

// Corners returns the footprint corners at the centre height.
func (o DynamicObject) Corners() [4]r3.Vec { return o.Box().FootprintCorners3D() }

// HasPointCount reports whether the supporting point count is known.
func (o DynamicObject) HasPointCount() bool { return o.PointCount >= 0 }

// SetOrientation sets Yaw from a [w, x, y, z] quaternion.
func (o *DynamicObject) SetOrientation(q [4]float64) {
	o.Yaw = geometry.YawFromQuaternion(q)
}

func (o DynamicObject) String() string {
	return fmt.Sprintf("%s@(%.2f, %.2f, %.2f) size=(%.2f, %.2f, %.2f) yaw=%.3f conf=%.2f",
		o.Label, o.Position.X, o.Position.Y, o.Position.Z,
		o.Length, o.Width, o.Height, o.Yaw, o.Confidence)
}

// Validate rejects objects that cannot be scored: non-finite coordinates,
// extents, yaw or confidence, negative extents, or a label outside the
// closed set. Zero extents are legal; geometry resolves them.
func (o DynamicObject) Validate(frameIndex int) error {
	label := string(o.Label)
	if !o.Label.Valid() {
		return perception.NewFrameError(frameIndex, "label", label, label, "label outside the closed set")
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"position.x", o.Position.X},
		{"position.y", o.Position.Y},
		{"position.z", o.Position.Z},
		{"yaw", o.Yaw},
		{"confidence", o.Confidence},
	} {
		if !isFinite(f.v) {
			return perception.NewFrameError(frameIndex, f.name, label, f.v, "non-finite value")
		}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"length", o.Length},
		{"width", o.Width},
		{"height", o.Height},
	} {
		if !isFinite(f.v) {
			return perception.NewFrameError(frameIndex, f.name, label, f.v, "non-finite extent")
		}
		if f.v < 0 {
			return perception.NewFrameError(frameIndex, f.name, label, f.v, "negative extent")
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
