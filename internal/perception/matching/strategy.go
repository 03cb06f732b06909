// Package matching scores one estimated object against one ground-truth
// object. Every strategy carries an explicit polarity so consumers never
// inspect the concrete variant to decide between min and max selection.
package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/geometry"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// Mode identifies a matching strategy.
type Mode string

const (
	ModeCenterDistance Mode = "center_distance"
	ModePlaneDistance  Mode = "plane_distance"
	ModeIoU2D          Mode = "iou_2d"
	ModeIoU3D          Mode = "iou_3d"
)

// Modes lists every strategy in canonical report order.
var Modes = []Mode{ModeCenterDistance, ModePlaneDistance, ModeIoU2D, ModeIoU3D}

// ParseMode accepts the snake_case name, the CamelCase name, or "iou_bev"
// for the 2D overlap.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "")) {
	case "centerdistance":
		return ModeCenterDistance, nil
	case "planedistance":
		return ModePlaneDistance, nil
	case "iou2d", "ioubev":
		return ModeIoU2D, nil
	case "iou3d":
		return ModeIoU3D, nil
	}
	return "", fmt.Errorf("unknown matching mode %q", s)
}

// Polarity returns the comparison direction for the mode.
func (m Mode) Polarity() Polarity {
	switch m {
	case ModeIoU2D, ModeIoU3D:
		return HigherIsBetter
	}
	return LowerIsBetter
}

func (m Mode) String() string { return string(m) }

// Polarity says whether a smaller or a larger score is the better match.
type Polarity int

const (
	// LowerIsBetter applies to distances: valid iff score <= threshold.
	LowerIsBetter Polarity = iota
	// HigherIsBetter applies to overlaps: valid iff score >= threshold.
	HigherIsBetter
)

// Meets reports whether score satisfies threshold. NaN never does.
func (p Polarity) Meets(score, threshold float64) bool {
	if math.IsNaN(score) || math.IsNaN(threshold) {
		return false
	}
	if p == HigherIsBetter {
		return score >= threshold
	}
	return score <= threshold
}

// Better reports whether a is strictly better than b. A NaN is worse than
// any number.
func (p Polarity) Better(a, b float64) bool {
	switch {
	case math.IsNaN(a):
		return false
	case math.IsNaN(b):
		return true
	case p == HigherIsBetter:
		return a > b
	default:
		return a < b
	}
}

// Worst is the score every real candidate improves on.
func (p Polarity) Worst() float64 {
	if p == HigherIsBetter {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

func (p Polarity) String() string {
	if p == HigherIsBetter {
		return "higher_is_better"
	}
	return "lower_is_better"
}

// Strategy scores an (estimated, ground truth) pair.
type Strategy interface {
	Mode() Mode
	Polarity() Polarity
	Score(estimated, groundTruth object.DynamicObject) float64
	IsBetterOrEqual(score, threshold float64) bool
}

// NewStrategy returns the strategy for mode.
func NewStrategy(mode Mode) (Strategy, error) {
	switch mode {
	case ModeCenterDistance:
		return centerDistance{}, nil
	case ModePlaneDistance:
		return planeDistance{}, nil
	case ModeIoU2D:
		return iou2D{}, nil
	case ModeIoU3D:
		return iou3D{}, nil
	}
	return nil, perception.NewConfigError("matching_mode", "", string(mode), "unsupported matching mode")
}

// MustStrategy is NewStrategy for modes known at compile time.
func MustStrategy(mode Mode) Strategy {
	s, err := NewStrategy(mode)
	if err != nil {
		panic(err)
	}
	return s
}

type lowerIsBetter struct{}

func (lowerIsBetter) Polarity() Polarity { return LowerIsBetter }
func (lowerIsBetter) IsBetterOrEqual(score, threshold float64) bool {
	return LowerIsBetter.Meets(score, threshold)
}

type higherIsBetter struct{}

func (higherIsBetter) Polarity() Polarity { return HigherIsBetter }
func (higherIsBetter) IsBetterOrEqual(score, threshold float64) bool {
	return HigherIsBetter.Meets(score, threshold)
}

type centerDistance struct{ lowerIsBetter }

func (centerDistance) Mode() Mode { return ModeCenterDistance }
func (centerDistance) Score(est, gt object.DynamicObject) float64 {
	return geometry.CenterDistance(est.Box(), gt.Box())
}

type planeDistance struct{ lowerIsBetter }

func (planeDistance) Mode() Mode { return ModePlaneDistance }
func (planeDistance) Score(est, gt object.DynamicObject) float64 {
	return geometry.PlaneDistance(est.Box(), gt.Box())
}

type iou2D struct{ higherIsBetter }

func (iou2D) Mode() Mode { return ModeIoU2D }
func (iou2D) Score(est, gt object.DynamicObject) float64 {
	return geometry.IoUBEV(est.Box(), gt.Box())
}

type iou3D struct{ higherIsBetter }

func (iou3D) Mode() Mode { return ModeIoU3D }
func (iou3D) Score(est, gt object.DynamicObject) float64 {
	return geometry.IoU3D(est.Box(), gt.Box())
}
