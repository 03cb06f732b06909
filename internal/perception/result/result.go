// Package result classifies estimated and ground-truth objects of a frame
// into true positives, false positives and false negatives, and accumulates
// those classifications across a scenario.
package result

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/perception-eval/internal/perception/geometry"
	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// Kind tags a PerceptionResult.
type Kind string

const (
	TruePositive  Kind = "TP"
	FalsePositive Kind = "FP"
	FalseNegative Kind = "FN"
)

// PerceptionResult is the outcome for exactly one estimated object, one
// ground-truth object, or a matched pair of both.
//
//	TruePositive:  Estimated, GroundTruth and Score set.
//	FalsePositive: Estimated set.
//	FalseNegative: GroundTruth set.
type PerceptionResult struct {
	Kind        Kind
	Estimated   *object.DynamicObject
	GroundTruth *object.DynamicObject
	// Score is the strategy score of the pair; NaN unless Kind is
	// TruePositive.
	Score float64
}

// NewTruePositive pairs est with gt.
func NewTruePositive(est, gt object.DynamicObject, score float64) PerceptionResult {
	return PerceptionResult{Kind: TruePositive, Estimated: &est, GroundTruth: &gt, Score: score}
}

// NewFalsePositive records an unmatched estimate.
func NewFalsePositive(est object.DynamicObject) PerceptionResult {
	return PerceptionResult{Kind: FalsePositive, Estimated: &est, Score: math.NaN()}
}

// NewFalseNegative records an unmatched ground truth.
func NewFalseNegative(gt object.DynamicObject) PerceptionResult {
	return PerceptionResult{Kind: FalseNegative, GroundTruth: &gt, Score: math.NaN()}
}

// Label returns the label of the result. For a true positive both sides
// carry the same label.
func (r PerceptionResult) Label() object.Label {
	if r.Estimated != nil {
		return r.Estimated.Label
	}
	if r.GroundTruth != nil {
		return r.GroundTruth.Label
	}
	return object.LabelUnknown
}

// Confidence returns the estimate's confidence, 0 for a false negative.
func (r PerceptionResult) Confidence() float64 {
	if r.Estimated == nil {
		return 0
	}
	return r.Estimated.Confidence
}

// HeadingWeight returns (1 + cos Δyaw)/2 for a true positive, 0 otherwise.
func (r PerceptionResult) HeadingWeight() float64 {
	if r.Kind != TruePositive {
		return 0
	}
	return geometry.HeadingWeight(r.Estimated.Yaw, r.GroundTruth.Yaw)
}

func (r PerceptionResult) String() string {
	switch r.Kind {
	case TruePositive:
		return fmt.Sprintf("TP %s score=%.3f conf=%.2f", r.Label(), r.Score, r.Confidence())
	case FalsePositive:
		return fmt.Sprintf("FP %s conf=%.2f", r.Label(), r.Confidence())
	default:
		return fmt.Sprintf("FN %s", r.Label())
	}
}

// Counts tallies result kinds.
type Counts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// NumGroundTruth is TP + FN.
func (c Counts) NumGroundTruth() int { return c.TP + c.FN }

// NumEstimated is TP + FP.
func (c Counts) NumEstimated() int { return c.TP + c.FP }

func (c *Counts) add(k Kind) {
	switch k {
	case TruePositive:
		c.TP++
	case FalsePositive:
		c.FP++
	case FalseNegative:
		c.FN++
	}
}

// Plus returns the element-wise sum.
func (c Counts) Plus(o Counts) Counts {
	return Counts{TP: c.TP + o.TP, FP: c.FP + o.FP, FN: c.FN + o.FN}
}

// PerceptionFrameResult holds the ordered results of one frame under one
// (strategy, threshold) pair: estimate-derived results in descending
// confidence, then false negatives in ground-truth input order.
type PerceptionFrameResult struct {
	FrameIndex int
	FrameID    object.FrameID
	Timestamp  time.Time
	Mode       matching.Mode
	Threshold  matching.Threshold
	Results    []PerceptionResult
}

// Counts tallies the frame's results.
func (f PerceptionFrameResult) Counts() Counts {
	var c Counts
	for _, r := range f.Results {
		c.add(r.Kind)
	}
	return c
}

// CountsByLabel tallies the frame's results per label.
func (f PerceptionFrameResult) CountsByLabel() map[object.Label]Counts {
	out := make(map[object.Label]Counts)
	for _, r := range f.Results {
		c := out[r.Label()]
		c.add(r.Kind)
		out[r.Label()] = c
	}
	return out
}
