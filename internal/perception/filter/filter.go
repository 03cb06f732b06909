// Package filter decides which objects are eligible for matching. Objects
// that fail are dropped before the matcher runs and never appear in a
// result.
package filter

import (
	"fmt"
	"math"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// Role says which side of a frame an object belongs to. Some checks only
// apply to one side.
type Role int

const (
	RoleEstimated Role = iota
	RoleGroundTruth
)

func (r Role) String() string {
	if r == RoleGroundTruth {
		return "ground_truth"
	}
	return "estimated"
}

// Config is the raw filter configuration. Every per-label slice is indexed
// like TargetLabels. An empty TargetLabels means no label restriction; the
// per-label slices then hold at most one value, applied to every label.
type Config struct {
	TargetLabels []object.Label `json:"target_labels" yaml:"target_labels"`

	// MaxXPosition and MaxYPosition bound |x| and |y| of the object centre,
	// strictly. Nil means unbounded.
	MaxXPosition []float64 `json:"max_x_position,omitempty" yaml:"max_x_position,omitempty"`
	MaxYPosition []float64 `json:"max_y_position,omitempty" yaml:"max_y_position,omitempty"`

	// MinPointNumbers applies to ground truth only. Nil disables the check.
	MinPointNumbers []int `json:"min_point_numbers,omitempty" yaml:"min_point_numbers,omitempty"`

	// TargetUUIDs is an allow-list for ground truth. Nil means all.
	TargetUUIDs []string `json:"target_uuids,omitempty" yaml:"target_uuids,omitempty"`

	// ConfidenceThresholds applies to estimated objects only. Nil disables
	// the check.
	ConfidenceThresholds []float64 `json:"confidence_threshold,omitempty" yaml:"confidence_threshold,omitempty"`
}

// labelBounds is the resolved per-label configuration.
type labelBounds struct {
	maxX, maxY    float64
	minPoints     int
	hasMinPoints  bool
	minConfidence float64
	hasConfidence bool
}

// Filter is a validated Config. It is immutable and safe for concurrent use.
type Filter struct {
	cfg      Config
	any      bool // no label restriction
	bounds   map[object.Label]labelBounds
	fallback labelBounds
	uuids    map[string]struct{}
}

// New validates cfg. Length mismatches and unknown labels are configuration
// errors; negative or non-finite bounds are filter errors.
func New(cfg Config) (*Filter, error) {
	f := &Filter{
		cfg:    cloneConfig(cfg),
		any:    len(cfg.TargetLabels) == 0,
		bounds: make(map[object.Label]labelBounds, len(cfg.TargetLabels)),
	}

	n := len(cfg.TargetLabels)
	want := n
	if f.any {
		want = 1
	}
	for _, arr := range []struct {
		field string
		len   int
		set   bool
	}{
		{"max_x_position", len(cfg.MaxXPosition), cfg.MaxXPosition != nil},
		{"max_y_position", len(cfg.MaxYPosition), cfg.MaxYPosition != nil},
		{"min_point_numbers", len(cfg.MinPointNumbers), cfg.MinPointNumbers != nil},
		{"confidence_threshold", len(cfg.ConfidenceThresholds), cfg.ConfidenceThresholds != nil},
	} {
		if arr.set && arr.len != want {
			return nil, perception.NewConfigError(arr.field, "", arr.len,
				fmt.Sprintf("expected %d entries to match target_labels", want))
		}
	}

	seen := make(map[object.Label]bool, n)
	for _, l := range cfg.TargetLabels {
		if !l.Valid() {
			return nil, perception.NewConfigError("target_labels", string(l), string(l), "unknown label")
		}
		if seen[l] {
			return nil, perception.NewConfigError("target_labels", string(l), nil, "duplicate label")
		}
		seen[l] = true
	}

	if f.any {
		b, err := resolve(cfg, 0, "")
		if err != nil {
			return nil, err
		}
		f.fallback = b
	}
	for i, l := range cfg.TargetLabels {
		b, err := resolve(cfg, i, string(l))
		if err != nil {
			return nil, err
		}
		f.bounds[l] = b
	}

	if cfg.TargetUUIDs != nil {
		f.uuids = make(map[string]struct{}, len(cfg.TargetUUIDs))
		for _, u := range cfg.TargetUUIDs {
			f.uuids[u] = struct{}{}
		}
	}
	return f, nil
}

func resolve(cfg Config, i int, label string) (labelBounds, error) {
	b := labelBounds{maxX: math.Inf(1), maxY: math.Inf(1)}
	if cfg.MaxXPosition != nil {
		if err := checkBound("max_x_position", label, cfg.MaxXPosition[i]); err != nil {
			return b, err
		}
		b.maxX = cfg.MaxXPosition[i]
	}
	if cfg.MaxYPosition != nil {
		if err := checkBound("max_y_position", label, cfg.MaxYPosition[i]); err != nil {
			return b, err
		}
		b.maxY = cfg.MaxYPosition[i]
	}
	if cfg.MinPointNumbers != nil {
		if cfg.MinPointNumbers[i] < 0 {
			return b, perception.NewFilterError("min_point_numbers", label, cfg.MinPointNumbers[i], "must be non-negative")
		}
		b.minPoints, b.hasMinPoints = cfg.MinPointNumbers[i], true
	}
	if cfg.ConfidenceThresholds != nil {
		c := cfg.ConfidenceThresholds[i]
		if math.IsNaN(c) || c < 0 || c > 1 {
			return b, perception.NewFilterError("confidence_threshold", label, c, "must be within [0, 1]")
		}
		b.minConfidence, b.hasConfidence = c, true
	}
	return b, nil
}

func checkBound(field, label string, v float64) error {
	if math.IsNaN(v) {
		return perception.NewFilterError(field, label, v, "bound is NaN")
	}
	if v < 0 {
		return perception.NewFilterError(field, label, v, "must be non-negative")
	}
	return nil
}

// NewUniform builds a filter whose scalar bounds apply to every target
// label. A negative minPoints disables the point check.
func NewUniform(labels []object.Label, maxX, maxY float64, minPoints int, uuids []string) (*Filter, error) {
	cfg := Config{TargetLabels: labels, TargetUUIDs: uuids}
	n := len(labels)
	if n == 0 {
		n = 1
	}
	cfg.MaxXPosition = fill(maxX, n)
	cfg.MaxYPosition = fill(maxY, n)
	if minPoints >= 0 {
		cfg.MinPointNumbers = make([]int, n)
		for i := range cfg.MinPointNumbers {
			cfg.MinPointNumbers[i] = minPoints
		}
	}
	return New(cfg)
}

func fill(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Config returns a copy of the configuration the filter was built from.
func (f *Filter) Config() Config { return cloneConfig(f.cfg) }

// TargetLabels returns the label restriction, empty when unrestricted.
func (f *Filter) TargetLabels() []object.Label {
	return append([]object.Label(nil), f.cfg.TargetLabels...)
}

// Restricts reports whether the filter limits labels.
func (f *Filter) Restricts() bool { return !f.any }

// IsEligible applies, in order: label membership, position bound, minimum
// point count, UUID allow-list and confidence threshold. All checks must
// pass.
func (f *Filter) IsEligible(o object.DynamicObject, role Role) bool {
	b, ok := f.boundsFor(o.Label)
	if !ok {
		return false
	}
	if !(math.Abs(o.Position.X) < b.maxX) || !(math.Abs(o.Position.Y) < b.maxY) {
		return false
	}
	if role == RoleGroundTruth {
		if b.hasMinPoints && o.HasPointCount() && o.PointCount < b.minPoints {
			return false
		}
		if f.uuids != nil && o.UUID != "" {
			if _, ok := f.uuids[o.UUID]; !ok {
				return false
			}
		}
	}
	if role == RoleEstimated && b.hasConfidence && o.Confidence < b.minConfidence {
		return false
	}
	return true
}

func (f *Filter) boundsFor(l object.Label) (labelBounds, bool) {
	if f.any {
		return f.fallback, true
	}
	b, ok := f.bounds[l]
	return b, ok
}

// FilterObjects returns the eligible objects, preserving input order.
func (f *Filter) FilterObjects(objects []object.DynamicObject, role Role) []object.DynamicObject {
	out := make([]object.DynamicObject, 0, len(objects))
	for _, o := range objects {
		if f.IsEligible(o, role) {
			out = append(out, o)
		}
	}
	return out
}

// FilterFrame filters both sides of a frame independently.
func (f *Filter) FilterFrame(frame object.Frame) object.Frame {
	out := frame
	out.Estimated = f.FilterObjects(frame.Estimated, RoleEstimated)
	out.GroundTruth = f.FilterObjects(frame.GroundTruth, RoleGroundTruth)
	return out
}

func cloneConfig(c Config) Config {
	out := Config{TargetLabels: append([]object.Label(nil), c.TargetLabels...)}
	if c.MaxXPosition != nil {
		out.MaxXPosition = append([]float64{}, c.MaxXPosition...)
	}
	if c.MaxYPosition != nil {
		out.MaxYPosition = append([]float64{}, c.MaxYPosition...)
	}
	if c.MinPointNumbers != nil {
		out.MinPointNumbers = append([]int{}, c.MinPointNumbers...)
	}
	if c.TargetUUIDs != nil {
		out.TargetUUIDs = append([]string{}, c.TargetUUIDs...)
	}
	if c.ConfidenceThresholds != nil {
		out.ConfidenceThresholds = append([]float64{}, c.ConfidenceThresholds...)
	}
	return out
}
