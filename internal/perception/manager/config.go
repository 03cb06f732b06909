package manager

import (
	"math"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/filter"
	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/metrics"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// AcceptanceRule decides whether a single frame passes. The frame is matched
// under Mode and Threshold after the pass/fail filter; it passes when the
// fraction of its ground truth matched is at least MinTruePositiveRate and
// it has no more than MaxFalsePositives false positives.
type AcceptanceRule struct {
	Mode      matching.Mode
	Threshold matching.Threshold

	// MinTruePositiveRate is in [0, 1]. A frame without ground truth has a
	// rate of 1.
	MinTruePositiveRate float64

	// MaxFalsePositives < 0 disables the false-positive limit.
	MaxFalsePositives int
}

// DefaultAcceptanceRule requires every ground-truth object within 2 m plane
// distance and tolerates any number of false positives.
func DefaultAcceptanceRule() AcceptanceRule {
	return AcceptanceRule{
		Mode:                matching.ModePlaneDistance,
		Threshold:           matching.Uniform(2.0),
		MinTruePositiveRate: 1.0,
		MaxFalsePositives:   -1,
	}
}

// Config is the raw evaluation configuration of one scenario.
type Config struct {
	Metrics metrics.Config

	// CriticalFilter selects the objects scored by the metrics engine. An
	// empty TargetLabels inherits Metrics.TargetLabels, broadcasting any
	// single-value bound.
	CriticalFilter filter.Config

	// PassFailFilter selects the objects judged by Acceptance. Nil reuses
	// CriticalFilter.
	PassFailFilter *filter.Config
	Acceptance     AcceptanceRule

	// PassRate is the percentage of frames, in [0, 100], that must pass.
	PassRate float64

	// Workers bounds parallel frame processing; <= 0 means one worker per
	// CPU.
	Workers int

	// FrameCallback, if set, is invoked once per accumulated frame, in
	// frame order. EvaluateFrames calls it from worker goroutines but never
	// concurrently, and skips frames that finish after an earlier frame
	// failed.
	FrameCallback func(FrameOutcome)
}

// expandLabels fills an empty target-label list from labels, repeating any
// single-value per-label bound. A filter config that names its own labels is
// returned unchanged.
func expandLabels(cfg filter.Config, labels []object.Label) filter.Config {
	if len(cfg.TargetLabels) > 0 || len(labels) == 0 {
		return cfg
	}
	n := len(labels)
	out := cfg
	out.TargetLabels = append([]object.Label(nil), labels...)
	out.MaxXPosition = repeatF(cfg.MaxXPosition, n)
	out.MaxYPosition = repeatF(cfg.MaxYPosition, n)
	out.ConfidenceThresholds = repeatF(cfg.ConfidenceThresholds, n)
	if len(cfg.MinPointNumbers) == 1 {
		out.MinPointNumbers = make([]int, n)
		for i := range out.MinPointNumbers {
			out.MinPointNumbers[i] = cfg.MinPointNumbers[0]
		}
	}
	return out
}

func repeatF(v []float64, n int) []float64 {
	if len(v) != 1 {
		return v
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v[0]
	}
	return out
}

func sameLabels(a, b []object.Label) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// validateAcceptance checks the rule against the labels the pass/fail
// filter admits.
func validateAcceptance(rule AcceptanceRule, pf *filter.Filter) error {
	if _, err := matching.NewStrategy(rule.Mode); err != nil {
		return err
	}
	if err := rule.Threshold.Validate(rule.Mode); err != nil {
		return err
	}
	if math.IsNaN(rule.MinTruePositiveRate) || rule.MinTruePositiveRate < 0 || rule.MinTruePositiveRate > 1 {
		return perception.NewConfigError("min_true_positive_rate", "", rule.MinTruePositiveRate, "must be within [0, 1]")
	}
	if !pf.Restricts() {
		if !rule.Threshold.IsUniform() {
			return perception.NewMatchingError("frame_pass_fail_threshold", "", rule.Threshold.Key(),
				"per-label thresholds need a label-restricted pass/fail filter")
		}
		return nil
	}
	for _, l := range pf.TargetLabels() {
		if !rule.Threshold.Has(l) {
			return perception.NewMatchingError("frame_pass_fail_threshold", string(l), rule.Threshold.Key(), "no threshold defined for label")
		}
	}
	return nil
}
