package metrics

import (
	"fmt"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// Interpolation selects how the precision envelope is integrated.
type Interpolation string

const (
	// Continuous integrates the envelope over every recall step.
	Continuous Interpolation = "continuous"
	// ElevenPoint averages the envelope at recall 0, 0.1, ..., 1.
	ElevenPoint Interpolation = "11point"
)

// ParseInterpolation accepts "continuous", "11point" or "eleven_point";
// empty selects Continuous.
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "", "continuous", "all_point":
		return Continuous, nil
	case "11point", "eleven_point", "11_point":
		return ElevenPoint, nil
	}
	return "", fmt.Errorf("unknown interpolation %q", s)
}

// Combination is one (strategy, threshold set) pair to evaluate.
type Combination struct {
	Mode      matching.Mode
	Threshold matching.Threshold
}

// Config lists the combinations to score per target label.
type Config struct {
	Task         object.EvaluationTask
	TargetLabels []object.Label

	// Thresholds holds one or more threshold sets per requested mode.
	Thresholds map[matching.Mode][]matching.Threshold

	Interpolation Interpolation

	// Strict turns a target label with zero ground truth into a
	// MetricsError instead of excluding it from the averages.
	Strict bool
}

// Validate checks the configuration eagerly. An unsupported task, unknown or
// duplicate label, empty threshold set, or a threshold set repeated within a
// mode is a ConfigError; a per-label
// threshold set that misses a target label is a MatchingError.
func (c Config) Validate() error {
	if c.Task == "" {
		c.Task = object.TaskDetection
	}
	if !c.Task.Evaluable() {
		return perception.NewConfigError("evaluation_task", "", string(c.Task), "not implemented")
	}
	if len(c.TargetLabels) == 0 {
		return perception.NewConfigError("target_labels", "", nil, "at least one target label is required")
	}
	seen := make(map[object.Label]bool)
	for _, l := range c.TargetLabels {
		if !l.Valid() {
			return perception.NewConfigError("target_labels", string(l), string(l), "unknown label")
		}
		if seen[l] {
			return perception.NewConfigError("target_labels", string(l), nil, "duplicate label")
		}
		seen[l] = true
	}
	if _, err := ParseInterpolation(string(c.Interpolation)); err != nil {
		return perception.NewConfigError("interpolation", "", string(c.Interpolation), err.Error())
	}
	if len(c.Thresholds) == 0 {
		return perception.NewConfigError("thresholds", "", nil, "no matching mode requested")
	}
	for mode, sets := range c.Thresholds {
		if _, err := matching.NewStrategy(mode); err != nil {
			return err
		}
		if len(sets) == 0 {
			return perception.NewConfigError(string(mode)+"_threshold", "", nil, "empty threshold set")
		}
		keys := make(map[string]bool, len(sets))
		for _, th := range sets {
			if err := th.Validate(mode); err != nil {
				return err
			}
			if keys[th.Key()] {
				return perception.NewConfigError(string(mode)+"_threshold", "", th.Key(), "duplicate threshold set")
			}
			keys[th.Key()] = true
			for _, l := range c.TargetLabels {
				if !th.Has(l) {
					return perception.NewMatchingError(string(mode)+"_threshold", string(l), th.Key(), "no threshold defined for label")
				}
			}
		}
	}
	return nil
}

// Combinations returns the configured pairs in canonical mode order, then
// configuration order.
func (c Config) Combinations() []Combination {
	var out []Combination
	for _, mode := range matching.Modes {
		for _, th := range c.Thresholds[mode] {
			out = append(out, Combination{Mode: mode, Threshold: th})
		}
	}
	return out
}

func (c Config) interpolation() Interpolation {
	if c.Interpolation == "" {
		return Continuous
	}
	return c.Interpolation
}
