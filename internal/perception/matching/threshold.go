package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// Threshold maps labels to the acceptance threshold of one strategy. It is
// either uniform (one value for every label) or indexed by a target-label
// list.
type Threshold struct {
	uniform bool
	value   float64
	labels  []object.Label
	values  []float64
}

// Uniform returns a threshold that applies v to every label.
func Uniform(v float64) Threshold {
	return Threshold{uniform: true, value: v}
}

// PerLabel pairs values with labels index by index. A length mismatch is a
// configuration error.
func PerLabel(labels []object.Label, values []float64) (Threshold, error) {
	if len(labels) != len(values) {
		return Threshold{}, perception.NewConfigError("thresholds", "", len(values),
			fmt.Sprintf("expected %d values, one per target label", len(labels)))
	}
	seen := make(map[object.Label]bool, len(labels))
	for _, l := range labels {
		if seen[l] {
			return Threshold{}, perception.NewConfigError("target_labels", string(l), nil, "duplicate label")
		}
		seen[l] = true
	}
	return Threshold{
		labels: append([]object.Label(nil), labels...),
		values: append([]float64(nil), values...),
	}, nil
}

// Broadcast builds a threshold from a config list: a single value applies to
// every label, otherwise the list must match labels exactly.
func Broadcast(labels []object.Label, values []float64) (Threshold, error) {
	if len(values) == 0 {
		return Threshold{}, perception.NewConfigError("thresholds", "", nil, "empty threshold set")
	}
	if len(values) == 1 && len(labels) != 1 {
		if len(labels) == 0 {
			return Uniform(values[0]), nil
		}
		values = repeat(values[0], len(labels))
	}
	return PerLabel(labels, values)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// IsUniform reports whether the threshold applies to every label.
func (t Threshold) IsUniform() bool { return t.uniform }

// For returns the threshold for label. A label without one is a matching
// error.
func (t Threshold) For(label object.Label) (float64, error) {
	if t.uniform {
		return t.value, nil
	}
	for i, l := range t.labels {
		if l == label {
			return t.values[i], nil
		}
	}
	return math.NaN(), perception.NewMatchingError("threshold", string(label), nil, "no threshold defined for label")
}

// Has reports whether label has a threshold.
func (t Threshold) Has(label object.Label) bool {
	_, err := t.For(label)
	return err == nil
}

// Labels returns the labels with an explicit threshold, nil when uniform.
func (t Threshold) Labels() []object.Label {
	return append([]object.Label(nil), t.labels...)
}

// Values returns the per-label values, or the single uniform value.
func (t Threshold) Values() []float64 {
	if t.uniform {
		return []float64{t.value}
	}
	return append([]float64(nil), t.values...)
}

// Validate checks every value against the range legal for mode: finite and
// non-negative distances, overlaps within [0, 1].
func (t Threshold) Validate(mode Mode) error {
	check := func(label string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return perception.NewConfigError(string(mode)+"_threshold", label, v, "threshold must be finite")
		}
		if v < 0 {
			return perception.NewConfigError(string(mode)+"_threshold", label, v, "threshold must be non-negative")
		}
		if mode.Polarity() == HigherIsBetter && v > 1 {
			return perception.NewConfigError(string(mode)+"_threshold", label, v, "overlap threshold must be within [0, 1]")
		}
		return nil
	}
	if t.uniform {
		return check("", t.value)
	}
	for i, v := range t.values {
		if err := check(string(t.labels[i]), v); err != nil {
			return err
		}
	}
	return nil
}

// Key is a stable textual form used to index scores, e.g. "1" or
// "Car=1,Pedestrian=0.5".
func (t Threshold) Key() string {
	if t.uniform {
		return formatFloat(t.value)
	}
	parts := make([]string, len(t.values))
	for i, v := range t.values {
		parts[i] = fmt.Sprintf("%s=%s", t.labels[i], formatFloat(v))
	}
	return strings.Join(parts, ",")
}

func (t Threshold) String() string { return t.Key() }

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
