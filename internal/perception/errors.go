package perception

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Every typed error below matches exactly one of them
// through errors.Is.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrFilter         = errors.New("filter error")
	ErrMatching       = errors.New("matching error")
	ErrMetrics        = errors.New("metrics error")
	ErrMalformedFrame = errors.New("malformed frame")
)

// NoFrame is the FrameIndex of an error that is not tied to a frame.
const NoFrame = -1

// Context is the diagnostic payload shared by all error kinds.
type Context struct {
	Field      string // offending config field or object attribute
	Label      string // label the value belongs to, if any
	FrameIndex int    // NoFrame when not applicable
	Value      any    // offending value
	Reason     string
}

func (c Context) format(kind string) string {
	var b strings.Builder
	b.WriteString(kind)
	if c.Field != "" {
		fmt.Fprintf(&b, ": %s", c.Field)
	}
	if c.Label != "" {
		fmt.Fprintf(&b, " [label=%s]", c.Label)
	}
	if c.FrameIndex != NoFrame {
		fmt.Fprintf(&b, " [frame=%d]", c.FrameIndex)
	}
	if c.Value != nil {
		fmt.Fprintf(&b, " (value=%v)", c.Value)
	}
	if c.Reason != "" {
		fmt.Fprintf(&b, ": %s", c.Reason)
	}
	return b.String()
}

// ConfigError reports an invalid evaluation configuration: label-array length
// mismatch, unknown label, empty threshold set, unsupported task.
type ConfigError struct{ Context }

func (e *ConfigError) Error() string        { return e.format("configuration error") }
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// FilterError reports malformed filter bounds.
type FilterError struct{ Context }

func (e *FilterError) Error() string        { return e.format("filter error") }
func (e *FilterError) Is(target error) bool { return target == ErrFilter }

// MatchingError reports a strategy that cannot be evaluated, e.g. one with
// no defined threshold for a label.
type MatchingError struct{ Context }

func (e *MatchingError) Error() string        { return e.format("matching error") }
func (e *MatchingError) Is(target error) bool { return target == ErrMatching }

// MetricsError reports a metrics-stage failure. Only returned in strict mode.
type MetricsError struct{ Context }

func (e *MetricsError) Error() string        { return e.format("metrics error") }
func (e *MetricsError) Is(target error) bool { return target == ErrMetrics }

// FrameError reports a frame that cannot be processed. It is terminal for
// that frame.
type FrameError struct{ Context }

func (e *FrameError) Error() string        { return e.format("malformed frame") }
func (e *FrameError) Is(target error) bool { return target == ErrMalformedFrame }

// NewConfigError builds a ConfigError not tied to a frame.
func NewConfigError(field, label string, value any, reason string) *ConfigError {
	return &ConfigError{Context{Field: field, Label: label, FrameIndex: NoFrame, Value: value, Reason: reason}}
}

// NewFilterError builds a FilterError not tied to a frame.
func NewFilterError(field, label string, value any, reason string) *FilterError {
	return &FilterError{Context{Field: field, Label: label, FrameIndex: NoFrame, Value: value, Reason: reason}}
}

// NewMatchingError builds a MatchingError not tied to a frame.
func NewMatchingError(field, label string, value any, reason string) *MatchingError {
	return &MatchingError{Context{Field: field, Label: label, FrameIndex: NoFrame, Value: value, Reason: reason}}
}

// NewMetricsError builds a MetricsError not tied to a frame.
func NewMetricsError(field, label string, value any, reason string) *MetricsError {
	return &MetricsError{Context{Field: field, Label: label, FrameIndex: NoFrame, Value: value, Reason: reason}}
}

// NewFrameError builds a FrameError for the given frame.
func NewFrameError(frameIndex int, field, label string, value any, reason string) *FrameError {
	return &FrameError{Context{Field: field, Label: label, FrameIndex: frameIndex, Value: value, Reason: reason}}
}
