package perception

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"config", NewConfigError("target_labels", "", 3, "length mismatch"), ErrConfiguration},
		{"filter", NewFilterError("max_x_position", "Car", -1.0, "must be non-negative"), ErrFilter},
		{"matching", NewMatchingError("thresholds", "Bus", nil, "no threshold"), ErrMatching},
		{"metrics", NewMetricsError("num_ground_truth", "Truck", 0, "strict mode"), ErrMetrics},
		{"frame", NewFrameError(7, "size", "Car", -2.0, "negative extent"), ErrMalformedFrame},
	}

	all := []error{ErrConfiguration, ErrFilter, ErrMatching, ErrMetrics, ErrMalformedFrame}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("evaluate: %w", tc.err)
			for _, s := range all {
				assert.Equal(t, s == tc.sentinel, errors.Is(wrapped, s), "sentinel %v", s)
			}
		})
	}
}

func TestErrorContext(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrap: %w", NewFrameError(4, "position", "Pedestrian", "NaN", "non-finite coordinate"))

	var fe *FrameError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 4, fe.FrameIndex)
	assert.Equal(t, "Pedestrian", fe.Label)
	assert.Contains(t, err.Error(), "[frame=4]")
	assert.Contains(t, err.Error(), "[label=Pedestrian]")
	assert.Contains(t, err.Error(), "non-finite coordinate")

	cfg := NewConfigError("iou_2d_threshold", "", nil, "empty threshold set")
	assert.NotContains(t, cfg.Error(), "frame=")
	assert.NotContains(t, cfg.Error(), "value=")
}
