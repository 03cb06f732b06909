// Package testutil provides shared perception fixtures for tests.
//
// The fixtures describe a two-frame drive used across the storage, report
// and API tests: frame 0 matches its only car, frame 1 misses its only
// pedestrian. Under a 50% pass rate that run passes with one of two frames.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/perception-eval/internal/perception/manager"
	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/metrics"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// Box returns a car-sized box centred at x on the ground plane.
func Box(label object.Label, x, conf float64) object.DynamicObject {
	return object.DynamicObject{
		Position:   r3.Vec{X: x, Z: 0.8},
		Length:     4,
		Width:      2,
		Height:     1.6,
		Confidence: conf,
		Label:      label,
		PointCount: object.UnknownPointCount,
	}
}

// TwoFrames returns the pass/fail pair described in the package comment.
func TwoFrames() []object.Frame {
	return []object.Frame{
		{
			Index:       0,
			Timestamp:   time.Unix(10, 0),
			Estimated:   []object.DynamicObject{Box(object.LabelCar, 5.2, 0.9)},
			GroundTruth: []object.DynamicObject{Box(object.LabelCar, 5, 1)},
		},
		{
			Index:       1,
			Timestamp:   time.Unix(11, 0),
			GroundTruth: []object.DynamicObject{Box(object.LabelPedestrian, 20, 1)},
		},
	}
}

// CenterDistanceConfig evaluates labels at a 1 m center distance, accepts a
// frame only when every critical ground truth is found, and needs half of
// the frames to pass.
func CenterDistanceConfig(labels ...object.Label) manager.Config {
	if len(labels) == 0 {
		labels = []object.Label{object.LabelCar, object.LabelPedestrian}
	}
	return manager.Config{
		Metrics: metrics.Config{
			Task:         object.TaskDetection,
			TargetLabels: labels,
			Thresholds: map[matching.Mode][]matching.Threshold{
				matching.ModeCenterDistance: {matching.Uniform(1)},
			},
		},
		Acceptance: manager.AcceptanceRule{
			Mode:                matching.ModeCenterDistance,
			Threshold:           matching.Uniform(1),
			MinTruePositiveRate: 1,
			MaxFalsePositives:   -1,
		},
		PassRate: 50,
		Workers:  1,
	}
}

// Evaluate runs frames through a manager built from cfg and returns its
// report.
func Evaluate(t testing.TB, cfg manager.Config, frames []object.Frame) *manager.Report {
	t.Helper()
	m, err := manager.New(cfg)
	require.NoError(t, err)
	require.NoError(t, m.EvaluateFrames(context.Background(), frames))
	r, err := m.Report()
	require.NoError(t, err)
	return r
}

// TwoFrameReport is Evaluate over TwoFrames with CenterDistanceConfig.
func TwoFrameReport(t testing.TB) *manager.Report {
	t.Helper()
	return Evaluate(t, CenterDistanceConfig(), TwoFrames())
}
