package manager

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/filter"
	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/metrics"
	"github.com/banshee-data/perception-eval/internal/perception/object"
	"github.com/banshee-data/perception-eval/internal/perception/result"
)

func mk(label object.Label, x, y, conf float64) object.DynamicObject {
	return object.DynamicObject{
		Position:   r3.Vec{X: x, Y: y, Z: 0.75},
		Length:     4,
		Width:      2,
		Height:     1.5,
		Confidence: conf,
		Label:      label,
		PointCount: object.UnknownPointCount,
	}
}

func labels() []object.Label {
	return []object.Label{object.LabelCar, object.LabelPedestrian}
}

func baseConfig() Config {
	return Config{
		Metrics: metrics.Config{
			Task:         object.TaskDetection,
			TargetLabels: labels(),
			Thresholds: map[matching.Mode][]matching.Threshold{
				matching.ModeCenterDistance: {matching.Uniform(1.0)},
				matching.ModeIoU2D:          {matching.Uniform(0.5)},
			},
		},
		CriticalFilter: filter.Config{
			MaxXPosition: []float64{10},
			MaxYPosition: []float64{10},
		},
		Acceptance: AcceptanceRule{
			Mode:                matching.ModeCenterDistance,
			Threshold:           matching.Uniform(1.0),
			MinTruePositiveRate: 1.0,
			MaxFalsePositives:   -1,
		},
		PassRate: 50,
		Workers:  4,
	}
}

// goodFrame has one matched car; badFrame has one far pedestrian.
func goodFrame(i int) object.Frame {
	return object.Frame{
		Index:       i,
		Estimated:   []object.DynamicObject{mk(object.LabelCar, 5.3, 0, 0.9)},
		GroundTruth: []object.DynamicObject{mk(object.LabelCar, 5, 0, 1)},
	}
}

func badFrame(i int) object.Frame {
	return object.Frame{
		Index:       i,
		Estimated:   []object.DynamicObject{mk(object.LabelPedestrian, 5, 5, 0.9)},
		GroundTruth: []object.DynamicObject{mk(object.LabelPedestrian, 0, 0, 1)},
	}
}

func TestFilteredGroundTruthIsNotCounted(t *testing.T) {
	t.Parallel()

	m, err := New(baseConfig())
	require.NoError(t, err)

	frame := goodFrame(0)
	frame.GroundTruth = append(frame.GroundTruth, mk(object.LabelCar, 50, 0, 1))
	out, err := m.AddFrame(frame)
	require.NoError(t, err)

	for _, fr := range out.Results {
		assert.Equal(t, 0, fr.Counts().FN, "ground truth at x=50 is outside max_x_position=10")
	}

	score, err := m.MetricsScore()
	require.NoError(t, err)
	ms, ok := score.Lookup(result.Key{Mode: matching.ModeCenterDistance, Threshold: "1"})
	require.True(t, ok)
	car, _ := ms.Label(object.LabelCar)
	assert.Equal(t, 1, car.NumGroundTruth())
	assert.Equal(t, 1.0, car.AP)
}

func TestNewRejectsBrokenConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		sentinel error
	}{
		{"filter length mismatch", func(c *Config) {
			c.CriticalFilter = filter.Config{TargetLabels: labels(), MaxXPosition: []float64{10}}
		}, perception.ErrConfiguration},
		{"filter labels differ from metrics", func(c *Config) {
			c.CriticalFilter = filter.Config{TargetLabels: []object.Label{object.LabelCar}}
		}, perception.ErrConfiguration},
		{"negative filter bound", func(c *Config) {
			c.CriticalFilter = filter.Config{MaxXPosition: []float64{-1}}
		}, perception.ErrFilter},
		{"empty threshold set", func(c *Config) {
			c.Metrics.Thresholds[matching.ModeIoU3D] = nil
		}, perception.ErrConfiguration},
		{"pass rate above 100", func(c *Config) { c.PassRate = 120 }, perception.ErrConfiguration},
		{"tp rate above 1", func(c *Config) { c.Acceptance.MinTruePositiveRate = 2 }, perception.ErrConfiguration},
		{"acceptance threshold missing label", func(c *Config) {
			th, err := matching.PerLabel([]object.Label{object.LabelCar}, []float64{1})
			if err != nil {
				panic(err)
			}
			c.Acceptance.Threshold = th
		}, perception.ErrMatching},
		{"prediction task", func(c *Config) { c.Metrics.Task = object.TaskPrediction }, perception.ErrConfiguration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig()
			tc.mutate(&cfg)
			m, err := New(cfg)
			assert.Nil(t, m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.sentinel), err.Error())
		})
	}
}

func TestEvaluateFramesKeepsOrder(t *testing.T) {
	t.Parallel()

	var seen atomic.Int32
	cfg := baseConfig()
	cfg.FrameCallback = func(FrameOutcome) { seen.Add(1) }
	m, err := New(cfg)
	require.NoError(t, err)

	var frames []object.Frame
	for i := 0; i < 40; i++ {
		if i%4 == 3 {
			frames = append(frames, badFrame(i))
		} else {
			frames = append(frames, goodFrame(i))
		}
	}
	require.NoError(t, m.EvaluateFrames(context.Background(), frames))
	assert.EqualValues(t, 40, seen.Load())

	outcomes := m.Outcomes()
	require.Len(t, outcomes, 40)
	for i, o := range outcomes {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, i%4 != 3, o.Passed, "frame %d", i)
	}

	v := m.Verdict()
	assert.True(t, v.Passed)
	assert.Equal(t, 30, v.PassedFrames)
	assert.InDelta(t, 75.0, v.Rate, 1e-9)

	// Parallel and sequential evaluation agree.
	seq, err := New(baseConfig())
	require.NoError(t, err)
	for _, f := range frames {
		_, err := seq.AddFrame(f)
		require.NoError(t, err)
	}
	a, err := m.MetricsScore()
	require.NoError(t, err)
	b, err := seq.MetricsScore()
	require.NoError(t, err)
	for i := range a.Modes {
		assert.Equal(t, a.Modes[i].Labels[0].AP, b.Modes[i].Labels[0].AP)
		assert.Equal(t, a.Modes[i].Labels[1].Counts, b.Modes[i].Labels[1].Counts)
	}
}

func TestMalformedFrameIsTerminal(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Workers = 1
	m, err := New(cfg)
	require.NoError(t, err)

	broken := goodFrame(2)
	broken.Estimated[0].Length = math.NaN()
	frames := []object.Frame{goodFrame(0), goodFrame(1), broken, goodFrame(3)}

	err = m.EvaluateFrames(context.Background(), frames)
	require.Error(t, err)
	var fe *perception.FrameError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.FrameIndex)

	// The prefix before the broken frame is kept and can still be scored.
	assert.Equal(t, 2, m.NumFrames())
	score, err := m.MetricsScore()
	require.NoError(t, err)
	assert.Equal(t, 2, score.NumFrames)
}

func TestFrameCallbackMatchesKeptPrefix(t *testing.T) {
	t.Parallel()

	var reported []int
	cfg := baseConfig()
	cfg.Workers = 4
	cfg.FrameCallback = func(o FrameOutcome) { reported = append(reported, o.Index) }
	m, err := New(cfg)
	require.NoError(t, err)

	broken := goodFrame(1)
	broken.Estimated[0].Length = math.NaN()
	frames := []object.Frame{goodFrame(0), broken}
	for i := 2; i < 16; i++ {
		frames = append(frames, goodFrame(i))
	}

	require.Error(t, m.EvaluateFrames(context.Background(), frames))
	assert.LessOrEqual(t, m.NumFrames(), 1)
	require.Len(t, reported, m.NumFrames())
	for i, o := range m.Outcomes() {
		assert.Equal(t, o.Index, reported[i])
	}
}

func TestCancelledRunKeepsPartialResults(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := baseConfig()
	cfg.Workers = 1
	cfg.FrameCallback = func(o FrameOutcome) {
		if o.Index == 4 {
			cancel()
		}
	}
	m, err := New(cfg)
	require.NoError(t, err)

	var frames []object.Frame
	for i := 0; i < 20; i++ {
		frames = append(frames, goodFrame(i))
	}
	err = m.EvaluateFrames(ctx, frames)
	require.ErrorIs(t, err, context.Canceled)

	n := m.NumFrames()
	assert.GreaterOrEqual(t, n, 5)
	assert.Less(t, n, 20)
	for i, o := range m.Outcomes() {
		assert.Equal(t, i, o.Index)
	}
	_, err = m.MetricsScore()
	assert.NoError(t, err)
}

func TestPassFailFilterIsIndependent(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	// Only cars decide pass/fail; the missed pedestrian still hurts AP.
	cfg.PassFailFilter = &filter.Config{TargetLabels: []object.Label{object.LabelCar}}
	m, err := New(cfg)
	require.NoError(t, err)

	frame := goodFrame(0)
	frame.GroundTruth = append(frame.GroundTruth, mk(object.LabelPedestrian, 2, 2, 1))
	out, err := m.AddFrame(frame)
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, result.Counts{TP: 1}, out.PassFail.Counts())
	assert.Equal(t, result.Counts{TP: 1, FN: 1}, out.Results[0].Counts())
}

func TestAcceptanceFalsePositiveLimit(t *testing.T) {
	t.Parallel()

	rule := AcceptanceRule{MinTruePositiveRate: 0.5, MaxFalsePositives: 1}
	ok, rate := rule.judge(result.Counts{TP: 1, FN: 1, FP: 1})
	assert.True(t, ok)
	assert.Equal(t, 0.5, rate)
	ok, _ = rule.judge(result.Counts{TP: 2, FP: 2})
	assert.False(t, ok)
	ok, rate = rule.judge(result.Counts{})
	assert.True(t, ok, "no ground truth and no false positives")
	assert.Equal(t, 1.0, rate)
}

func TestVerdict(t *testing.T) {
	t.Parallel()

	assert.False(t, NewVerdict(0, 0, 0).Passed, "zero frames fail")
	assert.True(t, NewVerdict(3, 4, 75).Passed)
	assert.False(t, NewVerdict(2, 4, 75).Passed)
	assert.Contains(t, NewVerdict(3, 4, 75).String(), "PASS 3/4")

	m, err := New(baseConfig())
	require.NoError(t, err)
	v := m.Verdict()
	assert.False(t, v.Passed)
	assert.Equal(t, 0, v.TotalFrames)

	r, err := m.Report()
	require.NoError(t, err)
	assert.Empty(t, r.Frames)
	assert.Len(t, r.Score.Modes, 2)
}
