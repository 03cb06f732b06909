package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

func TestAggregatePreservesOrder(t *testing.T) {
	t.Parallel()

	dist := matching.MustStrategy(matching.ModeCenterDistance)
	iou := matching.MustStrategy(matching.ModeIoU2D)

	var frames []PerceptionFrameResult
	for i := 0; i < 3; i++ {
		f := object.Frame{
			Index:       i,
			Estimated:   []object.DynamicObject{mk(object.LabelCar, 10, float64(i), 0.9)},
			GroundTruth: []object.DynamicObject{mk(object.LabelCar, 10, 0, 1), mk(object.LabelPedestrian, 3, 3, 1)},
		}
		d, err := MatchFrame(f, dist, matching.Uniform(1.5))
		require.NoError(t, err)
		o, err := MatchFrame(f, iou, matching.Uniform(0.5))
		require.NoError(t, err)
		frames = append(frames, d, o)
	}

	scenes := Aggregate(frames)
	require.Len(t, scenes, 2)
	assert.Equal(t, Key{Mode: matching.ModeCenterDistance, Threshold: "1.5"}, scenes[0].Key)
	assert.Equal(t, matching.ModeIoU2D, scenes[1].Key.Mode)

	for _, s := range scenes {
		require.Equal(t, 3, s.NumFrames())
		for i, f := range s.Frames {
			assert.Equal(t, i, f.FrameIndex)
		}
	}

	// Frame 0 and 1 are within 1.5 m, frame 2 is 2 m off.
	assert.Equal(t, Counts{TP: 2, FP: 1, FN: 4}, scenes[0].Counts())
	byLabel := scenes[0].CountsByLabel()
	assert.Equal(t, 3, byLabel[object.LabelCar].NumGroundTruth())
	assert.Equal(t, Counts{FN: 3}, byLabel[object.LabelPedestrian])

	flat := scenes[0].Results()
	require.Len(t, flat, 7)
	assert.Equal(t, TruePositive, flat[0].Kind)
	assert.Equal(t, object.LabelPedestrian, flat[1].Label())
}

func TestSceneResultAppendRejectsForeignFrames(t *testing.T) {
	t.Parallel()

	s := NewSceneResult(matching.ModeCenterDistance, matching.Uniform(1))
	require.NoError(t, s.Append(PerceptionFrameResult{Mode: matching.ModeCenterDistance, Threshold: matching.Uniform(1)}))
	assert.Error(t, s.Append(PerceptionFrameResult{Mode: matching.ModeCenterDistance, Threshold: matching.Uniform(2)}))
	assert.Error(t, s.Append(PerceptionFrameResult{Mode: matching.ModeIoU3D, Threshold: matching.Uniform(1)}))
	assert.Equal(t, 1, s.NumFrames())
}

func TestHeadingWeight(t *testing.T) {
	t.Parallel()

	est := mk(object.LabelCar, 0, 0, 0.9)
	gt := mk(object.LabelCar, 0, 0, 1)
	gt.Yaw = 3.141592653589793

	assert.InDelta(t, 0.0, NewTruePositive(est, gt, 0).HeadingWeight(), 1e-12)
	assert.Equal(t, 0.0, NewFalsePositive(est).HeadingWeight())
	assert.InDelta(t, 1.0, NewTruePositive(est, est, 0).HeadingWeight(), 1e-12)
}
