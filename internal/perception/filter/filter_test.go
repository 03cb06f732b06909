package filter

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

func obj(label object.Label, x, y float64) object.DynamicObject {
	return object.DynamicObject{
		Position:   r3.Vec{X: x, Y: y},
		Length:     2,
		Width:      1,
		Height:     1,
		Confidence: 1,
		Label:      label,
		PointCount: 1000,
		UUID:       "111",
	}
}

func carPed() []object.Label {
	return []object.Label{object.LabelCar, object.LabelPedestrian}
}

func TestIsEligible(t *testing.T) {
	t.Parallel()

	f, err := New(Config{
		TargetLabels:    carPed(),
		MaxXPosition:    []float64{20, 10},
		MaxYPosition:    []float64{20, 10},
		MinPointNumbers: []int{100, 100},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		obj  func() object.DynamicObject
		role Role
		want bool
	}{
		{"car inside", func() object.DynamicObject { return obj(object.LabelCar, 1, 1) }, RoleGroundTruth, true},
		{"label absent", func() object.DynamicObject { return obj(object.LabelBus, 1, 1) }, RoleGroundTruth, false},
		{"pedestrian beyond its own bound", func() object.DynamicObject { return obj(object.LabelPedestrian, 15, 0) }, RoleGroundTruth, false},
		{"car at same x passes", func() object.DynamicObject { return obj(object.LabelCar, 15, 0) }, RoleGroundTruth, true},
		{"bound is strict", func() object.DynamicObject { return obj(object.LabelCar, 20, 0) }, RoleGroundTruth, false},
		{"negative y uses abs", func() object.DynamicObject { return obj(object.LabelCar, 0, -25) }, RoleGroundTruth, false},
		{"too few points", func() object.DynamicObject {
			o := obj(object.LabelCar, 1, 1)
			o.PointCount = 10
			return o
		}, RoleGroundTruth, false},
		{"point check skipped for estimates", func() object.DynamicObject {
			o := obj(object.LabelCar, 1, 1)
			o.PointCount = 10
			return o
		}, RoleEstimated, true},
		{"unknown point count passes", func() object.DynamicObject {
			o := obj(object.LabelCar, 1, 1)
			o.PointCount = object.UnknownPointCount
			return o
		}, RoleGroundTruth, true},
		{"NaN position rejected", func() object.DynamicObject { return obj(object.LabelCar, math.NaN(), 0) }, RoleGroundTruth, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, f.IsEligible(tc.obj(), tc.role))
		})
	}
}

func TestUUIDAndConfidence(t *testing.T) {
	t.Parallel()

	f, err := New(Config{
		TargetLabels:         carPed(),
		TargetUUIDs:          []string{"111"},
		ConfidenceThresholds: []float64{0.5, 0.3},
	})
	require.NoError(t, err)

	gt := obj(object.LabelCar, 1, 1)
	assert.True(t, f.IsEligible(gt, RoleGroundTruth))
	gt.UUID = "222"
	assert.False(t, f.IsEligible(gt, RoleGroundTruth))
	gt.UUID = ""
	assert.True(t, f.IsEligible(gt, RoleGroundTruth), "objects without uuid are not restricted")

	est := obj(object.LabelCar, 1, 1)
	est.UUID = "222"
	est.Confidence = 0.4
	assert.False(t, f.IsEligible(est, RoleEstimated))
	est.Label = object.LabelPedestrian
	assert.True(t, f.IsEligible(est, RoleEstimated), "per-label confidence")

	lowGT := obj(object.LabelCar, 1, 1)
	lowGT.Confidence = 0
	assert.True(t, f.IsEligible(lowGT, RoleGroundTruth), "confidence applies to estimates only")
}

func TestEmptyTargetLabelsMeansAll(t *testing.T) {
	t.Parallel()

	f, err := New(Config{MaxXPosition: []float64{10}, MaxYPosition: []float64{10}})
	require.NoError(t, err)
	assert.False(t, f.Restricts())
	assert.True(t, f.IsEligible(obj(object.LabelAnimal, 1, 1), RoleGroundTruth))
	assert.False(t, f.IsEligible(obj(object.LabelAnimal, 11, 1), RoleGroundTruth))

	_, err = New(Config{MaxXPosition: []float64{10, 20}})
	assert.True(t, errors.Is(err, perception.ErrConfiguration))
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Config
		sentinel error
		field    string
	}{
		{"x length mismatch", Config{TargetLabels: carPed(), MaxXPosition: []float64{1}}, perception.ErrConfiguration, "max_x_position"},
		{"points length mismatch", Config{TargetLabels: carPed(), MinPointNumbers: []int{1, 2, 3}}, perception.ErrConfiguration, "min_point_numbers"},
		{"unknown label", Config{TargetLabels: []object.Label{"Spaceship"}}, perception.ErrConfiguration, "target_labels"},
		{"duplicate label", Config{TargetLabels: []object.Label{object.LabelCar, object.LabelCar}}, perception.ErrConfiguration, "target_labels"},
		{"negative bound", Config{TargetLabels: carPed(), MaxYPosition: []float64{10, -1}}, perception.ErrFilter, "max_y_position"},
		{"negative points", Config{TargetLabels: carPed(), MinPointNumbers: []int{0, -5}}, perception.ErrFilter, "min_point_numbers"},
		{"confidence above one", Config{TargetLabels: carPed(), ConfidenceThresholds: []float64{0.5, 1.5}}, perception.ErrFilter, "confidence_threshold"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tc.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.sentinel), err.Error())
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestFilterObjectsPreservesOrder(t *testing.T) {
	t.Parallel()

	f, err := NewUniform(carPed(), 10, 10, -1, nil)
	require.NoError(t, err)

	in := []object.DynamicObject{
		obj(object.LabelPedestrian, 1, 0),
		obj(object.LabelCar, 50, 0),
		obj(object.LabelBus, 1, 0),
		obj(object.LabelCar, 2, 0),
	}
	got := f.FilterObjects(in, RoleGroundTruth)
	want := []object.DynamicObject{in[0], in[3]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FilterObjects mismatch (-want +got):\n%s", diff)
	}

	frame := f.FilterFrame(object.Frame{Index: 2, Estimated: in, GroundTruth: in[:2]})
	assert.Equal(t, 2, frame.Index)
	assert.Len(t, frame.Estimated, 2)
	assert.Len(t, frame.GroundTruth, 1)
}

func TestConfigIsCopied(t *testing.T) {
	t.Parallel()

	cfg := Config{TargetLabels: carPed(), MaxXPosition: []float64{10, 10}}
	f, err := New(cfg)
	require.NoError(t, err)
	cfg.MaxXPosition[0] = 0
	assert.True(t, f.IsEligible(obj(object.LabelCar, 5, 0), RoleGroundTruth))
	assert.Equal(t, []float64{10, 10}, f.Config().MaxXPosition)
}
