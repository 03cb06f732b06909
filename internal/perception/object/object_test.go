package object

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/perception-eval/internal/perception"
)

func testObject() DynamicObject {
	return DynamicObject{
		FrameID:    FrameBaseLink,
		Position:   r3.Vec{X: 1, Y: 1, Z: 0},
		Length:     2,
		Width:      1,
		Height:     1,
		Confidence: 1,
		Label:      LabelCar,
		PointCount: 1000,
		UUID:       "111",
	}
}

func TestParseLabel(t *testing.T) {
	t.Parallel()

	cases := map[string]Label{
		"car":                    LabelCar,
		"Car":                    LabelCar,
		" PEDESTRIAN ":           LabelPedestrian,
		"vehicle.bus.rigid":      LabelBus,
		"human.pedestrian.adult": LabelPedestrian,
		"motorcycle":             LabelMotorbike,
		"Unknown":                LabelUnknown,
	}
	for in, want := range cases {
		got, err := ParseLabel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLabel("spaceship")
	assert.Error(t, err)

	var l Label
	require.NoError(t, l.UnmarshalText([]byte("vehicle.truck")))
	assert.Equal(t, LabelTruck, l)
	assert.True(t, l.Valid())
	assert.False(t, Label("Spaceship").Valid())
}

func TestParseFrameIDAndTask(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"base_link", "BaseLink"} {
		f, err := ParseFrameID(in)
		require.NoError(t, err)
		assert.Equal(t, FrameBaseLink, f)
		assert.True(t, f.Is3D())
	}
	f, err := ParseFrameID("cam_traffic_light_far")
	require.NoError(t, err)
	assert.Equal(t, FrameCamTrafficLightFar, f)
	assert.False(t, f.Is3D())

	task, err := ParseEvaluationTask("detection")
	require.NoError(t, err)
	assert.True(t, task.Evaluable())
	task, err = ParseEvaluationTask("Tracking")
	require.NoError(t, err)
	assert.False(t, task.Evaluable())
	assert.True(t, task.Is3D())
	_, err = ParseEvaluationTask("segmentation")
	assert.Error(t, err)
}

func TestDynamicObjectHelpers(t *testing.T) {
	t.Parallel()

	o := testObject()
	assert.Equal(t, 2.0, o.Area())
	assert.Equal(t, 2.0, o.Volume())
	assert.InDelta(t, math.Sqrt2, o.Distance(), 1e-12)
	assert.InDelta(t, math.Sqrt2, o.DistanceBEV(), 1e-12)
	assert.InDelta(t, 1.0, o.DistanceFrom(r3.Vec{X: 1, Y: 1, Z: 1}), 1e-12)
	assert.InDelta(t, 0.0, o.DistanceBEVFrom(r3.Vec{X: 1, Y: 1, Z: 1}), 1e-12)
	assert.True(t, o.HasPointCount())

	o.SetOrientation([4]float64{math.Cos(math.Pi / 4), 0, 0, math.Sin(math.Pi / 4)})
	assert.InDelta(t, math.Pi/2, o.Yaw, 1e-12)
}

func TestDynamicObjectValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, testObject().Validate(0))

	zero := testObject()
	zero.Length = 0
	assert.NoError(t, zero.Validate(0), "zero extents are legal")

	tests := []struct {
		name   string
		mutate func(*DynamicObject)
		field  string
	}{
		{"nan x", func(o *DynamicObject) { o.Position.X = math.NaN() }, "position.x"},
		{"inf conf", func(o *DynamicObject) { o.Confidence = math.Inf(1) }, "confidence"},
		{"negative width", func(o *DynamicObject) { o.Width = -1 }, "width"},
		{"bad label", func(o *DynamicObject) { o.Label = "Spaceship" }, "label"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			o := testObject()
			tc.mutate(&o)
			err := o.Validate(3)
			require.Error(t, err)
			assert.True(t, errors.Is(err, perception.ErrMalformedFrame))
			var fe *perception.FrameError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, 3, fe.FrameIndex)
			assert.Equal(t, tc.field, fe.Field)
		})
	}
}

func TestFrameValidateAndLabels(t *testing.T) {
	t.Parallel()

	ped := testObject()
	ped.Label = LabelPedestrian
	bad := testObject()
	bad.Height = -2

	f := Frame{Index: 5, GroundTruth: []DynamicObject{testObject()}, Estimated: []DynamicObject{ped, testObject()}}
	require.NoError(t, f.Validate())
	assert.Equal(t, []Label{LabelCar, LabelPedestrian}, f.Labels())

	f.GroundTruth = append(f.GroundTruth, bad)
	err := f.Validate()
	var fe *perception.FrameError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 5, fe.FrameIndex)
}
