package object

import (
	"fmt"
	"strings"
)

// FrameID names the coordinate frame object positions are expressed in.
type FrameID string

const (
	FrameBaseLink FrameID = "BaseLink"
	FrameMap      FrameID = "Map"

	FrameCamBack             FrameID = "CamBack"
	FrameCamBackLeft         FrameID = "CamBackLeft"
	FrameCamBackRight        FrameID = "CamBackRight"
	FrameCamFront            FrameID = "CamFront"
	FrameCamFrontLeft        FrameID = "CamFrontLeft"
	FrameCamFrontRight       FrameID = "CamFrontRight"
	FrameCamTrafficLightNear FrameID = "CamTrafficLightNear"
	FrameCamTrafficLightFar  FrameID = "CamTrafficLightFar"
)

var frameIDs = []FrameID{
	FrameBaseLink, FrameMap,
	FrameCamBack, FrameCamBackLeft, FrameCamBackRight,
	FrameCamFront, FrameCamFrontLeft, FrameCamFrontRight,
	FrameCamTrafficLightNear, FrameCamTrafficLightFar,
}

// ParseFrameID accepts both the CamelCase name and its snake_case form
// (e.g. "base_link").
func ParseFrameID(s string) (FrameID, error) {
	key := strings.ReplaceAll(strings.ToLower(s), "_", "")
	for _, f := range frameIDs {
		if strings.ToLower(string(f)) == key {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown frame id %q", s)
}

// Is3D reports whether the frame carries 3D boxes.
func (f FrameID) Is3D() bool {
	return f == FrameBaseLink || f == FrameMap
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FrameID) UnmarshalText(b []byte) error {
	parsed, err := ParseFrameID(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// EvaluationTask is the kind of evaluation a run performs. Only
// TaskDetection is evaluable; tracking and prediction belong to the same
// family but have no scoring here.
type EvaluationTask string

const (
	TaskDetection  EvaluationTask = "Detection"
	TaskTracking   EvaluationTask = "Tracking"
	TaskPrediction EvaluationTask = "Prediction"
)

// ParseEvaluationTask accepts "Detection" or "detection" style names.
func ParseEvaluationTask(s string) (EvaluationTask, error) {
	for _, t := range []EvaluationTask{TaskDetection, TaskTracking, TaskPrediction} {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown evaluation task %q", s)
}

// Is3D reports whether the task operates on 3D boxes. All known tasks do.
func (t EvaluationTask) Is3D() bool {
	switch t {
	case TaskDetection, TaskTracking, TaskPrediction:
		return true
	}
	return false
}

// Evaluable reports whether the task has a scoring implementation.
func (t EvaluationTask) Evaluable() bool {
	return t == TaskDetection
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EvaluationTask) UnmarshalText(b []byte) error {
	parsed, err := ParseEvaluationTask(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
