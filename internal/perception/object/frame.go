package object

import "time"

// Frame pairs the estimated and ground-truth objects observed at one
// timestamp. Frames are independent; no object crosses a frame boundary.
type Frame struct {
	Index     int
	ID        FrameID
	Timestamp time.Time

	Estimated   []DynamicObject
	GroundTruth []DynamicObject
}

// Validate checks every object of the frame and returns the first failure.
func (f Frame) Validate() error {
	for _, o := range f.Estimated {
		if err := o.Validate(f.Index); err != nil {
			return err
		}
	}
	for _, o := range f.GroundTruth {
		if err := o.Validate(f.Index); err != nil {
			return err
		}
	}
	return nil
}

// Labels returns the distinct labels present in the frame, ground truth
// first, in order of appearance.
func (f Frame) Labels() []Label {
	seen := make(map[Label]bool)
	var out []Label
	for _, list := range [][]DynamicObject{f.GroundTruth, f.Estimated} {
		for _, o := range list {
			if !seen[o.Label] {
				seen[o.Label] = true
				out = append(out, o.Label)
			}
		}
	}
	return out
}
