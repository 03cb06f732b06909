package result

import (
	"fmt"

	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// Key identifies one (strategy, threshold set) combination.
type Key struct {
	Mode      matching.Mode
	Threshold string
}

func (k Key) String() string { return fmt.Sprintf("%s@%s", k.Mode, k.Threshold) }

// KeyOf returns the key of a frame result.
func KeyOf(f PerceptionFrameResult) Key {
	return Key{Mode: f.Mode, Threshold: f.Threshold.Key()}
}

// SceneResult accumulates the frame results of one combination across a
// scenario, in frame order. It never re-scores.
type SceneResult struct {
	Key       Key
	Threshold matching.Threshold
	Frames    []PerceptionFrameResult
}

// NewSceneResult starts an empty accumulator for a combination.
func NewSceneResult(mode matching.Mode, threshold matching.Threshold) *SceneResult {
	return &SceneResult{Key: Key{Mode: mode, Threshold: threshold.Key()}, Threshold: threshold}
}

// Append adds the next frame. Frames from another combination are rejected.
func (s *SceneResult) Append(f PerceptionFrameResult) error {
	if k := KeyOf(f); k != s.Key {
		return fmt.Errorf("frame %d belongs to %s, not %s", f.FrameIndex, k, s.Key)
	}
	s.Frames = append(s.Frames, f)
	return nil
}

// NumFrames returns the number of accumulated frames.
func (s *SceneResult) NumFrames() int { return len(s.Frames) }

// Results flattens all frames, preserving frame order and intra-frame order.
func (s *SceneResult) Results() []PerceptionResult {
	n := 0
	for _, f := range s.Frames {
		n += len(f.Results)
	}
	out := make([]PerceptionResult, 0, n)
	for _, f := range s.Frames {
		out = append(out, f.Results...)
	}
	return out
}

// Counts tallies every frame.
func (s *SceneResult) Counts() Counts {
	var c Counts
	for _, f := range s.Frames {
		c = c.Plus(f.Counts())
	}
	return c
}

// CountsByLabel tallies every frame per label.
func (s *SceneResult) CountsByLabel() map[object.Label]Counts {
	out := make(map[object.Label]Counts)
	for _, f := range s.Frames {
		for l, c := range f.CountsByLabel() {
			out[l] = out[l].Plus(c)
		}
	}
	return out
}

// Aggregate groups frame results by combination. Combinations appear in
// order of first occurrence; frames keep their input order.
func Aggregate(frames []PerceptionFrameResult) []*SceneResult {
	var out []*SceneResult
	index := make(map[Key]*SceneResult)
	for _, f := range frames {
		k := KeyOf(f)
		s, ok := index[k]
		if !ok {
			s = NewSceneResult(f.Mode, f.Threshold)
			index[k] = s
			out = append(out, s)
		}
		s.Frames = append(s.Frames, f)
	}
	return out
}
