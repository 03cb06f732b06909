package result

import (
	"errors"
	"sort"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// MatchFrame greedily assigns estimates to ground truth. Estimates are
// visited in descending confidence (stable for ties); each takes the best
// still-unmatched ground truth of its own label, and becomes a true positive
// only if that score meets the label's threshold. Ground truth left over is
// emitted as false negatives in input order.
//
// Inputs are expected to be filtered already. A label with no threshold is
// a MatchingError carrying the frame index.
func MatchFrame(frame object.Frame, strategy matching.Strategy, threshold matching.Threshold) (PerceptionFrameResult, error) {
	out := PerceptionFrameResult{
		FrameIndex: frame.Index,
		FrameID:    frame.ID,
		Timestamp:  frame.Timestamp,
		Mode:       strategy.Mode(),
		Threshold:  threshold,
		Results:    make([]PerceptionResult, 0, len(frame.Estimated)+len(frame.GroundTruth)),
	}

	order := make([]int, len(frame.Estimated))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return frame.Estimated[order[a]].Confidence > frame.Estimated[order[b]].Confidence
	})

	polarity := strategy.Polarity()
	matched := make([]bool, len(frame.GroundTruth))

	for _, ei := range order {
		est := frame.Estimated[ei]
		limit, err := threshold.For(est.Label)
		if err != nil {
			return out, atFrame(err, frame.Index)
		}

		best, bestScore := -1, polarity.Worst()
		for gi, gt := range frame.GroundTruth {
			if matched[gi] || gt.Label != est.Label {
				continue
			}
			score := strategy.Score(est, gt)
			// Strictly better keeps the earliest ground truth on ties.
			if polarity.Better(score, bestScore) {
				best, bestScore = gi, score
			}
		}

		if best >= 0 && strategy.IsBetterOrEqual(bestScore, limit) {
			matched[best] = true
			out.Results = append(out.Results, NewTruePositive(est, frame.GroundTruth[best], bestScore))
			continue
		}
		out.Results = append(out.Results, NewFalsePositive(est))
	}

	for gi, gt := range frame.GroundTruth {
		if !matched[gi] {
			out.Results = append(out.Results, NewFalseNegative(gt))
		}
	}
	return out, nil
}

// atFrame stamps a frame index onto a MatchingError.
func atFrame(err error, frameIndex int) error {
	var me *perception.MatchingError
	if errors.As(err, &me) {
		stamped := *me
		stamped.FrameIndex = frameIndex
		return &stamped
	}
	return err
}
