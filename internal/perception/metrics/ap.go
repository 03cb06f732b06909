package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/perception-eval/internal/perception/result"
)

// PRPoint is one sample of a precision-recall curve, taken after the
// detection with the given confidence.
type PRPoint struct {
	Confidence float64 `json:"confidence"`
	Precision  float64 `json:"precision"`
	Recall     float64 `json:"recall"`
}

func unitWeight(result.PerceptionResult) float64 { return 1 }

func headingWeight(r result.PerceptionResult) float64 { return r.HeadingWeight() }

// detections returns the TP and FP results sorted by descending confidence.
// The sort is stable so equal confidences keep frame order.
func detections(results []result.PerceptionResult) []result.PerceptionResult {
	out := make([]result.PerceptionResult, 0, len(results))
	for _, r := range results {
		if r.Kind == result.TruePositive || r.Kind == result.FalsePositive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence() > out[j].Confidence()
	})
	return out
}

// Curve builds the precision-recall samples for detections already sorted
// by confidence. precision_i = TP_i / (i+1) and recall_i = TP_i / numGT,
// where TP_i is the cumulative true-positive count, each TP contributing
// weight(r).
func Curve(sorted []result.PerceptionResult, numGroundTruth int, weight func(result.PerceptionResult) float64) []PRPoint {
	if len(sorted) == 0 {
		return nil
	}
	tp := make([]float64, len(sorted))
	for i, r := range sorted {
		if r.Kind == result.TruePositive {
			tp[i] = weight(r)
		}
	}
	floats.CumSum(tp, tp)

	out := make([]PRPoint, len(sorted))
	for i, r := range sorted {
		p := PRPoint{Confidence: r.Confidence(), Precision: tp[i] / float64(i+1)}
		if numGroundTruth > 0 {
			p.Recall = tp[i] / float64(numGroundTruth)
		}
		out[i] = p
	}
	return out
}

// envelope replaces each precision by the maximum precision at the same or
// any higher recall, making it monotonically non-increasing.
func envelope(curve []PRPoint) []float64 {
	env := make([]float64, len(curve))
	running := 0.0
	for i := len(curve) - 1; i >= 0; i-- {
		running = math.Max(running, curve[i].Precision)
		env[i] = running
	}
	return env
}

// AveragePrecision integrates the precision envelope of curve. It returns
// NaN when there is no ground truth.
func AveragePrecision(curve []PRPoint, numGroundTruth int, interp Interpolation) float64 {
	if numGroundTruth <= 0 {
		return math.NaN()
	}
	if len(curve) == 0 {
		return 0
	}
	env := envelope(curve)

	if interp == ElevenPoint {
		samples := make([]float64, 11)
		for k := range samples {
			level := float64(k) / 10
			for i, p := range curve {
				// Small tolerance so recall 0.3 sampled as 0.30000000000000004 counts.
				if p.Recall >= level-1e-12 {
					samples[k] = env[i]
					break
				}
			}
		}
		return floats.Sum(samples) / 11
	}

	ap, prevRecall := 0.0, 0.0
	for i, p := range curve {
		ap += (p.Recall - prevRecall) * env[i]
		prevRecall = p.Recall
	}
	return ap
}

// labelScore computes AP and APH for one label's results.
func labelScore(results []result.PerceptionResult, numGroundTruth int, interp Interpolation) (ap, aph float64, curve []PRPoint) {
	sorted := detections(results)
	curve = Curve(sorted, numGroundTruth, unitWeight)
	ap = AveragePrecision(curve, numGroundTruth, interp)
	aph = AveragePrecision(Curve(sorted, numGroundTruth, headingWeight), numGroundTruth, interp)
	return ap, aph, curve
}
