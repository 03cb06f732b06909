// Package metrics turns accumulated frame results into precision-recall
// curves, average precision (AP) and heading-weighted average precision
// (APH) per label, and their label means (mAP, mAPH).
//
// The engine is a barrier stage: it needs every frame result before it
// starts, and it is a pure function of its inputs.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/object"
	"github.com/banshee-data/perception-eval/internal/perception/result"
)

// LabelScore is AP and APH for one (label, strategy, threshold).
type LabelScore struct {
	Label     object.Label
	Mode      matching.Mode
	Threshold float64

	// AP and APH are NaN, and Valid false, when the label has no ground
	// truth.
	AP    float64
	APH   float64
	Valid bool

	Counts    result.Counts
	Precision float64 // TP / (TP + FP), 0 with no detections
	Recall    float64 // TP / (TP + FN), NaN with no ground truth
	Curve     []PRPoint
}

// NumGroundTruth is TP + FN for the label.
func (s LabelScore) NumGroundTruth() int { return s.Counts.NumGroundTruth() }

// ModeScore holds every label's score for one combination plus the label
// means over valid labels.
type ModeScore struct {
	Key       result.Key
	Mode      matching.Mode
	Threshold matching.Threshold
	Labels    []LabelScore // target-label order

	MAP      float64 // NaN when no label is valid
	MAPH     float64
	NumValid int
}

// Label returns the score for l.
func (m ModeScore) Label(l object.Label) (LabelScore, bool) {
	for _, s := range m.Labels {
		if s.Label == l {
			return s, true
		}
	}
	return LabelScore{}, false
}

// Score is the full metrics output of one evaluation run.
type Score struct {
	Interpolation Interpolation
	NumFrames     int
	Modes         []ModeScore
}

// Lookup returns the score of one combination.
func (s *Score) Lookup(key result.Key) (ModeScore, bool) {
	for _, m := range s.Modes {
		if m.Key == key {
			return m, true
		}
	}
	return ModeScore{}, false
}

// Engine computes Scores for a validated Config.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Task == "" {
		cfg.Task = object.TaskDetection
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Compute scores every configured combination. Combinations with no
// accumulated frames score as if every label had zero ground truth. In
// strict mode a target label without ground truth is a MetricsError.
func (e *Engine) Compute(scenes []*result.SceneResult) (*Score, error) {
	byKey := make(map[result.Key]*result.SceneResult, len(scenes))
	numFrames := 0
	for _, s := range scenes {
		byKey[s.Key] = s
		if s.NumFrames() > numFrames {
			numFrames = s.NumFrames()
		}
	}

	out := &Score{Interpolation: e.cfg.interpolation(), NumFrames: numFrames}
	for _, combo := range e.cfg.Combinations() {
		key := result.Key{Mode: combo.Mode, Threshold: combo.Threshold.Key()}
		scene, ok := byKey[key]
		if !ok {
			scene = result.NewSceneResult(combo.Mode, combo.Threshold)
		}
		ms, err := e.scoreScene(combo, scene)
		if err != nil {
			return nil, err
		}
		out.Modes = append(out.Modes, ms)
	}
	return out, nil
}

func (e *Engine) scoreScene(combo Combination, scene *result.SceneResult) (ModeScore, error) {
	ms := ModeScore{
		Key:       scene.Key,
		Mode:      combo.Mode,
		Threshold: combo.Threshold,
	}

	byLabel := make(map[object.Label][]result.PerceptionResult)
	for _, r := range scene.Results() {
		byLabel[r.Label()] = append(byLabel[r.Label()], r)
	}

	var aps, aphs []float64
	for _, label := range e.cfg.TargetLabels {
		th, err := combo.Threshold.For(label)
		if err != nil {
			return ms, err
		}
		ls := e.scoreLabel(label, combo.Mode, th, byLabel[label])
		if !ls.Valid && e.cfg.Strict {
			return ms, perception.NewMetricsError("num_ground_truth", string(label), 0,
				"no ground truth for label under "+combo.Mode.String())
		}
		if ls.Valid {
			aps = append(aps, ls.AP)
			aphs = append(aphs, ls.APH)
		}
		ms.Labels = append(ms.Labels, ls)
	}

	ms.NumValid = len(aps)
	ms.MAP, ms.MAPH = math.NaN(), math.NaN()
	if len(aps) > 0 {
		ms.MAP = stat.Mean(aps, nil)
		ms.MAPH = stat.Mean(aphs, nil)
	}
	return ms, nil
}

func (e *Engine) scoreLabel(label object.Label, mode matching.Mode, threshold float64, results []result.PerceptionResult) LabelScore {
	var counts result.Counts
	for _, r := range results {
		switch r.Kind {
		case result.TruePositive:
			counts.TP++
		case result.FalsePositive:
			counts.FP++
		case result.FalseNegative:
			counts.FN++
		}
	}
	numGT := counts.NumGroundTruth()

	ap, aph, curve := labelScore(results, numGT, e.cfg.interpolation())
	ls := LabelScore{
		Label:     label,
		Mode:      mode,
		Threshold: threshold,
		AP:        ap,
		APH:       aph,
		Valid:     numGT > 0,
		Counts:    counts,
		Curve:     curve,
		Recall:    math.NaN(),
	}
	if n := counts.NumEstimated(); n > 0 {
		ls.Precision = float64(counts.TP) / float64(n)
	}
	if numGT > 0 {
		ls.Recall = float64(counts.TP) / float64(numGT)
	}
	return ls
}

// Compute is a convenience wrapper that validates cfg and scores scenes.
func Compute(cfg Config, scenes []*result.SceneResult) (*Score, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return e.Compute(scenes)
}
