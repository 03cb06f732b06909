// Package report renders an evaluation report for people and tools: a
// JSON document, a coloured text summary, PNG precision-recall plots and
// an interactive HTML page.
package report

import (
	"math"

	"github.com/banshee-data/perception-eval/internal/perception/manager"
	"github.com/banshee-data/perception-eval/internal/perception/metrics"
)

// Document is the JSON form of a manager.Report. Undefined values (NaN)
// are encoded as null.
type Document struct {
	RunID         string                  `json:"run_id,omitempty"`
	Scenario      string                  `json:"scenario,omitempty"`
	Verdict       manager.ScenarioVerdict `json:"verdict"`
	Interpolation string                  `json:"interpolation"`
	NumFrames     int                     `json:"num_frames"`
	Modes         []ModeDocument          `json:"modes"`
	Frames        []FrameDocument         `json:"frames,omitempty"`
}

// ModeDocument is one (mode, threshold) combination.
type ModeDocument struct {
	Mode      string          `json:"mode"`
	Threshold string          `json:"threshold"`
	MAP       *float64        `json:"map"`
	MAPH      *float64        `json:"maph"`
	NumValid  int             `json:"num_valid"`
	Labels    []LabelDocument `json:"labels"`
}

// LabelDocument is one label of a combination.
type LabelDocument struct {
	Label     string            `json:"label"`
	Threshold float64           `json:"threshold"`
	AP        *float64          `json:"ap"`
	APH       *float64          `json:"aph"`
	Valid     bool              `json:"valid"`
	TP        int               `json:"tp"`
	FP        int               `json:"fp"`
	FN        int               `json:"fn"`
	Precision *float64          `json:"precision"`
	Recall    *float64          `json:"recall"`
	Curve     []metrics.PRPoint `json:"curve,omitempty"`
}

// FrameDocument is the pass/fail outcome of one frame.
type FrameDocument struct {
	Index     int     `json:"index"`
	Timestamp int64   `json:"timestamp"`
	Passed    bool    `json:"passed"`
	TPRate    float64 `json:"tp_rate"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
}

// Options controls what NewDocument includes.
type Options struct {
	RunID    string
	Scenario string

	// Curves includes the PR curve points of every label.
	Curves bool
	// Frames includes per-frame outcomes.
	Frames bool
}

// NewDocument converts r.
func NewDocument(r *manager.Report, o Options) Document {
	doc := Document{
		RunID:    o.RunID,
		Scenario: o.Scenario,
		Verdict:  r.Verdict,
	}
	if r.Score != nil {
		doc.Interpolation = string(r.Score.Interpolation)
		doc.NumFrames = r.Score.NumFrames
		for _, ms := range r.Score.Modes {
			md := ModeDocument{
				Mode:      string(ms.Key.Mode),
				Threshold: ms.Key.Threshold,
				MAP:       Finite(ms.MAP),
				MAPH:      Finite(ms.MAPH),
				NumValid:  ms.NumValid,
				Labels:    make([]LabelDocument, 0, len(ms.Labels)),
			}
			for _, ls := range ms.Labels {
				ld := LabelDocument{
					Label:     string(ls.Label),
					Threshold: ls.Threshold,
					AP:        Finite(ls.AP),
					APH:       Finite(ls.APH),
					Valid:     ls.Valid,
					TP:        ls.Counts.TP,
					FP:        ls.Counts.FP,
					FN:        ls.Counts.FN,
					Precision: Finite(ls.Precision),
					Recall:    Finite(ls.Recall),
				}
				if o.Curves {
					ld.Curve = ls.Curve
				}
				md.Labels = append(md.Labels, ld)
			}
			doc.Modes = append(doc.Modes, md)
		}
	}
	if o.Frames {
		for _, f := range r.Frames {
			c := f.PassFail.Counts()
			doc.Frames = append(doc.Frames, FrameDocument{
				Index:     f.Index,
				Timestamp: f.Timestamp,
				Passed:    f.Passed,
				TPRate:    f.TPRate,
				TP:        c.TP,
				FP:        c.FP,
				FN:        c.FN,
			})
		}
	}
	return doc
}

// Finite returns nil for NaN and infinities, else a pointer to v.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
