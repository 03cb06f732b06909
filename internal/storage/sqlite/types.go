package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"math"

	"github.com/banshee-data/perception-eval/internal/perception/metrics"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("evaluation run not found")

// Run is one persisted scenario evaluation.
type Run struct {
	RunID            string          `json:"run_id"`
	ScenarioName     string          `json:"scenario_name"`
	ScenarioPath     string          `json:"scenario_path,omitempty"`
	Interpolation    string          `json:"interpolation"`
	NumFrames        int             `json:"num_frames"`
	PassedFrames     int             `json:"passed_frames"`
	PassRate         float64         `json:"pass_rate"`
	RequiredPassRate float64         `json:"required_pass_rate"`
	Passed           bool            `json:"passed"`
	ConfigJSON       json.RawMessage `json:"config_json,omitempty"`
	CreatedAt        int64           `json:"created_at"`
}

// ModeScore is the persisted mAP/mAPH of one (mode, threshold). Undefined
// means are nil.
type ModeScore struct {
	RunID     string   `json:"run_id"`
	Mode      string   `json:"mode"`
	Threshold string   `json:"threshold"`
	MAP       *float64 `json:"map"`
	MAPH      *float64 `json:"maph"`
	NumValid  int      `json:"num_valid"`
}

// LabelScore is the persisted AP/APH of one label.
type LabelScore struct {
	RunID          string            `json:"run_id"`
	Mode           string            `json:"mode"`
	Threshold      string            `json:"threshold"`
	Label          string            `json:"label"`
	ThresholdValue float64           `json:"threshold_value"`
	AP             *float64          `json:"ap"`
	APH            *float64          `json:"aph"`
	Valid          bool              `json:"valid"`
	TP             int               `json:"tp"`
	FP             int               `json:"fp"`
	FN             int               `json:"fn"`
	Precision      *float64          `json:"precision"`
	Recall         *float64          `json:"recall"`
	Curve          []metrics.PRPoint `json:"curve,omitempty"`
}

// FrameVerdict is the pass/fail outcome of one frame.
type FrameVerdict struct {
	RunID      string  `json:"run_id"`
	FrameIndex int     `json:"frame_index"`
	Timestamp  int64   `json:"timestamp"`
	Passed     bool    `json:"passed"`
	TPRate     float64 `json:"tp_rate"`
	TP         int     `json:"tp"`
	FP         int     `json:"fp"`
	FN         int     `json:"fn"`
}

// nullFloat stores NaN and infinities as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
