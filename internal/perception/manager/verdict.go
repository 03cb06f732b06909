package manager

import (
	"fmt"

	"github.com/banshee-data/perception-eval/internal/perception/metrics"
)

// ScenarioVerdict is the pass/fail decision of a scenario.
type ScenarioVerdict struct {
	Passed bool `json:"passed"`

	// Rate is the percentage of frames that passed; RequiredRate is the
	// configured PassRate.
	Rate         float64 `json:"rate"`
	RequiredRate float64 `json:"required_rate"`

	PassedFrames int `json:"passed_frames"`
	TotalFrames  int `json:"total_frames"`
}

// NewVerdict passes iff 100 * passed / total >= required. A scenario with
// no frames fails.
func NewVerdict(passed, total int, required float64) ScenarioVerdict {
	v := ScenarioVerdict{RequiredRate: required, PassedFrames: passed, TotalFrames: total}
	if total == 0 {
		return v
	}
	v.Rate = 100 * float64(passed) / float64(total)
	v.Passed = v.Rate >= required
	return v
}

func (v ScenarioVerdict) String() string {
	status := "FAIL"
	if v.Passed {
		status = "PASS"
	}
	return fmt.Sprintf("%s %d/%d frames (%.1f%%, %.1f%% required)", status, v.PassedFrames, v.TotalFrames, v.Rate, v.RequiredRate)
}

// Report is the output handed to reporting collaborators.
type Report struct {
	Score   *metrics.Score
	Verdict ScenarioVerdict
	Frames  []FrameOutcome
}
