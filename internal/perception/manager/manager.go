// Package manager orchestrates the evaluation of one scenario: it filters
// each frame, matches it under every configured (strategy, threshold)
// combination, accumulates the results, scores them and renders the
// pass/fail verdict.
//
// Frames are independent, so EvaluateFrames fans them out over a bounded
// worker pool and joins the outcomes back in input order before anything is
// aggregated. Metrics are a barrier stage computed on demand from whatever
// has been accumulated, so a run aborted part way can still be scored.
package manager

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/filter"
	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/metrics"
	"github.com/banshee-data/perception-eval/internal/perception/object"
	"github.com/banshee-data/perception-eval/internal/perception/result"
)

// FrameOutcome is everything computed for one frame.
type FrameOutcome struct {
	Index     int
	Timestamp int64 // unix nanoseconds, 0 when unknown

	// Results holds one entry per metrics combination, in
	// metrics.Config.Combinations order.
	Results []result.PerceptionFrameResult

	// PassFail is the frame matched under the acceptance rule.
	PassFail result.PerceptionFrameResult
	Passed   bool
	TPRate   float64
}

type combination struct {
	strategy  matching.Strategy
	threshold matching.Threshold
}

// Manager evaluates one scenario. It is safe for concurrent use.
type Manager struct {
	cfg      Config
	critical *filter.Filter
	passFail *filter.Filter
	engine   *metrics.Engine
	combos   []combination
	accept   matching.Strategy
	workers  int

	mu       sync.Mutex
	outcomes []FrameOutcome
}

// New validates the whole configuration before any frame is seen. Broken
// configuration never yields a partial evaluation.
func New(cfg Config) (*Manager, error) {
	engine, err := metrics.NewEngine(cfg.Metrics)
	if err != nil {
		return nil, err
	}
	labels := cfg.Metrics.TargetLabels

	critCfg := expandLabels(cfg.CriticalFilter, labels)
	if !sameLabels(critCfg.TargetLabels, labels) {
		return nil, perception.NewConfigError("critical_object_filter_config.target_labels", "", critCfg.TargetLabels,
			"must match the metrics target_labels")
	}
	critical, err := filter.New(critCfg)
	if err != nil {
		return nil, err
	}

	passFail := critical
	if cfg.PassFailFilter != nil {
		passFail, err = filter.New(expandLabels(*cfg.PassFailFilter, labels))
		if err != nil {
			return nil, err
		}
	}

	if cfg.Acceptance.Mode == "" {
		cfg.Acceptance = DefaultAcceptanceRule()
	}
	if err := validateAcceptance(cfg.Acceptance, passFail); err != nil {
		return nil, err
	}
	if math.IsNaN(cfg.PassRate) || cfg.PassRate < 0 || cfg.PassRate > 100 {
		return nil, perception.NewConfigError("PassRate", "", cfg.PassRate, "must be a percentage within [0, 100]")
	}

	m := &Manager{
		cfg:      cfg,
		critical: critical,
		passFail: passFail,
		engine:   engine,
		accept:   matching.MustStrategy(cfg.Acceptance.Mode),
		workers:  cfg.Workers,
	}
	if m.workers <= 0 {
		m.workers = runtime.GOMAXPROCS(0)
	}
	for _, c := range engine.Config().Combinations() {
		m.combos = append(m.combos, combination{strategy: matching.MustStrategy(c.Mode), threshold: c.Threshold})
	}
	return m, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() Config { return m.cfg }

// ProcessFrame filters and matches one frame without recording it. A frame
// with invalid objects is a FrameError.
func (m *Manager) ProcessFrame(frame object.Frame) (FrameOutcome, error) {
	if err := frame.Validate(); err != nil {
		return FrameOutcome{}, err
	}
	out := FrameOutcome{Index: frame.Index, Results: make([]result.PerceptionFrameResult, 0, len(m.combos))}
	if !frame.Timestamp.IsZero() {
		out.Timestamp = frame.Timestamp.UnixNano()
	}

	critical := m.critical.FilterFrame(frame)
	for _, c := range m.combos {
		fr, err := result.MatchFrame(critical, c.strategy, c.threshold)
		if err != nil {
			return FrameOutcome{}, err
		}
		out.Results = append(out.Results, fr)
	}

	pf, err := result.MatchFrame(m.passFail.FilterFrame(frame), m.accept, m.cfg.Acceptance.Threshold)
	if err != nil {
		return FrameOutcome{}, err
	}
	out.PassFail = pf
	out.Passed, out.TPRate = m.cfg.Acceptance.judge(pf.Counts())
	return out, nil
}

func (r AcceptanceRule) judge(c result.Counts) (bool, float64) {
	rate := 1.0
	if n := c.NumGroundTruth(); n > 0 {
		rate = float64(c.TP) / float64(n)
	}
	ok := rate >= r.MinTruePositiveRate
	if r.MaxFalsePositives >= 0 && c.FP > r.MaxFalsePositives {
		ok = false
	}
	return ok, rate
}

// AddFrame processes one frame and appends it to the accumulated results.
func (m *Manager) AddFrame(frame object.Frame) (FrameOutcome, error) {
	out, err := m.ProcessFrame(frame)
	if err != nil {
		return out, err
	}
	m.mu.Lock()
	m.outcomes = append(m.outcomes, out)
	m.mu.Unlock()
	if m.cfg.FrameCallback != nil {
		m.cfg.FrameCallback(out)
	}
	return out, nil
}

// EvaluateFrames processes frames in parallel and appends them in input
// order. On cancellation or a frame error, the longest fully processed
// prefix is still appended and the error is returned, so metrics can be
// computed on the partial run. FrameCallback sees exactly that prefix, in
// order.
func (m *Manager) EvaluateFrames(ctx context.Context, frames []object.Frame) error {
	outcomes := make([]FrameOutcome, len(frames))
	done := make([]bool, len(frames))

	// next is the first frame not yet reported; frames are reported in
	// order as soon as every earlier frame has finished.
	var (
		joinMu sync.Mutex
		next   int
	)
	finish := func(i int, out FrameOutcome) {
		joinMu.Lock()
		defer joinMu.Unlock()
		outcomes[i], done[i] = out, true
		for next < len(frames) && done[next] {
			if m.cfg.FrameCallback != nil {
				m.cfg.FrameCallback(outcomes[next])
			}
			next++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for i := range frames {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := m.ProcessFrame(frames[i])
			if err != nil {
				return fmt.Errorf("frame %d: %w", frames[i].Index, err)
			}
			finish(i, out)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	m.mu.Lock()
	m.outcomes = append(m.outcomes, outcomes[:next]...)
	m.mu.Unlock()
	return err
}

// Outcomes returns the accumulated frames in order.
func (m *Manager) Outcomes() []FrameOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FrameOutcome(nil), m.outcomes...)
}

// NumFrames returns the number of accumulated frames.
func (m *Manager) NumFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outcomes)
}

// Scenes aggregates the accumulated frames per combination.
func (m *Manager) Scenes() []*result.SceneResult {
	outcomes := m.Outcomes()
	scenes := make([]*result.SceneResult, len(m.combos))
	for i, c := range m.combos {
		scenes[i] = result.NewSceneResult(c.strategy.Mode(), c.threshold)
		for _, o := range outcomes {
			scenes[i].Frames = append(scenes[i].Frames, o.Results[i])
		}
	}
	return scenes
}

// MetricsScore scores everything accumulated so far.
func (m *Manager) MetricsScore() (*metrics.Score, error) {
	return m.engine.Compute(m.Scenes())
}

// Verdict renders the scenario pass/fail decision over the accumulated
// frames.
func (m *Manager) Verdict() ScenarioVerdict {
	outcomes := m.Outcomes()
	passed := 0
	for _, o := range outcomes {
		if o.Passed {
			passed++
		}
	}
	return NewVerdict(passed, len(outcomes), m.cfg.PassRate)
}

// Report bundles the metrics, the verdict and the raw frame results.
func (m *Manager) Report() (*Report, error) {
	score, err := m.MetricsScore()
	if err != nil {
		return nil, err
	}
	return &Report{
		Score:   score,
		Verdict: m.Verdict(),
		Frames:  m.Outcomes(),
	}, nil
}
