package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/perception-eval/internal/perception/manager"
	"github.com/banshee-data/perception-eval/internal/timeutil"
)

// RunStore provides persistence for evaluation runs.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a new RunStore on the wall clock.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db, clock: timeutil.RealClock{}}
}

// WithClock replaces the clock used for created_at stamps and busy
// back-off.
func (s *RunStore) WithClock(c timeutil.Clock) *RunStore {
	s.clock = c
	return s
}

// SaveReport persists run together with the scores and frame verdicts of
// report in a single transaction. Verdict fields of run are taken from the
// report. If RunID is empty, a UUID is generated. It returns the run id.
func (s *RunStore) SaveReport(ctx context.Context, run *Run, report *manager.Report) (string, error) {
	if report == nil || report.Score == nil {
		return "", errors.New("save report: nil report")
	}
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	v := report.Verdict
	run.Interpolation = string(report.Score.Interpolation)
	run.NumFrames = v.TotalFrames
	run.PassedFrames = v.PassedFrames
	run.PassRate = v.Rate
	run.RequiredPassRate = v.RequiredRate
	run.Passed = v.Passed

	err := retryOnBusy(s.clock, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		if err := insertScores(ctx, tx, run.RunID, report); err != nil {
			return err
		}
		if err := insertFrames(ctx, tx, run.RunID, report.Frames); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return "", fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return run.RunID, nil
}

func insertRun(ctx context.Context, tx *sql.Tx, run *Run) error {
	var cfg interface{}
	if len(run.ConfigJSON) > 0 {
		cfg = string(run.ConfigJSON)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO evaluation_runs (
			run_id, scenario_name, scenario_path, interpolation, num_frames, passed_frames,
			pass_rate, required_pass_rate, passed, config_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.ScenarioName, run.ScenarioPath, run.Interpolation, run.NumFrames, run.PassedFrames,
		run.PassRate, run.RequiredPassRate, run.Passed, cfg, run.CreatedAt,
	)
	return err
}

func insertScores(ctx context.Context, tx *sql.Tx, runID string, report *manager.Report) error {
	modeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mode_scores (run_id, mode, threshold, map, maph, num_valid)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer modeStmt.Close()

	labelStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO label_scores (
			run_id, mode, threshold, label, threshold_value, ap, aph, valid,
			tp, fp, fn, precision, recall, curve_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer labelStmt.Close()

	for _, ms := range report.Score.Modes {
		mode, th := string(ms.Key.Mode), ms.Key.Threshold
		if _, err := modeStmt.ExecContext(ctx, runID, mode, th, nullFloat(ms.MAP), nullFloat(ms.MAPH), ms.NumValid); err != nil {
			return err
		}
		for _, ls := range ms.Labels {
			curve, err := json.Marshal(ls.Curve)
			if err != nil {
				return fmt.Errorf("encode curve %s/%s: %w", ms.Key, ls.Label, err)
			}
			if _, err := labelStmt.ExecContext(ctx, runID, mode, th, string(ls.Label), ls.Threshold,
				nullFloat(ls.AP), nullFloat(ls.APH), ls.Valid,
				ls.Counts.TP, ls.Counts.FP, ls.Counts.FN,
				nullFloat(ls.Precision), nullFloat(ls.Recall), string(curve)); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertFrames(ctx context.Context, tx *sql.Tx, runID string, frames []manager.FrameOutcome) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frame_verdicts (run_id, frame_index, timestamp, passed, tp_rate, tp, fp, fn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range frames {
		c := f.PassFail.Counts()
		if _, err := stmt.ExecContext(ctx, runID, f.Index, f.Timestamp, f.Passed, f.TPRate, c.TP, c.FP, c.FN); err != nil {
			return err
		}
	}
	return nil
}

const runColumns = `run_id, scenario_name, COALESCE(scenario_path, ''), interpolation, num_frames, passed_frames,
	pass_rate, required_pass_rate, passed, config_json, created_at`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r   Run
		cfg sql.NullString
	)
	if err := row.Scan(&r.RunID, &r.ScenarioName, &r.ScenarioPath, &r.Interpolation, &r.NumFrames, &r.PassedFrames,
		&r.PassRate, &r.RequiredPassRate, &r.Passed, &cfg, &r.CreatedAt); err != nil {
		return nil, err
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	return &r, nil
}

// GetRun returns one run, or ErrNotFound.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM evaluation_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns runs newest first, optionally restricted to one
// scenario. limit <= 0 means no limit.
func (s *RunStore) ListRuns(ctx context.Context, scenario string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM evaluation_runs
		WHERE (? = '' OR scenario_name = ?)
		ORDER BY created_at DESC, run_id
		LIMIT ?`, scenario, scenario, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ModeScores returns the mAP rows of a run in insertion order.
func (s *RunStore) ModeScores(ctx context.Context, runID string) ([]ModeScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, mode, threshold, map, maph, num_valid
		FROM mode_scores WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("mode scores %s: %w", runID, err)
	}
	defer rows.Close()

	var out []ModeScore
	for rows.Next() {
		var (
			m         ModeScore
			mAP, mAPH sql.NullFloat64
		)
		if err := rows.Scan(&m.RunID, &m.Mode, &m.Threshold, &mAP, &mAPH, &m.NumValid); err != nil {
			return nil, err
		}
		m.MAP, m.MAPH = floatPtr(mAP), floatPtr(mAPH)
		out = append(out, m)
	}
	return out, rows.Err()
}

// LabelScores returns the per-label rows of a run. Empty mode or threshold
// matches all.
func (s *RunStore) LabelScores(ctx context.Context, runID, mode, threshold string) ([]LabelScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, mode, threshold, label, threshold_value, ap, aph, valid,
			tp, fp, fn, precision, recall, curve_json
		FROM label_scores
		WHERE run_id = ? AND (? = '' OR mode = ?) AND (? = '' OR threshold = ?)
		ORDER BY rowid`, runID, mode, mode, threshold, threshold)
	if err != nil {
		return nil, fmt.Errorf("label scores %s: %w", runID, err)
	}
	defer rows.Close()

	var out []LabelScore
	for rows.Next() {
		var (
			l                  LabelScore
			ap, aph, prec, rec sql.NullFloat64
			curve              sql.NullString
		)
		if err := rows.Scan(&l.RunID, &l.Mode, &l.Threshold, &l.Label, &l.ThresholdValue, &ap, &aph, &l.Valid,
			&l.TP, &l.FP, &l.FN, &prec, &rec, &curve); err != nil {
			return nil, err
		}
		l.AP, l.APH, l.Precision, l.Recall = floatPtr(ap), floatPtr(aph), floatPtr(prec), floatPtr(rec)
		if curve.Valid && curve.String != "" {
			if err := json.Unmarshal([]byte(curve.String), &l.Curve); err != nil {
				return nil, fmt.Errorf("decode curve %s/%s: %w", l.Mode, l.Label, err)
			}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// FrameVerdicts returns the frame outcomes of a run in frame order,
// optionally only the failed ones.
func (s *RunStore) FrameVerdicts(ctx context.Context, runID string, failedOnly bool) ([]FrameVerdict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, frame_index, timestamp, passed, tp_rate, tp, fp, fn
		FROM frame_verdicts
		WHERE run_id = ? AND (? = 0 OR passed = 0)
		ORDER BY frame_index`, runID, failedOnly)
	if err != nil {
		return nil, fmt.Errorf("frame verdicts %s: %w", runID, err)
	}
	defer rows.Close()

	var out []FrameVerdict
	for rows.Next() {
		var f FrameVerdict
		if err := rows.Scan(&f.RunID, &f.FrameIndex, &f.Timestamp, &f.Passed, &f.TPRate, &f.TP, &f.FP, &f.FN); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, through cascading keys, everything recorded
// for it.
func (s *RunStore) DeleteRun(ctx context.Context, runID string) error {
	var res sql.Result
	err := retryOnBusy(s.clock, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, `DELETE FROM evaluation_runs WHERE run_id = ?`, runID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
