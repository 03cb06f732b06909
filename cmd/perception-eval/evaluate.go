package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/banshee-data/perception-eval/internal/config"
	"github.com/banshee-data/perception-eval/internal/dataset"
	"github.com/banshee-data/perception-eval/internal/db"
	"github.com/banshee-data/perception-eval/internal/fsutil"
	"github.com/banshee-data/perception-eval/internal/monitoring"
	"github.com/banshee-data/perception-eval/internal/perception/manager"
	"github.com/banshee-data/perception-eval/internal/report"
	"github.com/banshee-data/perception-eval/internal/security"
	"github.com/banshee-data/perception-eval/internal/storage/sqlite"
)

type evaluateOptions struct {
	scenario    string
	groundTruth string
	estimated   string
	outDir      string
	dbPath      string
	workers     int
	noProgress  bool
	noColor     bool
	noPlots     bool
	logLevel    string
	logFormat   string
}

func (o *evaluateOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.scenario, "scenario", "", "Scenario YAML file (required)")
	fs.StringVar(&o.groundTruth, "gt", "", "Ground truth frame file (default: from the scenario's datasets)")
	fs.StringVar(&o.estimated, "est", "", "Estimated frame file (default: from the scenario's datasets)")
	fs.StringVar(&o.outDir, "out", "eval_out", "Directory for report files; each run writes to <out>/<run id>")
	fs.StringVar(&o.dbPath, "db", defaultDBPath, "Results database; empty to skip recording")
	fs.IntVar(&o.workers, "workers", -1, "Parallel frame workers (default: from the scenario, else all CPUs)")
	fs.BoolVar(&o.noProgress, "no-progress", false, "Disable the progress bar")
	fs.BoolVar(&o.noColor, "no-color", false, "Disable coloured output")
	fs.BoolVar(&o.noPlots, "no-plots", false, "Skip PNG plots")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level")
	fs.StringVar(&o.logFormat, "log-format", "text", "Log format: text or json")
}

func runEvaluate(args []string, stdout, stderr io.Writer) int {
	var o evaluateOptions
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if o.scenario == "" {
		fmt.Fprintln(stderr, "evaluate: -scenario is required")
		fs.Usage()
		return exitError
	}
	if err := monitoring.Configure(o.logLevel, o.logFormat, stderr); err != nil {
		fmt.Fprintf(stderr, "evaluate: %v\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := evaluate(ctx, o, stdout, stderr)
	if err != nil {
		monitoring.Logger.WithError(err).Error("evaluation failed")
		return exitError
	}
	if !r.Verdict.Passed {
		return exitFail
	}
	return exitPass
}

func evaluate(ctx context.Context, o evaluateOptions, stdout, stderr io.Writer) (*manager.Report, error) {
	scenario, err := config.LoadScenario(o.scenario)
	if err != nil {
		return nil, err
	}
	frameID, err := scenario.FrameID()
	if err != nil {
		return nil, err
	}
	cfg, err := scenario.ManagerConfig()
	if err != nil {
		return nil, err
	}
	if o.workers >= 0 {
		cfg.Workers = o.workers
	}

	gtPath, estPath, err := datasetPaths(scenario, o)
	if err != nil {
		return nil, err
	}
	frames, unmatched, err := dataset.PairFiles(estPath, gtPath, frameID)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := monitoring.WithRun(runID).WithFields(logrus.Fields{
		"scenario": scenario.Name,
		"frames":   len(frames),
	})
	if len(unmatched) > 0 {
		log.WithField("unmatched", len(unmatched)).Warn("estimated frames without ground truth within tolerance were skipped")
	}

	progressOut := stderr
	if o.noProgress {
		progressOut = io.Discard
	}
	bar := progressbar.NewOptions(len(frames),
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionEnableColorCodes(!o.noColor),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]evaluate[reset] "+scenario.Name),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	cfg.FrameCallback = func(manager.FrameOutcome) { _ = bar.Add(1) }

	m, err := manager.New(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("evaluating")
	evalErr := m.EvaluateFrames(ctx, frames)
	_ = bar.Finish()
	fmt.Fprintln(progressOut)
	if evalErr != nil {
		// The outcomes of the processed prefix are kept; report them
		// before failing so partial runs can be inspected.
		log.WithError(evalErr).WithField("processed", m.NumFrames()).Error("evaluation stopped early")
	}

	r, err := m.Report()
	if err != nil {
		return nil, errors.Join(evalErr, err)
	}

	// A stopped run is still reported and recorded, so persistence must
	// outlive the signal context.
	var errs []error
	if err := writeArtifacts(o, runID, scenario.Name, r); err != nil {
		errs = append(errs, err)
	}
	if o.dbPath != "" {
		if err := recordRun(context.WithoutCancel(ctx), o, runID, scenario, r); err != nil {
			errs = append(errs, err)
		} else {
			log.WithField("db", o.dbPath).Debug("run recorded")
		}
	}
	if err := report.WriteSummary(stdout, r, !o.noColor && !color.NoColor); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(append([]error{evalErr}, errs...)...); err != nil {
		return nil, err
	}
	log.WithField("passed", r.Verdict.Passed).Info(r.Verdict.String())
	return r, nil
}

// datasetPaths prefers the command-line files, then the scenario's first
// dataset resolved against the scenario's directory.
func datasetPaths(s *config.Scenario, o evaluateOptions) (gt, est string, err error) {
	_, gt, est, _ = s.DatasetPaths(filepath.Dir(o.scenario))
	if o.groundTruth != "" {
		gt = o.groundTruth
	}
	if o.estimated != "" {
		est = o.estimated
	}
	if gt == "" || est == "" {
		return "", "", fmt.Errorf("scenario %q names no ground truth and estimated files; pass -gt and -est", s.Name)
	}
	return gt, est, nil
}

func writeArtifacts(o evaluateOptions, runID, scenario string, r *manager.Report) error {
	if o.outDir == "" {
		return nil
	}
	if err := security.ValidateOutputPath(o.outDir, filepath.Dir(o.scenario)); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	dir := filepath.Join(o.outDir, security.SanitizeFilename(runID))
	files, err := report.WriteArtifacts(fsutil.OSFileSystem{}, dir, r, report.ArtifactOptions{
		RunID:    runID,
		Scenario: scenario,
		Plots:    !o.noPlots,
	})
	if err != nil {
		return err
	}
	monitoring.WithRun(runID).WithFields(logrus.Fields{"dir": dir, "files": len(files)}).Info("report written")
	return nil
}

func recordRun(ctx context.Context, o evaluateOptions, runID string, s *config.Scenario, r *manager.Report) error {
	database, err := db.NewDB(o.dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	cfgJSON, err := json.Marshal(s.Evaluation.Perception)
	if err != nil {
		return fmt.Errorf("failed to encode scenario config: %w", err)
	}
	run := &sqlite.Run{
		RunID:        runID,
		ScenarioName: s.Name,
		ScenarioPath: o.scenario,
		ConfigJSON:   cfgJSON,
	}
	_, err = sqlite.NewRunStore(database.DB).SaveReport(ctx, run, r)
	return err
}
