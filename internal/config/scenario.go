package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/filter"
	"github.com/banshee-data/perception-eval/internal/perception/manager"
	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/metrics"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// Scenario is the root of a scenario file.
type Scenario struct {
	Version      string     `yaml:"ScenarioFormatVersion"`
	Name         string     `yaml:"ScenarioName"`
	Description  string     `yaml:"ScenarioDescription,omitempty"`
	SensorModel  string     `yaml:"SensorModel,omitempty"`
	VehicleModel string     `yaml:"VehicleModel,omitempty"`
	Evaluation   Evaluation `yaml:"Evaluation"`
}

// Evaluation holds the evaluation section of a scenario.
type Evaluation struct {
	UseCase        string               `yaml:"UseCaseName"`
	UseCaseVersion string               `yaml:"UseCaseFormatVersion,omitempty"`
	Datasets       []map[string]Dataset `yaml:"Datasets,omitempty"`
	Conditions     Conditions           `yaml:"Conditions"`
	Perception     PerceptionConfig     `yaml:"PerceptionEvaluationConfig"`
}

// Dataset describes one recorded dataset.
type Dataset struct {
	Version       string `yaml:"Version"`
	VehicleID     string `yaml:"VehicleId,omitempty"`
	LaunchSensing bool   `yaml:"LaunchSensing,omitempty"`
	LocalMapPath  string `yaml:"LocalMapPath,omitempty"`

	// GroundTruth and Estimated point at frame files relative to the
	// scenario file.
	GroundTruth string `yaml:"GroundTruth,omitempty"`
	Estimated   string `yaml:"Estimated,omitempty"`
}

// Conditions holds scenario-level acceptance settings.
type Conditions struct {
	// PassRate is a percentage in [0, 100].
	PassRate float64 `yaml:"PassRate"`
}

// PerceptionConfig groups the three filter/metric sections.
type PerceptionConfig struct {
	Params         EvaluationParams `yaml:"evaluation_config_dict"`
	CriticalFilter *FilterParams    `yaml:"critical_object_filter_config,omitempty"`
	FramePassFail  *PassFailParams  `yaml:"frame_pass_fail_config,omitempty"`
}

// FilterParams is the YAML form of a filter config.
type FilterParams struct {
	TargetLabels        []string  `yaml:"target_labels,omitempty"`
	MaxXPosition        FloatList `yaml:"max_x_position,omitempty"`
	MaxYPosition        FloatList `yaml:"max_y_position,omitempty"`
	MinPointNumber      IntList   `yaml:"min_point_number,omitempty"`
	TargetUUIDs         []string  `yaml:"target_uuids,omitempty"`
	ConfidenceThreshold FloatList `yaml:"confidence_threshold,omitempty"`
}

// EvaluationParams is evaluation_config_dict.
type EvaluationParams struct {
	EvaluationTask string `yaml:"evaluation_task"`
	FrameID        string `yaml:"frame_id"`

	FilterParams `yaml:",inline"`

	CenterDistanceThreshold ThresholdSets `yaml:"center_distance_threshold,omitempty"`
	PlaneDistanceThreshold  ThresholdSets `yaml:"plane_distance_threshold,omitempty"`
	IoU2DThreshold          ThresholdSets `yaml:"iou_2d_threshold,omitempty"`
	IoU3DThreshold          ThresholdSets `yaml:"iou_3d_threshold,omitempty"`

	Interpolation *string `yaml:"interpolation,omitempty"`
	Strict        *bool   `yaml:"strict,omitempty"`
	Workers       *int    `yaml:"workers,omitempty"`
}

// PassFailParams is frame_pass_fail_config.
type PassFailParams struct {
	FilterParams `yaml:",inline"`

	MatchingMode        string    `yaml:"matching_mode"`
	MatchingThreshold   FloatList `yaml:"matching_threshold"`
	MinTruePositiveRate *float64  `yaml:"min_true_positive_rate,omitempty"`
	MaxFalsePositives   *int      `yaml:"max_false_positives,omitempty"`
}

// LoadScenario reads, parses and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("scenario file must have .yaml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("scenario file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses YAML bytes and validates the result. Unknown keys
// are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Validate performs the structural checks that do not need label
// resolution. Semantic validation happens in ManagerConfig.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return perception.NewConfigError("ScenarioName", "", nil, "is required")
	}
	p := s.Evaluation.Perception.Params
	if len(p.TargetLabels) == 0 {
		return perception.NewConfigError("target_labels", "", nil, "at least one target label is required")
	}
	if len(p.CenterDistanceThreshold)+len(p.PlaneDistanceThreshold)+len(p.IoU2DThreshold)+len(p.IoU3DThreshold) == 0 {
		return perception.NewConfigError("evaluation_config_dict", "", nil, "no matching threshold configured")
	}
	if s.Evaluation.Conditions.PassRate < 0 || s.Evaluation.Conditions.PassRate > 100 {
		return perception.NewConfigError("PassRate", "", s.Evaluation.Conditions.PassRate, "must be a percentage within [0, 100]")
	}
	return nil
}

// GetWorkers returns the configured worker count, 0 meaning one per CPU.
func (p EvaluationParams) GetWorkers() int {
	if p.Workers == nil {
		return 0
	}
	return *p.Workers
}

// GetStrict returns whether zero-ground-truth labels are fatal.
func (p EvaluationParams) GetStrict() bool {
	return p.Strict != nil && *p.Strict
}

// GetInterpolation returns the AP integration method, default continuous.
func (p EvaluationParams) GetInterpolation() string {
	if p.Interpolation == nil {
		return string(metrics.Continuous)
	}
	return *p.Interpolation
}

// FrameID parses the configured coordinate frame, default base_link.
func (s *Scenario) FrameID() (object.FrameID, error) {
	if s.Evaluation.Perception.Params.FrameID == "" {
		return object.FrameBaseLink, nil
	}
	return object.ParseFrameID(s.Evaluation.Perception.Params.FrameID)
}

// DatasetPaths returns the ground-truth and estimated file paths of the
// first dataset entry, resolved against baseDir.
func (s *Scenario) DatasetPaths(baseDir string) (name, groundTruth, estimated string, ok bool) {
	if len(s.Evaluation.Datasets) == 0 {
		return "", "", "", false
	}
	entry := s.Evaluation.Datasets[0]
	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d := entry[k]
		if d.GroundTruth == "" {
			continue
		}
		est := d.Estimated
		if est != "" && !filepath.IsAbs(est) {
			est = filepath.Join(baseDir, est)
		}
		gt := d.GroundTruth
		if !filepath.IsAbs(gt) {
			gt = filepath.Join(baseDir, gt)
		}
		return k, gt, est, true
	}
	return "", "", "", false
}

// ManagerConfig resolves labels and thresholds into a manager
// configuration. The manager performs the remaining validation.
func (s *Scenario) ManagerConfig() (manager.Config, error) {
	p := s.Evaluation.Perception.Params

	task, err := object.ParseEvaluationTask(orDefault(p.EvaluationTask, string(object.TaskDetection)))
	if err != nil {
		return manager.Config{}, perception.NewConfigError("evaluation_task", "", p.EvaluationTask, err.Error())
	}
	labels, err := parseLabels("target_labels", p.TargetLabels)
	if err != nil {
		return manager.Config{}, err
	}
	interp, err := metrics.ParseInterpolation(p.GetInterpolation())
	if err != nil {
		return manager.Config{}, perception.NewConfigError("interpolation", "", p.GetInterpolation(), err.Error())
	}

	thresholds := make(map[matching.Mode][]matching.Threshold)
	for _, m := range []struct {
		mode matching.Mode
		sets ThresholdSets
	}{
		{matching.ModeCenterDistance, p.CenterDistanceThreshold},
		{matching.ModePlaneDistance, p.PlaneDistanceThreshold},
		{matching.ModeIoU2D, p.IoU2DThreshold},
		{matching.ModeIoU3D, p.IoU3DThreshold},
	} {
		if m.sets == nil {
			continue
		}
		list := make([]matching.Threshold, 0, len(m.sets))
		for _, set := range m.sets {
			th, err := matching.Broadcast(labels, set)
			if err != nil {
				return manager.Config{}, withField(err, string(m.mode)+"_threshold")
			}
			list = append(list, th)
		}
		thresholds[m.mode] = list
	}

	critical, err := p.FilterParams.filterConfig(labels)
	if err != nil {
		return manager.Config{}, err
	}
	if cf := s.Evaluation.Perception.CriticalFilter; cf != nil {
		if critical, err = cf.filterConfig(labels); err != nil {
			return manager.Config{}, err
		}
	}

	cfg := manager.Config{
		Metrics: metrics.Config{
			Task:          task,
			TargetLabels:  labels,
			Thresholds:    thresholds,
			Interpolation: interp,
			Strict:        p.GetStrict(),
		},
		CriticalFilter: critical,
		Acceptance:     manager.DefaultAcceptanceRule(),
		PassRate:       s.Evaluation.Conditions.PassRate,
		Workers:        p.GetWorkers(),
	}

	if pf := s.Evaluation.Perception.FramePassFail; pf != nil {
		pfLabels := labels
		if len(pf.TargetLabels) > 0 {
			if pfLabels, err = parseLabels("frame_pass_fail_config.target_labels", pf.TargetLabels); err != nil {
				return manager.Config{}, err
			}
		}
		fc, err := pf.FilterParams.filterConfig(pfLabels)
		if err != nil {
			return manager.Config{}, err
		}
		cfg.PassFailFilter = &fc

		rule, err := pf.rule(pfLabels)
		if err != nil {
			return manager.Config{}, err
		}
		cfg.Acceptance = rule
	}
	return cfg, nil
}

func (f FilterParams) filterConfig(defaultLabels []object.Label) (filter.Config, error) {
	labels := defaultLabels
	if len(f.TargetLabels) > 0 {
		var err error
		if labels, err = parseLabels("target_labels", f.TargetLabels); err != nil {
			return filter.Config{}, err
		}
	}
	n := len(labels)
	cfg := filter.Config{
		TargetLabels:         labels,
		MaxXPosition:         broadcastF(f.MaxXPosition, n),
		MaxYPosition:         broadcastF(f.MaxYPosition, n),
		ConfidenceThresholds: broadcastF(f.ConfidenceThreshold, n),
		TargetUUIDs:          f.TargetUUIDs,
	}
	if f.MinPointNumber != nil {
		pts := []int(f.MinPointNumber)
		if len(pts) == 1 && n > 1 {
			pts = make([]int, n)
			for i := range pts {
				pts[i] = f.MinPointNumber[0]
			}
		}
		cfg.MinPointNumbers = pts
	}
	return cfg, nil
}

func (pf PassFailParams) rule(labels []object.Label) (manager.AcceptanceRule, error) {
	rule := manager.DefaultAcceptanceRule()
	if pf.MatchingMode != "" {
		mode, err := matching.ParseMode(pf.MatchingMode)
		if err != nil {
			return rule, perception.NewConfigError("frame_pass_fail_config.matching_mode", "", pf.MatchingMode, err.Error())
		}
		rule.Mode = mode
	}
	if pf.MatchingThreshold != nil {
		th, err := matching.Broadcast(labels, pf.MatchingThreshold)
		if err != nil {
			return rule, withField(err, "frame_pass_fail_config.matching_threshold")
		}
		rule.Threshold = th
	}
	if pf.MinTruePositiveRate != nil {
		rule.MinTruePositiveRate = *pf.MinTruePositiveRate
	}
	if pf.MaxFalsePositives != nil {
		rule.MaxFalsePositives = *pf.MaxFalsePositives
	}
	return rule, nil
}

func parseLabels(field string, names []string) ([]object.Label, error) {
	labels, err := object.ParseLabels(names)
	if err != nil {
		return nil, perception.NewConfigError(field, "", names, err.Error())
	}
	return labels, nil
}

// broadcastF repeats a single value n times; longer lists are left for the
// filter to length-check.
func broadcastF(v FloatList, n int) []float64 {
	if v == nil {
		return nil
	}
	if len(v) == 1 && n > 1 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v[0]
		}
		return out
	}
	return []float64(v)
}

func withField(err error, field string) error {
	if ce, ok := err.(*perception.ConfigError); ok {
		c := *ce
		c.Field = field
		return &c
	}
	return err
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
