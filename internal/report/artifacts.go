package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/perception-eval/internal/fsutil"
	"github.com/banshee-data/perception-eval/internal/perception/manager"
)

// Artifact file names inside a run directory.
const (
	JSONFile = "report.json"
	HTMLFile = "report.html"
)

// ArtifactOptions controls WriteArtifacts.
type ArtifactOptions struct {
	RunID    string
	Scenario string
	// Plots adds the PNG plots of WritePlots.
	Plots bool
	// AssetsHost is passed to RenderHTML.
	AssetsHost string
}

// WriteArtifacts writes the JSON document (with curves and frames), the
// HTML page and optionally the PNG plots of r into dir. It returns the
// written paths.
func WriteArtifacts(fsys fsutil.FileSystem, dir string, r *manager.Report, o ArtifactOptions) ([]string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	doc := NewDocument(r, Options{RunID: o.RunID, Scenario: o.Scenario, Curves: true, Frames: true})
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	jsonPath := filepath.Join(dir, JSONFile)
	if err := fsys.WriteFile(jsonPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	files := []string{jsonPath}

	htmlPath := filepath.Join(dir, HTMLFile)
	f, err := fsys.Create(htmlPath)
	if err != nil {
		return files, fmt.Errorf("failed to create html report: %w", err)
	}
	title := o.Scenario
	if title == "" {
		title = "Perception evaluation"
	}
	if err := RenderHTML(f, r, title, o.AssetsHost); err != nil {
		f.Close()
		return files, err
	}
	if err := f.Close(); err != nil {
		return files, err
	}
	files = append(files, htmlPath)

	if o.Plots {
		plots, err := WritePlots(fsys, dir, r)
		files = append(files, plots...)
		if err != nil {
			return files, fmt.Errorf("failed to write plots: %w", err)
		}
	}
	return files, nil
}
