package report

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/perception-eval/internal/fsutil"
	"github.com/banshee-data/perception-eval/internal/perception/manager"
	"github.com/banshee-data/perception-eval/internal/perception/metrics"
	"github.com/banshee-data/perception-eval/internal/security"
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// WritePlots saves one precision-recall PNG per (mode, threshold) and a
// per-frame true-positive-rate PNG into dir, creating it if needed. It
// returns the written paths.
func WritePlots(fsys fsutil.FileSystem, dir string, r *manager.Report) ([]string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var files []string
	if r.Score != nil {
		for _, ms := range r.Score.Modes {
			path := filepath.Join(dir, PRCurveFilename(ms))
			if err := savePRCurve(fsys, path, ms); err != nil {
				return files, fmt.Errorf("%s: %w", ms.Key, err)
			}
			files = append(files, path)
		}
	}
	if len(r.Frames) > 0 {
		path := filepath.Join(dir, "frame_tp_rate.png")
		if err := saveFrameRates(fsys, path, r); err != nil {
			return files, fmt.Errorf("frame rates: %w", err)
		}
		files = append(files, path)
	}
	return files, nil
}

// PRCurveFilename is the file name WritePlots uses for ms.
func PRCurveFilename(ms metrics.ModeScore) string {
	return security.SanitizeFilename(fmt.Sprintf("pr_%s_%s", ms.Key.Mode, ms.Key.Threshold)) + ".png"
}

func savePRCurve(fsys fsutil.FileSystem, path string, ms metrics.ModeScore) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s @ %s (mAP %s)", ms.Key.Mode, ms.Key.Threshold, formatScore(ms.MAP))
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1.05
	p.Add(plotter.NewGrid())

	colors := palette(len(ms.Labels))
	for i, ls := range ms.Labels {
		if !ls.Valid || len(ls.Curve) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(ls.Curve))
		for j, pt := range ls.Curve {
			pts[j] = plotter.XY{X: pt.Recall, Y: pt.Precision}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (AP %s)", ls.Label, formatScore(ls.AP)), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return savePNG(fsys, p, plotWidth, plotHeight, path)
}

func saveFrameRates(fsys fsutil.FileSystem, path string, r *manager.Report) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Frame true-positive rate (%s)", r.Verdict)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "TP rate"
	p.Y.Min, p.Y.Max = 0, 1.05

	var passed, failed plotter.XYs
	for _, f := range r.Frames {
		pt := plotter.XY{X: float64(f.Index), Y: f.TPRate}
		if f.Passed {
			passed = append(passed, pt)
		} else {
			failed = append(failed, pt)
		}
	}
	for _, s := range []struct {
		name  string
		pts   plotter.XYs
		color color.Color
		shape draw.GlyphDrawer
	}{
		{"passed", passed, color.RGBA{R: 53, G: 183, B: 121, A: 255}, draw.CircleGlyph{}},
		{"failed", failed, color.RGBA{R: 214, G: 39, B: 40, A: 255}, draw.CrossGlyph{}},
	} {
		if len(s.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(s.pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = s.color
		sc.GlyphStyle.Shape = s.shape
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
		p.Legend.Add(s.name, sc)
	}
	p.Legend.Top = false
	p.Legend.Left = false

	return savePNG(fsys, p, plotWidth*1.5, plotHeight*0.6, path)
}

func savePNG(fsys fsutil.FileSystem, p *plot.Plot, w, h vg.Length, path string) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("save plot: %w", err)
	}
	return f.Close()
}

func formatScore(v float64) string {
	if f := Finite(v); f != nil {
		return fmt.Sprintf("%.3f", *f)
	}
	return "n/a"
}
