package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/perception-eval/internal/perception/manager"
	"github.com/banshee-data/perception-eval/internal/perception/metrics"
)

// DefaultAssetsHost serves the echarts JavaScript.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// missing is how echarts expects an absent data point.
const missing = "-"

// RenderHTML writes a self-contained page with an AP bar chart per
// combination, the PR curves of every valid label, and the per-frame TP
// rate. assetsHost may be empty for DefaultAssetsHost.
func RenderHTML(w io.Writer, r *manager.Report, title, assetsHost string) error {
	if assetsHost == "" {
		assetsHost = DefaultAssetsHost
	}
	page := components.NewPage()
	page.SetAssetsHost(assetsHost)
	page.PageTitle = title

	if r.Score != nil {
		if len(r.Score.Modes) > 0 {
			page.AddCharts(apBar(r.Score, title, assetsHost))
		}
		for _, ms := range r.Score.Modes {
			page.AddCharts(prLine(ms, assetsHost))
		}
	}
	if len(r.Frames) > 0 {
		page.AddCharts(frameLine(r, assetsHost))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

func apBar(score *metrics.Score, title, assetsHost string) *charts.Bar {
	labels := make([]string, 0, len(score.Modes[0].Labels))
	for _, ls := range score.Modes[0].Labels {
		labels = append(labels, string(ls.Label))
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("AP per label, %d frames, %s interpolation", score.NumFrames, score.Interpolation)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "AP"}),
	)
	bar.SetXAxis(labels)
	for _, ms := range score.Modes {
		data := make([]opts.BarData, 0, len(ms.Labels))
		for _, ls := range ms.Labels {
			data = append(data, opts.BarData{Name: string(ls.Label), Value: chartValue(ls.AP)})
		}
		bar.AddSeries(ms.Key.String(), data)
	}
	return bar
}

func prLine(ms metrics.ModeScore, assetsHost string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: ms.Key.String(), Subtitle: "mAP " + formatScore(ms.MAP) + ", mAPH " + formatScore(ms.MAPH)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: 1, Name: "Recall", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: 0, Max: 1, Name: "Precision", NameLocation: "middle", NameGap: 30}),
		charts.WithColorsOpts(opts.Colors(hexPalette(len(ms.Labels)))),
	)
	for _, ls := range ms.Labels {
		if !ls.Valid {
			continue
		}
		data := make([]opts.LineData, 0, len(ls.Curve))
		for _, pt := range ls.Curve {
			data = append(data, opts.LineData{Value: []interface{}{pt.Recall, pt.Precision}})
		}
		line.AddSeries(fmt.Sprintf("%s (AP %s)", ls.Label, formatScore(ls.AP)), data)
	}
	return line
}

func frameLine(r *manager.Report, assetsHost string) *charts.Line {
	x := make([]int, 0, len(r.Frames))
	rates := make([]opts.LineData, 0, len(r.Frames))
	for _, f := range r.Frames {
		x = append(x, f.Index)
		symbol := "circle"
		if !f.Passed {
			symbol = "triangle"
		}
		rates = append(rates, opts.LineData{Value: f.TPRate, Symbol: symbol})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Frame verdicts", Subtitle: r.Verdict.String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "TP rate"}),
	)
	line.SetXAxis(x).AddSeries("tp_rate", rates)
	return line
}

// chartValue maps undefined scores to the echarts missing marker; NaN
// cannot be encoded as JSON.
func chartValue(v float64) interface{} {
	if f := Finite(v); f != nil {
		return *f
	}
	return missing
}
