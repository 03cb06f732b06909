package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mitchellh/colorstring"

	"github.com/banshee-data/perception-eval/internal/perception/manager"
)

// WriteSummary prints the verdict followed by one table per (mode,
// threshold) combination. colorize enables ANSI colours.
func WriteSummary(w io.Writer, r *manager.Report, colorize bool) error {
	cs := colorstring.Colorize{Colors: colorstring.DefaultColors, Disable: !colorize, Reset: true}

	status := color.New(color.FgRed, color.Bold)
	if r.Verdict.Passed {
		status = color.New(color.FgGreen, color.Bold)
	}
	if colorize {
		status.EnableColor()
	} else {
		status.DisableColor()
	}

	word := "FAIL"
	if r.Verdict.Passed {
		word = "PASS"
	}
	if _, err := fmt.Fprintf(w, "%s %s\n", status.Sprint(word), cs.Color(fmt.Sprintf(
		"[bold]%d[reset]/%d frames passed ([bold]%.1f%%[reset], %.1f%% required)",
		r.Verdict.PassedFrames, r.Verdict.TotalFrames, r.Verdict.Rate, r.Verdict.RequiredRate))); err != nil {
		return err
	}
	if r.Score == nil {
		return nil
	}

	for _, ms := range r.Score.Modes {
		if _, err := fmt.Fprintf(w, "\n%s  mAP %s  mAPH %s\n",
			cs.Color("[cyan]"+ms.Key.String()), formatScore(ms.MAP), formatScore(ms.MAPH)); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "label\tthreshold\tAP\tAPH\tTP\tFP\tFN\tprecision\trecall")
		for _, ls := range ms.Labels {
			ap := formatScore(ls.AP)
			if !ls.Valid {
				// No ground truth: the label does not count towards mAP.
				ap += "*"
			}
			fmt.Fprintf(tw, "%s\t%g\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
				ls.Label, ls.Threshold, ap, formatScore(ls.APH),
				ls.Counts.TP, ls.Counts.FP, ls.Counts.FN,
				formatScore(ls.Precision), formatScore(ls.Recall))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
