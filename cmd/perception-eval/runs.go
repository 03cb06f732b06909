package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/mitchellh/colorstring"

	"github.com/banshee-data/perception-eval/internal/api"
	"github.com/banshee-data/perception-eval/internal/db"
)

func runRuns(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", "http://localhost:8080", "Base URL of a perception-eval server")
	scenario := fs.String("scenario", "", "Only runs of this scenario")
	limit := fs.Int("limit", 20, "Maximum number of runs")
	noColor := fs.Bool("no-color", false, "Disable coloured output")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := listRuns(ctx, api.NewClient(*server, nil), *scenario, *limit, !*noColor, stdout); err != nil {
		fmt.Fprintf(stderr, "runs: %v\n", err)
		return exitError
	}
	return exitPass
}

func listRuns(ctx context.Context, c *api.Client, scenario string, limit int, colorize bool, w io.Writer) error {
	runs, err := c.ListRuns(ctx, scenario, limit)
	if err != nil {
		return err
	}
	cs := colorstring.Colorize{Colors: colorstring.DefaultColors, Disable: !colorize, Reset: true}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSCENARIO\tCREATED\tFRAMES\tPASS RATE\tVERDICT")
	for _, r := range runs {
		verdict := cs.Color("[red]FAIL")
		if r.Passed {
			verdict = cs.Color("[green]PASS")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%.1f%%\t%s\n",
			r.RunID, r.ScenarioName, time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339),
			r.PassedFrames, r.NumFrames, r.PassRate, verdict)
	}
	return tw.Flush()
}

func runMigrate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", defaultDBPath, "Results database")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if err := db.RunMigrateCommand(fs.Args(), *dbPath, stdout); err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return exitError
	}
	return exitPass
}
