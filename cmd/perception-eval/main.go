// Command perception-eval scores 3D object detections against ground truth
// and records the results.
//
//	perception-eval evaluate -scenario scenario.yaml
//	perception-eval serve -db results.db -artifacts out
//	perception-eval runs -server http://localhost:8080
//	perception-eval migrate status
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/perception-eval/internal/version"
)

// Exit codes. A failed scenario is not an error.
const (
	exitPass  = 0
	exitFail  = 1
	exitError = 2
)

const defaultDBPath = "perception_eval.db"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return exitError
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "evaluate", "eval":
		return runEvaluate(rest, stdout, stderr)
	case "serve":
		return runServe(rest, stderr)
	case "runs":
		return runRuns(rest, stdout, stderr)
	case "migrate":
		return runMigrate(rest, stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, version.String())
		return exitPass
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return exitPass
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return exitError
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: perception-eval <command> [flags]

Commands:
  evaluate   Score a scenario's dataset and record the run
  serve      Serve recorded runs over HTTP and gRPC
  runs       List runs recorded by a remote server
  migrate    Manage the results database schema
  version    Print build information

Run 'perception-eval <command> -h' for command flags.
`)
}
