package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/flow.report/internal/config"
	"github.com/banshee-data/flow.report/internal/monitoring"
	"github.com/banshee-data/flow.report/internal/version"
)

var errUnknownCommand = errors.New("unknown command")

func main() {
	flag.Usage = func() { printUsage(os.Stdout) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := config.LoadEnv(); err != nil {
		log.Printf("failed to load .env: %v", err)
	}

	monitoring.SetLogger(monitoring.WithPrefix("[" + flag.Arg(0) + "] "))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, flag.Arg(0), flag.Args()[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUnknownCommand):
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		printUsage(os.Stderr)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "analyze":
		return runAnalyze(ctx, args, out)
	case "mixed":
		return runMixed(ctx, args, out)
	case "trajectories":
		return runTrajectories(args, out)
	case "fundamental":
		return runFundamental(ctx, args, out)
	case "serve":
		return runServe(ctx, args, out)
	case "migrate":
		return runMigrate(args, out)
	case "version":
		fmt.Fprintln(out, version.String())
		return nil
	case "help":
		printUsage(out)
		return nil
	}
	return fmt.Errorf("%w: %s", errUnknownCommand, command)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `flow-report - macroscopic traffic flow from simulator trajectory traces

Usage: flow-report <command> [options]

Commands:
  analyze       Reconstruct trajectories and write Edie contour maps
  mixed         Run analyze for all, regular and stable vehicles
  trajectories  Write the time-space diagram of a trace
  fundamental   Fit a Greenshields model and write fundamental diagrams
  serve         Serve stored runs, charts and artifacts over HTTP
  migrate       Manage the run database schema (up, down, version)
  version       Show version information
  help          Show this help message

Environment:
  FLOW_REPORT_CONFIG     Analysis config (default config/analysis.defaults.json)
  FLOW_REPORT_DB         Run database path
  FLOW_REPORT_ARTIFACTS  Artifact directory (default output)
  FLOW_REPORT_LISTEN     Listen address for serve (default :8080)

  Variables are also read from ./.env when present.

Examples:
  flow-report analyze -fcd fcd.xml -db flow.db
  flow-report mixed -fcd fcd.xml -out output
  flow-report fundamental -detector e1_output.xml
  flow-report serve -db flow.db -artifacts output`)
}
