package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"

	"go.uber.org/zap"
)

const (
	exitOK       = 0
	exitFailures = 1
	exitUsage    = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	// Check for subcommands
	if len(args) > 0 {
		switch args[0] {
		case "scan":
			return runScanCommand(args[1:], stdout, stderr)
		case "inspect":
			return runInspectCommand(args[1:], stdout, stderr)
		}
	}
	return runExportCommand(args, stdout, stderr)
}

func runExportCommand(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseConfig("takeout-restore", args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	if _, err := exec.LookPath(cfg.FFmpeg); err != nil && !cfg.DryRun {
		logger.Warn("encoder not found, videos will fail", zap.String("ffmpeg", cfg.FFmpeg), zap.Error(err))
	}
	if cfg.DryRun {
		fmt.Fprintln(stdout, "DRY RUN MODE: No files will be written")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := newBatch(cfg, takeoutLocator{}, newFFmpegEncoder(cfg, logger), newLogObserver(logger), logger)
	result, err := b.Run(ctx)
	if err != nil {
		logger.Warn("batch interrupted", zap.Error(err))
	}

	printSummary(stdout, result)
	return exitCode(result, err)
}

// exitCode maps a finished batch to the process exit status. An interrupted
// run is a failure even when nothing it reached failed.
func exitCode(result BatchResult, err error) int {
	if err != nil || !result.OK() {
		return exitFailures
	}
	return exitOK
}

func printSummary(w io.Writer, result BatchResult) {
	fmt.Fprintf(w, "\nMetadata merging has been finished\n")
	fmt.Fprintf(w, "  Discovered: %d\n", result.Discovered)
	fmt.Fprintf(w, "  Success: %d\n", result.Succeeded)
	fmt.Fprintf(w, "  Failed: %d\n", result.Failed)
	if result.WalkErrors > 0 {
		fmt.Fprintf(w, "  Unreadable directories: %d\n", result.WalkErrors)
	}
}
