package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

type scanSummary struct {
	Discovered  int
	Resolved    int
	Unresolved  int
	Unsupported int
	Errors      int
}

// runScanCommand is the entry point for the scan subcommand
func runScanCommand(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseConfig("takeout-restore scan", args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if err := cfg.validateRoot(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	fmt.Fprintf(stdout, "Scanning sidecars in: %s\n\n", cfg.Root)

	summary := scanDirectory(cfg.Root, cfg.EditedWord, takeoutLocator{}, cfg.Debug, stdout)
	printScanSummary(stdout, summary)

	if summary.Unresolved > 0 || summary.Unsupported > 0 || summary.Errors > 0 {
		return exitFailures
	}
	return exitOK
}

// scanDirectory pairs every sidecar under root with its media file and
// reports what an export would do with it, without writing anything.
func scanDirectory(root, editedWord string, locator MediaLocator, verbose bool, w io.Writer) scanSummary {
	var s scanSummary

	for item, err := range discover(root, editedWord, locator) {
		if err != nil {
			s.Errors++
			fmt.Fprintf(w, "Error: %v\n", err)
			continue
		}
		s.Discovered++

		switch {
		case !item.Resolved():
			s.Unresolved++
			fmt.Fprintf(w, "Unresolved: %s\n", item.MetadataPath)
		case classify(item.MediaPath) == CodecUnsupported:
			s.Unsupported++
			fmt.Fprintf(w, "Unsupported: %s -> %s\n", item.MetadataPath, item.MediaPath)
		default:
			s.Resolved++
			if verbose {
				fmt.Fprintf(w, "%s: %s -> %s\n", classify(item.MediaPath), item.MetadataPath, item.MediaPath)
			}
		}
	}

	return s
}

func printScanSummary(w io.Writer, s scanSummary) {
	fmt.Fprintf(w, "\nSummary:\n")
	fmt.Fprintf(w, "  Discovered: %d sidecars\n", s.Discovered)
	fmt.Fprintf(w, "  Resolved: %d\n", s.Resolved)
	fmt.Fprintf(w, "  Unresolved: %d\n", s.Unresolved)
	fmt.Fprintf(w, "  Unsupported: %d\n", s.Unsupported)
	if s.Errors > 0 {
		fmt.Fprintf(w, "  Errors: %d\n", s.Errors)
	}
}
