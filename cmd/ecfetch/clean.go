package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/layout"
)

// runClean removes leftover intermediate files of a run. The pipeline
// normally cleans up after itself; this covers runs that were aborted
// before any member finished.
func runClean(args []string) int {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)

	date := fs.String("date", "", "Run date, YYYYMMDD (required)")
	cycle := fs.String("cycle", "00", "Run cycle: 00, 06, 12 or 18")
	dir := fs.String("dir", ".", "Base directory holding run artifacts")
	all := fs.Bool("all", false, "Also remove final artifacts (deletes the whole run directory)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: ecfetch clean [options]

Remove the intermediate files of a run: fetched slices, merged series,
combined artifacts, cached indexes and partial files. Final artifacts
are kept unless -all is given.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if *date == "" {
		fmt.Fprintln(os.Stderr, "Error: -date is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	lay := layout.Layout{BaseDir: *dir, Date: *date, Cycle: *cycle}

	if *all {
		if err := os.RemoveAll(lay.RunDir()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
		fmt.Fprintf(os.Stderr, "[ecfetch] Removed %s\n", lay.RunDir())
		return ExitSuccess
	}

	for _, d := range []string{lay.SliceDir(), lay.WorkDir(), lay.IndexDir()} {
		if err := os.RemoveAll(d); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
	}

	// Partial finals from an interrupted crop.
	entries, err := os.ReadDir(lay.RunDir())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "[ecfetch] Nothing to clean for %s %sz\n", *date, *cycle)
			return ExitSuccess
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".part") {
			os.Remove(filepath.Join(lay.RunDir(), e.Name()))
		}
	}

	fmt.Fprintf(os.Stderr, "[ecfetch] Cleaned intermediates for %s %sz\n", *date, *cycle)
	return ExitSuccess
}
