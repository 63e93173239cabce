package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/pipeline"
)

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	rf := addRunFlags(fs)
	progress := fs.Bool("progress", true, "Show live fetch progress")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: ecfetch fetch [options]

Run the full pipeline for one forecast run: fetch the per-lead-time
indexes, download the matching field slices with byte-range requests,
merge them into per-member time series, apply the geographic crop and
remove the intermediates. Interrupted runs resume from what is already
on disk.

Partial coverage is not an error: unavailable lead times or failed
members only reduce the output. The command fails only when no final
artifact was produced at all.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := rf.resolveConfig()
	if err != nil {
		return configError(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[ecfetch] Received interrupt, shutting down...")
		cancel()
	}()

	summary, err := pipeline.Run(ctx, cfg, pipeline.Options{Progress: *progress})
	if summary != nil {
		summary.Report(os.Stderr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, pipeline.ErrNoArtifacts) {
			fmt.Fprintln(os.Stderr, "[ecfetch] Run again to retry; completed slices are reused")
			return ExitNoArtifacts
		}
		return ExitGeneralError
	}

	return ExitSuccess
}
