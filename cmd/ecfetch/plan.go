package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	enshttp "github.com/ZamanRokon/ECMWF-forecast-downloader/internal/http"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/index"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/layout"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/plan"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/progress"
)

// runPlan resolves the indexes and prints the resulting fetch plan
// without downloading any field data.
func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	rf := addRunFlags(fs)
	verbose := fs.Bool("v", false, "List every task instead of the summary")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: ecfetch plan [options]

Fetch the per-lead-time indexes and print which field slices a fetch
run would download, with their byte ranges and total transfer size.
Only the small index resources are downloaded.

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
		cancel()
	}()

	lay := layout.Layout{BaseDir: cfg.BaseDir, Date: cfg.Date, Cycle: cfg.Cycle}
	client := enshttp.NewClient(enshttp.DefaultOptions())

	set := index.FetchAll(ctx, client, cfg, lay)
	if len(set.Entries) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no index resource was reachable")
		return ExitGeneralError
	}

	p, err := plan.Build(set, cfg, lay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	fmt.Printf("Run %s %sz: %d lead times available, %d unavailable\n",
		cfg.Date, cfg.Cycle, len(set.Entries), len(set.Errors))
	for _, v := range p.Unmatched {
		fmt.Printf("Warning: variable %q matched no index entries\n", v)
	}

	if *verbose {
		for _, t := range p.Tasks {
			status := "fetch"
			if fi, err := os.Stat(t.Dest); err == nil && fi.Size() == t.Length {
				status = "have"
			}
			fmt.Printf("  %-6s %-8s m%s f%s  %10d bytes  %s\n",
				status, t.Key.Variable, layout.MemberID(t.Key.Member),
				layout.LeadID(t.Key.Lead), t.Length, t.SourceURL)
		}
	}

	have := 0
	for _, t := range p.Tasks {
		if fi, err := os.Stat(t.Dest); err == nil && fi.Size() == t.Length {
			have++
		}
	}

	fmt.Printf("Tasks: %d (%d already on disk), members: %d, total transfer: %s\n",
		len(p.Tasks), have, len(p.Members()), progress.FormatBytes(p.TotalBytes()))
	return ExitSuccess
}
