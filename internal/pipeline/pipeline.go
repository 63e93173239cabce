package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/assemble"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/config"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/fetch"
	enshttp "github.com/ZamanRokon/ECMWF-forecast-downloader/internal/http"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/index"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/layout"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/plan"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/progress"
)

// ErrNoArtifacts is returned when not a single requested unit produced a
// final artifact. Partial coverage is success; only total failure is an
// error.
var ErrNoArtifacts = errors.New("pipeline: no final artifacts were produced")

// Options configures a pipeline run beyond the run configuration itself.
type Options struct {
	// Transformer overrides the array tool. Default: CDO with the
	// configured command.
	Transformer assemble.Transformer

	// Output receives warnings and the run report. Default: os.Stderr.
	Output io.Writer

	// Progress enables the live fetch progress display.
	Progress bool
}

// Summary reports one run. The pipeline succeeds as long as at least one
// unit produced a final artifact.
type Summary struct {
	Date  string
	Cycle string

	LeadsAvailable   int
	LeadsUnavailable int
	Unmatched        []string

	Fetched int
	Skipped int
	Failed  int

	Units  []assemble.UnitResult
	Finals map[int]string

	Published     map[int]string
	PublishErrors map[int]error
}

// Run executes the full pipeline for one run configuration: index fetch,
// selection, range fetch, assembly, cleanup and optional publish.
func Run(ctx context.Context, cfg config.Config, opts Options) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Transformer == nil {
		opts.Transformer = assemble.NewCDO(cfg.Tool)
	}

	lay := layout.Layout{BaseDir: cfg.BaseDir, Date: cfg.Date, Cycle: cfg.Cycle}
	if err := os.MkdirAll(lay.RunDir(), 0755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	client := enshttp.NewClient(clientOptions(cfg))

	summary := &Summary{
		Date:   cfg.Date,
		Cycle:  cfg.Cycle,
		Finals: make(map[int]string),
	}

	// Index stage: unavailable lead times reduce coverage, nothing more.
	set := index.FetchAll(ctx, client, cfg, lay)
	summary.LeadsAvailable = len(set.Entries)
	summary.LeadsUnavailable = len(set.Errors)
	for _, lead := range sortedKeys(set.Errors) {
		fmt.Fprintf(opts.Output, "[ecfetch] warning: lead time %dh unavailable: %v\n", lead, set.Errors[lead])
	}

	// Selection stage.
	p, err := plan.Build(set, cfg, lay)
	if err != nil {
		return nil, err
	}
	summary.Unmatched = p.Unmatched
	for _, v := range p.Unmatched {
		fmt.Fprintf(opts.Output, "[ecfetch] warning: variable %q matched no index entries\n", v)
	}

	// Fetch stage.
	var reporter *progress.Reporter
	if opts.Progress {
		reporter = progress.NewReporter(progress.Options{
			TotalTasks: len(p.Tasks),
			TotalBytes: p.TotalBytes(),
			Output:     opts.Output,
		})
		reporter.Start()
	}

	results := fetch.Run(ctx, client, p.Tasks, cfg.Workers, reporter)

	if reporter != nil {
		reporter.Stop()
	}
	summary.Fetched, summary.Skipped, summary.Failed = fetch.Tally(results)

	// Assembly stage.
	box := assemble.Box(cfg.Crop)
	outcome := assemble.Run(ctx, opts.Transformer, results, box, lay, cfg.Workers)
	summary.Units = outcome.Units
	summary.Finals = outcome.Finals
	for _, u := range outcome.Units {
		if u.Err != nil {
			fmt.Fprintf(opts.Output, "[ecfetch] warning: unit %s/m%s failed: %v\n",
				u.Variable, layout.MemberID(u.Member), u.Err)
		}
	}

	// Cleanup stage: per member, strictly after its final artifact is
	// verified on disk.
	cleanup(lay, results, outcome)

	// Optional publish stage.
	if cfg.PublishBucket != "" && len(outcome.Finals) > 0 {
		summary.Published, summary.PublishErrors = publish(ctx, cfg.PublishBucket, outcome.Finals)
		for _, m := range sortedKeys(summary.PublishErrors) {
			fmt.Fprintf(opts.Output, "[ecfetch] warning: publish member %s: %v\n",
				layout.MemberID(m), summary.PublishErrors[m])
		}
	}

	if len(outcome.Finals) == 0 {
		return summary, ErrNoArtifacts
	}
	return summary, nil
}

// UnitCount returns how many units succeeded and how many were requested
// to have produced something.
func (s *Summary) UnitCount() (succeeded, total int) {
	for _, u := range s.Units {
		if u.Err == nil && u.Final != "" {
			succeeded++
		}
	}
	return succeeded, len(s.Units)
}

// Report writes the per-unit outcome table.
func (s *Summary) Report(w io.Writer) {
	fmt.Fprintf(w, "[ecfetch] Run %s %sz: %d lead times available, %d unavailable\n",
		s.Date, s.Cycle, s.LeadsAvailable, s.LeadsUnavailable)
	fmt.Fprintf(w, "[ecfetch] Slices: %d fetched, %d skipped, %d failed\n",
		s.Fetched, s.Skipped, s.Failed)

	for _, u := range s.Units {
		status := "ok"
		switch {
		case u.Err != nil:
			status = "failed"
		case u.Final == "":
			status = "no artifact"
		}
		fmt.Fprintf(w, "[ecfetch]   %-8s m%s  %3d timesteps  %s\n",
			u.Variable, layout.MemberID(u.Member), u.Timesteps, status)
	}

	succeeded, total := s.UnitCount()
	fmt.Fprintf(w, "[ecfetch] Units: %d/%d produced a final artifact (%d members)\n",
		succeeded, total, len(s.Finals))
}

func clientOptions(cfg config.Config) enshttp.Options {
	opts := enshttp.DefaultOptions()
	if cfg.Retry.Attempts > 0 {
		opts.RetryAttempts = cfg.Retry.Attempts
	}
	if cfg.Retry.Backoff > 0 {
		opts.RetryBackoff = cfg.Retry.Backoff
	}
	if cfg.Retry.MaxBackoff > 0 {
		opts.RetryMaxBackoff = cfg.Retry.MaxBackoff
	}
	return opts
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
