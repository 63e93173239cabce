package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/config"
)

// runFlags are the configuration flags shared by fetch and plan.
type runFlags struct {
	configPath *string
	date       *string
	cycle      *string
	vars       *string
	members    *string
	dir        *string
	urlTmpl    *string
	maxLead    *int
	workers    *int
	tool       *string
	publish    *string
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	return &runFlags{
		configPath: fs.String("config", "", "Path to YAML config file"),
		date:       fs.String("date", "", "Run date, YYYYMMDD (required)"),
		cycle:      fs.String("cycle", "", "Run cycle: 00, 06, 12 or 18"),
		vars:       fs.String("vars", "", "Comma-separated GRIB variables, e.g. tp,10u,10v"),
		members:    fs.String("members", "", `Ensemble members: "all" or a single number`),
		dir:        fs.String("dir", "", "Base directory for run artifacts"),
		urlTmpl:    fs.String("url", "", "Blob URL template with {date}, {cycle}, {lead}"),
		maxLead:    fs.Int("max-lead", 0, "Maximum lead time in hours"),
		workers:    fs.Int("workers", 0, "Number of parallel fetch workers"),
		tool:       fs.String("tool", "", "Array-transform command (default cdo)"),
		publish:    fs.String("publish", "", "Bucket URL to publish final artifacts to (s3://, gs://, file://)"),
	}
}

// resolveConfig layers configuration: defaults, then config file, then
// environment, then flags.
func (f *runFlags) resolveConfig() (config.Config, error) {
	cfg := config.Default()

	if *f.configPath != "" {
		loaded, err := config.LoadFromFile(*f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	override := config.Config{
		Date:          *f.date,
		Cycle:         *f.cycle,
		Members:       *f.members,
		BaseDir:       *f.dir,
		URLTemplate:   *f.urlTmpl,
		MaxLead:       *f.maxLead,
		Workers:       *f.workers,
		Tool:          *f.tool,
		PublishBucket: *f.publish,
	}
	if *f.vars != "" {
		override.Variables = splitVars(*f.vars)
	}
	cfg = cfg.Merge(override)

	if cfg.Date == "" {
		return config.Config{}, fmt.Errorf("a run date is required (-date or ECFETCH_DATE)")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func splitVars(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func configError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return ExitConfigError
}
