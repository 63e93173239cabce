package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Cycles is the fixed set of synoptic hours a forecast run may start at.
var Cycles = []string{"00", "06", "12", "18"}

// MemberAll selects every ensemble member present in the index.
const MemberAll = "all"

// Config defines one forecast retrieval run. A single immutable value is
// passed into every pipeline stage; nothing reads run parameters from
// process-wide state.
type Config struct {
	Date        string      `yaml:"date"`      // YYYYMMDD
	Cycle       string      `yaml:"cycle"`     // one of Cycles
	Variables   []string    `yaml:"variables"` // GRIB shortNames, e.g. tp, 10u
	Members     string      `yaml:"members"`   // "all" or a single member number
	URLTemplate string      `yaml:"url_template"`
	MaxLead     int         `yaml:"max_lead_hours"`
	LeadStep    int         `yaml:"lead_step_hours"`
	BaseDir     string      `yaml:"base_dir"`
	Workers     int         `yaml:"workers"`
	Tool        string      `yaml:"tool"` // array-transform command, normally cdo
	Crop        CropConfig  `yaml:"crop"`
	Retry       RetryConfig `yaml:"retry"`

	// PublishBucket is an optional gocloud bucket URL (s3://, gs://,
	// file://). When set, final artifacts are copied there after cleanup.
	PublishBucket string `yaml:"publish_bucket"`
}

// CropConfig is the fixed geographic bounding box applied to every
// combined artifact.
type CropConfig struct {
	West  float64 `yaml:"west"`
	East  float64 `yaml:"east"`
	South float64 `yaml:"south"`
	North float64 `yaml:"north"`
}

// RetryConfig defines HTTP retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults. Date is left empty and
// must be supplied by the caller.
func Default() Config {
	return Config{
		Cycle:       "00",
		Variables:   []string{"tp"},
		Members:     MemberAll,
		URLTemplate: "https://data.ecmwf.int/forecasts/{date}/{cycle}z/ifs/0p25/enfo/{date}{cycle}0000-{lead}h-enfo-ef.grib2",
		MaxLead:     360,
		LeadStep:    6,
		BaseDir:     ".",
		Workers:     runtime.GOMAXPROCS(0),
		Tool:        "cdo",
		Crop: CropConfig{
			West:  87,
			East:  93,
			South: 20,
			North: 27,
		},
		Retry: RetryConfig{
			Attempts:   3,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig mirrors Config for unmarshaling; durations arrive as strings.
type yamlConfig struct {
	Date          string     `yaml:"date"`
	Cycle         string     `yaml:"cycle"`
	Variables     []string   `yaml:"variables"`
	Members       string     `yaml:"members"`
	URLTemplate   string     `yaml:"url_template"`
	MaxLead       int        `yaml:"max_lead_hours"`
	LeadStep      int        `yaml:"lead_step_hours"`
	BaseDir       string     `yaml:"base_dir"`
	Workers       int        `yaml:"workers"`
	Tool          string     `yaml:"tool"`
	Crop          CropConfig `yaml:"crop"`
	Retry         yamlRetry  `yaml:"retry"`
	PublishBucket string     `yaml:"publish_bucket"`
}

type yamlRetry struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file, overlaying defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Date != "" {
		cfg.Date = yc.Date
	}
	if yc.Cycle != "" {
		cfg.Cycle = yc.Cycle
	}
	if len(yc.Variables) > 0 {
		cfg.Variables = yc.Variables
	}
	if yc.Members != "" {
		cfg.Members = yc.Members
	}
	if yc.URLTemplate != "" {
		cfg.URLTemplate = yc.URLTemplate
	}
	if yc.MaxLead != 0 {
		cfg.MaxLead = yc.MaxLead
	}
	if yc.LeadStep != 0 {
		cfg.LeadStep = yc.LeadStep
	}
	if yc.BaseDir != "" {
		cfg.BaseDir = yc.BaseDir
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.Tool != "" {
		cfg.Tool = yc.Tool
	}
	if yc.Crop != (CropConfig{}) {
		cfg.Crop = yc.Crop
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}
	if yc.PublishBucket != "" {
		cfg.PublishBucket = yc.PublishBucket
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ECFETCH_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("ECFETCH_DATE"); v != "" {
		c.Date = v
	}
	if v := os.Getenv("ECFETCH_CYCLE"); v != "" {
		c.Cycle = v
	}
	if v := os.Getenv("ECFETCH_VARIABLES"); v != "" {
		c.Variables = splitList(v)
	}
	if v := os.Getenv("ECFETCH_MEMBERS"); v != "" {
		c.Members = v
	}
	if v := os.Getenv("ECFETCH_URL_TEMPLATE"); v != "" {
		c.URLTemplate = v
	}
	if v := os.Getenv("ECFETCH_MAX_LEAD_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ECFETCH_MAX_LEAD_HOURS: %w", err)
		}
		c.MaxLead = n
	}
	if v := os.Getenv("ECFETCH_LEAD_STEP_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ECFETCH_LEAD_STEP_HOURS: %w", err)
		}
		c.LeadStep = n
	}
	if v := os.Getenv("ECFETCH_BASE_DIR"); v != "" {
		c.BaseDir = v
	}
	if v := os.Getenv("ECFETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ECFETCH_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("ECFETCH_TOOL"); v != "" {
		c.Tool = v
	}
	if v := os.Getenv("ECFETCH_PUBLISH_BUCKET"); v != "" {
		c.PublishBucket = v
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Date) != 8 {
		return errors.New("config: date must be YYYYMMDD")
	}
	if _, err := strconv.Atoi(c.Date); err != nil {
		return errors.New("config: date must be YYYYMMDD")
	}
	validCycle := false
	for _, cyc := range Cycles {
		if c.Cycle == cyc {
			validCycle = true
			break
		}
	}
	if !validCycle {
		return fmt.Errorf("config: cycle must be one of %s", strings.Join(Cycles, ", "))
	}
	if len(c.Variables) == 0 {
		return errors.New("config: at least one variable is required")
	}
	if _, err := c.MemberScope(); err != nil {
		return err
	}
	for _, ph := range []string{"{date}", "{cycle}", "{lead}"} {
		if !strings.Contains(c.URLTemplate, ph) {
			return fmt.Errorf("config: url_template is missing the %s placeholder", ph)
		}
	}
	if c.LeadStep <= 0 {
		return errors.New("config: lead_step_hours must be positive")
	}
	if c.MaxLead < 0 {
		return errors.New("config: max_lead_hours must not be negative")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.Crop.South >= c.Crop.North {
		return errors.New("config: crop south must be below north")
	}
	return nil
}

// MemberScope returns the requested ensemble scope: member < 0 means all
// members, otherwise exactly one member.
func (c *Config) MemberScope() (int, error) {
	if c.Members == "" || c.Members == MemberAll {
		return -1, nil
	}
	n, err := strconv.Atoi(c.Members)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("config: members must be %q or a non-negative number, got %q", MemberAll, c.Members)
	}
	return n, nil
}

// LeadTimes returns the configured lead-time stride: 0, step, ..., MaxLead.
func (c *Config) LeadTimes() []int {
	var leads []int
	for l := 0; l <= c.MaxLead; l += c.LeadStep {
		leads = append(leads, l)
	}
	return leads
}

// BlobURL expands the URL template for one lead time. The lead placeholder
// is expanded without zero padding, matching the upstream naming scheme.
func (c *Config) BlobURL(leadHours int) string {
	r := strings.NewReplacer(
		"{date}", c.Date,
		"{cycle}", c.Cycle,
		"{lead}", strconv.Itoa(leadHours),
	)
	return r.Replace(c.URLTemplate)
}

// IndexURL returns the index resource URL for one lead time: the blob URL
// with its extension replaced by .index.
func (c *Config) IndexURL(leadHours int) string {
	u := c.BlobURL(leadHours)
	if i := strings.LastIndex(u, "."); i > strings.LastIndex(u, "/") {
		u = u[:i]
	}
	return u + ".index"
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Date != "" {
		c.Date = override.Date
	}
	if override.Cycle != "" {
		c.Cycle = override.Cycle
	}
	if len(override.Variables) > 0 {
		c.Variables = override.Variables
	}
	if override.Members != "" {
		c.Members = override.Members
	}
	if override.URLTemplate != "" {
		c.URLTemplate = override.URLTemplate
	}
	if override.MaxLead != 0 {
		c.MaxLead = override.MaxLead
	}
	if override.LeadStep != 0 {
		c.LeadStep = override.LeadStep
	}
	if override.BaseDir != "" {
		c.BaseDir = override.BaseDir
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Tool != "" {
		c.Tool = override.Tool
	}
	if override.Crop != (CropConfig{}) {
		c.Crop = override.Crop
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	if override.PublishBucket != "" {
		c.PublishBucket = override.PublishBucket
	}
	return c
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
