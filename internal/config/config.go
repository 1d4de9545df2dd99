// Package config loads the memwatch CLI configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/memwatch/internal/logging"
	"github.com/joshuapare/memwatch/watch"
)

// Config is the full CLI configuration.
//
//	registry:
//	  max_tracked: 20000
//	  buckets: 1024
//	  reclaim_reposition: false
//	log:
//	  level: info
//	  format: text
//	report:
//	  format: text
//	  fail_on_leak: false
//	  metrics: false
//	  namespace: memwatch
type Config struct {
	Registry watch.Config `yaml:"registry" json:"registry"`
	Log      Log          `yaml:"log" json:"log"`
	Report   Report       `yaml:"report" json:"report"`
}

// Log selects the diagnostic logger.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Report controls how the final report is rendered.
type Report struct {
	Format     string `yaml:"format" json:"format"` // text or json
	FailOnLeak bool   `yaml:"fail_on_leak" json:"fail_on_leak"`
	Metrics    bool   `yaml:"metrics" json:"metrics"`
	Namespace  string `yaml:"namespace" json:"namespace"`
}

// Report formats.
const (
	ReportText = "text"
	ReportJSON = "json"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Registry: watch.Config{
			MaxTracked: watch.DefaultMaxTracked,
			Buckets:    watch.DefaultBuckets,
		},
		Log: Log{
			Level:  "info",
			Format: logging.FormatText,
		},
		Report: Report{
			Format:    ReportText,
			Namespace: "memwatch",
		},
	}
}

// Load reads and validates the file at path. Keys missing from the file keep
// their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default. Unknown keys are rejected and an
// empty document yields the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.Registry.MaxTracked <= 0 {
		errs = append(errs, fmt.Errorf("registry.max_tracked must be positive, got %d", c.Registry.MaxTracked))
	}
	if c.Registry.Buckets <= 0 {
		errs = append(errs, fmt.Errorf("registry.buckets must be positive, got %d", c.Registry.Buckets))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", logging.FormatText, logging.FormatJSON, logging.FormatLogfmt:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	switch c.Report.Format {
	case "", ReportText, ReportJSON:
	default:
		errs = append(errs, fmt.Errorf("report.format: unknown format %q", c.Report.Format))
	}
	return errors.Join(errs...)
}

// Logging returns logger options for the Log section.
func (l Log) Logging(out io.Writer) (logging.Options, error) {
	lvl, err := logging.ParseLevel(l.Level)
	if err != nil {
		return logging.Options{}, err
	}
	return logging.Options{Format: l.Format, Level: lvl, Output: out}, nil
}
