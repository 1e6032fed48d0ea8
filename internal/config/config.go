// Package config provides configuration loading, validation, and hot-reload
// for driftctl.
//
// Configuration file: /etc/driftcore/config.yaml (default)
// Schema version: 1
//
// Hot-reload:
//   - driftctl listens for SIGHUP.
//   - On SIGHUP: re-read and re-validate config.yaml and log the outcome.
//   - The running process keeps the config it started with; the reloaded
//     values are not applied to it and take effect on the next run.
//   - If the new config is invalid, an error is logged. driftctl does NOT
//     crash on invalid hot-reload config.
//
// Validation:
//   - All required fields must be present.
//   - Numeric ranges enforced (e.g., deviation_ratio_threshold > 0).
//   - File paths must be absolute.
//   - Invalid config on startup: driftctl refuses to start (fatal error).
//   - Invalid config on hot-reload: logged, old config retained.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pdespl/driftcore/internal/pipeline"
)

// Version, GitCommit, BuildTime are injected at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for driftcore.
// All fields have defaults; see Defaults() for values.
type Config struct {
	// SchemaVersion must be "1". Future versions will trigger migration.
	SchemaVersion string `yaml:"schema_version"`

	// NodeID identifies the driftctl instance that produced a given run's
	// signals and ledger entries. Default: hostname.
	NodeID string `yaml:"node_id"`

	// Variants configures the per-detection-family bucket window and
	// thresholds.
	Variants VariantsConfig `yaml:"variants"`

	// Budget configures the evaluation-rate guard.
	Budget BudgetConfig `yaml:"budget"`

	// Storage configures the BoltDB signal ledger.
	Storage StorageConfig `yaml:"storage"`

	// Observability configures metrics and logging.
	Observability ObservabilityConfig `yaml:"observability"`
}

// VariantsConfig bundles the five detection families' per-variant
// settings. Each embeds the window size (bucket_seconds) alongside the
// threshold fields the evaluator needs; VariantSettings.Thresholds()
// converts to the pipeline package's runtime Thresholds value.
type VariantsConfig struct {
	Fanout       VariantSettings `yaml:"fanout"`
	Auth         VariantSettings `yaml:"auth"`
	Persistence  VariantSettings `yaml:"persistence"`
	Staging      VariantSettings `yaml:"staging"`
	AdminTooling VariantSettings `yaml:"admin_tooling"`
}

// VariantSettings is one detection family's tunable window and
// thresholds, as loaded from YAML.
type VariantSettings struct {
	// BucketSeconds is the analytic window W for this variant.
	BucketSeconds int64 `yaml:"bucket_seconds"`

	DeviationRatioThreshold float64 `yaml:"deviation_ratio_threshold"`
	SustainedBuckets        int     `yaml:"sustained_buckets"`
	MinVariety              int     `yaml:"min_variety"`
	ExpectedBaselineBuckets int     `yaml:"expected_baseline_buckets"`
	MinBaselineBuckets      int     `yaml:"min_baseline_buckets"`
}

// Thresholds converts loaded YAML settings into the pipeline package's
// runtime Thresholds value.
func (v VariantSettings) Thresholds() pipeline.Thresholds {
	return pipeline.Thresholds{
		DeviationRatioThreshold: v.DeviationRatioThreshold,
		SustainedBuckets:        v.SustainedBuckets,
		MinVariety:              v.MinVariety,
		ExpectedBaselineBuckets: v.ExpectedBaselineBuckets,
		MinBaselineBuckets:      v.MinBaselineBuckets,
	}
}

// BudgetConfig holds the evaluation-rate guard's token bucket parameters.
type BudgetConfig struct {
	// Capacity is the maximum number of evaluation-call tokens. Default: 100.
	Capacity int `yaml:"capacity"`

	// RefillPeriod is the interval between full refills. Default: 60s.
	RefillPeriod time.Duration `yaml:"refill_period"`
}

// StorageConfig holds BoltDB signal-ledger parameters.
type StorageConfig struct {
	// DBPath is the absolute path to the BoltDB ledger file.
	// Default: /var/lib/driftcore/driftcore.db.
	DBPath string `yaml:"db_path"`

	// RetentionDays is the ledger retention period. Default: 30.
	RetentionDays int `yaml:"retention_days"`
}

// ObservabilityConfig holds metrics and logging parameters.
type ObservabilityConfig struct {
	// MetricsAddr is the Prometheus metrics HTTP bind address.
	// Default: 127.0.0.1:9091.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls the minimum log level (debug, info, warn, error).
	// Default: info.
	LogLevel string `yaml:"log_level"`

	// LogFormat controls the log output format (json, console).
	// Default: json.
	LogFormat string `yaml:"log_format"`
}

// DefaultDBPath mirrors the storage package constant for use in config
// defaults.
const DefaultDBPath = "/var/lib/driftcore/driftcore.db"

// Defaults returns a Config populated with all default values, matching
// the thresholds named in the evaluator API contract.
func Defaults() Config {
	hostname, _ := os.Hostname()
	return Config{
		SchemaVersion: "1",
		NodeID:        hostname,
		Variants: VariantsConfig{
			Fanout: VariantSettings{
				BucketSeconds:           3600,
				DeviationRatioThreshold: 2.5,
				SustainedBuckets:        3,
				MinVariety:              2,
				ExpectedBaselineBuckets: 30 * 24,
				MinBaselineBuckets:      24,
			},
			Auth: VariantSettings{
				BucketSeconds:           900,
				DeviationRatioThreshold: 2.5,
				SustainedBuckets:        3,
				MinVariety:              5,
				ExpectedBaselineBuckets: 30 * 24 * 4,
				MinBaselineBuckets:      24,
			},
			Persistence: VariantSettings{
				BucketSeconds:           3600,
				DeviationRatioThreshold: 2.5,
				SustainedBuckets:        3,
				MinVariety:              2,
				ExpectedBaselineBuckets: 30 * 24,
				MinBaselineBuckets:      24,
			},
			Staging: VariantSettings{
				BucketSeconds:           3600,
				DeviationRatioThreshold: 2.5,
				SustainedBuckets:        3,
				MinVariety:              2,
				ExpectedBaselineBuckets: 30 * 24,
				MinBaselineBuckets:      24,
			},
			AdminTooling: VariantSettings{
				BucketSeconds:           3600,
				DeviationRatioThreshold: 2.5,
				SustainedBuckets:        3,
				MinVariety:              2,
				ExpectedBaselineBuckets: 30 * 24,
				MinBaselineBuckets:      24,
			},
		},
		Budget: BudgetConfig{
			Capacity:     100,
			RefillPeriod: 60 * time.Second,
		},
		Storage: StorageConfig{
			DBPath:        DefaultDBPath,
			RetentionDays: 30,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load reads and validates a config file from the given path.
// Returns the merged config (defaults overridden by file values).
// Returns an error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks all config fields for correctness.
// Returns a descriptive error listing all violations found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.NodeID == "" {
		errs = append(errs, "node_id must not be empty")
	}

	for name, v := range map[string]VariantSettings{
		"fanout":        cfg.Variants.Fanout,
		"auth":          cfg.Variants.Auth,
		"persistence":   cfg.Variants.Persistence,
		"staging":       cfg.Variants.Staging,
		"admin_tooling": cfg.Variants.AdminTooling,
	} {
		errs = append(errs, validateVariant(name, v)...)
	}

	if cfg.Budget.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("budget.capacity must be >= 1, got %d", cfg.Budget.Capacity))
	}
	if cfg.Budget.RefillPeriod < time.Second {
		errs = append(errs, fmt.Sprintf("budget.refill_period must be >= 1s, got %s", cfg.Budget.RefillPeriod))
	}
	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.db_path must not be empty")
	} else if !filepath.IsAbs(cfg.Storage.DBPath) {
		errs = append(errs, fmt.Sprintf("storage.db_path must be absolute, got %q", cfg.Storage.DBPath))
	}
	if cfg.Storage.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("storage.retention_days must be >= 1, got %d", cfg.Storage.RetentionDays))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s",
			joinStrings(errs, "\n  - "))
	}
	return nil
}

func validateVariant(name string, v VariantSettings) []string {
	var errs []string
	if v.BucketSeconds < 1 {
		errs = append(errs, fmt.Sprintf("variants.%s.bucket_seconds must be >= 1, got %d", name, v.BucketSeconds))
	}
	if v.DeviationRatioThreshold <= 0 {
		errs = append(errs, fmt.Sprintf("variants.%s.deviation_ratio_threshold must be > 0, got %f", name, v.DeviationRatioThreshold))
	}
	if v.SustainedBuckets < 1 {
		errs = append(errs, fmt.Sprintf("variants.%s.sustained_buckets must be >= 1, got %d", name, v.SustainedBuckets))
	}
	if v.MinVariety < 0 {
		errs = append(errs, fmt.Sprintf("variants.%s.min_variety must be >= 0, got %d", name, v.MinVariety))
	}
	if v.ExpectedBaselineBuckets < 1 {
		errs = append(errs, fmt.Sprintf("variants.%s.expected_baseline_buckets must be >= 1, got %d", name, v.ExpectedBaselineBuckets))
	}
	if v.MinBaselineBuckets < 0 {
		errs = append(errs, fmt.Sprintf("variants.%s.min_baseline_buckets must be >= 0, got %d", name, v.MinBaselineBuckets))
	}
	return errs
}

// joinStrings joins a slice of strings with a separator.
func joinStrings(ss []string, sep string) string {
	if len(ss) == 0 {
		return ""
	}
	result := ss[0]
	for _, s := range ss[1:] {
		result += sep + s
	}
	return result
}
