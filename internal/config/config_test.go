package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults_PassesValidation(t *testing.T) {
	cfg := Defaults()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("Defaults() must pass Validate(), got: %v", err)
	}
}

func TestLoad_RoundTripsOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
schema_version: "1"
node_id: test-node
variants:
  fanout:
    bucket_seconds: 3600
    deviation_ratio_threshold: 3.0
    sustained_buckets: 2
    min_variety: 4
    expected_baseline_buckets: 720
    min_baseline_buckets: 24
  auth:
    bucket_seconds: 900
    deviation_ratio_threshold: 2.5
    sustained_buckets: 3
    min_variety: 5
    expected_baseline_buckets: 2880
    min_baseline_buckets: 24
  persistence:
    bucket_seconds: 3600
    deviation_ratio_threshold: 2.5
    sustained_buckets: 3
    min_variety: 2
    expected_baseline_buckets: 720
    min_baseline_buckets: 24
  staging:
    bucket_seconds: 3600
    deviation_ratio_threshold: 2.5
    sustained_buckets: 3
    min_variety: 2
    expected_baseline_buckets: 720
    min_baseline_buckets: 24
  admin_tooling:
    bucket_seconds: 3600
    deviation_ratio_threshold: 2.5
    sustained_buckets: 3
    min_variety: 2
    expected_baseline_buckets: 720
    min_baseline_buckets: 24
budget:
  capacity: 50
  refill_period: 30s
storage:
  db_path: /tmp/test-driftcore.db
  retention_days: 7
observability:
  metrics_addr: 127.0.0.1:9999
  log_level: debug
  log_format: console
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fixture config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeID != "test-node" {
		t.Errorf("expected node_id=test-node, got %q", cfg.NodeID)
	}
	if cfg.Variants.Fanout.DeviationRatioThreshold != 3.0 {
		t.Errorf("expected fanout deviation_ratio_threshold=3.0, got %v", cfg.Variants.Fanout.DeviationRatioThreshold)
	}
	if cfg.Budget.Capacity != 50 {
		t.Errorf("expected budget capacity 50, got %d", cfg.Budget.Capacity)
	}
	if cfg.Storage.RetentionDays != 7 {
		t.Errorf("expected retention_days 7, got %d", cfg.Storage.RetentionDays)
	}

	thresholds := cfg.Variants.Fanout.Thresholds()
	if thresholds.SustainedBuckets != 2 {
		t.Errorf("expected Thresholds() to carry sustained_buckets=2, got %d", thresholds.SustainedBuckets)
	}
}

func TestLoad_MissingFileIsError(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected an error loading a nonexistent config file")
	}
}

func TestValidate_RejectsBadSchemaVersion(t *testing.T) {
	cfg := Defaults()
	cfg.SchemaVersion = "2"
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected an error for an unsupported schema version")
	}
}

func TestValidate_RejectsEmptyNodeID(t *testing.T) {
	cfg := Defaults()
	cfg.NodeID = ""
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected an error for an empty node_id")
	}
}

func TestValidate_RejectsNonPositiveDeviationThreshold(t *testing.T) {
	cfg := Defaults()
	cfg.Variants.Fanout.DeviationRatioThreshold = 0
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected an error for a zero deviation_ratio_threshold")
	}
}

func TestValidate_RejectsZeroBudgetCapacity(t *testing.T) {
	cfg := Defaults()
	cfg.Budget.Capacity = 0
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected an error for a zero budget capacity")
	}
}

func TestValidate_AggregatesMultipleErrors(t *testing.T) {
	cfg := Defaults()
	cfg.SchemaVersion = "bogus"
	cfg.NodeID = ""
	cfg.Storage.DBPath = ""
	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected an aggregated validation error")
	}
}
