// Package main — cmd/driftctl/main.go
//
// driftctl: a batch driver for the drift-detection pipeline.
//
// Run sequence:
//  1. Load and validate config from /etc/driftcore/config.yaml.
//  2. Initialise structured logger (zap, JSON or console format per config).
//  3. Open the BoltDB signal ledger and prune stale entries.
//  4. Start the Prometheus metrics server (127.0.0.1:9091) in the background.
//  5. Read the baseline and observation NDJSON event files.
//  6. For each selected variant: bucketize both windows, evaluate, render
//     explanations, write a SignalRecord per emitted signal, print JSON to
//     stdout.
//  7. Stop the metrics server and close the ledger.
//
// On config validation failure: exit 1 immediately.
// On ledger open failure: exit 1 immediately (no partial state).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdespl/driftcore/internal/budget"
	"github.com/pdespl/driftcore/internal/config"
	"github.com/pdespl/driftcore/internal/observability"
	"github.com/pdespl/driftcore/internal/pipeline"
	"github.com/pdespl/driftcore/internal/storage"
	"github.com/pdespl/driftcore/internal/variants"
)

// rawEvent is one decoded NDJSON line: every variant's fields live
// together in the same map, since each variant's qualifier only reads
// the keys it cares about and ignores the rest.
type rawEvent map[string]interface{}

// variantRunner bundles everything main needs to drive one detection
// family through the pipeline uniformly, regardless of the family's
// underlying evaluator signature.
type variantRunner struct {
	name          string
	detectionID   string
	entityField   string // "host" or "src_ip"
	windowSeconds int64
	qualifier     pipeline.Qualifier
	narrator      pipeline.Narrator
	evaluate      func(baseline, observation []pipeline.BucketFeatures, baselineSets, observationSets map[pipeline.Key]pipeline.StringSet, thresholds pipeline.Thresholds) (pipeline.Result, error)
}

func buildRunners(cfg *config.Config) []variantRunner {
	return []variantRunner{
		{
			name: "fanout", detectionID: variants.FanoutDetectionID, entityField: "host",
			windowSeconds: cfg.Variants.Fanout.BucketSeconds, qualifier: variants.FanoutQualifier,
			narrator: variants.FanoutNarrator,
			evaluate: func(b, o []pipeline.BucketFeatures, bs, os_ map[pipeline.Key]pipeline.StringSet, th pipeline.Thresholds) (pipeline.Result, error) {
				return variants.EvaluateFanout(b, o, bs, os_, th)
			},
		},
		{
			name: "auth", detectionID: variants.AuthDetectionID, entityField: "src_ip",
			windowSeconds: cfg.Variants.Auth.BucketSeconds, qualifier: variants.AuthQualifier,
			narrator: variants.AuthNarrator,
			evaluate: func(b, o []pipeline.BucketFeatures, _, _ map[pipeline.Key]pipeline.StringSet, th pipeline.Thresholds) (pipeline.Result, error) {
				return variants.EvaluateAuth(b, o, th)
			},
		},
		{
			name: "persistence", detectionID: variants.PersistenceDetectionID, entityField: "host",
			windowSeconds: cfg.Variants.Persistence.BucketSeconds, qualifier: variants.PersistenceQualifier,
			narrator: variants.PersistenceNarrator,
			evaluate: func(b, o []pipeline.BucketFeatures, _, _ map[pipeline.Key]pipeline.StringSet, th pipeline.Thresholds) (pipeline.Result, error) {
				return variants.EvaluatePersistence(b, o, th)
			},
		},
		{
			name: "staging", detectionID: variants.StagingDetectionID, entityField: "host",
			windowSeconds: cfg.Variants.Staging.BucketSeconds, qualifier: variants.StagingQualifier,
			narrator: variants.StagingNarrator,
			evaluate: func(b, o []pipeline.BucketFeatures, _, _ map[pipeline.Key]pipeline.StringSet, th pipeline.Thresholds) (pipeline.Result, error) {
				return variants.EvaluateStaging(b, o, th)
			},
		},
		{
			name: "admin_tooling", detectionID: variants.AdminToolingDetectionID, entityField: "host",
			windowSeconds: cfg.Variants.AdminTooling.BucketSeconds, qualifier: variants.AdminToolingQualifier,
			narrator: variants.AdminToolingNarrator,
			evaluate: func(b, o []pipeline.BucketFeatures, _, _ map[pipeline.Key]pipeline.StringSet, th pipeline.Thresholds) (pipeline.Result, error) {
				return variants.EvaluateAdminTooling(b, o, th)
			},
		},
	}
}

func (v variantRunner) thresholds(cfg *config.Config) pipeline.Thresholds {
	switch v.name {
	case "fanout":
		return cfg.Variants.Fanout.Thresholds()
	case "auth":
		return cfg.Variants.Auth.Thresholds()
	case "persistence":
		return cfg.Variants.Persistence.Thresholds()
	case "staging":
		return cfg.Variants.Staging.Thresholds()
	case "admin_tooling":
		return cfg.Variants.AdminTooling.Thresholds()
	default:
		return pipeline.Thresholds{}
	}
}

// toEvent converts one decoded NDJSON line into a pipeline.Event for
// this runner's variant: entity_key comes from entityField, timestamp
// from "timestamp", and every other key passes through untouched as
// Fields for the qualifier to read.
func (v variantRunner) toEvent(raw rawEvent) pipeline.Event {
	entity, _ := raw[v.entityField].(string)
	return pipeline.Event{
		Timestamp: raw["timestamp"],
		EntityKey: strings.TrimSpace(entity),
		Fields:    raw,
	}
}

func main() {
	configPath := flag.String("config", "/etc/driftcore/config.yaml", "Path to config.yaml")
	baselinePath := flag.String("baseline", "", "Path to baseline-window NDJSON events")
	observationPath := flag.String("observation", "", "Path to observation-window NDJSON events")
	variantFlag := flag.String("variants", "all", "Comma-separated variant names to run, or \"all\"")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("driftctl %s (commit=%s built=%s)\n",
			config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	if *baselinePath == "" || *observationPath == "" {
		fmt.Fprintln(os.Stderr, "FATAL: -baseline and -observation are required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("driftctl starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("built", config.BuildTime),
		zap.String("node_id", cfg.NodeID),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.Open(cfg.Storage.DBPath, cfg.Storage.RetentionDays)
	if err != nil {
		log.Fatal("signal ledger open failed", zap.Error(err),
			zap.String("path", cfg.Storage.DBPath))
	}
	defer db.Close() //nolint:errcheck
	log.Info("signal ledger opened", zap.String("path", cfg.Storage.DBPath))

	pruned, err := db.PruneOldSignals()
	if err != nil {
		log.Warn("signal ledger pruning failed", zap.Error(err))
	} else {
		log.Info("signal ledger pruned", zap.Int("deleted", pruned))
	}

	metrics := observability.NewMetrics()
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))

	budgetBucket := budget.New(cfg.Budget.Capacity, cfg.Budget.RefillPeriod)
	defer budgetBucket.Close()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received — reloading config...")
			if _, err := config.Load(*configPath); err != nil {
				log.Error("config hot-reload failed — retaining old config", zap.Error(err))
				continue
			}
			log.Info("config hot-reload successful (thresholds take effect on next run)")
		}
	}()

	baselineEvents, err := readNDJSON(*baselinePath)
	if err != nil {
		log.Fatal("baseline file read failed", zap.Error(err))
	}
	observationEvents, err := readNDJSON(*observationPath)
	if err != nil {
		log.Fatal("observation file read failed", zap.Error(err))
	}

	selected := selectVariants(*variantFlag, buildRunners(cfg))

	for _, v := range selected {
		if err := runVariant(v, cfg, baselineEvents, observationEvents, db, metrics, budgetBucket, log); err != nil {
			log.Error("variant run failed", zap.String("variant", v.name), zap.Error(err))
		}
	}

	cancel()
	log.Info("driftctl run complete")
}

func selectVariants(flagValue string, all []variantRunner) []variantRunner {
	if flagValue == "all" || flagValue == "" {
		return all
	}
	want := make(map[string]struct{})
	for _, name := range strings.Split(flagValue, ",") {
		want[strings.TrimSpace(name)] = struct{}{}
	}
	var out []variantRunner
	for _, v := range all {
		if _, ok := want[v.name]; ok {
			out = append(out, v)
		}
	}
	return out
}

// runVariant bucketizes both windows for one variant, evaluates, and
// emits each resulting signal to the ledger, metrics, and stdout.
func runVariant(
	v variantRunner,
	cfg *config.Config,
	baselineEvents, observationEvents []rawEvent,
	db *storage.DB,
	metrics *observability.Metrics,
	budgetBucket *budget.Bucket,
	log *zap.Logger,
) error {
	baselinePipelineEvents := toPipelineEvents(v, baselineEvents)
	observationPipelineEvents := toPipelineEvents(v, observationEvents)

	baselineFeatures, baselineSets, err := pipeline.Bucketize(baselinePipelineEvents, v.windowSeconds, v.qualifier)
	if err != nil {
		return fmt.Errorf("bucketize baseline: %w", err)
	}
	observationFeatures, observationSets, err := pipeline.Bucketize(observationPipelineEvents, v.windowSeconds, v.qualifier)
	if err != nil {
		return fmt.Errorf("bucketize observation: %w", err)
	}
	metrics.BucketsExtractedTotal.WithLabelValues(v.detectionID).Add(float64(len(observationFeatures)))

	if !budgetBucket.ConsumeEvaluation() {
		metrics.BudgetRejectedTotal.Inc()
		log.Warn("evaluation budget exhausted — skipping variant", zap.String("variant", v.name))
		return nil
	}
	metrics.BudgetTokensRemaining.Set(float64(budgetBucket.Remaining()))

	start := time.Now()
	result, err := v.evaluate(baselineFeatures, observationFeatures, baselineSets, observationSets, v.thresholds(cfg))
	metrics.EvaluationLatency.WithLabelValues(v.detectionID).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, sig := range result.Signals {
		metrics.SignalsEmittedTotal.WithLabelValues(v.detectionID, string(sig.TimeHorizon)).Inc()
		metrics.RiskScoreHistogram.WithLabelValues(v.detectionID).Observe(float64(sig.RiskScore))

		explanation := pipeline.Explain(sig, v.narrator)

		record := storage.SignalRecord{
			RecordedAt:      time.Now().UTC(),
			NodeID:          cfg.NodeID,
			BudgetRemaining: budgetBucket.Remaining(),
			Signal:          sig,
		}
		if err := db.AppendSignal(record); err != nil {
			log.Error("signal ledger write failed", zap.Error(err))
		}

		if err := enc.Encode(map[string]interface{}{
			"signal":      sig,
			"explanation": explanation,
		}); err != nil {
			log.Error("stdout encode failed", zap.Error(err))
		}
	}

	count, err := db.Count()
	if err == nil {
		metrics.StorageLedgerEntries.Set(float64(count))
	}

	log.Info("variant run complete",
		zap.String("variant", v.name),
		zap.Int("signals", result.Count),
	)
	return nil
}

func toPipelineEvents(v variantRunner, raws []rawEvent) []pipeline.Event {
	out := make([]pipeline.Event, 0, len(raws))
	for _, raw := range raws {
		out = append(out, v.toEvent(raw))
	}
	return out
}

// readNDJSON reads one JSON object per line from path.
func readNDJSON(path string) ([]rawEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	var out []rawEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw rawEvent
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("parse line in %q: %w", path, err)
		}
		out = append(out, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %q: %w", path, err)
	}
	return out, nil
}

// buildLogger constructs a zap.Logger with the given level and format.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
