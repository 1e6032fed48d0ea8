// Package observability — metrics.go
//
// Prometheus metrics for driftctl.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: loopback by default; ServeMetrics binds whatever address it is given.
//
// Metric naming convention: driftcore_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
//
// Cardinality control:
//   - detection_id is bounded to the five known variants.
//   - entity_key is NOT used as a label (unbounded cardinality) — use the
//     signal ledger for per-entity investigation instead.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for driftcore.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Bucketization ────────────────────────────────────────────────────────

	// EventsIngestedTotal counts raw telemetry events handed to Bucketize.
	// Labels: detection_id
	EventsIngestedTotal *prometheus.CounterVec

	// EventsDiscardedTotal counts events dropped before bucketization
	// (unparseable timestamp, empty entity key, qualifier rejection).
	// Labels: detection_id, reason
	EventsDiscardedTotal *prometheus.CounterVec

	// BucketsExtractedTotal counts non-empty BucketFeatures records
	// produced by Bucketize. Labels: detection_id
	BucketsExtractedTotal *prometheus.CounterVec

	// ─── Evaluation ───────────────────────────────────────────────────────────

	// EvaluationLatency records wall-clock time spent in Evaluate per call.
	// Labels: detection_id
	EvaluationLatency *prometheus.HistogramVec

	// SignalsEmittedTotal counts Signals returned by Evaluate.
	// Labels: detection_id, time_horizon
	SignalsEmittedTotal *prometheus.CounterVec

	// RiskScoreHistogram records the distribution of emitted risk scores.
	// Labels: detection_id
	RiskScoreHistogram *prometheus.HistogramVec

	// ─── Evaluation-rate guard ────────────────────────────────────────────────

	// BudgetTokensRemaining is the current token bucket level.
	BudgetTokensRemaining prometheus.Gauge

	// BudgetConsumedTotal counts total tokens consumed by Evaluate calls.
	BudgetConsumedTotal prometheus.Counter

	// BudgetRejectedTotal counts Evaluate calls rejected for insufficient
	// budget.
	BudgetRejectedTotal prometheus.Counter

	// ─── Signal ledger ────────────────────────────────────────────────────────

	// StorageWriteLatency records BoltDB write transaction latency.
	StorageWriteLatency prometheus.Histogram

	// StorageLedgerEntries is the current number of signal ledger entries.
	StorageLedgerEntries prometheus.Gauge

	// ─── Process ──────────────────────────────────────────────────────────────

	// RunUptimeSeconds is the number of seconds since this run started.
	RunUptimeSeconds prometheus.Gauge

	// startTime records when this run started (for uptime calculation).
	startTime time.Time
}

// NewMetrics creates and registers all driftcore Prometheus metrics.
// Returns a *Metrics with all descriptors initialised.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		EventsIngestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftcore",
			Subsystem: "bucketizer",
			Name:      "events_ingested_total",
			Help:      "Total raw telemetry events handed to Bucketize, by detection_id.",
		}, []string{"detection_id"}),

		EventsDiscardedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftcore",
			Subsystem: "bucketizer",
			Name:      "events_discarded_total",
			Help:      "Total events discarded before bucketization, by detection_id and reason.",
		}, []string{"detection_id", "reason"}),

		BucketsExtractedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftcore",
			Subsystem: "bucketizer",
			Name:      "buckets_extracted_total",
			Help:      "Total non-empty bucket feature records extracted, by detection_id.",
		}, []string{"detection_id"}),

		EvaluationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "driftcore",
			Subsystem: "evaluator",
			Name:      "latency_seconds",
			Help:      "Wall-clock latency of Evaluate calls, by detection_id.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"detection_id"}),

		SignalsEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftcore",
			Subsystem: "evaluator",
			Name:      "signals_emitted_total",
			Help:      "Total signals emitted, by detection_id and time_horizon.",
		}, []string{"detection_id", "time_horizon"}),

		RiskScoreHistogram: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "driftcore",
			Subsystem: "evaluator",
			Name:      "risk_score",
			Help:      "Distribution of emitted signal risk scores, by detection_id.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 86, 95, 100},
		}, []string{"detection_id"}),

		BudgetTokensRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "driftcore",
			Subsystem: "budget",
			Name:      "tokens_remaining",
			Help:      "Current evaluation-rate guard token bucket level.",
		}),

		BudgetConsumedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "driftcore",
			Subsystem: "budget",
			Name:      "consumed_total",
			Help:      "Lifetime total tokens consumed by Evaluate calls.",
		}),

		BudgetRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "driftcore",
			Subsystem: "budget",
			Name:      "rejected_total",
			Help:      "Total Evaluate calls rejected for insufficient evaluation budget.",
		}),

		StorageWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "driftcore",
			Subsystem: "storage",
			Name:      "write_latency_seconds",
			Help:      "BoltDB write transaction latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		StorageLedgerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "driftcore",
			Subsystem: "storage",
			Name:      "ledger_entries",
			Help:      "Current number of signal records in the BoltDB audit ledger.",
		}),

		RunUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "driftcore",
			Subsystem: "run",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since this driftctl run started.",
		}),
	}

	reg.MustRegister(
		m.EventsIngestedTotal,
		m.EventsDiscardedTotal,
		m.BucketsExtractedTotal,
		m.EvaluationLatency,
		m.SignalsEmittedTotal,
		m.RiskScoreHistogram,
		m.BudgetTokensRemaining,
		m.BudgetConsumedTotal,
		m.BudgetRejectedTotal,
		m.StorageWriteLatency,
		m.StorageLedgerEntries,
		m.RunUptimeSeconds,
		// Standard Go runtime metrics.
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on the given address.
// Blocks until ctx is cancelled or the server fails.
// The server binds to addr (e.g., "127.0.0.1:9091") and serves GET /metrics.
// Returns an error only if the server fails to start or encounters a fatal error.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

// updateUptime periodically updates the RunUptimeSeconds gauge.
func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.RunUptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
