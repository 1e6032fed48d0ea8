// Package bench — throughput/main.go
//
// Evaluation throughput measurement tool.
//
// Measures the wall-clock time of one full fan-out Bucketize+Evaluate
// cycle over a synthetic event batch, repeated many times.
//
// Method:
//  1. Generates a synthetic batch of fan-out telemetry events across a
//     configurable number of hosts and buckets.
//  2. Runs Bucketize, baseline aggregation, and Evaluate once per
//     iteration, timing the full cycle with time.Now/time.Since.
//  3. Results are written to a CSV file.
//
// Output CSV columns:
//
//	iteration, events, latency_us
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pdespl/driftcore/internal/pipeline"
	"github.com/pdespl/driftcore/internal/variants"
)

func main() {
	iterations := flag.Int("iterations", 1000, "Number of evaluation cycles to measure")
	hosts := flag.Int("hosts", 50, "Number of distinct hosts in the synthetic batch")
	bucketsPerHost := flag.Int("buckets", 24, "Number of hourly buckets per host")
	outputFile := flag.String("output", "throughput_raw.csv", "Output CSV file path")
	flag.Parse()

	events := syntheticFanoutEvents(*hosts, *bucketsPerHost)

	f, err := os.Create(*outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	_ = w.Write([]string{"iteration", "events", "latency_us"})

	thresholds := variants.FanoutDefaultThresholds
	thresholds.MinBaselineBuckets = 1

	var p99Bucket [100001]int // histogram buckets: 0-100000µs

	for i := 0; i < *iterations; i++ {
		start := time.Now()

		baselineFeatures, baselineSets, err := pipeline.Bucketize(events, 3600, variants.FanoutQualifier)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bucketize: %v\n", err)
			os.Exit(1)
		}
		if _, err := variants.EvaluateFanout(baselineFeatures, baselineFeatures, baselineSets, baselineSets, thresholds); err != nil {
			fmt.Fprintf(os.Stderr, "evaluate: %v\n", err)
			os.Exit(1)
		}

		latency := time.Since(start)
		latencyUs := int(latency.Microseconds())
		if latencyUs < len(p99Bucket) {
			p99Bucket[latencyUs]++
		}

		_ = w.Write([]string{
			strconv.Itoa(i),
			strconv.Itoa(len(events)),
			strconv.Itoa(latencyUs),
		})
	}

	p50, p95, p99 := computePercentiles(p99Bucket[:], *iterations)
	eventsPerSec := 0.0
	if p50 > 0 {
		eventsPerSec = float64(len(events)) / (float64(p50) / 1_000_000.0)
	}

	fmt.Printf("Evaluation Throughput Results (%d iterations, %d events/cycle)\n", *iterations, len(events))
	fmt.Printf("  p50: %dµs (%.0f events/sec)\n", p50, eventsPerSec)
	fmt.Printf("  p95: %dµs\n", p95)
	fmt.Printf("  p99: %dµs\n", p99)
	fmt.Printf("  Output: %s\n", *outputFile)

	// Exit 1 if p99 exceeds 50ms — a cycle this slow cannot keep up with a
	// one-minute ingestion window at this batch size.
	if p99 > 50_000 {
		fmt.Fprintf(os.Stderr, "FAIL: p99 %dµs exceeds 50000µs target\n", p99)
		os.Exit(1)
	}
}

// syntheticFanoutEvents builds a deterministic batch of fan-out events:
// each host gets bucketsPerHost hourly buckets, each bucket with a
// handful of distinct internal destinations.
func syntheticFanoutEvents(hosts, bucketsPerHost int) []pipeline.Event {
	const destsPerBucket = 4
	var out []pipeline.Event
	base := int64(1_700_000_000)
	for h := 0; h < hosts; h++ {
		host := fmt.Sprintf("host-%04d", h)
		for b := 0; b < bucketsPerHost; b++ {
			ts := base + int64(b)*3600
			for d := 0; d < destsPerBucket; d++ {
				dest := fmt.Sprintf("10.0.%d.%d", h%256, d)
				out = append(out, variants.FanoutEvent(ts, host, dest))
			}
		}
	}
	return out
}

func computePercentiles(hist []int, total int) (p50, p95, p99 int) {
	targets := []struct {
		pct float64
		out *int
	}{
		{0.50, &p50},
		{0.95, &p95},
		{0.99, &p99},
	}
	cumulative := 0
	ti := 0
	for i, count := range hist {
		cumulative += count
		for ti < len(targets) && float64(cumulative) >= targets[ti].pct*float64(total) {
			*targets[ti].out = i
			ti++
		}
		if ti == len(targets) {
			break
		}
	}
	return
}
