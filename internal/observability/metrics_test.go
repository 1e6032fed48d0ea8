package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_RegistersWithoutPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("NewMetrics panicked: %v", r)
		}
	}()
	m := NewMetrics()
	if m == nil {
		t.Fatal("expected a non-nil Metrics")
	}
}

func TestNewMetrics_CountersAreIndependentAcrossInstances(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.EventsIngestedTotal.WithLabelValues("pde-spl-0401").Inc()

	v1 := testutil.ToFloat64(m1.EventsIngestedTotal.WithLabelValues("pde-spl-0401"))
	v2 := testutil.ToFloat64(m2.EventsIngestedTotal.WithLabelValues("pde-spl-0401"))
	if v1 != 1 {
		t.Errorf("expected m1's counter to be 1, got %v", v1)
	}
	if v2 != 0 {
		t.Errorf("expected a fresh registry's counter to stay at 0, got %v", v2)
	}
}

func TestServeMetrics_ExitsCleanlyOnContextCancel(t *testing.T) {
	m := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- m.ServeMetrics(ctx, "127.0.0.1:0") }()

	// ServeMetrics binds an ephemeral listener via net/http's default
	// behavior (addr "127.0.0.1:0" picks a free port) — cancel shortly
	// after starting to confirm graceful shutdown rather than a hang.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected a clean shutdown, got error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeMetrics did not return after context cancellation")
	}
}
