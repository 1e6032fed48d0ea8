package variants

import (
	"testing"

	"github.com/pdespl/driftcore/internal/pipeline"
)

func TestAuthQualifier_CaseFoldedFailureOutcomes(t *testing.T) {
	for _, outcome := range []string{"failure", "FAILURE", "Failed", "fail", "FAIL"} {
		e := AuthEvent(int64(1), "1.2.3.4", "alice", outcome)
		artifact, ok := AuthQualifier(e)
		if !ok || artifact != "alice" {
			t.Errorf("outcome %q: expected qualifying failure, got artifact=%q ok=%v", outcome, artifact, ok)
		}
	}
}

func TestAuthQualifier_RejectsSuccessOutcome(t *testing.T) {
	e := AuthEvent(int64(1), "1.2.3.4", "alice", "success")
	if _, ok := AuthQualifier(e); ok {
		t.Error("expected a success outcome to be rejected")
	}
}

func TestAuthQualifier_RejectsEmptyUser(t *testing.T) {
	e := AuthEvent(int64(1), "1.2.3.4", "", "failure")
	if _, ok := AuthQualifier(e); ok {
		t.Error("expected an empty user to be rejected")
	}
}

func TestAuthQualifier_RejectsEmptyOutcome(t *testing.T) {
	e := AuthEvent(int64(1), "1.2.3.4", "alice", "")
	if _, ok := AuthQualifier(e); ok {
		t.Error("expected an empty outcome to be rejected")
	}
}

func TestEvaluateAuth_SprayAcrossManyAccounts(t *testing.T) {
	var baseline []pipeline.Event
	for i := 0; i < 96; i++ { // 24h of 15-minute buckets
		ts := int64(i) * 900
		baseline = append(baseline, AuthEvent(ts, "1.2.3.4", "alice", "failure"))
	}

	var observation []pipeline.Event
	base := int64(200000)
	users := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	for b := 0; b < 4; b++ {
		ts := base + int64(b)*900
		count := b + 1
		for i := 0; i < count*2; i++ {
			observation = append(observation, AuthEvent(ts, "1.2.3.4", users[i%len(users)], "failure"))
		}
	}

	baselineFeatures, _, err := pipeline.Bucketize(baseline, 900, AuthQualifier)
	if err != nil {
		t.Fatalf("bucketize baseline: %v", err)
	}
	obsFeatures, _, err := pipeline.Bucketize(observation, 900, AuthQualifier)
	if err != nil {
		t.Fatalf("bucketize observation: %v", err)
	}

	thresholds := AuthDefaultThresholds
	thresholds.MinBaselineBuckets = 50

	result, err := EvaluateAuth(baselineFeatures, obsFeatures, thresholds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count == 0 {
		t.Fatal("expected at least one auth-spray signal over an escalating multi-account failure burst")
	}
	for _, sig := range result.Signals {
		if sig.DetectionID != AuthDetectionID {
			t.Errorf("expected detection id %s, got %s", AuthDetectionID, sig.DetectionID)
		}
		if sig.EntityType != "src_ip" {
			t.Errorf("expected entity type src_ip, got %s", sig.EntityType)
		}
	}
}
