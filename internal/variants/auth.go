package variants

import (
	"strings"

	"github.com/pdespl/driftcore/internal/pipeline"
)

// AuthDetectionID is the stable identifier for authentication-failure
// (password spray) drift.
const AuthDetectionID = "pde-spl-0402"

// authFailureOutcomes is the case-folded set of outcome strings that
// count as an authentication failure.
var authFailureOutcomes = map[string]struct{}{
	"failure": {},
	"failed":  {},
	"fail":    {},
}

// AuthEvent builds a pipeline.Event from a raw auth telemetry record:
// entity_key is the src_ip field.
func AuthEvent(timestamp interface{}, srcIP, user, outcome string) pipeline.Event {
	return pipeline.Event{
		Timestamp: timestamp,
		EntityKey: strings.TrimSpace(srcIP),
		Fields: map[string]interface{}{
			"user":    user,
			"outcome": outcome,
		},
	}
}

// AuthQualifier implements the password-spray event qualifier: outcome
// must case-fold-match one of the failure outcomes and user must be
// non-empty. Artifact token is the targeted user, so VarietyCount
// becomes unique_users_targeted.
func AuthQualifier(e pipeline.Event) (string, bool) {
	user := strings.TrimSpace(pipeline.FieldString(e.Fields, "user"))
	outcome := strings.ToLower(strings.TrimSpace(pipeline.FieldString(e.Fields, "outcome")))
	if user == "" || outcome == "" {
		return "", false
	}
	if _, ok := authFailureOutcomes[outcome]; !ok {
		return "", false
	}
	return user, true
}

// AuthSpec is the identity + scoring bundle for pde-spl-0402.
var AuthSpec = pipeline.Spec{
	SignalName:      "Authentication-failure (password spray) drift",
	DetectionID:     AuthDetectionID,
	EntityType:      "src_ip",
	VarietyDenom:    25,
	UsesTrueNovelty: false,
}

// AuthDefaultThresholds is tuned for 15-minute auth buckets.
var AuthDefaultThresholds = pipeline.Thresholds{
	DeviationRatioThreshold: 2.5,
	SustainedBuckets:        3,
	MinVariety:              5, // min_users
	ExpectedBaselineBuckets: 30 * 24 * 4,
	MinBaselineBuckets:      24,
}

// AuthNarrator supplies the explanation wording for auth-drift signals.
var AuthNarrator = pipeline.Narrator{
	EntityNoun:  "source IP",
	VarietyNoun: "targeted accounts",
	NextSteps: []string{
		"List every account this source IP attempted to authenticate as during the observation window.",
		"Check for any successful authentication from the same source IP immediately following the failure burst.",
		"Cross-reference the source IP against known VPN egress, proxy, or cloud IP ranges to rule out shared-NAT noise.",
		"If a successful login followed the spray, treat the affected account as compromised and begin credential rotation.",
	},
}

// EvaluateAuth is the pde-spl-0402 evaluator endpoint.
func EvaluateAuth(baseline, observation []pipeline.BucketFeatures, thresholds pipeline.Thresholds) (pipeline.Result, error) {
	baselineStats := pipeline.AggregateBaseline(baseline)
	return pipeline.Evaluate(observation, nil, baselineStats, nil, thresholds, AuthSpec)
}
