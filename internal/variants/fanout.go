// Package variants supplies the five configuration bundles the generic
// pipeline package is parameterized over: one qualifier, one Spec, one
// set of default Thresholds, and one Narrator per detection family.
// Nothing here duplicates pipeline's stage logic — every file is just
// data and a small amount of field-extraction glue, per the
// runtime-polymorphic design (one evaluator, five bundles, no
// inheritance hierarchy).
package variants

import (
	"strconv"
	"strings"

	"github.com/pdespl/driftcore/internal/pipeline"
)

// FanoutDetectionID is the stable identifier for network fan-out drift.
const FanoutDetectionID = "pde-spl-0401"

// rfc1918Prefixes are the dotted-decimal prefixes IsInternalIP checks
// before falling back to the 172.16/12 range's numeric second octet
// test.
var rfc1918Prefixes = []string{"10.", "192.168."}

// IsInternalIP reports whether ip falls within RFC1918 private address
// space: 10.0.0.0/8, 172.16.0.0/12, or 192.168.0.0/16.
func IsInternalIP(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false
	}
	for _, p := range rfc1918Prefixes {
		if strings.HasPrefix(ip, p) {
			return true
		}
	}
	if strings.HasPrefix(ip, "172.") {
		parts := strings.Split(ip, ".")
		if len(parts) < 2 {
			return false
		}
		second, err := strconv.Atoi(parts[1])
		if err != nil {
			return false
		}
		return second >= 16 && second <= 31
	}
	return false
}

// FanoutEvent builds a pipeline.Event from a raw fan-out telemetry
// record: entity_key is the host field, and the dest_ip field is
// preserved in Fields for the qualifier.
func FanoutEvent(timestamp interface{}, host, destIP string) pipeline.Event {
	return pipeline.Event{
		Timestamp: timestamp,
		EntityKey: strings.TrimSpace(host),
		Fields:    map[string]interface{}{"dest_ip": destIP},
	}
}

// FanoutQualifier implements the network fan-out event qualifier: the
// destination IP must be internal. Artifact token is the destination IP
// itself, so VarietyCount becomes the distinct-internal-destination
// count and PrimaryCount becomes the total qualifying connection count.
func FanoutQualifier(e pipeline.Event) (string, bool) {
	destIP := strings.TrimSpace(pipeline.FieldString(e.Fields, "dest_ip"))
	if destIP == "" || !IsInternalIP(destIP) {
		return "", false
	}
	return destIP, true
}

// FanoutSpec is the identity + scoring bundle for pde-spl-0401.
// UsesTrueNovelty is set: when destination sets are supplied to
// pipeline.Evaluate, new_targets is the true set difference against the
// baseline destination union; otherwise it falls back to the
// primary-count proxy.
var FanoutSpec = pipeline.Spec{
	SignalName:      "Network fan-out drift",
	DetectionID:     FanoutDetectionID,
	EntityType:      "host",
	VarietyDenom:    10,
	UsesTrueNovelty: true,
}

// FanoutDefaultThresholds mirrors the defaults named in the evaluator
// API contract, tuned for hourly buckets over a 30-day baseline window.
var FanoutDefaultThresholds = pipeline.Thresholds{
	DeviationRatioThreshold: 2.5,
	SustainedBuckets:        3,
	MinVariety:              2, // min_new_targets
	ExpectedBaselineBuckets: 30 * 24,
	MinBaselineBuckets:      24,
}

// FanoutNarrator supplies the explanation wording for fan-out signals.
var FanoutNarrator = pipeline.Narrator{
	EntityNoun:  "host",
	VarietyNoun: "internal destinations",
	NextSteps: []string{
		"Pull the full internal connection list for this host across the observation window and compare against known asset inventory.",
		"Check whether the host recently received new credentials, scheduled tasks, or remote-execution tooling.",
		"Correlate the new destinations against segments that should not ordinarily be reachable from this host.",
		"If destinations include domain controllers or file servers not in this host's normal peer set, escalate to lateral-movement triage.",
	},
}

// EvaluateFanout is the pde-spl-0401 evaluator endpoint: given baseline
// and observation BucketFeatures plus the per-bucket destination sets
// for both windows, it returns the emitted Signals.
func EvaluateFanout(
	baseline, observation []pipeline.BucketFeatures,
	baselineSets, observationSets map[pipeline.Key]pipeline.StringSet,
	thresholds pipeline.Thresholds,
) (pipeline.Result, error) {
	baselineStats := pipeline.AggregateBaseline(baseline)
	baselineUnion := pipeline.BuildBaselineUnion(baselineSets)
	return pipeline.Evaluate(observation, observationSets, baselineStats, baselineUnion, thresholds, FanoutSpec)
}
