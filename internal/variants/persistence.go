package variants

import (
	"strings"

	"github.com/pdespl/driftcore/internal/pipeline"
)

// PersistenceDetectionID is the stable identifier for persistence
// artifact drift (scheduled tasks / services).
const PersistenceDetectionID = "pde-spl-0403"

// PersistenceEventCodes is the default set of Windows event codes that
// qualify as persistence-artifact creation: 4698 (scheduled task
// created), 7045 (service created).
var PersistenceEventCodes = map[int64]struct{}{
	4698: {},
	7045: {},
}

// PersistenceEvent builds a pipeline.Event from a raw persistence
// telemetry record: entity_key is the host field. eventCode, taskName,
// and serviceName carry through as Fields for the qualifier.
func PersistenceEvent(timestamp interface{}, host string, eventCode int64, taskName, serviceName string) pipeline.Event {
	return pipeline.Event{
		Timestamp: timestamp,
		EntityKey: strings.TrimSpace(host),
		Fields: map[string]interface{}{
			"event_code":   eventCode,
			"task_name":    taskName,
			"service_name": serviceName,
		},
	}
}

// PersistenceQualifier implements the persistence-artifact event
// qualifier: event_code must be in PersistenceEventCodes. Artifact is
// the task or service name, falling back to "unknown_task" /
// "unknown_service" when the name field is absent.
func PersistenceQualifier(e pipeline.Event) (string, bool) {
	code, ok := pipeline.FieldInt(e.Fields, "event_code")
	if !ok {
		return "", false
	}
	if _, qualifies := PersistenceEventCodes[code]; !qualifies {
		return "", false
	}

	switch code {
	case 4698:
		if name := strings.TrimSpace(pipeline.FieldString(e.Fields, "task_name")); name != "" {
			return name, true
		}
		return "unknown_task", true
	case 7045:
		if name := strings.TrimSpace(pipeline.FieldString(e.Fields, "service_name")); name != "" {
			return name, true
		}
		return "unknown_service", true
	default:
		return "unknown_artifact", true
	}
}

// PersistenceSpec is the identity + scoring bundle for pde-spl-0403.
var PersistenceSpec = pipeline.Spec{
	SignalName:      "Persistence-artifact drift",
	DetectionID:     PersistenceDetectionID,
	EntityType:      "host",
	VarietyDenom:    10,
	UsesTrueNovelty: false,
}

// PersistenceDefaultThresholds is tuned for hourly buckets.
var PersistenceDefaultThresholds = pipeline.Thresholds{
	DeviationRatioThreshold: 2.5,
	SustainedBuckets:        3,
	MinVariety:              2, // min_unique_artifacts
	ExpectedBaselineBuckets: 30 * 24,
	MinBaselineBuckets:      24,
}

// PersistenceNarrator supplies the explanation wording for persistence
// drift signals.
var PersistenceNarrator = pipeline.Narrator{
	EntityNoun:  "host",
	VarietyNoun: "distinct scheduled tasks/services",
	NextSteps: []string{
		"Enumerate every scheduled task and service created on this host during the observation window, including binary path and run-as account.",
		"Check whether the creating process or account has administrative history on this host.",
		"Look for a matching pattern (same binary path, same naming convention) on other hosts in the same time window.",
		"If the artifact points outside expected software-deployment paths, treat it as a candidate persistence mechanism and isolate the host.",
	},
}

// EvaluatePersistence is the pde-spl-0403 evaluator endpoint.
func EvaluatePersistence(baseline, observation []pipeline.BucketFeatures, thresholds pipeline.Thresholds) (pipeline.Result, error) {
	baselineStats := pipeline.AggregateBaseline(baseline)
	return pipeline.Evaluate(observation, nil, baselineStats, nil, thresholds, PersistenceSpec)
}
