package variants

import (
	"strings"

	"github.com/pdespl/driftcore/internal/pipeline"
)

// AdminToolingDetectionID is the stable identifier for suspicious
// admin-tooling drift (remote execution tools).
const AdminToolingDetectionID = "pde-spl-0405"

// AdminToolingEvent builds a pipeline.Event from a raw admin-tooling
// telemetry record: entity_key is the host field.
func AdminToolingEvent(timestamp interface{}, host, processName, commandLine string) pipeline.Event {
	return pipeline.Event{
		Timestamp: timestamp,
		EntityKey: strings.TrimSpace(host),
		Fields: map[string]interface{}{
			"process_name": processName,
			"command_line": commandLine,
		},
	}
}

// ClassifyAdminTool maps a process name / command line pair to a
// normalized remote-execution tool label, or "" if neither indicates
// one of the classified tools.
func ClassifyAdminTool(processName, commandLine string) string {
	p := strings.ToLower(processName)
	c := strings.ToLower(commandLine)

	switch {
	case strings.Contains(p, "psexec") || strings.Contains(p, "paexec") ||
		strings.Contains(c, "psexec") || strings.Contains(c, "paexec"):
		return "psexec"
	case strings.Contains(p, "wmic") || strings.Contains(p, "wmiprvse") || strings.Contains(c, "wmic"):
		return "wmi"
	case strings.Contains(p, "winrm") || strings.Contains(p, "winrs") ||
		strings.Contains(c, "winrm") || strings.Contains(c, "winrs"):
		return "winrm"
	case strings.Contains(p, "schtasks") || strings.Contains(c, "schtasks"):
		return "schtasks"
	case strings.HasSuffix(p, "sc.exe") || strings.Contains(" "+c+" ", " sc ") || strings.Contains(c, `\sc.exe`):
		return "sc"
	case strings.HasSuffix(p, "powershell.exe") || strings.Contains(c, "powershell"):
		return "powershell"
	default:
		return ""
	}
}

// AdminToolingQualifier implements the admin-tooling event qualifier:
// process/command substrings must classify to a known tool label, which
// becomes the artifact token.
func AdminToolingQualifier(e pipeline.Event) (string, bool) {
	proc := strings.TrimSpace(pipeline.FieldString(e.Fields, "process_name"))
	cmd := strings.TrimSpace(pipeline.FieldString(e.Fields, "command_line"))
	tool := ClassifyAdminTool(proc, cmd)
	if tool == "" {
		return "", false
	}
	return tool, true
}

// AdminToolingSpec is the identity + scoring bundle for pde-spl-0405.
var AdminToolingSpec = pipeline.Spec{
	SignalName:      "Admin-tooling drift",
	DetectionID:     AdminToolingDetectionID,
	EntityType:      "host",
	VarietyDenom:    6,
	UsesTrueNovelty: false,
}

// AdminToolingDefaultThresholds is tuned for hourly buckets.
var AdminToolingDefaultThresholds = pipeline.Thresholds{
	DeviationRatioThreshold: 2.5,
	SustainedBuckets:        3,
	MinVariety:              2, // min_unique_tools
	ExpectedBaselineBuckets: 30 * 24,
	MinBaselineBuckets:      24,
}

// AdminToolingNarrator supplies the explanation wording for
// admin-tooling drift signals.
var AdminToolingNarrator = pipeline.Narrator{
	EntityNoun:  "host",
	VarietyNoun: "distinct remote-execution tools",
	NextSteps: []string{
		"List every classified admin-tool invocation on this host during the observation window, with full command line and parent process.",
		"Check whether the invoking account normally performs remote administration from this host.",
		"Identify the remote targets of each invocation (psexec/wmi/winrm destination) and cross-reference against change-management records.",
		"If multiple distinct tools appear in quick succession, treat this as a candidate lateral-movement or remote-execution chain and escalate.",
	},
}

// EvaluateAdminTooling is the pde-spl-0405 evaluator endpoint.
func EvaluateAdminTooling(baseline, observation []pipeline.BucketFeatures, thresholds pipeline.Thresholds) (pipeline.Result, error) {
	baselineStats := pipeline.AggregateBaseline(baseline)
	return pipeline.Evaluate(observation, nil, baselineStats, nil, thresholds, AdminToolingSpec)
}
