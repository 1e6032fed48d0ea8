package variants

import (
	"strings"

	"github.com/pdespl/driftcore/internal/pipeline"
)

// StagingDetectionID is the stable identifier for data-staging drift
// (archive creation / large files).
const StagingDetectionID = "pde-spl-0404"

// stagingToolKeywords are process-name substrings that mark archiving
// tools commonly used to stage data before exfiltration.
var stagingToolKeywords = []string{"7z", "7za", "rar", "winzip", "zip", "tar", "gzip"}

// stagingArchiveExts are file-name suffixes that mark archive output.
var stagingArchiveExts = []string{".zip", ".7z", ".rar", ".tar", ".gz"}

// StagingLargeFileBytes is the default large-file-size qualifier
// threshold: 100 MB.
const StagingLargeFileBytes = 100_000_000

// StagingEvent builds a pipeline.Event from a raw data-staging telemetry
// record: entity_key is the host field.
func StagingEvent(timestamp interface{}, host, processName, fileName, filePath string, fileSize int64) pipeline.Event {
	return pipeline.Event{
		Timestamp: timestamp,
		EntityKey: strings.TrimSpace(host),
		Fields: map[string]interface{}{
			"process_name": processName,
			"file_name":    fileName,
			"file_path":    filePath,
			"file_size":    fileSize,
		},
	}
}

// StagingQualifier implements the data-staging event qualifier: an
// event qualifies if the process name contains an archiving-tool
// keyword, the file name ends in an archive extension, or the file size
// meets the large-file threshold. Artifact is file_path, falling back
// to file_name, then process_name, then "unknown_artifact".
func StagingQualifier(e pipeline.Event) (string, bool) {
	proc := strings.ToLower(strings.TrimSpace(pipeline.FieldString(e.Fields, "process_name")))
	fname := strings.ToLower(strings.TrimSpace(pipeline.FieldString(e.Fields, "file_name")))

	qualifies := false
	for _, kw := range stagingToolKeywords {
		if proc != "" && strings.Contains(proc, kw) {
			qualifies = true
			break
		}
	}
	if !qualifies {
		for _, ext := range stagingArchiveExts {
			if fname != "" && strings.HasSuffix(fname, ext) {
				qualifies = true
				break
			}
		}
	}
	if !qualifies {
		if size, ok := pipeline.FieldInt(e.Fields, "file_size"); ok && size >= StagingLargeFileBytes {
			qualifies = true
		}
	}
	if !qualifies {
		return "", false
	}

	if path := strings.TrimSpace(pipeline.FieldString(e.Fields, "file_path")); path != "" {
		return path, true
	}
	if name := strings.TrimSpace(pipeline.FieldString(e.Fields, "file_name")); name != "" {
		return name, true
	}
	if p := strings.TrimSpace(pipeline.FieldString(e.Fields, "process_name")); p != "" {
		return p, true
	}
	return "unknown_artifact", true
}

// StagingSpec is the identity + scoring bundle for pde-spl-0404.
var StagingSpec = pipeline.Spec{
	SignalName:      "Data-staging drift",
	DetectionID:     StagingDetectionID,
	EntityType:      "host",
	VarietyDenom:    10,
	UsesTrueNovelty: false,
}

// StagingDefaultThresholds is tuned for hourly buckets.
var StagingDefaultThresholds = pipeline.Thresholds{
	DeviationRatioThreshold: 2.5,
	SustainedBuckets:        3,
	MinVariety:              2, // min_unique_artifacts
	ExpectedBaselineBuckets: 30 * 24,
	MinBaselineBuckets:      24,
}

// StagingNarrator supplies the explanation wording for data-staging
// drift signals.
var StagingNarrator = pipeline.Narrator{
	EntityNoun:  "host",
	VarietyNoun: "distinct staged artifacts",
	NextSteps: []string{
		"List every archive and large-file write on this host during the observation window, with full path and size.",
		"Identify the process and account responsible for each staged artifact.",
		"Check whether any staged archive was subsequently transferred off-host (outbound network connection, removable media, cloud upload).",
		"If the archives bundle sensitive data paths, treat this as a candidate exfiltration-preparation event and escalate.",
	},
}

// EvaluateStaging is the pde-spl-0404 evaluator endpoint.
func EvaluateStaging(baseline, observation []pipeline.BucketFeatures, thresholds pipeline.Thresholds) (pipeline.Result, error) {
	baselineStats := pipeline.AggregateBaseline(baseline)
	return pipeline.Evaluate(observation, nil, baselineStats, nil, thresholds, StagingSpec)
}
