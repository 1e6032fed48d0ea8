// Package pipeline implements the shared analytic core of driftcore: the
// five-stage pipeline that turns raw telemetry events into risk-scored
// drift signals. Every exported function here is pure — deterministic,
// side-effect free, and safe to call concurrently from independent
// invocations. Variant-specific qualification and artifact extraction
// live in internal/variants; this package only knows about the generic
// shapes the spec defines (entity, bucket, feature record, signal).
package pipeline

import (
	"fmt"
	"strconv"
)

// Event is one raw telemetry record handed to the bucketizer. Timestamp is
// left as interface{} because upstream collectors hand us a mix of JSON
// number and string encodings for epoch seconds; Fields carries every
// variant-specific attribute (dest_ip, user, outcome, event_code, ...) so
// that a single Event type serves all five detection families.
type Event struct {
	Timestamp interface{}
	EntityKey string
	Fields    map[string]interface{}
}

// ParseTimestamp converts an Event.Timestamp into epoch seconds. Accepts
// int, int64, float64, json.Number-compatible strings. Returns ok=false
// for anything else, matching the "discard if timestamp unparseable"
// failure semantics in the feature-extractor contract.
func ParseTimestamp(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// FieldString returns Fields[key] as a string, or "" if absent or nil.
// Strings are returned as-is (not trimmed; callers trim as needed); any
// other value is formatted via fmt, since several variant fields like
// event codes may arrive as either string or number.
func FieldString(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// FieldInt returns Fields[key] as an int64. ok is false if the field is
// absent or not integer-convertible.
func FieldInt(fields map[string]interface{}, key string) (int64, bool) {
	v, ok := fields[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// BucketStart floors ts to the nearest multiple of windowSeconds at or
// below it. windowSeconds must be > 0 — a caller-contract violation that
// is fatal, never silently dropped (per the feature-extractor contract's
// "bad W is fatal" rule).
func BucketStart(ts int64, windowSeconds int64) (int64, error) {
	if windowSeconds <= 0 {
		return 0, fmt.Errorf("pipeline: window must be > 0, got %d", windowSeconds)
	}
	return (ts / windowSeconds) * windowSeconds, nil
}

// Key identifies one (entity, bucket) pair, the unit every downstream
// stage indexes by.
type Key struct {
	EntityKey   string
	BucketStart int64
}
