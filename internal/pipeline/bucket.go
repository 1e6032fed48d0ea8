package pipeline

import (
	"fmt"
	"sort"
)

// BucketFeatures is the per-(entity, bucket) feature record produced by
// stage 1 and consumed by every later stage. Immutable once returned by
// Bucketize — WithDeviationRatio returns a copy rather than mutating in
// place, matching the frozen-dataclass discipline of the source pipeline.
type BucketFeatures struct {
	EntityKey    string
	BucketStart  int64
	PrimaryCount int
	VarietyCount int

	// BaselineDeviationRatio is nil on every record Bucketize returns and
	// is set only through WithDeviationRatio. Evaluate does not set it on
	// the observation records; the ratio it computes is reported on
	// Signal.DeviationRatio instead. Mirrors the source's
	// FanoutBucketFeatures.baseline_deviation_ratio field.
	BaselineDeviationRatio *float64
}

// WithDeviationRatio returns a copy of f with BaselineDeviationRatio set.
func (f BucketFeatures) WithDeviationRatio(ratio float64) BucketFeatures {
	f.BaselineDeviationRatio = &ratio
	return f
}

// Key returns the (entity, bucket) key identifying this record.
func (f BucketFeatures) Key() Key {
	return Key{EntityKey: f.EntityKey, BucketStart: f.BucketStart}
}

// Qualifier is the variant-specific event qualification + artifact
// extraction function described in the feature-extractor contract. It
// returns the artifact token to add to the bucket's variety set and
// ok=false if the event should be dropped (wrong outcome, non-internal
// destination, unclassified tool, missing required field, ...).
//
// Qualifier never sees malformed timestamp/entity_key events — Bucketize
// filters those centrally before calling it.
type Qualifier func(e Event) (artifact string, ok bool)

// Bucketize implements stage 1 of the pipeline: it discards malformed
// events (unparseable timestamp, empty entity key, qualifier rejection),
// indexes the rest by (entity_key, bucket_start), and returns one
// BucketFeatures per non-empty bucket sorted by (entity_key,
// bucket_start) ascending, plus the per-bucket artifact sets (needed by
// the novelty computer for variants that support true novelty).
//
// windowSeconds <= 0 is a caller-contract violation and returns an error;
// every other malformed input is silently dropped, per spec.
func Bucketize(events []Event, windowSeconds int64, qualify Qualifier) ([]BucketFeatures, map[Key]StringSet, error) {
	if windowSeconds <= 0 {
		return nil, nil, fmt.Errorf("pipeline: window must be > 0, got %d", windowSeconds)
	}

	counts := make(map[Key]int)
	sets := make(map[Key]StringSet)

	for _, e := range events {
		if e.EntityKey == "" {
			continue
		}
		ts, ok := ParseTimestamp(e.Timestamp)
		if !ok {
			continue
		}
		artifact, ok := qualify(e)
		if !ok {
			continue
		}

		bucketStart, err := BucketStart(ts, windowSeconds)
		if err != nil {
			// windowSeconds was already validated above; unreachable.
			return nil, nil, err
		}

		key := Key{EntityKey: e.EntityKey, BucketStart: bucketStart}
		counts[key]++
		set, ok := sets[key]
		if !ok {
			set = NewStringSet()
			sets[key] = set
		}
		set.Add(artifact)
	}

	out := make([]BucketFeatures, 0, len(counts))
	for key, count := range counts {
		out = append(out, BucketFeatures{
			EntityKey:    key.EntityKey,
			BucketStart:  key.BucketStart,
			PrimaryCount: count,
			VarietyCount: sets[key].Len(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityKey != out[j].EntityKey {
			return out[i].EntityKey < out[j].EntityKey
		}
		return out[i].BucketStart < out[j].BucketStart
	})

	return out, sets, nil
}

