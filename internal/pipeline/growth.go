package pipeline

import (
	"fmt"
	"sort"
)

// GrowthHits implements stage 3: for each (entity, bucket) in an ordered
// observation series, the count of how many of the last sustainedBuckets
// flags were "growth" (primary count strictly exceeded the immediately
// preceding present bucket for that entity). Missing buckets between
// consecutive records do not synthesize zeros — the comparison is always
// between consecutive *present* buckets, per the growth-hit contract.
//
// sustainedBuckets must be >= 1; a smaller value is a caller-contract
// violation and returns an error.
func GrowthHits(records []BucketFeatures, sustainedBuckets int) (map[Key]int, error) {
	if sustainedBuckets < 1 {
		return nil, fmt.Errorf("pipeline: sustainedBuckets must be >= 1, got %d", sustainedBuckets)
	}

	byEntity := make(map[string][]BucketFeatures)
	for _, r := range records {
		byEntity[r.EntityKey] = append(byEntity[r.EntityKey], r)
	}

	out := make(map[Key]int, len(records))
	for _, rows := range byEntity {
		sort.Slice(rows, func(i, j int) bool { return rows[i].BucketStart < rows[j].BucketStart })

		var flags []int
		var prev int
		havePrev := false

		for _, r := range rows {
			flag := 0
			if havePrev && r.PrimaryCount > prev {
				flag = 1
			}
			flags = append(flags, flag)
			prev = r.PrimaryCount
			havePrev = true

			start := len(flags) - sustainedBuckets
			if start < 0 {
				start = 0
			}
			sum := 0
			for _, f := range flags[start:] {
				sum += f
			}
			out[r.Key()] = sum
		}
	}

	return out, nil
}
