package pipeline

// Spec is the static identity + scoring configuration bundle for one
// detection variant. Per the "runtime-polymorphic per-variant logic"
// design note, a single parameterized Evaluate function consumes this
// bundle instead of five variant-specific evaluators — there is no
// inheritance hierarchy, just data.
type Spec struct {
	SignalName  string
	DetectionID string
	EntityType  string

	// VarietyDenom normalizes the variety metric into [0,1] for the risk
	// score's variety component (10 fan-out, 25 auth, 10 persistence,
	// 10 staging, 6 admin-tooling).
	VarietyDenom float64

	// UsesTrueNovelty is set only for the fan-out variant: when true and
	// a BaselineUnion is supplied to Evaluate, the variety gate and
	// variety metric are computed via true novelty (set difference)
	// rather than the VarietyCount the bucketizer already measured.
	UsesTrueNovelty bool
}

// Thresholds holds the three gating thresholds plus the baseline sizing
// parameters. There is no package-level default for MinBaselineBuckets —
// per the open question in the design notes, its default differs by
// variant and the spec mandates none; callers must always supply it
// explicitly.
type Thresholds struct {
	DeviationRatioThreshold float64
	SustainedBuckets        int
	MinVariety              int
	ExpectedBaselineBuckets int
	MinBaselineBuckets      int
}

// Evaluate implements stage 5: it joins baseline stats, growth hits, and
// novelty against the observation records and emits one Signal per
// (entity, bucket) that satisfies all three AND-gated conditions.
// Output order follows the observation input's (entity, bucket_start)
// ascending order, which Bucketize already guarantees.
//
// obsSets and baselineUnion are optional (nil is valid) except when
// spec.UsesTrueNovelty is true and the caller wants true novelty rather
// than the proxy; see the variant-specific wrappers in internal/variants
// for the concrete calling conventions.
func Evaluate(
	observation []BucketFeatures,
	obsSets map[Key]StringSet,
	baselines map[string]BaselineStats,
	baselineUnion map[string]StringSet,
	thresholds Thresholds,
	spec Spec,
) (Result, error) {
	growthHits, err := GrowthHits(observation, thresholds.SustainedBuckets)
	if err != nil {
		return Result{}, err
	}

	signals := make([]Signal, 0)

	for _, r := range observation {
		baseline, haveBaseline := baselines[r.EntityKey]

		var deviationRatio *float64
		baselineBucketCount := 0
		var baselineAvg *float64
		if haveBaseline {
			baselineBucketCount = baseline.BucketCount
			avg := baseline.AvgPrimary
			baselineAvg = &avg
			if baseline.AvgPrimary > 0 && baseline.BucketCount >= thresholds.MinBaselineBuckets {
				ratio := float64(r.PrimaryCount) / baseline.AvgPrimary
				deviationRatio = &ratio
			}
		}

		gateA := deviationRatio != nil && *deviationRatio >= thresholds.DeviationRatioThreshold

		hits := growthHits[r.Key()]
		sustainedGrowth := hits >= thresholds.SustainedBuckets
		gateB := sustainedGrowth

		varietyMetric := varietyMetricFor(r, obsSets, baselineUnion, spec)
		gateC := varietyMetric >= thresholds.MinVariety

		if !(gateA && gateB && gateC) {
			continue
		}

		scoreIn := ScoreInputs{
			DeviationRatio:          deviationRatio,
			VarietyMetric:           varietyMetric,
			VarietyDenom:            spec.VarietyDenom,
			SustainedGrowth:         sustainedGrowth,
			BaselineBucketCount:     baselineBucketCount,
			ExpectedBaselineBuckets: thresholds.ExpectedBaselineBuckets,
		}
		risk := RiskScore(scoreIn)
		confidence := Confidence(scoreIn)

		signals = append(signals, Signal{
			SignalName:      spec.SignalName,
			DetectionID:     spec.DetectionID,
			EntityType:      spec.EntityType,
			EntityKey:       r.EntityKey,
			RiskScore:       risk,
			Confidence:      confidence,
			TimeHorizon:     Horizon(risk),
			CurrentCount:    r.PrimaryCount,
			CurrentVariety:  r.VarietyCount,
			BaselineAverage: baselineAvg,
			DeviationRatio:  deviationRatio,
			GrowthHits:      hits,
			NewTargets:      varietyMetric,
		})
	}

	return Result{Count: len(signals), Signals: signals}, nil
}

// varietyMetricFor computes condition C's variety metric. For the
// fan-out variant with true-novelty inputs present: |current -
// baseline_union|. For the fan-out variant without them: the proxy
// new_targets := primary_count. For every other variant: the bucket's
// already-computed VarietyCount (unique users / artifacts / tools).
func varietyMetricFor(r BucketFeatures, obsSets map[Key]StringSet, baselineUnion map[string]StringSet, spec Spec) int {
	if spec.UsesTrueNovelty {
		if baselineUnion != nil {
			current := obsSets[r.Key()]
			union := baselineUnion[r.EntityKey]
			return NewTargets(current, union)
		}
		return r.PrimaryCount
	}
	return r.VarietyCount
}
