package pipeline

import "math"

// ScoreInputs bundles everything the scorer needs to compute a Signal's
// risk, confidence, and time horizon. One scorer serves all five
// variants; only VarietyDenom differs between them (see Spec).
type ScoreInputs struct {
	DeviationRatio          *float64 // nil if the deviation gate's ratio is undefined
	VarietyMetric           int      // new_internal_targets / unique_users_targeted / unique_artifacts / unique_tools
	VarietyDenom            float64  // normalizes VarietyMetric into [0,1] for the risk component
	SustainedGrowth         bool
	BaselineBucketCount     int
	ExpectedBaselineBuckets int
}

// clampInt rounds x to the nearest integer and clamps to [lo, hi].
func clampInt(x float64, lo, hi int) int {
	r := int(math.Round(x))
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}

func clampFloat(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// RiskScore computes the 0..100 weighted risk score from the three
// normalized components: deviation-ratio magnitude (40%), variety (30%),
// sustained growth (30%).
func RiskScore(in ScoreInputs) int {
	ratio := 0.0
	if in.DeviationRatio != nil {
		ratio = *in.DeviationRatio
	}
	ratioComponent := clampFloat((ratio-1.0)/4.0, 0.0, 1.0)

	denom := in.VarietyDenom
	varietyComponent := 0.0
	if denom > 0 {
		varietyComponent = clampFloat(float64(in.VarietyMetric)/denom, 0.0, 1.0)
	}

	growthComponent := 0.0
	if in.SustainedGrowth {
		growthComponent = 1.0
	}

	risk := ratioComponent*40.0 + varietyComponent*30.0 + growthComponent*30.0
	return clampInt(risk, 0, 100)
}

// Confidence computes the 0.0..1.0 confidence score from four bounded
// contributions: baseline completeness (0.20), sustained growth (0.30),
// variety/novelty presence (0.30), and the reserved low-variance-noise
// slot, always 1 in this MVP (0.20).
func Confidence(in ScoreInputs) float64 {
	completeness := 0.0
	if in.ExpectedBaselineBuckets > 0 {
		completeness = math.Min(1.0, float64(in.BaselineBucketCount)/float64(in.ExpectedBaselineBuckets))
	}

	conf := 0.20 * completeness
	if in.SustainedGrowth {
		conf += 0.30
	}
	if in.VarietyMetric > 0 {
		conf += 0.30
	}
	conf += 0.20 * 1.0 // reserved low-variance-noise slot

	return clampFloat(conf, 0.0, 1.0)
}

// Horizon maps a risk score to its time-horizon label.
func Horizon(riskScore int) TimeHorizon {
	switch {
	case riskScore >= 86:
		return HorizonImminent
	case riskScore >= 70:
		return HorizonEmerging
	default:
		return HorizonEarly
	}
}
