package pipeline

import "fmt"

// Explanation is the rendered, human-facing form of a Signal: a
// headline, a short narrative, an evidence list, and the fixed
// investigative next steps for the signal's detection. Rendering is
// pure and deterministic — no I/O, no clock reads.
type Explanation struct {
	Headline  string
	Narrative string
	Evidence  []string
	NextSteps []string
}

// Narrator supplies the variant-specific wording a rendered Explanation
// needs but pipeline itself has no business knowing: the noun used for
// the entity ("host", "source IP"), the noun used for the variety
// metric ("destinations", "targeted accounts", "distinct artifacts",
// "distinct tools"), and the fixed list of next investigative steps for
// this detection. internal/variants supplies one Narrator per variant.
type Narrator struct {
	EntityNoun  string
	VarietyNoun string
	NextSteps   []string
}

// Explain renders a Signal into its evidence-bearing explanation. It
// never fails: every field it reads is already present on the Signal,
// and absent baseline/deviation data is rendered as "no baseline"
// rather than omitted.
func Explain(s Signal, n Narrator) Explanation {
	headline := fmt.Sprintf("%s on %s %s", s.SignalName, n.EntityNoun, s.EntityKey)

	var narrative string
	if s.DeviationRatio != nil {
		narrative = fmt.Sprintf(
			"%s %s produced %d qualifying events this window, %.1fx its established baseline average of %.1f, "+
				"with sustained growth across %d consecutive windows and %d new %s not seen in the baseline. "+
				"Risk score %d (%s confidence), time horizon %s.",
			n.EntityNoun, s.EntityKey, s.CurrentCount, *s.DeviationRatio, valueOrZero(s.BaselineAverage),
			s.GrowthHits, s.NewTargets, n.VarietyNoun, s.RiskScore, confidenceLabel(s.Confidence), s.TimeHorizon,
		)
	} else {
		narrative = fmt.Sprintf(
			"%s %s produced %d qualifying events this window with no established baseline average, "+
				"sustained growth across %d consecutive windows and %d new %s. "+
				"Risk score %d (%s confidence), time horizon %s.",
			n.EntityNoun, s.EntityKey, s.CurrentCount, s.GrowthHits, s.NewTargets, n.VarietyNoun,
			s.RiskScore, confidenceLabel(s.Confidence), s.TimeHorizon,
		)
	}

	evidence := []string{
		fmt.Sprintf("current_count: %d", s.CurrentCount),
		fmt.Sprintf("current_variety: %d", s.CurrentVariety),
		fmt.Sprintf("baseline_average: %s", floatPtrString(s.BaselineAverage)),
		fmt.Sprintf("deviation_ratio: %s", floatPtrString(s.DeviationRatio)),
		fmt.Sprintf("growth_hits: %d", s.GrowthHits),
		fmt.Sprintf("new_targets: %d", s.NewTargets),
		fmt.Sprintf("confidence: %.2f", s.Confidence),
	}

	return Explanation{
		Headline:  headline,
		Narrative: narrative,
		Evidence:  evidence,
		NextSteps: n.NextSteps,
	}
}

func confidenceLabel(c float64) string {
	switch {
	case c >= 0.8:
		return "high"
	case c >= 0.5:
		return "moderate"
	default:
		return "low"
	}
}

func valueOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func floatPtrString(f *float64) string {
	if f == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *f)
}
