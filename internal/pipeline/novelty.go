package pipeline

// NewTargets implements stage 4's core contract: true novelty is the
// count of members in current that never appeared in baselineUnion. If
// current is empty the answer is trivially 0; if baselineUnion is empty
// (no baseline sets at all) every member of current counts as new.
func NewTargets(current, baselineUnion StringSet) int {
	if current.Len() == 0 {
		return 0
	}
	if baselineUnion.Len() == 0 {
		return current.Len()
	}
	return current.Difference(baselineUnion).Len()
}
