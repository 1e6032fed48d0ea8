package pipeline

// StringSet is a hash-based set of strings, used for the per-bucket
// artifact sets (destinations, users, task/service names, tool labels)
// whose cardinality drives VarietyCount and whose set-difference drives
// true novelty. No ordering is needed — per the design notes, a
// hash-based set is adequate.
type StringSet map[string]struct{}

// NewStringSet builds a StringSet from the given members.
func NewStringSet(members ...string) StringSet {
	s := make(StringSet, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Add inserts a member.
func (s StringSet) Add(member string) {
	s[member] = struct{}{}
}

// Contains reports whether member is in the set.
func (s StringSet) Contains(member string) bool {
	_, ok := s[member]
	return ok
}

// Len returns the set's cardinality.
func (s StringSet) Len() int {
	return len(s)
}

// Union returns a new set containing every member of s and other.
func (s StringSet) Union(other StringSet) StringSet {
	out := make(StringSet, len(s)+len(other))
	for m := range s {
		out[m] = struct{}{}
	}
	for m := range other {
		out[m] = struct{}{}
	}
	return out
}

// Difference returns the members of s that are not in other — the basis
// of the true-novelty computation.
func (s StringSet) Difference(other StringSet) StringSet {
	out := make(StringSet, len(s))
	for m := range s {
		if !other.Contains(m) {
			out[m] = struct{}{}
		}
	}
	return out
}
