package pipeline

import "testing"

func TestNewTargets_EmptyCurrentIsZero(t *testing.T) {
	if got := NewTargets(NewStringSet(), NewStringSet("a", "b")); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestNewTargets_EmptyBaselineCountsEverythingNew(t *testing.T) {
	current := NewStringSet("a", "b", "c")
	if got := NewTargets(current, NewStringSet()); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestNewTargets_PartialOverlap(t *testing.T) {
	current := NewStringSet("a", "b", "c")
	baseline := NewStringSet("a")
	if got := NewTargets(current, baseline); got != 2 {
		t.Errorf("expected 2 new targets, got %d", got)
	}
}

func TestNewTargets_NeverExceedsCurrentCardinality(t *testing.T) {
	current := NewStringSet("a", "b")
	baseline := NewStringSet()
	got := NewTargets(current, baseline)
	if got > current.Len() {
		t.Fatalf("new targets %d must never exceed current set size %d", got, current.Len())
	}
}

func TestNewTargets_FullOverlapIsZero(t *testing.T) {
	current := NewStringSet("a", "b")
	baseline := NewStringSet("a", "b", "c")
	if got := NewTargets(current, baseline); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}
