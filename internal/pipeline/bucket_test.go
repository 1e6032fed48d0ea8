package pipeline

import "testing"

func internalQualifier(e Event) (string, bool) {
	dest, ok := e.Fields["dest_ip"].(string)
	if !ok || dest == "" {
		return "", false
	}
	return dest, true
}

func TestBucketize_GroupsAndCounts(t *testing.T) {
	events := []Event{
		{Timestamp: int64(10), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.5"}},
		{Timestamp: int64(20), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.6"}},
		{Timestamp: int64(3600 + 10), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.7"}},
	}

	records, sets, err := Bucketize(events, 3600, internalQualifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 bucket records, got %d", len(records))
	}

	first := records[0]
	if first.BucketStart != 0 || first.PrimaryCount != 2 || first.VarietyCount != 2 {
		t.Errorf("unexpected first record: %+v", first)
	}

	second := records[1]
	if second.BucketStart != 3600 || second.PrimaryCount != 1 {
		t.Errorf("unexpected second record: %+v", second)
	}

	if sets[first.Key()].Len() != 2 {
		t.Errorf("expected 2 members in first bucket's set, got %d", sets[first.Key()].Len())
	}
}

func TestBucketize_DiscardsMalformedEvents(t *testing.T) {
	events := []Event{
		{Timestamp: int64(10), EntityKey: "", Fields: map[string]interface{}{"dest_ip": "10.0.0.5"}},
		{Timestamp: "not-a-number", EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.5"}},
		{Timestamp: int64(10), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": ""}},
		{Timestamp: int64(10), EntityKey: "hostB", Fields: map[string]interface{}{"dest_ip": "10.0.0.5"}},
	}

	records, _, err := Bucketize(events, 3600, internalQualifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one surviving record, got %d", len(records))
	}
	if records[0].EntityKey != "hostB" {
		t.Errorf("expected surviving record for hostB, got %s", records[0].EntityKey)
	}
}

func TestBucketize_ZeroWindowIsFatal(t *testing.T) {
	_, _, err := Bucketize(nil, 0, internalQualifier)
	if err == nil {
		t.Fatal("expected an error for a zero window")
	}
}

func TestBucketize_SortOrder(t *testing.T) {
	events := []Event{
		{Timestamp: int64(7200), EntityKey: "hostB", Fields: map[string]interface{}{"dest_ip": "10.0.0.1"}},
		{Timestamp: int64(0), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.1"}},
		{Timestamp: int64(3600), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.1"}},
	}

	records, _, err := Bucketize(events, 3600, internalQualifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Key{
		{EntityKey: "hostA", BucketStart: 0},
		{EntityKey: "hostA", BucketStart: 3600},
		{EntityKey: "hostB", BucketStart: 7200},
	}
	for i, w := range want {
		if records[i].Key() != w {
			t.Errorf("record %d: got %+v, want %+v", i, records[i].Key(), w)
		}
	}
}

func TestBucketize_VarietyNeverExceedsPrimary(t *testing.T) {
	events := []Event{
		{Timestamp: int64(10), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.1"}},
		{Timestamp: int64(20), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.1"}},
		{Timestamp: int64(30), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.2"}},
	}
	records, _, err := Bucketize(events, 3600, internalQualifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := records[0]
	if r.PrimaryCount != 3 || r.VarietyCount != 2 {
		t.Fatalf("got primary=%d variety=%d, want primary=3 variety=2", r.PrimaryCount, r.VarietyCount)
	}
	if r.VarietyCount > r.PrimaryCount {
		t.Fatal("variety_count must never exceed primary_count")
	}
}

func TestBucketize_BucketStartIsAlwaysAlignedToWindow(t *testing.T) {
	events := []Event{
		{Timestamp: int64(12345), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.1"}},
		{Timestamp: int64(99999), EntityKey: "hostB", Fields: map[string]interface{}{"dest_ip": "10.0.0.1"}},
	}
	const window = 3600
	records, _, err := Bucketize(events, window, internalQualifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range records {
		if r.BucketStart%window != 0 {
			t.Errorf("bucket_start %d is not aligned to window %d", r.BucketStart, window)
		}
	}
}

func TestBucketize_KeysAreUniquePerEntityAndBucket(t *testing.T) {
	events := []Event{
		{Timestamp: int64(10), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.1"}},
		{Timestamp: int64(20), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.2"}},
		{Timestamp: int64(3700), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.3"}},
	}
	records, _, err := Bucketize(events, 3600, internalQualifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[Key]bool)
	for _, r := range records {
		if seen[r.Key()] {
			t.Fatalf("duplicate (entity_key, bucket_start) key: %+v", r.Key())
		}
		seen[r.Key()] = true
	}
}

func TestBucketize_DeterministicUnderInputPermutation(t *testing.T) {
	a := []Event{
		{Timestamp: int64(10), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.1"}},
		{Timestamp: int64(20), EntityKey: "hostB", Fields: map[string]interface{}{"dest_ip": "10.0.0.2"}},
		{Timestamp: int64(3700), EntityKey: "hostA", Fields: map[string]interface{}{"dest_ip": "10.0.0.3"}},
	}
	b := []Event{a[2], a[0], a[1]}

	recordsA, _, err := Bucketize(a, 3600, internalQualifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recordsB, _, err := Bucketize(b, 3600, internalQualifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recordsA) != len(recordsB) {
		t.Fatalf("permuted input produced a different record count: %d vs %d", len(recordsA), len(recordsB))
	}
	for i := range recordsA {
		if recordsA[i] != recordsB[i] {
			t.Errorf("record %d differs under permutation: %+v vs %+v", i, recordsA[i], recordsB[i])
		}
	}
}
