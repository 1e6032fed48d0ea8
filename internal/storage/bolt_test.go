package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pdespl/driftcore/internal/pipeline"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, 30)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleSignal(entityKey string) pipeline.Signal {
	return pipeline.Signal{
		SignalName:   "network_fanout_drift",
		DetectionID:  "pde-spl-0401",
		EntityType:   "host",
		EntityKey:    entityKey,
		RiskScore:    90,
		Confidence:   0.85,
		TimeHorizon:  pipeline.HorizonImminent,
		CurrentCount: 12,
	}
}

func TestOpen_InitializesSchema(t *testing.T) {
	db := openTestDB(t)
	n, err := db.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected an empty ledger on a fresh database, got %d entries", n)
	}
}

func TestAppendSignal_ThenReadSignals(t *testing.T) {
	db := openTestDB(t)

	rec := SignalRecord{
		NodeID:          "node-1",
		BudgetRemaining: 99,
		Signal:          sampleSignal("hostA"),
	}
	if err := db.AppendSignal(rec); err != nil {
		t.Fatalf("AppendSignal: %v", err)
	}

	entries, err := db.ReadSignals()
	if err != nil {
		t.Fatalf("ReadSignals: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Signal.EntityKey != "hostA" {
		t.Errorf("expected entity key hostA, got %s", entries[0].Signal.EntityKey)
	}
	if entries[0].NodeID != "node-1" {
		t.Errorf("expected node id node-1, got %s", entries[0].NodeID)
	}
}

func TestAppendSignal_StampsRecordedAtWhenZero(t *testing.T) {
	db := openTestDB(t)
	rec := SignalRecord{NodeID: "node-1", Signal: sampleSignal("hostA")}
	if err := db.AppendSignal(rec); err != nil {
		t.Fatalf("AppendSignal: %v", err)
	}
	entries, err := db.ReadSignals()
	if err != nil {
		t.Fatalf("ReadSignals: %v", err)
	}
	if entries[0].RecordedAt.IsZero() {
		t.Error("expected AppendSignal to stamp a non-zero RecordedAt")
	}
}

func TestCount_ReflectsAppendedEntries(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 3; i++ {
		if err := db.AppendSignal(SignalRecord{NodeID: "n", Signal: sampleSignal("hostA")}); err != nil {
			t.Fatalf("AppendSignal: %v", err)
		}
	}
	n, err := db.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 entries, got %d", n)
	}
}

func TestPruneOldSignals_RemovesOnlyEntriesOlderThanRetention(t *testing.T) {
	db := openTestDB(t)

	old := SignalRecord{
		RecordedAt: time.Now().UTC().AddDate(0, 0, -60),
		NodeID:     "n",
		Signal:     sampleSignal("hostOld"),
	}
	recent := SignalRecord{
		RecordedAt: time.Now().UTC(),
		NodeID:     "n",
		Signal:     sampleSignal("hostRecent"),
	}
	if err := db.AppendSignal(old); err != nil {
		t.Fatalf("AppendSignal(old): %v", err)
	}
	if err := db.AppendSignal(recent); err != nil {
		t.Fatalf("AppendSignal(recent): %v", err)
	}

	deleted, err := db.PruneOldSignals()
	if err != nil {
		t.Fatalf("PruneOldSignals: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted entry, got %d", deleted)
	}

	entries, err := db.ReadSignals()
	if err != nil {
		t.Fatalf("ReadSignals: %v", err)
	}
	if len(entries) != 1 || entries[0].Signal.EntityKey != "hostRecent" {
		t.Errorf("expected only the recent entry to survive pruning, got %+v", entries)
	}
}

func TestOpen_ReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	db, err := Open(path, 30)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = db.Close()

	// Reopening the same file with a healthy schema should succeed.
	db2, err := Open(path, 30)
	if err != nil {
		t.Fatalf("expected reopening a valid database to succeed: %v", err)
	}
	_ = db2.Close()
}
