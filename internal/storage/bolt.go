// Package storage — bolt.go
//
// BoltDB-backed audit ledger for driftctl signal output.
//
// This is NOT baseline persistence: baselines are recomputed fresh from
// the baseline-window events on every invocation (see internal/pipeline).
// The ledger only records signals a completed run actually emitted, so
// an operator can answer "what did driftctl flag, and when" without
// re-running the pipeline.
//
// Schema (BoltDB bucket layout):
//
//	/signals
//	    key:   fixed-width RFC3339 UTC timestamp with nanoseconds + "_" + detection_id + "_" + entity_key
//	    value: JSON-encoded SignalRecord
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// Consistency model:
//   - Single-process, single-writer (BoltDB does not support concurrent writers).
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - Reads use read-only transactions (bbolt.View()).
//   - CRC32 integrity check on database open (bbolt built-in).
//
// Retention:
//   - Signal records older than RetentionDays are pruned when
//     PruneOldSignals is called; driftctl calls it once at startup. There
//     is no background pruning.
//
// Failure modes:
//   - BoltDB file corruption: bbolt detects via CRC and returns an error
//     on Open(). driftctl logs a fatal event and refuses to start.
//     Recovery: restore from backup at /var/lib/driftcore/db.bak.
//   - Disk full: bbolt.Update() returns an error. driftctl logs the error
//     and continues without persisting (the run's signals are still
//     printed to stdout).
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pdespl/driftcore/internal/pipeline"
)

const (
	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "/var/lib/driftcore/driftcore.db"

	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	// DefaultRetentionDays is the default signal-ledger retention period.
	DefaultRetentionDays = 30

	// bucketSignals is the BoltDB bucket name for emitted-signal records.
	bucketSignals = "signals"

	// bucketMeta is the BoltDB bucket name for schema metadata.
	bucketMeta = "meta"
)

// SignalRecord is the persisted form of one emitted pipeline.Signal,
// stamped with the run's observation time and node identity. Stored as
// JSON in the signals bucket.
type SignalRecord struct {
	// RecordedAt is when driftctl wrote this entry (not the signal's
	// underlying bucket time, which lives inside Signal's evidence).
	RecordedAt time.Time `json:"recorded_at"`

	// NodeID is the driftctl node that recorded this entry.
	NodeID string `json:"node_id"`

	// BudgetRemaining is the evaluation-rate guard's token level at the
	// time this signal's Evaluate call ran.
	BudgetRemaining int `json:"budget_remaining"`

	Signal pipeline.Signal `json:"signal"`
}

// DB wraps a BoltDB instance with typed accessors for the signal ledger.
type DB struct {
	db            *bolt.DB
	retentionDays int
}

// Open opens (or creates) the BoltDB database at the given path.
// Initialises all required buckets and verifies the schema version.
// Returns an error if the database is corrupt or schema is incompatible.
func Open(path string, retentionDays int) (*DB, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		NoGrowSync:   false,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	d := &DB{db: bdb, retentionDays: retentionDays}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketSignals, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}

		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}

	if err := d.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return d, nil
}

// checkSchemaVersion reads and validates the stored schema version.
func (d *DB) checkSchemaVersion() error {
	return d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf(
				"schema version mismatch: database has %q, driftctl requires %q. "+
					"Run migration or restore from backup.",
				string(v), SchemaVersion,
			)
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (d *DB) Close() error {
	return d.db.Close()
}

// ─── Signal ledger operations ──────────────────────────────────────────────────

// signalKeyTimeLayout is RFC3339 with a fixed nine-digit fraction, so
// every key's timestamp prefix has the same width.
const signalKeyTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// signalKey constructs a sortable BoltDB key for a signal record.
// Format: fixed-width UTC timestamp + "_" + detection_id + "_" + entity_key.
// Lexicographic sort = chronological sort.
func signalKey(t time.Time, detectionID, entityKey string) []byte {
	return []byte(fmt.Sprintf("%s_%s_%s", t.UTC().Format(signalKeyTimeLayout), detectionID, entityKey))
}

// AppendSignal writes a new signal-ledger entry.
// Uses a single ACID write transaction.
func (d *DB) AppendSignal(rec SignalRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("AppendSignal marshal: %w", err)
	}

	key := signalKey(rec.RecordedAt, rec.Signal.DetectionID, rec.Signal.EntityKey)

	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSignals))
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("AppendSignal bolt.Put: %w", err)
		}
		return nil
	})
}

// PruneOldSignals deletes signal records older than retentionDays.
// driftctl calls it once at startup.
// Returns the number of entries deleted.
func (d *DB) PruneOldSignals() (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -d.retentionDays)
	cutoffKey := signalKey(cutoff, "", "")

	var deleted int
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSignals))
		c := b.Cursor()

		// Collect keys to delete (cannot delete during iteration in bbolt).
		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if string(k) >= string(cutoffKey) {
				break // All remaining keys are newer than cutoff.
			}
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			toDelete = append(toDelete, keyCopy)
		}

		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("PruneOldSignals delete: %w", err)
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// ReadSignals returns all ledger entries in chronological order.
// For operational use (CLI inspection). Not called on the hot path.
func (d *DB) ReadSignals() ([]SignalRecord, error) {
	var entries []SignalRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSignals))
		return b.ForEach(func(_, v []byte) error {
			var entry SignalRecord
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// Count returns the current number of signal records, for the
// observability package's StorageLedgerEntries gauge.
func (d *DB) Count() (int, error) {
	var n int
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSignals))
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}
