// Package history provides an optional BoltDB-backed run ledger for
// thermite, grounded on the teacher's internal/storage/bolt.go.
//
// Schema (BoltDB bucket layout):
//
//	/runs
//	    key:   fixed-width RFC3339 UTC start timestamp with nanoseconds
//	           + "_" + function id [sortable]
//	    value: JSON-encoded RunRecord
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// Consistency model:
//   - Single-process, single-writer (bbolt does not support concurrent
//     writers); thermite's controller is itself single-run-at-a-time.
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - Reads use read-only transactions (bbolt.View()).
//
// Retention: the most recent RetentionRuns entries are kept; older ones
// are pruned after each append. Unlike the teacher's day-based retention,
// thermite runs are bursty and short, so count-based retention is the
// more natural fit here.
//
// This package is entirely optional (config.HistoryConfig.Enabled) — a
// run with history disabled never touches disk.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	bucketRuns = "runs"
	bucketMeta = "meta"
)

// RunRecord is the persisted summary of one completed engine run. Stored
// as JSON in the runs bucket.
type RunRecord struct {
	StartedAt          time.Time     `json:"started_at"`
	Platform           string        `json:"platform"`
	FunctionID         int           `json:"function_id"`
	Threads            int           `json:"threads"`
	Elapsed            time.Duration `json:"elapsed"`
	TotalIterations    uint64        `json:"total_iterations"`
	EstimatedGFLOPS    float64       `json:"estimated_gflops"`
	EstimatedBandwidth float64       `json:"estimated_bandwidth_bytes_per_second"`
	ExitCode           int           `json:"exit_code"`
}

// DB wraps a BoltDB instance with typed accessors for the run ledger.
type DB struct {
	db            *bolt.DB
	retentionRuns int
}

// Open opens (or creates) the BoltDB database at path, initializing
// buckets and verifying the schema version.
func Open(path string, retentionRuns int) (*DB, error) {
	if retentionRuns <= 0 {
		retentionRuns = 100
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	d := &DB{db: bdb, retentionRuns: retentionRuns}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketRuns, bucketMeta} {
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

func (d *DB) checkSchemaVersion() error {
	return d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf("schema version mismatch: database has %q, thermite requires %q", string(v), SchemaVersion)
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (d *DB) Close() error {
	return d.db.Close()
}

// runKey constructs a sortable BoltDB key: a UTC timestamp with all nine
// fractional digits kept + "_" + function id (zero-padded). Every key has
// the same width, so lexicographic sort equals chronological sort.
func runKey(t time.Time, functionID int) []byte {
	return []byte(fmt.Sprintf("%s_%06d", t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), functionID))
}

// AppendRun writes a new run record, then prunes down to retentionRuns
// entries, oldest first.
func (d *DB) AppendRun(rec RunRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("AppendRun marshal: %w", err)
	}
	key := runKey(rec.StartedAt, rec.FunctionID)

	if err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))
		return b.Put(key, data)
	}); err != nil {
		return fmt.Errorf("AppendRun bolt.Put: %w", err)
	}

	_, err = d.pruneToRetention()
	return err
}

// pruneToRetention deletes the oldest entries beyond retentionRuns,
// returning the number of entries deleted.
func (d *DB) pruneToRetention() (int, error) {
	var deleted int
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))
		count := b.Stats().KeyN
		if count <= d.retentionRuns {
			return nil
		}
		excess := count - d.retentionRuns

		c := b.Cursor()
		var toDelete [][]byte
		for k, _ := c.First(); k != nil && len(toDelete) < excess; k, _ = c.Next() {
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			toDelete = append(toDelete, keyCopy)
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("pruneToRetention delete: %w", err)
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// ReadRuns returns every stored run record in chronological order. For
// operational inspection; not called on the hot path.
func (d *DB) ReadRuns() ([]RunRecord, error) {
	var runs []RunRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))
		return b.ForEach(func(_, v []byte) error {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			runs = append(runs, rec)
			return nil
		})
	})
	return runs, err
}
