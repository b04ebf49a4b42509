// Package sqlite persists herd state to a single SQLite file as JSON snapshots.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	msqlite "modernc.org/sqlite" // pure go sqlite driver
	sqlite3 "modernc.org/sqlite/lib"

	"herdbook/internal/infra/persistence/memory"
	"herdbook/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "herdbook.db"

const (
	bucketAnimals        = "animals"
	bucketBreedingEvents = "breeding_events"
)

var sqliteBuckets = []string{bucketAnimals, bucketBreedingEvents}

// Store persists the in-memory state to a single SQLite table as JSON blobs.
// It snapshots the full state after every successful transaction.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := memory.Snapshot{}
	var found bool
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		found = true
		switch bucket {
		case bucketAnimals:
			if err := json.Unmarshal(payload, &snapshot.Animals); err != nil {
				return fmt.Errorf("decode animals: %w", err)
			}
		case bucketBreedingEvents:
			if err := json.Unmarshal(payload, &snapshot.BreedingEvents); err != nil {
				return fmt.Errorf("decode breeding events: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if found {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		var data []byte
		switch bucket {
		case bucketAnimals:
			data, err = json.Marshal(snapshot.Animals)
		case bucketBreedingEvents:
			data, err = json.Marshal(snapshot.BreedingEvents)
		}
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return classify("upsert "+bucket, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

// RunInTransaction applies the provided function within a transaction and
// snapshots the resulting state to SQLite before it becomes visible. A failed
// write leaves both the file and the in-memory state unchanged.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	return s.Store.RunInTransactionWithHook(ctx, fn, func(ctx context.Context, next memory.Snapshot) error {
		return s.persist(context.WithoutCancel(ctx), next)
	})
}

// WriteDetectedDepth records depth on the animal and persists the change.
func (s *Store) WriteDetectedDepth(ctx context.Context, animalID string, depth int) error {
	return memory.UpdateDepth(ctx, s, animalID, depth)
}

// WriteDetectedDepths records a batch of depths with a single snapshot write.
func (s *Store) WriteDetectedDepths(ctx context.Context, depths map[string]int) (map[string]error, error) {
	return memory.UpdateDepths(ctx, s, depths)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// classify marks lock contention as retryable; everything else is internal.
func classify(op string, err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return domain.NewStoreError("sqlite "+op, domain.KindUnavailable, err)
		}
	}
	return domain.NewStoreError("sqlite "+op, domain.KindInternal, err)
}
