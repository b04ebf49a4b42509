// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics while snapshotting state into a JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"herdbook/internal/infra/persistence/memory"
	"herdbook/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/herdbook?sslmode=disable"
)

const (
	bucketAnimals        = "animals"
	bucketBreedingEvents = "breeding_events"
)

var postgresBuckets = []string{bucketAnimals, bucketBreedingEvents}

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
// Analysis reads go to the database, so storage failures reach callers as
// classified errors rather than stale data.
type Store struct {
	*memory.Store
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It ensures the snapshot table exists and hydrates the in-memory store from any existing snapshot.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Classify("ping postgres", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction applies the provided function within a transaction and
// snapshots the resulting state to Postgres before it becomes visible, so
// change listeners only run once the database holds the new state. A failed
// write leaves the in-memory state unchanged.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	return s.Store.RunInTransactionWithHook(ctx, fn, func(ctx context.Context, next memory.Snapshot) error {
		return s.persist(context.WithoutCancel(ctx), next)
	})
}

// FetchAllAnimals reads the animal population from the database.
func (s *Store) FetchAllAnimals(ctx context.Context) ([]domain.Animal, error) {
	snapshot, err := loadSnapshot(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return sortedValues(snapshot.Animals, func(a, b domain.Animal) bool { return a.ID < b.ID }), nil
}

// FetchBreedingEvents reads the breeding history from the database.
func (s *Store) FetchBreedingEvents(ctx context.Context) ([]domain.BreedingEvent, error) {
	snapshot, err := loadSnapshot(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return sortedValues(snapshot.BreedingEvents, func(a, b domain.BreedingEvent) bool {
		if !a.EventDate.Equal(b.EventDate) {
			return a.EventDate.Before(b.EventDate)
		}
		return a.ID < b.ID
	}), nil
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

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return Classify("ensure state table", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, Classify("select state", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	targets := map[string]any{
		bucketAnimals:        &snapshot.Animals,
		bucketBreedingEvents: &snapshot.BreedingEvents,
	}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, Classify("scan state", err)
		}
		if len(payload) == 0 {
			continue
		}
		if target, ok := targets[bucket]; ok {
			if err := json.Unmarshal(payload, target); err != nil {
				return memory.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, Classify("iterate state", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("begin tx", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range postgresBuckets {
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
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			return Classify("upsert "+bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Classify("commit", err)
	}
	committed = true
	return nil
}

// Classify wraps a database failure in a domain.StoreError. SQLSTATE class 28
// (invalid authorization) is unauthenticated; connection loss and admin
// shutdown are unavailable; everything else is internal.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "28"):
			return domain.NewStoreError(op, domain.KindUnauthenticated, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return domain.NewStoreError(op, domain.KindUnavailable, err)
		}
		return domain.NewStoreError(op, domain.KindInternal, err)
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connErr), errors.Is(err, driver.ErrBadConn), errors.As(err, &netErr):
		return domain.NewStoreError(op, domain.KindUnavailable, err)
	case pgconn.Timeout(err), errors.Is(err, context.DeadlineExceeded):
		return domain.NewStoreError(op, domain.KindUnavailable, err)
	}
	return domain.NewStoreError(op, domain.KindInternal, err)
}

func sortedValues[T any](m map[string]T, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
