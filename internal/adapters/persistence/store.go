// Package persistence is the structured local cache database.
//
// Records live in named collections, each stamped with a write timestamp and
// TTL. Expired records are deleted lazily on read, in the same transaction as
// the read itself, so two concurrent readers can never observe a stale value.
//
// Initialization is asynchronous: operations issued before the database has
// finished opening wait on an internal ready gate. When the database cannot
// be opened at all (e.g. read-only data dir) every operation degrades to a
// miss/no-op and the caller's fallback tier takes over.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	CollectionStories    = "stories"
	CollectionUsers      = "users"
	CollectionStoryLists = "storyLists"
	CollectionAPICache   = "apiCache"
)

// TTLInfinite marks records that never expire (preferences).
const TTLInfinite = time.Duration(-1)

const dbFilename = "lumen-cache.db"

type Store struct {
	dbPath  string
	nowFunc func() time.Time
	logger  *slog.Logger

	// ready is closed once init settles; db stays nil if init failed.
	ready   chan struct{}
	db      *sqlx.DB
	initErr error
}

// NewStore opens (or creates) the cache database under dataDir. The returned
// store is usable immediately; operations block until initialization settles.
func NewStore(dataDir string, nowFunc func() time.Time, logger *slog.Logger) *Store {
	store := &Store{
		dbPath:  filepath.Join(dataDir, dbFilename),
		nowFunc: nowFunc,
		logger:  logger,
		ready:   make(chan struct{}),
	}

	go store.init()

	return store
}

func (s *Store) init() {
	defer close(s.ready)

	db, err := sqlx.Connect("sqlite", s.dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		s.initErr = fmt.Errorf("persistence: failed to open database: %w", err)
		s.logger.Warn("Cache database unavailable, falling back to key-value store", "error", s.initErr.Error())
		return
	}

	if err := newMigrator(db, s.logger.With("component", "migrator")).migrate(); err != nil {
		s.initErr = fmt.Errorf("persistence: failed to migrate database: %w", err)
		s.logger.Warn("Cache database migration failed, falling back to key-value store", "error", s.initErr.Error())
		db.Close()
		return
	}

	s.db = db
}

// ensureReady blocks until initialization settles and returns the database
// handle, or nil when the store is unavailable.
func (s *Store) ensureReady(ctx context.Context) *sqlx.DB {
	select {
	case <-s.ready:
		return s.db
	case <-ctx.Done():
		return nil
	}
}

// Available reports whether the backing database opened successfully. Blocks
// until initialization settles.
func (s *Store) Available(ctx context.Context) bool {
	return s.ensureReady(ctx) != nil
}

func (s *Store) Close() error {
	<-s.ready
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func expired(now time.Time, timestampMS int64, ttlMS int64) bool {
	if ttlMS < 0 {
		return false
	}
	return now.UnixMilli()-timestampMS > ttlMS
}

// Get returns the payload stored under (collection, key), or nil when the
// record is missing, expired, or the store is unavailable. An expired record
// is deleted before the transaction commits.
func (s *Store) Get(ctx context.Context, collection string, key string) []byte {
	db := s.ensureReady(ctx)
	if db == nil {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Warn("Failed to begin cache read transaction", "error", err.Error())
		return nil
	}
	defer tx.Rollback()

	var record struct {
		Data        []byte `db:"data"`
		TimestampMS int64  `db:"timestamp_ms"`
		TTLMS       int64  `db:"ttl_ms"`
	}
	err = tx.GetContext(
		ctx,
		&record,
		`SELECT data, timestamp_ms, ttl_ms FROM cache_records WHERE collection = ? AND key = ?`,
		collection,
		key,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.logger.Warn("Failed to read cache record", "collection", collection, "error", err.Error())
		return nil
	}

	if expired(s.nowFunc(), record.TimestampMS, record.TTLMS) {
		_, err = tx.ExecContext(
			ctx,
			`DELETE FROM cache_records WHERE collection = ? AND key = ?`,
			collection,
			key,
		)
		if err != nil {
			s.logger.Warn("Failed to delete expired cache record", "collection", collection, "error", err.Error())
			return nil
		}
		if err := tx.Commit(); err != nil {
			s.logger.Warn("Failed to commit expiry delete", "collection", collection, "error", err.Error())
		}
		return nil
	}

	return record.Data
}

// Set writes (collection, key) with the given TTL, overwriting any previous
// record. ttl < 0 (TTLInfinite) never expires. A no-op when the store is
// unavailable.
func (s *Store) Set(ctx context.Context, collection string, key string, data []byte, ttl time.Duration) error {
	db := s.ensureReady(ctx)
	if db == nil {
		return nil
	}

	ttlMS := int64(-1)
	if ttl >= 0 {
		ttlMS = ttl.Milliseconds()
	}

	_, err := db.ExecContext(
		ctx,
		`INSERT INTO cache_records (collection, key, data, timestamp_ms, ttl_ms)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET
		   data = excluded.data,
		   timestamp_ms = excluded.timestamp_ms,
		   ttl_ms = excluded.ttl_ms`,
		collection,
		key,
		data,
		s.nowFunc().UnixMilli(),
		ttlMS,
	)
	if err != nil {
		return fmt.Errorf("persistence: failed to write cache record: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, key string) error {
	db := s.ensureReady(ctx)
	if db == nil {
		return nil
	}

	_, err := db.ExecContext(
		ctx,
		`DELETE FROM cache_records WHERE collection = ? AND key = ?`,
		collection,
		key,
	)
	if err != nil {
		return fmt.Errorf("persistence: failed to delete cache record: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, collection string) error {
	db := s.ensureReady(ctx)
	if db == nil {
		return nil
	}

	_, err := db.ExecContext(ctx, `DELETE FROM cache_records WHERE collection = ?`, collection)
	if err != nil {
		return fmt.Errorf("persistence: failed to clear collection %q: %w", collection, err)
	}
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	db := s.ensureReady(ctx)
	if db == nil {
		return nil
	}

	_, err := db.ExecContext(ctx, `DELETE FROM cache_records`)
	if err != nil {
		return fmt.Errorf("persistence: failed to clear cache records: %w", err)
	}
	return nil
}

// Count returns the number of records in a collection, including not yet
// lazily-expired ones. 0 when the store is unavailable.
func (s *Store) Count(ctx context.Context, collection string) int64 {
	db := s.ensureReady(ctx)
	if db == nil {
		return 0
	}

	var count int64
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM cache_records WHERE collection = ?`, collection)
	if err != nil {
		s.logger.Warn("Failed to count cache records", "collection", collection, "error", err.Error())
		return 0
	}
	return count
}

type StorageStats struct {
	SizeBytes    int64
	RecordCounts map[string]int64
}

// Stats is best-effort: any failure yields zeros, never an error.
func (s *Store) Stats(ctx context.Context) StorageStats {
	stats := StorageStats{RecordCounts: map[string]int64{}}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.SizeBytes = info.Size()
	}

	for _, collection := range []string{CollectionStories, CollectionUsers, CollectionStoryLists, CollectionAPICache} {
		stats.RecordCounts[collection] = s.Count(ctx, collection)
	}

	return stats
}
