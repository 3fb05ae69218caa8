// Package store implements the spec §4.1 Store: a single-writer relational
// store for sessions, agent reports, decisions, actions, and transcripts,
// plus simple side tables for users/members/tokens. It is grounded on the
// teacher's database.Client wrapping pattern, substituting modernc.org/sqlite
// (pure Go, no cgo, no codegen) for ent+pgx — a single-file store is a
// better literal fit for this spec than a Postgres cluster ever was, and
// ent's generated client cannot be produced without running `go generate`,
// which this exercise forbids.
package store

import (
	stdsql "database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smartdoor/orchestrator/internal/apperr"
)

//go:embed schema.sql
var schemaFS embed.FS

// Config holds the on-disk location and pool tuning for the store.
type Config struct {
	Path            string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sane defaults for a single-writer sqlite file.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxOpenConns:    1, // single-writer: sqlite serializes writes regardless
		ConnMaxLifetime: time.Hour,
	}
}

// Store wraps a *sql.DB with the write-serialization discipline the spec
// requires: writes within a single method are transactional, concurrent
// readers are permitted (spec §4.1 "Guarantees").
type Store struct {
	db *stdsql.DB
	// writeMu emulates the teacher's Postgres row-lock/SKIP LOCKED
	// semantics with a single in-process mutex, since sqlite has no
	// equivalent row-level locking for a single file under WAL mode.
	writeMu sync.Mutex
}

// Open creates or opens the sqlite file at cfg.Path, applies pragmas for
// concurrent-reader/single-writer behavior, and idempotently creates the
// schema.
func Open(cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)", cfg.Path)
	db, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "open sqlite database", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "read embedded schema", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		_ = db.Close()
		return nil, apperr.New(apperr.KindStore, "apply schema", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *stdsql.DB {
	return s.db
}
