package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tead/internal/query"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is the user_version of a fully migrated database.
// Version 1 added the (ts, id) index for scans without a target filter.
// Version 2 added the (target, digest) index for duplicate suppression.
const currentSchemaVersion = 2

// Store provides durable storage for recorded entries.
// Uses SQLite with WAL mode for concurrent read access.
//
// Store implements capture.Sink and query.Source.
//
// Thread-safety: Store is safe for concurrent use; database/sql serializes
// access to the single connection.
type Store struct {
	db       *sql.DB
	compiler *query.SQLCompiler
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates or opens the entry database at path, applying pragmas
// (WAL journal, NORMAL sync, 5s busy timeout) and migrations. Opening an
// existing database is a no-op beyond that.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return New(db, opts...), nil
}

// New wraps an already prepared database. The schema is not applied; use
// Open for SQLite files. Tests use it with go-sqlmock.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, compiler: query.NewSQLCompiler(), logger: slog.Default()}
	s.compiler.Columns = "id, data"
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database, for maintenance such as VACUUM.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// migration upgrades a database to version.
type migration struct {
	version int
	stmt    string
}

// migrations run in order against databases whose user_version is older.
// Every statement must be safe to re-run, since a fresh database gets the
// full schema first and then all migrations.
var migrations = []migration{
	{1, `CREATE INDEX IF NOT EXISTS idx_entries_ts_id ON entries(ts, id)`},
	{2, `CREATE INDEX IF NOT EXISTS idx_entries_target_digest ON entries(target, digest)`},
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	stmt := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(stmt).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
