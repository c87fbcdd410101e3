// Package store provides SQL-backed persistence for Nandy entities.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// ErrNotFound indicates a referenced person, template or record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAmbiguous indicates a lookup expected to match one row matched several.
var ErrAmbiguous = errors.New("ambiguous match")

// ErrInUse indicates a delete was refused because other rows still reference
// the target.
var ErrInUse = errors.New("still in use")

// ErrUnsupportedDriver indicates Open was given a driver other than sqlite or pgx.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Store provides access to the Nandy database. Reads and single writes can go
// through the Store directly; state transitions go through RunInTx.
type Store struct {
	queries
	db *sql.DB
}

// Tx is one unit of work. It exposes the same operations as Store.
type Tx struct {
	queries
	tx *sql.Tx
}

// New creates a SQLite-backed Store at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	return Open(context.Background(), DriverSQLite, dbPath)
}

// Open connects to the database identified by driver and dsn and runs migrations.
// For sqlite the dsn is a file path.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		db, err = sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)")
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	s := &Store{queries: queries{q: db, driver: driver}, db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.driver
}

// RunInTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) RunInTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	tx := &Tx{queries: queries{q: sqlTx, driver: s.driver}, tx: sqlTx}
	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate(ctx context.Context) error {
	floatType, timeType := "REAL", "DATETIME"
	if s.driver == DriverPostgres {
		floatType, timeType = "DOUBLE PRECISION", "TIMESTAMPTZ"
	}

	statements := []string{`
	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT ''
	)`, `
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		data TEXT NOT NULL
	)`}
	for _, table := range recordTables {
		statements = append(statements, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		created %s NOT NULL,
		updated %s NOT NULL,
		data TEXT NOT NULL,
		FOREIGN KEY (person_id) REFERENCES persons(id)
	)`, table, floatType, floatType))
		statements = append(statements,
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_person_status ON %s(person_id, status)`, table, table))
	}
	statements = append(statements, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pdr (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		entity_id TEXT,
		details TEXT,
		timestamp %s NOT NULL
	)`, timeType),
		`CREATE INDEX IF NOT EXISTS idx_persons_name ON persons(name)`,
		`CREATE INDEX IF NOT EXISTS idx_pdr_entity_id ON pdr(entity_id)`,
	)

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q      querier
	driver string
}

// rebind rewrites ? placeholders to $n for postgres.
func (q *queries) rebind(query string) string {
	if q.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.q.ExecContext(ctx, q.rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.q.QueryContext(ctx, q.rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.q.QueryRowContext(ctx, q.rebind(query), args...)
}

// affected maps a zero-row write to ErrNotFound.
func affected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
