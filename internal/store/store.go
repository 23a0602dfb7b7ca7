package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on lanatus_purchase.product_id
// 2 - Balance columns widened to BIGINT (no-op on SQLite)
const currentSchemaVersion = 2

// Driver names accepted by OpenDSN.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Dialect selects placeholder syntax and setup statements.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// Store is the row source and update executor for the ledger tables.
// It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	return OpenDSN(DriverSQLite, path)
}

// OpenDSN opens a store with an explicit driver ("sqlite3" or "pgx").
// The schema is applied idempotently; safe to call multiple times.
func OpenDSN(driver, dsn string) (*Store, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == DialectSQLite {
		// SQLite only supports one writer at a time, so limit connections.
		// This also keeps ":memory:" databases alive for the store's lifetime.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	if err := applySchema(db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, dialect: dialect}, nil
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverSQLite:
		return DialectSQLite, nil
	case DriverPostgres:
		return DialectPostgres, nil
	default:
		return 0, fmt.Errorf("unsupported driver %q: must be %q or %q", driver, DriverSQLite, DriverPostgres)
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports the SQL dialect of the store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// InTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise; fn's error is returned unchanged.
func (s *Store) InTx(ctx context.Context, fn func(Executor) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&executor{q: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) exec() *executor {
	return &executor{q: s.db, dialect: s.dialect}
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
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
func applySchema(db *sql.DB, dialect Dialect) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	if err := runMigrations(db, dialect); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations.
// SQLite tracks progress in user_version; Postgres re-runs the (idempotent)
// migrations on every open.
func runMigrations(db *sql.DB, dialect Dialect) error {
	if dialect != DialectSQLite {
		if err := migrateToV1(db); err != nil {
			return err
		}
		return migrateToV2(db)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes purchases by product for catalog reports.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_purchase_product
		ON lanatus_purchase(product_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// widenedColumns were INTEGER before schema version 2.
var widenedColumns = [][2]string{
	{"lanatus_account", "melons"},
	{"lanatus_product", "melonscost"},
	{"lanatus_purchase", "melonscost"},
}

// migrateToV2 widens balance columns to BIGINT on Postgres, where INTEGER
// is 32-bit. SQLite integers are always 64-bit, so it is never called there.
func migrateToV2(db *sql.DB) error {
	for _, c := range widenedColumns {
		var dataType string
		err := db.QueryRow(
			`SELECT data_type FROM information_schema.columns WHERE table_name = $1 AND column_name = $2`,
			c[0], c[1]).Scan(&dataType)
		if err != nil {
			return fmt.Errorf("migrate to v2: inspect %s.%s: %w", c[0], c[1], err)
		}
		if dataType == "bigint" {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE BIGINT", c[0], c[1])); err != nil {
			return fmt.Errorf("migrate to v2: widen %s.%s: %w", c[0], c[1], err)
		}
	}
	return nil
}

// splitStatements splits a schema script on semicolons, dropping blanks.
func splitStatements(script string) []string {
	var stmts []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
