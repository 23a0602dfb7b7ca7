// Package store provides the SQL row source and update executor behind the
// ledger repositories.
//
// The store is deliberately thin. It knows nothing about accounts or
// purchases; it renders three statement shapes and returns materialised
// rows:
//   - Query:  SELECT <columns> FROM <table> WHERE <predicate> [ORDER BY ...]
//   - Update: UPDATE <table> SET col = ?, col = col + ? WHERE <key> = ?
//   - Insert: INSERT INTO <table> (...) VALUES (...) [ON CONFLICT DO NOTHING]
//
// Delta assignments (col = col + ?) are what make concurrent ledger writes
// merge instead of overwrite: two writers adding +a and +b to the same row
// both take effect regardless of order.
//
// # Drivers
//
//   - sqlite3 (github.com/mattn/go-sqlite3): default; WAL mode, one
//     connection, busy_timeout=5000, foreign_keys=ON
//   - pgx (github.com/jackc/pgx/v5/stdlib): Postgres; '?' placeholders are
//     rebound to $n
//
// # Rows
//
// Select reads every row into memory and closes the cursor before
// returning. Decoders may therefore run nested queries (a purchase resolving
// its product) even on the single SQLite connection.
package store
