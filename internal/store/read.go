package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Query describes a single-table selection.
//
// Where is a SQL predicate using '?' placeholders bound to Args; an empty
// Where selects every row. OrderBy is appended verbatim when set.
type Query struct {
	Table   string
	Columns []string
	Where   string
	Args    []any
	OrderBy string
}

func (q Query) render() (string, error) {
	if q.Table == "" {
		return "", fmt.Errorf("query: table is required")
	}
	if len(q.Columns) == 0 {
		return "", fmt.Errorf("query %s: no columns", q.Table)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(q.Columns, ", "), q.Table)
	if q.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", q.Where)
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", q.OrderBy)
	}
	return b.String(), nil
}

// Executor is the statement surface used by repositories. *Store and the
// handle passed to InTx both implement it.
type Executor interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	Update(ctx context.Context, u Update) (int64, error)
	Insert(ctx context.Context, in Insert) (int64, error)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type executor struct {
	q       queryer
	dialect Dialect
}

// Select runs q and returns every matching row.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Select(ctx context.Context, q Query) ([]Row, error) {
	return s.exec().Select(ctx, q)
}

func (e *executor) Select(ctx context.Context, q Query) ([]Row, error) {
	query, err := q.render()
	if err != nil {
		return nil, err
	}

	rows, err := e.q.QueryContext(ctx, rebind(e.dialect, query), q.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", q.Table, err)
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Table, err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Table, err)
	}

	return result, nil
}

// rebind converts '?' placeholders to the dialect's syntax.
// Question marks inside single-quoted literals are left alone.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			fmt.Fprintf(&b, "$%d", n)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
