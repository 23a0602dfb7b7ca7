package store

import (
	"context"
	"fmt"
	"strings"
)

// Assignment is one column's contribution to a write.
// A delta assignment renders as "col = col + ?", an absolute one as
// "col = ?".
type Assignment struct {
	Column string
	Value  any
	Delta  bool
}

// Update describes an update of one row addressed by its unique key.
type Update struct {
	Table     string
	Set       []Assignment
	KeyColumn string
	Key       any
}

func (u Update) render() (string, []any, error) {
	if u.Table == "" || u.KeyColumn == "" {
		return "", nil, fmt.Errorf("update: table and key column are required")
	}
	if len(u.Set) == 0 {
		return "", nil, fmt.Errorf("update %s: no assignments", u.Table)
	}

	clauses := make([]string, 0, len(u.Set))
	args := make([]any, 0, len(u.Set)+1)
	for _, a := range u.Set {
		if a.Delta {
			clauses = append(clauses, fmt.Sprintf("%s = %s + ?", a.Column, a.Column))
		} else {
			clauses = append(clauses, fmt.Sprintf("%s = ?", a.Column))
		}
		args = append(args, a.Value)
	}
	args = append(args, u.Key)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		u.Table, strings.Join(clauses, ", "), u.KeyColumn)
	return query, args, nil
}

// Insert describes a single-row insert. With IgnoreConflict set, a row that
// collides with an existing key is silently skipped (zero rows affected).
type Insert struct {
	Table          string
	Values         []Assignment
	IgnoreConflict bool
}

func (in Insert) render() (string, []any, error) {
	if in.Table == "" {
		return "", nil, fmt.Errorf("insert: table is required")
	}
	if len(in.Values) == 0 {
		return "", nil, fmt.Errorf("insert %s: no values", in.Table)
	}

	columns := make([]string, len(in.Values))
	marks := make([]string, len(in.Values))
	args := make([]any, len(in.Values))
	for i, a := range in.Values {
		if a.Delta {
			return "", nil, fmt.Errorf("insert %s: delta assignment for %s", in.Table, a.Column)
		}
		columns[i] = a.Column
		marks[i] = "?"
		args[i] = a.Value
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		in.Table, strings.Join(columns, ", "), strings.Join(marks, ", "))
	if in.IgnoreConflict {
		query += " ON CONFLICT DO NOTHING"
	}
	return query, args, nil
}

// Update executes u and returns the number of affected rows.
// Zero affected rows is not an error at this layer; callers decide whether
// it means a conflict.
func (s *Store) Update(ctx context.Context, u Update) (int64, error) {
	return s.exec().Update(ctx, u)
}

func (e *executor) Update(ctx context.Context, u Update) (int64, error) {
	query, args, err := u.render()
	if err != nil {
		return 0, err
	}

	result, err := e.q.ExecContext(ctx, rebind(e.dialect, query), args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", u.Table, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: rows affected: %w", u.Table, err)
	}
	return n, nil
}

// Insert executes in and returns the number of inserted rows.
func (s *Store) Insert(ctx context.Context, in Insert) (int64, error) {
	return s.exec().Insert(ctx, in)
}

func (e *executor) Insert(ctx context.Context, in Insert) (int64, error) {
	query, args, err := in.render()
	if err != nil {
		return 0, err
	}

	result, err := e.q.ExecContext(ctx, rebind(e.dialect, query), args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", in.Table, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert %s: rows affected: %w", in.Table, err)
	}
	return n, nil
}
