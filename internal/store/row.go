package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrNull is returned by typed accessors when the column holds SQL NULL.
var ErrNull = errors.New("value is NULL")

// Row is one materialised result row keyed by column name.
// A column that is present with a nil value is SQL NULL; a column that is
// absent was not selected.
type Row map[string]any

// Lookup returns the raw value of a column and whether it was selected.
func (r Row) Lookup(column string) (any, bool) {
	v, ok := r[column]
	return v, ok
}

// Has reports whether the column was selected.
func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

func (r Row) raw(column string) (any, error) {
	v, ok := r[column]
	if !ok {
		return nil, fmt.Errorf("column %q not in row", column)
	}
	return v, nil
}

// String returns a TEXT column. NULL is an error.
func (r Row) String(column string) (string, error) {
	v, err := r.raw(column)
	if err != nil {
		return "", err
	}
	s, err := AsString(v)
	if err != nil {
		return "", fmt.Errorf("column %q: %w", column, err)
	}
	return s, nil
}

// NullString returns a nullable TEXT column; ok is false for NULL.
func (r Row) NullString(column string) (s string, ok bool, err error) {
	v, err := r.raw(column)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	s, err = AsString(v)
	if err != nil {
		return "", false, fmt.Errorf("column %q: %w", column, err)
	}
	return s, true, nil
}

// Int64 returns an INTEGER column. NULL is an error.
func (r Row) Int64(column string) (int64, error) {
	v, err := r.raw(column)
	if err != nil {
		return 0, err
	}
	n, err := AsInt64(v)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", column, err)
	}
	return n, nil
}

// UUID returns a UUID stored as TEXT.
func (r Row) UUID(column string) (uuid.UUID, error) {
	v, err := r.raw(column)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := AsUUID(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("column %q: %w", column, err)
	}
	return id, nil
}

// Time returns a TIMESTAMP column.
func (r Row) Time(column string) (time.Time, error) {
	v, err := r.raw(column)
	if err != nil {
		return time.Time{}, err
	}
	t, err := AsTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %q: %w", column, err)
	}
	return t, nil
}

// AsString converts a driver value to a string.
func AsString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", ErrNull
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", v)
	}
}

// AsInt64 converts a driver value to an int64.
func AsInt64(v any) (int64, error) {
	switch val := v.(type) {
	case nil:
		return 0, ErrNull
	case int64:
		return val, nil
	case int32:
		return int64(val), nil
	case int:
		return int64(val), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(val), 10, 64)
	case string:
		return strconv.ParseInt(val, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

// AsUUID converts a driver value to a UUID.
func AsUUID(v any) (uuid.UUID, error) {
	switch val := v.(type) {
	case nil:
		return uuid.Nil, ErrNull
	case [16]byte:
		return uuid.UUID(val), nil
	default:
		s, err := AsString(v)
		if err != nil {
			return uuid.Nil, err
		}
		return uuid.Parse(s)
	}
}

// timeLayouts are tried in order when a timestamp arrives as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// AsTime converts a driver value to a time.Time. Integers are unix
// milliseconds.
func AsTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, ErrNull
	case time.Time:
		return val, nil
	case int64:
		return time.UnixMilli(val).UTC(), nil
	default:
		s, err := AsString(v)
		if err != nil {
			return time.Time{}, err
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as timestamp", s)
	}
}
