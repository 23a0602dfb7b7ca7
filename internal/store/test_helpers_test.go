package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestAccount inserts an account row with the given balance.
func insertTestAccount(t *testing.T, s *Store, id string, melons int64) {
	t.Helper()
	_, err := s.Insert(context.Background(), Insert{
		Table: "lanatus_account",
		Values: []Assignment{
			{Column: "player_uuid", Value: id},
			{Column: "melons", Value: melons},
			{Column: "lastrank", Value: "default"},
		},
	})
	if err != nil {
		t.Fatalf("insert account: %v", err)
	}
}

// selectMelons reads the stored balance of an account.
func selectMelons(t *testing.T, s *Store, id string) int64 {
	t.Helper()
	rows, err := s.Select(context.Background(), Query{
		Table:   "lanatus_account",
		Columns: []string{"melons"},
		Where:   "player_uuid = ?",
		Args:    []any{id},
	})
	if err != nil {
		t.Fatalf("select melons: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	n, err := rows[0].Int64("melons")
	if err != nil {
		t.Fatalf("melons: %v", err)
	}
	return n
}
