package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"lanatus_account", "lanatus_product", "lanatus_purchase"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpenDSN_UnknownDriver(t *testing.T) {
	_, err := OpenDSN("mysql", "whatever")
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	insertTestAccount(t, s, "p1", 5)
	if got := selectMelons(t, s, "p1"); got != 5 {
		t.Errorf("melons = %d, want 5", got)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestSelect_EmptyResultIsNotNil(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.Select(context.Background(), Query{
		Table:   "lanatus_purchase",
		Columns: []string{"id"},
		Where:   "player_uuid = ?",
		Args:    []any{"nobody"},
	})
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if rows == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(rows) != 0 {
		t.Errorf("expected 0 rows, got %d", len(rows))
	}
}

func TestUpdate_DeltaMerges(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestAccount(t, s, "p1", 420)

	for _, delta := range []int64{-20, 50} {
		n, err := s.Update(ctx, Update{
			Table:     "lanatus_account",
			Set:       []Assignment{{Column: "melons", Value: delta, Delta: true}},
			KeyColumn: "player_uuid",
			Key:       "p1",
		})
		if err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		if n != 1 {
			t.Fatalf("affected = %d, want 1", n)
		}
	}

	if got := selectMelons(t, s, "p1"); got != 450 {
		t.Errorf("melons = %d, want 450", got)
	}
}

func TestUpdate_MissingRowAffectsNothing(t *testing.T) {
	s := createTestStore(t)

	n, err := s.Update(context.Background(), Update{
		Table: "lanatus_account",
		Set: []Assignment{
			{Column: "melons", Value: int64(1), Delta: true},
			{Column: "lastrank", Value: "vip"},
		},
		KeyColumn: "player_uuid",
		Key:       "ghost",
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("affected = %d, want 0", n)
	}
}

func TestUpdate_RequiresAssignments(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Update(context.Background(), Update{
		Table:     "lanatus_account",
		KeyColumn: "player_uuid",
		Key:       "p1",
	})
	if err == nil {
		t.Fatal("expected error for empty update")
	}
}

func TestInsert_IgnoreConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestAccount(t, s, "p1", 7)

	n, err := s.Insert(ctx, Insert{
		Table: "lanatus_account",
		Values: []Assignment{
			{Column: "player_uuid", Value: "p1"},
			{Column: "melons", Value: int64(0)},
		},
		IgnoreConflict: true,
	})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("affected = %d, want 0", n)
	}
	if got := selectMelons(t, s, "p1"); got != 7 {
		t.Errorf("melons = %d, want 7 (existing row must survive)", got)
	}
}

func TestInsert_RejectsDelta(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Insert(context.Background(), Insert{
		Table:  "lanatus_account",
		Values: []Assignment{{Column: "melons", Value: int64(1), Delta: true}},
	})
	if err == nil {
		t.Fatal("expected error for delta in insert")
	}
}

func TestInTx_RollbackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestAccount(t, s, "p1", 10)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ex Executor) error {
		if _, err := ex.Update(ctx, Update{
			Table:     "lanatus_account",
			Set:       []Assignment{{Column: "melons", Value: int64(5), Delta: true}},
			KeyColumn: "player_uuid",
			Key:       "p1",
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}
	if got := selectMelons(t, s, "p1"); got != 10 {
		t.Errorf("melons = %d, want 10 after rollback", got)
	}
}

func TestInTx_Commit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestAccount(t, s, "p1", 10)

	err := s.InTx(ctx, func(ex Executor) error {
		_, err := ex.Update(ctx, Update{
			Table:     "lanatus_account",
			Set:       []Assignment{{Column: "melons", Value: int64(-3), Delta: true}},
			KeyColumn: "player_uuid",
			Key:       "p1",
		})
		return err
	})
	if err != nil {
		t.Fatalf("InTx() failed: %v", err)
	}
	if got := selectMelons(t, s, "p1"); got != 7 {
		t.Errorf("melons = %d, want 7", got)
	}
}

func TestRow_TimeAndUUIDRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	productID := uuid.New()
	purchaseID := uuid.New()
	created := time.Date(2016, 10, 10, 12, 30, 0, 0, time.UTC)

	_, err := s.Insert(ctx, Insert{
		Table: "lanatus_product",
		Values: []Assignment{
			{Column: "id", Value: productID.String()},
			{Column: "module", Value: "test"},
			{Column: "name", Value: "hat"},
		},
	})
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	_, err = s.Insert(ctx, Insert{
		Table: "lanatus_purchase",
		Values: []Assignment{
			{Column: "id", Value: purchaseID.String()},
			{Column: "player_uuid", Value: uuid.New().String()},
			{Column: "product_id", Value: productID.String()},
			{Column: "created", Value: created},
			{Column: "data", Value: nil},
		},
	})
	if err != nil {
		t.Fatalf("insert purchase: %v", err)
	}

	rows, err := s.Select(ctx, Query{
		Table:   "lanatus_purchase",
		Columns: []string{"id", "created", "data"},
		Where:   "id = ?",
		Args:    []any{purchaseID.String()},
	})
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	gotID, err := rows[0].UUID("id")
	if err != nil || gotID != purchaseID {
		t.Errorf("UUID() = %v, %v; want %v", gotID, err, purchaseID)
	}
	gotCreated, err := rows[0].Time("created")
	if err != nil || !gotCreated.Equal(created) {
		t.Errorf("Time() = %v, %v; want %v", gotCreated, err, created)
	}
	if _, ok, err := rows[0].NullString("data"); ok || err != nil {
		t.Errorf("NullString(data) = ok %v, err %v; want NULL", ok, err)
	}
	if _, err := rows[0].String("data"); !errors.Is(err, ErrNull) {
		t.Errorf("String(data) error = %v, want ErrNull", err)
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{DialectSQLite, "a = ? AND b = ?", "a = ? AND b = ?"},
		{DialectPostgres, "a = ? AND b = ?", "a = $1 AND b = $2"},
		{DialectPostgres, "a = '?' AND b = ?", "a = '?' AND b = $1"},
		{DialectPostgres, "no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		if got := rebind(tt.dialect, tt.in); got != tt.want {
			t.Errorf("rebind(%d, %q) = %q, want %q", tt.dialect, tt.in, got, tt.want)
		}
	}
}

func TestUpdateRender(t *testing.T) {
	q, args, err := Update{
		Table: "lanatus_account",
		Set: []Assignment{
			{Column: "melons", Value: int64(-20), Delta: true},
			{Column: "lastrank", Value: "vip"},
		},
		KeyColumn: "player_uuid",
		Key:       "p1",
	}.render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "UPDATE lanatus_account SET melons = melons + ?, lastrank = ? WHERE player_uuid = ?"
	if q != want {
		t.Errorf("query = %q, want %q", q, want)
	}
	if len(args) != 3 || args[2] != "p1" {
		t.Errorf("args = %v", args)
	}
}

func TestAsInt64(t *testing.T) {
	for _, v := range []any{int64(3), 3, int32(3), []byte("3"), "3"} {
		n, err := AsInt64(v)
		if err != nil || n != 3 {
			t.Errorf("AsInt64(%#v) = %d, %v", v, n, err)
		}
	}
	if _, err := AsInt64(nil); !errors.Is(err, ErrNull) {
		t.Errorf("AsInt64(nil) error = %v, want ErrNull", err)
	}
}

// bigBalance does not fit in 32 bits.
const bigBalance = int64(5_000_000_000)

func TestUpdate_DeltaBeyond32Bits(t *testing.T) {
	s := createTestStore(t)
	insertTestAccount(t, s, "p1", bigBalance)

	_, err := s.Update(context.Background(), Update{
		Table:     "lanatus_account",
		Set:       []Assignment{{Column: "melons", Value: bigBalance, Delta: true}},
		KeyColumn: "player_uuid",
		Key:       "p1",
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if got := selectMelons(t, s, "p1"); got != 2*bigBalance {
		t.Errorf("melons = %d, want %d", got, 2*bigBalance)
	}
}

// TestOpenDSN_Postgres runs against the server named by
// LANATUS_TEST_POSTGRES_DSN and is skipped without it.
func TestOpenDSN_Postgres(t *testing.T) {
	dsn := os.Getenv("LANATUS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LANATUS_TEST_POSTGRES_DSN not set")
	}

	s, err := OpenDSN(DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("OpenDSN(pgx) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if s.Dialect() != DialectPostgres {
		t.Fatalf("dialect = %v, want postgres", s.Dialect())
	}

	// Reopening re-runs schema and migrations.
	again, err := OpenDSN(DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("second OpenDSN(pgx) failed: %v", err)
	}
	again.Close()

	id := uuid.NewString()
	t.Cleanup(func() {
		s.DB().Exec("DELETE FROM lanatus_account WHERE player_uuid = $1", id)
	})
	insertTestAccount(t, s, id, bigBalance)

	ctx := context.Background()
	err = s.InTx(ctx, func(ex Executor) error {
		n, err := ex.Update(ctx, Update{
			Table:     "lanatus_account",
			Set:       []Assignment{{Column: "melons", Value: int64(-1), Delta: true}},
			KeyColumn: "player_uuid",
			Key:       id,
		})
		if err == nil && n != 1 {
			t.Errorf("affected = %d, want 1", n)
		}
		return err
	})
	if err != nil {
		t.Fatalf("InTx() failed: %v", err)
	}
	if got := selectMelons(t, s, id); got != bigBalance-1 {
		t.Errorf("melons = %d, want %d", got, bigBalance-1)
	}

	rows, err := s.Select(ctx, Query{Table: "lanatus_account", Columns: []string{"melons"}, Where: "player_uuid = ?", Args: []any{uuid.NewString()}})
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %v, want empty non-nil", rows)
	}
}
