package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lanatus/internal/store"
	"github.com/roach88/lanatus/internal/testutil"
)

// openTestStore opens a file-backed store in a temp dir. Stores opened on
// the same path share the database, like two server processes would.
func openTestStore(t *testing.T, path string) *store.Store {
	t.Helper()
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	s := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	return newClientOn(s)
}

func newClientOn(s *store.Store) *Client {
	return NewClient(s,
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs()))
}

func seedAccount(t *testing.T, s *store.Store, player uuid.UUID, melons int64) {
	t.Helper()
	_, err := s.Insert(context.Background(), store.Insert{
		Table: accountTable,
		Values: []store.Assignment{
			{Column: "player_uuid", Value: player.String()},
			{Column: "melons", Value: melons},
			{Column: "lastrank", Value: DefaultRank},
		},
	})
	require.NoError(t, err)
}

func remoteMelons(t *testing.T, s *store.Store, player uuid.UUID) int64 {
	t.Helper()
	rows, err := s.Select(context.Background(), store.Query{
		Table:   accountTable,
		Columns: []string{"melons"},
		Where:   "player_uuid = ?",
		Args:    []any{player.String()},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	n, err := rows[0].Int64("melons")
	require.NoError(t, err)
	return n
}

func seedProduct(t *testing.T, c *Client, name string, cost int64) *Product {
	t.Helper()
	p, err := c.Products.Register(context.Background(), ProductRegistration{
		ID:          uuid.New(),
		Module:      "test",
		Name:        name,
		DisplayName: name,
		MelonsCost:  cost,
		Active:      true,
	})
	require.NoError(t, err)
	return p
}
