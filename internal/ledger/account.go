package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/lanatus/internal/errs"
	"github.com/roach88/lanatus/internal/holder"
	"github.com/roach88/lanatus/internal/registry"
)

const (
	accountTable = "lanatus_account"

	// DefaultRank is the rank of an account that has never been saved.
	DefaultRank = "default"
)

// account is the holder aggregate behind one lanatus_account row.
type account struct {
	id       *holder.Identifier[uuid.UUID]
	melons   *holder.Modifier[int64]
	lastRank *holder.Value[string]
}

var accountSchema = mustValid(newAccountSchema())

func newAccountSchema() *registry.Schema[account] {
	s := registry.NewSchema[account](accountTable, "player_uuid")
	registry.Identifier(s, "player_uuid", holder.UUID, func(a *account) **holder.Identifier[uuid.UUID] { return &a.id })
	registry.Modifier(s, "melons", holder.Int64, func(a *account) **holder.Modifier[int64] { return &a.melons })
	registry.Value(s, "lastrank", holder.String, func(a *account) **holder.Value[string] { return &a.lastRank })
	return s
}

func mustValid[E any](s *registry.Schema[E]) *registry.Schema[E] {
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

// AccountSnapshot is an immutable point-in-time copy of an account.
type AccountSnapshot struct {
	PlayerID uuid.UUID
	Melons   int64
	LastRank string

	// TakenAt is when the snapshot was read from the store.
	TakenAt time.Time

	// Persisted is false for the default snapshot of a player without a row.
	Persisted bool
}

// IsDefault reports whether every field still has its default value.
func (s *AccountSnapshot) IsDefault() bool {
	return s.Melons == 0 && s.LastRank == DefaultRank
}

func defaultSnapshot(id uuid.UUID, at time.Time) *AccountSnapshot {
	return &AccountSnapshot{
		PlayerID: id,
		LastRank: DefaultRank,
		TakenAt:  at,
	}
}

func snapshotOf(a *account, at time.Time) *AccountSnapshot {
	id, _ := a.id.Value()
	melons, _ := a.melons.Value()
	rank, ok := a.lastRank.Value()
	if !ok {
		rank = DefaultRank
	}
	return &AccountSnapshot{
		PlayerID:  id,
		Melons:    melons,
		LastRank:  rank,
		TakenAt:   at,
		Persisted: true,
	}
}

// MutableAccount is a private working copy of an account. Changes stay in
// memory until AccountRepository.Save. Not safe for concurrent use.
type MutableAccount struct {
	initial   *AccountSnapshot
	account   *account
	persisted bool
}

// InitialState returns the snapshot this copy was created from.
func (m *MutableAccount) InitialState() *AccountSnapshot { return m.initial }

// PlayerID returns the account's player id.
func (m *MutableAccount) PlayerID() uuid.UUID { return m.initial.PlayerID }

// Melons returns the balance including unsaved changes.
func (m *MutableAccount) Melons(ctx context.Context) (int64, error) {
	return m.account.melons.Get(ctx)
}

// ModifyMelons adds delta to the balance. A change that would leave the
// balance negative fails with NotEnoughMelons and records nothing.
func (m *MutableAccount) ModifyMelons(ctx context.Context, delta int64) error {
	return m.account.melons.TryModify(ctx, delta, func(next int64) error {
		if next < 0 {
			return errs.NotEnoughMelons(m.PlayerID().String(), next-delta, delta)
		}
		return nil
	})
}

// SetMelons sets the balance. The difference to the current balance is
// saved as a delta.
func (m *MutableAccount) SetMelons(ctx context.Context, n int64) error {
	if n < 0 {
		current, err := m.Melons(ctx)
		if err != nil {
			return err
		}
		return errs.NotEnoughMelons(m.PlayerID().String(), current, n-current)
	}
	return m.account.melons.Set(ctx, n)
}

// PendingMelons returns the unsaved balance change.
func (m *MutableAccount) PendingMelons() int64 {
	return m.account.melons.Modifier()
}

// LastRank returns the last known rank including unsaved changes.
func (m *MutableAccount) LastRank() string {
	rank, ok := m.account.lastRank.Value()
	if !ok {
		return DefaultRank
	}
	return rank
}

// SetLastRank records a new rank. Ranks are stored in NFC.
func (m *MutableAccount) SetLastRank(rank string) {
	m.account.lastRank.Set(norm.NFC.String(rank))
}

// Dirty reports whether the copy has unsaved changes.
func (m *MutableAccount) Dirty() bool {
	return m.account.melons.Modified() || m.account.lastRank.Modified()
}

// Current returns a snapshot of the copy's state including unsaved changes.
func (m *MutableAccount) Current(at time.Time) *AccountSnapshot {
	s := snapshotOf(m.account, at)
	s.Persisted = m.persisted
	return s
}
