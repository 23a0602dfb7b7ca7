package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"

	"github.com/roach88/lanatus/internal/errs"
	"github.com/roach88/lanatus/internal/holder"
	"github.com/roach88/lanatus/internal/idcache"
	"github.com/roach88/lanatus/internal/store"
)

var (
	accountSaves     = metrics.GetOrCreateCounter(`lanatus_saves_total{entity="account"}`)
	accountConflicts = metrics.GetOrCreateCounter(`lanatus_conflicts_total{entity="account"}`)
	fetchFailures    = metrics.GetOrCreateCounter(`lanatus_fetch_failures_total`)
)

// AccountRepository reads, caches and saves accounts.
//
// Thread-safety: safe for concurrent use. The mutable accounts it hands out
// are not.
type AccountRepository struct {
	store  *store.Store
	logger *slog.Logger
	clock  Clock
	cache  *idcache.Cache[uuid.UUID, *AccountSnapshot]
}

// NewAccountRepository creates an account repository over s.
func NewAccountRepository(s *store.Store, logger *slog.Logger, clock Clock) *AccountRepository {
	r := &AccountRepository{
		store:  s,
		logger: orDiscard(logger).With("repository", "account"),
		clock:  clock,
	}
	r.cache = idcache.New("accounts",
		func(s *AccountSnapshot) uuid.UUID { return s.PlayerID },
		r.load)
	return r
}

// Find returns the cached snapshot of the account of player, loading it on
// a miss. A player without a row yields NotFound.
func (r *AccountRepository) Find(ctx context.Context, player uuid.UUID) (*AccountSnapshot, error) {
	return r.cache.Get(ctx, player)
}

// FindMutable returns a working copy of the account of player. A player
// without a row gets a copy of the default account; saving it creates the
// row.
func (r *AccountRepository) FindMutable(ctx context.Context, player uuid.UUID) (*MutableAccount, error) {
	initial, err := r.Find(ctx, player)
	if errs.IsNotFound(err) {
		initial = defaultSnapshot(player, r.clock.Now())
	} else if err != nil {
		return nil, err
	}

	a := &account{}
	if _, err := accountSchema.Bind(a, &accountSource{repo: r, player: player}); err != nil {
		return nil, err
	}
	if err := a.id.Set(player); err != nil {
		return nil, err
	}
	a.melons.Update(initial.Melons)
	a.lastRank.Update(initial.LastRank)

	return &MutableAccount{
		initial:   initial,
		account:   a,
		persisted: initial.Persisted,
	}, nil
}

// FindMutableFresh is FindMutable after dropping the cached snapshot, so
// the copy starts from the stored balance. Use it before charging.
func (r *AccountRepository) FindMutableFresh(ctx context.Context, player uuid.UUID) (*MutableAccount, error) {
	r.cache.Invalidate(player)
	return r.FindMutable(ctx, player)
}

// Refresh reloads the account of existing and replaces the cached snapshot.
func (r *AccountRepository) Refresh(ctx context.Context, existing *AccountSnapshot) (*AccountSnapshot, error) {
	return r.cache.Refresh(ctx, existing)
}

// ClearCache drops every cached account.
func (r *AccountRepository) ClearCache() {
	r.cache.Clear()
}

// Save writes the pending changes of m. Melon changes are written as a
// delta; a changed rank is written as an absolute value. If the update
// affects no row the save fails with Conflict. On any failure the pending
// changes stay on m.
func (r *AccountRepository) Save(ctx context.Context, m *MutableAccount) error {
	return r.save(ctx, m, nil)
}

// save writes m and then runs also, if set, in the same transaction.
func (r *AccountRepository) save(ctx context.Context, m *MutableAccount, also func(store.Executor) error) error {
	player := m.PlayerID()
	key, err := accountSchema.Key(m.account)
	if err != nil {
		return err
	}
	writes, err := accountSchema.Writes(m.account)
	if err != nil {
		return err
	}

	err = r.store.InTx(ctx, func(ex store.Executor) error {
		if err := r.write(ctx, ex, m, key, writes); err != nil {
			return err
		}
		if also != nil {
			return also(ex)
		}
		return nil
	})
	if err != nil {
		accountSchema.Restore(m.account, writes)
		if errs.IsConflict(err) {
			accountConflicts.Inc()
			r.logger.Warn("account save conflict", "player", player, "err", err)
			return err
		}
		if errs.IsNotEnoughMelons(err) {
			r.cache.Invalidate(player)
			r.logger.Warn("account save rejected", "player", player, "err", err)
			return err
		}
		r.logger.Error("account save failed", "player", player, "err", err)
		return errs.StoreFailure("save account", err)
	}

	m.persisted = true
	r.cache.Invalidate(player)
	accountSaves.Inc()
	r.logger.Debug("account saved", "player", player, "writes", len(writes))
	return nil
}

func (r *AccountRepository) write(ctx context.Context, ex store.Executor, m *MutableAccount, key store.Assignment, writes []store.Assignment) error {
	if !m.persisted {
		if _, err := ex.Insert(ctx, store.Insert{
			Table: accountTable,
			Values: []store.Assignment{
				key,
				{Column: "melons", Value: int64(0)},
				{Column: "lastrank", Value: DefaultRank},
			},
			IgnoreConflict: true,
		}); err != nil {
			return err
		}
	}

	n, err := ex.Update(ctx, store.Update{
		Table:     accountTable,
		Set:       writes,
		KeyColumn: key.Column,
		Key:       key.Value,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.Conflict("account", m.PlayerID().String(), "account row vanished before save")
	}
	return checkBalance(ctx, ex, key, writes)
}

// checkBalance rejects a save whose negative melons delta left the stored
// balance below zero, which happens when another writer spent melons after
// this copy was read. The caller's transaction rolls the update back.
func checkBalance(ctx context.Context, ex store.Executor, key store.Assignment, writes []store.Assignment) error {
	var delta int64
	for _, w := range writes {
		if w.Column == "melons" && w.Delta {
			d, err := store.AsInt64(w.Value)
			if err != nil {
				return err
			}
			delta = d
		}
	}
	if delta >= 0 {
		return nil
	}

	rows, err := ex.Select(ctx, store.Query{
		Table:   accountTable,
		Columns: []string{"melons"},
		Where:   key.Column + " = ?",
		Args:    []any{key.Value},
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	balance, err := rows[0].Int64("melons")
	if err != nil {
		return err
	}
	if balance < 0 {
		return errs.NotEnoughMelons(fmt.Sprint(key.Value), balance-delta, delta)
	}
	return nil
}

func (r *AccountRepository) load(ctx context.Context, player uuid.UUID) (*AccountSnapshot, error) {
	rows, err := r.store.Select(ctx, store.Query{
		Table:   accountTable,
		Columns: accountSchema.Columns(),
		Where:   "player_uuid = ?",
		Args:    []any{player.String()},
	})
	if err != nil {
		fetchFailures.Inc()
		r.logger.Error("account fetch failed", "player", player, "err", err)
		return nil, errs.StoreFailure("fetch account", err)
	}
	if len(rows) == 0 {
		return nil, errs.NotFound("account", player.String())
	}

	a := &account{}
	if err := accountSchema.Decode(a, rows[0], nil); err != nil {
		if errs.IsInvalidState(err) {
			return nil, err
		}
		fetchFailures.Inc()
		r.logger.Error("account decode failed", "player", player, "err", err)
		return nil, errs.StoreFailure("decode account", err)
	}
	return snapshotOf(a, r.clock.Now()), nil
}

// accountSource pulls single columns of one account on demand.
type accountSource struct {
	repo   *AccountRepository
	player uuid.UUID
}

func (s *accountSource) Pull(ctx context.Context, h holder.Holder) error {
	rows, err := s.repo.store.Select(ctx, store.Query{
		Table:   accountTable,
		Columns: []string{h.Column()},
		Where:   "player_uuid = ?",
		Args:    []any{s.player.String()},
	})
	if err != nil {
		return errs.StoreFailure("pull account", err)
	}
	if len(rows) == 0 {
		return nil
	}
	return h.Load(rows[0])
}

func (s *accountSource) Changed(h holder.Holder) {
	s.repo.logger.Debug("account field changed", "player", s.player, "column", h.Column())
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
