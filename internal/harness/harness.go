package harness

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/lanatus/internal/errs"
	"github.com/roach88/lanatus/internal/ledger"
	"github.com/roach88/lanatus/internal/store"
	"github.com/roach88/lanatus/internal/testutil"
)

const accountTable = "lanatus_account"

// PlayerID returns the player id a scenario alias stands for.
func PlayerID(alias string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("lanatus:player:"+alias))
}

// ProductID returns the product id a scenario product name stands for.
func ProductID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("lanatus:product:"+name))
}

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and id generator.
type Harness struct {
	store    *store.Store
	client   *ledger.Client
	products map[string]*ledger.Product
	views    map[string]*ledger.MutableAccount
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Step failures are recorded in the result; the returned error is reserved
// for problems setting the scenario up.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store: st,
		client: ledger.NewClient(st,
			ledger.WithClock(testutil.NewDeterministicClock()),
			ledger.WithIDGenerator(testutil.NewSequentialIDs())),
		products: make(map[string]*ledger.Product),
		views:    make(map[string]*ledger.MutableAccount),
	}

	ctx := context.Background()
	if err := h.seed(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed scenario: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, msg := range EvaluateExpectations(ctx, h.client, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	for _, a := range scenario.Accounts {
		rank := a.Rank
		if rank == "" {
			rank = ledger.DefaultRank
		}
		_, err := h.store.Insert(ctx, store.Insert{
			Table: accountTable,
			Values: []store.Assignment{
				{Column: "player_uuid", Value: PlayerID(a.Player).String()},
				{Column: "melons", Value: a.Melons},
				{Column: "lastrank", Value: rank},
			},
		})
		if err != nil {
			return fmt.Errorf("account %s: %w", a.Player, err)
		}
	}

	for _, p := range scenario.Products {
		module := p.Module
		if module == "" {
			module = "scenario"
		}
		active := p.Active == nil || *p.Active
		product, err := h.client.Products.Register(ctx, ledger.ProductRegistration{
			ID:          ProductID(p.Name),
			Module:      module,
			Name:        p.Name,
			DisplayName: p.Name,
			MelonsCost:  p.MelonsCost,
			Active:      active,
		})
		if err != nil {
			return fmt.Errorf("product %s: %w", p.Name, err)
		}
		h.products[p.Name] = product
	}
	return nil
}

// executeStep runs one step and records it. Only failures of the harness
// itself are returned.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	op, target, _ := step.Op()
	ev := TraceEvent{Op: op, Target: target}

	var err error
	switch op {
	case OpOpen:
		ev.Args = map[string]any{"player": step.Player}
		var m *ledger.MutableAccount
		m, err = h.client.Accounts.FindMutable(ctx, PlayerID(step.Player))
		if err == nil {
			h.views[target] = m
			initial := m.InitialState()
			ev.Result = map[string]any{
				"melons":    initial.Melons,
				"rank":      initial.LastRank,
				"persisted": initial.Persisted,
			}
		}

	case OpModify:
		ev.Args = map[string]any{"delta": step.Delta}
		m := h.views[target]
		if err = m.ModifyMelons(ctx, step.Delta); err == nil {
			ev.Result, err = viewBalance(ctx, m)
		}

	case OpSet:
		ev.Args = map[string]any{"melons": step.Melons}
		m := h.views[target]
		if err = m.SetMelons(ctx, step.Melons); err == nil {
			ev.Result, err = viewBalance(ctx, m)
		}

	case OpRank:
		ev.Args = map[string]any{"value": step.Value}
		m := h.views[target]
		m.SetLastRank(step.Value)
		ev.Result = map[string]any{"rank": m.LastRank()}

	case OpSave:
		m := h.views[target]
		if err = h.client.Accounts.Save(ctx, m); err == nil {
			ev.Result, err = h.storedAccount(ctx, m.PlayerID())
		}

	case OpBuy:
		ev.Args = map[string]any{"product": step.Product}
		b := h.client.StartPurchase(PlayerID(target)).WithProduct(h.products[step.Product])
		if step.Cost != nil {
			ev.Args["cost"] = *step.Cost
			b.WithMelonsCost(*step.Cost)
		}
		if step.Comment != "" {
			ev.Args["comment"] = step.Comment
			b.WithComment(step.Comment)
		}
		var p *ledger.Purchase
		if p, err = b.Build(ctx); err == nil {
			ev.Result, err = h.storedAccount(ctx, p.PlayerID())
			if err == nil {
				ev.Result["purchase"] = p.ID().String()
				ev.Result["cost"] = p.MelonsCost()
			}
		}

	case OpDrop:
		_, err = h.store.DB().ExecContext(ctx,
			"DELETE FROM "+accountTable+" WHERE player_uuid = ?", PlayerID(target).String())
		if err != nil {
			return fmt.Errorf("drop %s: %w", target, err)
		}

	case OpClear:
		h.client.ClearCaches()
	}

	if err != nil {
		ev.Error = errorCode(err)
		ev.Result = nil
	}
	result.AddTrace(ev)

	switch {
	case ev.Error != step.ExpectError && step.ExpectError == "":
		result.AddError(fmt.Sprintf("steps[%d] %s %s: unexpected error: %v", i, op, target, err))
	case ev.Error != step.ExpectError:
		result.AddError(fmt.Sprintf("steps[%d] %s %s: expected error %s, got %q", i, op, target, step.ExpectError, ev.Error))
	}
	return nil
}

func viewBalance(ctx context.Context, m *ledger.MutableAccount) (map[string]any, error) {
	melons, err := m.Melons(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"melons": melons, "pending": m.PendingMelons()}, nil
}

func (h *Harness) storedAccount(ctx context.Context, player uuid.UUID) (map[string]any, error) {
	snap, err := h.client.Accounts.Find(ctx, player)
	if err != nil {
		return nil, err
	}
	return map[string]any{"balance": snap.Melons, "rank": snap.LastRank}, nil
}

func errorCode(err error) string {
	if code := errs.CodeOf(err); code != "" {
		return string(code)
	}
	return "UNKNOWN"
}
