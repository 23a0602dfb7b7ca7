package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/lanatus/internal/canonical"
	"github.com/roach88/lanatus/internal/errs"
	"github.com/roach88/lanatus/internal/ledger"
)

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Type     string // balance, rank or purchases
	Player   string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s of %s\n", e.Type, e.Player)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateExpectations checks expect against what the store holds and
// returns one message per failed expectation. Caches are cleared first so
// every value comes from the store.
func EvaluateExpectations(ctx context.Context, c *ledger.Client, expect Expect) []string {
	c.ClearCaches()

	var failures []string
	fail := func(err error) {
		if err != nil {
			failures = append(failures, err.Error())
		}
	}

	for _, player := range canonical.SortedKeys(expect.Balances) {
		fail(assertBalance(ctx, c, player, expect.Balances[player]))
	}
	for _, player := range canonical.SortedKeys(expect.Ranks) {
		fail(assertRank(ctx, c, player, expect.Ranks[player]))
	}
	for _, player := range canonical.SortedKeys(expect.Purchases) {
		fail(assertPurchases(ctx, c, player, expect.Purchases[player]))
	}
	return failures
}

func assertBalance(ctx context.Context, c *ledger.Client, player string, want int64) error {
	snap, err := c.Accounts.Find(ctx, PlayerID(player))
	if err != nil {
		return lookupFailure("balance", player, fmt.Sprint(want), err)
	}
	if snap.Melons != want {
		return &AssertionError{Type: "balance", Player: player, Expected: fmt.Sprint(want), Actual: fmt.Sprint(snap.Melons)}
	}
	return nil
}

func assertRank(ctx context.Context, c *ledger.Client, player string, want string) error {
	want = canonical.NormalizeString(want)
	snap, err := c.Accounts.Find(ctx, PlayerID(player))
	if err != nil {
		return lookupFailure("rank", player, want, err)
	}
	if snap.LastRank != want {
		return &AssertionError{Type: "rank", Player: player, Expected: want, Actual: snap.LastRank}
	}
	return nil
}

func assertPurchases(ctx context.Context, c *ledger.Client, player string, want int) error {
	list, err := c.Purchases.FindByPlayer(ctx, PlayerID(player))
	if err != nil {
		return lookupFailure("purchases", player, fmt.Sprint(want), err)
	}
	if len(list) != want {
		return &AssertionError{Type: "purchases", Player: player, Expected: fmt.Sprint(want), Actual: fmt.Sprint(len(list))}
	}
	return nil
}

func lookupFailure(typ, player, want string, err error) error {
	actual := err.Error()
	if errs.IsNotFound(err) {
		actual = "no account"
	}
	return &AssertionError{Type: typ, Player: player, Expected: want, Actual: actual}
}
