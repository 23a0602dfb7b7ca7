// Package harness runs ledger scenarios: seed accounts and products, apply
// a sequence of account and purchase operations, and check the final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	accounts:
//	  - player: alice
//	    melons: 420
//	products:
//	  - name: hat
//	    melons_cost: 30
//	steps:
//	  - open: a
//	    player: alice
//	  - modify: a
//	    delta: -20
//	  - save: a
//	  - buy: alice
//	    product: hat
//	    expect_error: NOT_ENOUGH_MELONS
//	expect:
//	  balances: { alice: 400 }
//	  purchases: { alice: 0 }
//
// Players and products are named by alias; PlayerID and ProductID map
// aliases to stable ids.
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite store, testutil.DeterministicClock
// and testutil.SequentialIDs, so purchase ids and traces are identical
// across runs. RunWithGolden compares the canonical JSON trace with
// testdata/golden/<name>.golden.
package harness
