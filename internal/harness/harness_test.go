package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/purchase_and_overdraft.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_UnexpectedStepError(t *testing.T) {
	scenario := &Scenario{
		Name:     "overdraft",
		Accounts: []AccountSeed{{Player: "alice", Melons: 1}},
		Steps: []Step{
			{Open: "a", Player: "alice"},
			{Modify: "a", Delta: -2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[1] modify a: unexpected error")
	assert.Equal(t, "NOT_ENOUGH_MELONS", result.Trace[1].Error)
	assert.Nil(t, result.Trace[1].Result)
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	scenario := &Scenario{
		Name:     "no conflict",
		Accounts: []AccountSeed{{Player: "alice", Melons: 1}},
		Steps: []Step{
			{Open: "a", Player: "alice"},
			{Save: "a", ExpectError: "CONFLICT"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected error CONFLICT, got ""`)
}

func TestRun_FailedExpectations(t *testing.T) {
	scenario := &Scenario{
		Name:     "expectations",
		Accounts: []AccountSeed{{Player: "alice", Melons: 10, Rank: "vip"}},
		Steps:    []Step{{Clear: true}},
		Expect: Expect{
			Balances:  map[string]int64{"alice": 11, "nobody": 0},
			Ranks:     map[string]string{"alice": "gold"},
			Purchases: map[string]int{"alice": 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, "Assertion failed: balance of alice\n  Expected: 11\n  Actual: 10")
	assert.Contains(t, joined, "Assertion failed: balance of nobody\n  Expected: 0\n  Actual: no account")
	assert.Contains(t, joined, "Assertion failed: rank of alice\n  Expected: gold\n  Actual: vip")
	assert.Contains(t, joined, "Assertion failed: purchases of alice\n  Expected: 1\n  Actual: 0")
}

func TestRun_SetAndRank(t *testing.T) {
	scenario := &Scenario{
		Name:     "set",
		Accounts: []AccountSeed{{Player: "alice", Melons: 100}},
		Steps: []Step{
			{Open: "a", Player: "alice"},
			{Open: "b", Player: "alice"},
			{Set: "a", Melons: 60},
			{Modify: "b", Delta: 5},
			{Rank: "a", Value: "gold"},
			{Save: "b"},
			{Save: "a"},
		},
		Expect: Expect{
			Balances: map[string]int64{"alice": 65},
			Ranks:    map[string]string{"alice": "gold"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, map[string]any{"melons": int64(60), "pending": int64(-40)}, result.Trace[2].Result)
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
}

func TestPlayerID_Stable(t *testing.T) {
	assert.Equal(t, PlayerID("alice"), PlayerID("alice"))
	assert.NotEqual(t, PlayerID("alice"), PlayerID("bob"))
	assert.NotEqual(t, PlayerID("hat"), ProductID("hat"))
}
