package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a ledger scenario: seed data, a sequence of steps run
// against a fresh store, and the state expected afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Accounts are inserted before the first step.
	Accounts []AccountSeed `yaml:"accounts,omitempty"`

	// Products are registered before the first step.
	Products []ProductSeed `yaml:"products,omitempty"`

	// Steps run in order. A failing step is recorded in the trace and the
	// run continues.
	Steps []Step `yaml:"steps"`

	// Expect is checked against the store after the last step.
	Expect Expect `yaml:"expect,omitempty"`
}

// AccountSeed is an account row that exists before the scenario starts.
// Players are referred to by alias throughout a scenario.
type AccountSeed struct {
	Player string `yaml:"player"`
	Melons int64  `yaml:"melons"`
	Rank   string `yaml:"rank,omitempty"`
}

// ProductSeed is a product registered before the scenario starts.
type ProductSeed struct {
	Name       string `yaml:"name"`
	Module     string `yaml:"module,omitempty"`
	MelonsCost int64  `yaml:"melons_cost"`
	Active     *bool  `yaml:"active,omitempty"`
}

// Step is one operation. Exactly one of the operation fields must be set;
// the remaining fields are its arguments.
//
//   - open: <view>, player: <alias>  opens a mutable account view
//   - modify: <view>, delta: <n>     adds delta to the view's melons
//   - set: <view>, melons: <n>       sets the view's melons
//   - rank: <view>, value: <rank>    sets the view's last rank
//   - save: <view>                   writes the view back
//   - buy: <alias>, product: <name>  runs a purchase (cost and comment optional)
//   - drop: <alias>                  deletes the player's account row
//   - clear: true                    empties every cache
type Step struct {
	Open   string `yaml:"open,omitempty"`
	Modify string `yaml:"modify,omitempty"`
	Set    string `yaml:"set,omitempty"`
	Rank   string `yaml:"rank,omitempty"`
	Save   string `yaml:"save,omitempty"`
	Buy    string `yaml:"buy,omitempty"`
	Drop   string `yaml:"drop,omitempty"`
	Clear  bool   `yaml:"clear,omitempty"`

	Player  string `yaml:"player,omitempty"`
	Delta   int64  `yaml:"delta,omitempty"`
	Melons  int64  `yaml:"melons,omitempty"`
	Value   string `yaml:"value,omitempty"`
	Product string `yaml:"product,omitempty"`
	Cost    *int64 `yaml:"cost,omitempty"`
	Comment string `yaml:"comment,omitempty"`

	// ExpectError is the error code the step must fail with, e.g.
	// NOT_ENOUGH_MELONS or CONFLICT. Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operations.
const (
	OpOpen   = "open"
	OpModify = "modify"
	OpSet    = "set"
	OpRank   = "rank"
	OpSave   = "save"
	OpBuy    = "buy"
	OpDrop   = "drop"
	OpClear  = "clear"
)

// Op returns the step's operation and its target (a view or player alias).
// ok is false unless exactly one operation is set.
func (s Step) Op() (op, target string, ok bool) {
	n := 0
	pick := func(name, value string) {
		if value != "" {
			op, target = name, value
			n++
		}
	}
	pick(OpOpen, s.Open)
	pick(OpModify, s.Modify)
	pick(OpSet, s.Set)
	pick(OpRank, s.Rank)
	pick(OpSave, s.Save)
	pick(OpBuy, s.Buy)
	pick(OpDrop, s.Drop)
	if s.Clear {
		op, target = OpClear, ""
		n++
	}
	return op, target, n == 1
}

// Expect lists the final state a scenario must leave behind. Keys are
// player aliases.
type Expect struct {
	Balances  map[string]int64  `yaml:"balances,omitempty"`
	Ranks     map[string]string `yaml:"ranks,omitempty"`
	Purchases map[string]int    `yaml:"purchases,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that steps
// only refer to views and players the scenario defines.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, a := range s.Accounts {
		if a.Player == "" {
			return fmt.Errorf("accounts[%d]: player is required", i)
		}
	}
	products := make(map[string]bool, len(s.Products))
	for i, p := range s.Products {
		if p.Name == "" {
			return fmt.Errorf("products[%d]: name is required", i)
		}
		if products[p.Name] {
			return fmt.Errorf("products[%d]: duplicate product %q", i, p.Name)
		}
		products[p.Name] = true
	}

	views := make(map[string]bool)
	for i, step := range s.Steps {
		op, target, ok := step.Op()
		if !ok {
			return fmt.Errorf("steps[%d]: exactly one operation is required", i)
		}
		switch op {
		case OpOpen:
			if step.Player == "" {
				return fmt.Errorf("steps[%d]: open requires player", i)
			}
			views[target] = true
		case OpModify, OpSet, OpRank, OpSave:
			if !views[target] {
				return fmt.Errorf("steps[%d]: %s of unopened view %q", i, op, target)
			}
		case OpBuy:
			if !products[step.Product] {
				return fmt.Errorf("steps[%d]: buy of unknown product %q", i, step.Product)
			}
		}
	}
	return nil
}
