package cli

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountModifyAndShow(t *testing.T) {
	db := tempDB(t)
	player := uuid.NewString()

	out, err := execute(t, db, "account", "show", player)
	require.NoError(t, err)
	assert.Contains(t, out, "melons=0")
	assert.Contains(t, out, "(no account row)")

	data, err := executeJSON(t, db, "account", "modify", player, "--delta", "50")
	require.NoError(t, err)
	assert.Equal(t, float64(50), data["melons"])
	assert.Equal(t, true, data["persisted"])

	_, err = execute(t, db, "account", "modify", player, "--delta=-20")
	require.NoError(t, err)

	out, err = execute(t, db, "account", "show", player)
	require.NoError(t, err)
	assert.Contains(t, out, "melons=30")
	assert.Contains(t, out, "rank=default")
}

func TestAccountModify_NotEnoughMelons(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, db, "account", "modify", uuid.NewString(), "--delta=-5")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [NOT_ENOUGH_MELONS]")
}

func TestAccountSetRank(t *testing.T) {
	db := tempDB(t)
	player := uuid.NewString()

	data, err := executeJSON(t, db, "account", "set-rank", player, "vip")
	require.NoError(t, err)
	assert.Equal(t, "vip", data["last_rank"])
	assert.Equal(t, float64(0), data["melons"])
}

func TestInvalidPlayerID(t *testing.T) {
	out, err := execute(t, tempDB(t), "account", "show", "not-a-uuid")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_ARGUMENT]")
}

func TestProductRegisterAndShow(t *testing.T) {
	db := tempDB(t)
	id := uuid.NewString()

	data, err := executeJSON(t, db, "product", "register",
		"--id", id, "--module", "hats", "--name", "top-hat", "--cost", "25", "--permanent")
	require.NoError(t, err)
	assert.Equal(t, id, data["id"])
	assert.Equal(t, true, data["active"])
	assert.Equal(t, true, data["permanent"])

	out, err := execute(t, db, "product", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "hats/top-hat  cost=25  [permanent]")

	out, err = execute(t, db, "product", "show", uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [NOT_FOUND]")
}

func TestProductRegister_Invalid(t *testing.T) {
	out, err := execute(t, tempDB(t), "product", "register", "--module", "hats", "--name", "x", "--cost", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_STATE]")
}

func TestProductImportAndList(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, db, "product", "import",
		"../catalog/testdata/catalog.yaml", "../catalog/testdata/catalog.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "hats/top-hat")
	assert.Contains(t, out, "pets/dog")

	out, err = execute(t, db, "product", "list", "--module", "hats")
	require.NoError(t, err)
	assert.Contains(t, out, "hats/party-hat  cost=5  [inactive]")
	assert.Contains(t, out, "hats/top-hat")
	assert.NotContains(t, out, "pets/")

	out, err = execute(t, db, "product", "list", "--module", "hats", "--active")
	require.NoError(t, err)
	assert.NotContains(t, out, "party-hat")
	assert.Contains(t, out, "top-hat")

	out, err = execute(t, db, "product", "list", "--active")
	require.NoError(t, err)
	assert.Contains(t, out, "pets/cat")
	assert.NotContains(t, out, "pets/dog")

	out, err = execute(t, db, "product", "list", "--module", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "No products.")
}

func TestProductImport_BadCatalog(t *testing.T) {
	out, err := execute(t, tempDB(t), "product", "import", "../catalog/testdata/bad_cost.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_CATALOG]")
}

func TestPurchaseBuyListShow(t *testing.T) {
	db := tempDB(t)
	player := uuid.NewString()
	product := uuid.NewString()

	_, err := execute(t, db, "account", "modify", player, "--delta", "100")
	require.NoError(t, err)
	_, err = execute(t, db, "product", "register", "--id", product, "--module", "hats", "--name", "top-hat", "--cost", "30")
	require.NoError(t, err)

	data, err := executeJSON(t, db, "purchase", "buy", player, product, "--comment", "birthday")
	require.NoError(t, err)
	assert.Equal(t, player, data["player"])
	assert.Equal(t, product, data["product"])
	assert.Equal(t, float64(30), data["melons_cost"])
	assert.Equal(t, "birthday", data["comment"])
	purchaseID, ok := data["id"].(string)
	require.True(t, ok)

	out, err := execute(t, db, "account", "show", player)
	require.NoError(t, err)
	assert.Contains(t, out, "melons=70")

	out, err = execute(t, db, "purchase", "buy", player, product, "--cost", "1000")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [NOT_ENOUGH_MELONS]")

	out, err = execute(t, db, "purchase", "list", player)
	require.NoError(t, err)
	assert.Contains(t, out, purchaseID)
	assert.Contains(t, out, `comment="birthday"`)

	out, err = execute(t, db, "purchase", "show", purchaseID)
	require.NoError(t, err)
	assert.Contains(t, out, "cost=30")

	out, err = execute(t, db, "purchase", "list", uuid.NewString())
	require.NoError(t, err)
	assert.Contains(t, out, "No purchases.")
}
