package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := NotFound("purchase", "abc")
	assert.Equal(t, "NOT_FOUND: no purchase with this id (purchase=abc)", err.Error())

	err2 := InvalidState("column %q registered twice", "melons")
	assert.Equal(t, `INVALID_STATE: column "melons" registered twice`, err2.Error())
}

func TestIsHelpers_Unwrap(t *testing.T) {
	wrapped := fmt.Errorf("save account: %w", Conflict("account", "p1", "row vanished"))

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestStoreFailure_WrapsPlainErrors(t *testing.T) {
	cause := errors.New("disk on fire")
	err := StoreFailure("select account", cause)

	assert.True(t, IsStoreFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestStoreFailure_KeepsTaxonomyErrors(t *testing.T) {
	inner := fmt.Errorf("decode: %w", InvalidState("bad schema"))
	err := StoreFailure("fetch account", inner)

	assert.Same(t, inner, err)
	assert.True(t, IsInvalidState(err))
	assert.False(t, IsStoreFailure(err))
}

func TestStoreFailure_Nil(t *testing.T) {
	assert.NoError(t, StoreFailure("noop", nil))
}

func TestNotEnoughMelons(t *testing.T) {
	err := NotEnoughMelons("p1", 10, -20)
	assert.True(t, IsNotEnoughMelons(err))
	assert.Contains(t, err.Error(), "balance of 10 cannot be changed by -20")
}
