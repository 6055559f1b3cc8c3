package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindSqliteError, "storage.Open", cause)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindSqliteError, err.Kind)
}

func TestIsMatchesByKindOnly(t *testing.T) {
	err := LockPoisoned("storage.WithWriter", "writer")
	assert.True(t, errors.Is(err, &CoreError{Kind: KindLockPoisoned}))
	assert.False(t, errors.Is(err, &CoreError{Kind: KindSqliteError}))
}

func TestOfHelper(t *testing.T) {
	err := InvalidTransition("epistemic.Promote", "Conjecture", "Verified")
	assert.True(t, Of(err, KindInvalidTransition))
	assert.Equal(t, "Conjecture", err.Field("from"))
	assert.Equal(t, "Verified", err.Field("to"))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindSqliteError, "op", nil))
}
