package services_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rxtech-lab/profile-launchpad/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByKind(t *testing.T) {
	cause := errors.New("execution reverted")
	err := fmt.Errorf("claim: %w", &services.Error{
		Kind:    services.KindClaimOnChainFailed,
		Message: "failed to redirect rewards on-chain",
		Err:     cause,
	})

	assert.True(t, errors.Is(err, services.ErrClaimOnChainFailed))
	assert.False(t, errors.Is(err, services.ErrClaimRejected))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, services.KindClaimOnChainFailed, services.KindOf(err))
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, services.ErrorKind(""), services.KindOf(errors.New("boom")))
	assert.Equal(t, services.ErrorKind(""), services.KindOf(nil))
}
