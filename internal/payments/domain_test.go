package payments

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	next, err := StatusPending.Transition(StatusSuccess)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, next)

	_, err = StatusSuccess.Transition(StatusPending)
	require.Error(t, err)

	_, err = StatusSuccess.Transition(StatusSuccess)
	require.Error(t, err)

	_, err = StatusFailed.Transition(StatusSuccess)
	require.Error(t, err)

	_, err = StatusExpired.Transition(StatusSuccess)
	require.Error(t, err)

	require.True(t, StatusPending.CanTransition(StatusFailed))
	require.True(t, StatusPending.CanTransition(StatusExpired))
	require.False(t, StatusPending.CanTransition(StatusPending))
}

func TestClassifySavingType(t *testing.T) {
	require.Equal(t, SavingTypeA, ClassifySavingType(10000))
	require.Equal(t, SavingTypeB, ClassifySavingType(3000))
	require.Equal(t, SavingTypeC, ClassifySavingType(7000))
	require.Equal(t, SavingTypeC, ClassifySavingType(1))
}

func TestValidSavingTypeID(t *testing.T) {
	require.True(t, ValidSavingTypeID(SavingTypeA))
	require.True(t, ValidSavingTypeID(SavingTypeC))
	require.False(t, ValidSavingTypeID(0))
	require.False(t, ValidSavingTypeID(4))
}
