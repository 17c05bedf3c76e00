package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckedMath(t *testing.T) {
	sum, err := CheckedAdd(math.MaxUint64-1, 1)
	require.NoError(t, err)
	require.EqualValues(t, uint64(math.MaxUint64), sum)
	_, err = CheckedAdd(math.MaxUint64, 1)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	diff, err := CheckedSub(5, 5)
	require.NoError(t, err)
	require.Zero(t, diff)
	_, err = CheckedSub(0, 1)
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}
