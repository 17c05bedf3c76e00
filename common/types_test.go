package common

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	var v Amount

	textRef := []byte("18446744073709551615")
	err := v.UnmarshalText(textRef)
	require.NoError(t, err)
	require.EqualValues(t, uint64(math.MaxUint64), v)
	textRoundTrip, err := v.MarshalText()
	require.NoError(t, err)
	require.Equal(t, textRef, textRoundTrip)

	jsonRef := []byte("\"22222222222\"")
	err = json.Unmarshal(jsonRef, &v)
	require.NoError(t, err)
	jsonRoundTrip, err := json.Marshal(v)
	require.NoError(t, err)
	require.Equal(t, jsonRef, jsonRoundTrip)

	// Bare numbers are accepted too.
	err = json.Unmarshal([]byte("400"), &v)
	require.NoError(t, err)
	require.EqualValues(t, 400, v)

	require.Error(t, v.UnmarshalText([]byte("-1")))
	require.Error(t, v.UnmarshalText([]byte("18446744073709551616")))
}

func TestAmountDecimal(t *testing.T) {
	for _, tc := range []struct {
		amount   Amount
		expected string
	}{
		{0, "0.000000000"},
		{1, "0.000000001"},
		{1_500_000_000, "1.500000000"},
		{math.MaxUint64, "18446744073.709551615"},
	} {
		require.Equal(t, tc.expected, tc.amount.Decimal())
	}
}
