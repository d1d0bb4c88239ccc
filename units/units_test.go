package units

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.5", "1500000000000000000"},
		{"0", "0"},
		{"  2 ", "2000000000000000000"},
		{"0.000000000000000001", "1"},
		{"1000", "1000000000000000000000"},
		{"1.50000", "1500000000000000000"},
	}
	for _, tc := range cases {
		got, err := ToBaseUnits(tc.in)
		require.NoErrorf(t, err, "input %q", tc.in)
		require.Equalf(t, tc.want, got.String(), "input %q", tc.in)
	}
}

func TestToBaseUnitsRejects(t *testing.T) {
	huge := "1" + strings.Repeat("0", 80)
	for _, in := range []string{"", "   ", "abc", "-1", "0.0000000000000000001", huge, "1.2.3"} {
		_, err := ToBaseUnits(in)
		require.Errorf(t, err, "input %q", in)
		require.Truef(t, errors.Is(err, ErrInvalidAmount), "input %q: %v", in, err)
	}
}

func TestToDisplayUnits(t *testing.T) {
	require.Equal(t, "0", ToDisplayUnits(nil))
	require.Equal(t, "1.5", ToDisplayUnits(big.NewInt(1500000000000000000)))
	require.Equal(t, "0.000000000000000001", ToDisplayUnits(big.NewInt(1)))
	require.Equal(t, "3", ToDisplayUnits(new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18))))
}

func TestRoundTripStable(t *testing.T) {
	inputs := []string{
		"1", "1.5", "0.1", "0.000000000000000001", "123456789.123456789123456789",
		"42.000", "99999999999999999999.9", "0.30", "7",
	}
	for _, in := range inputs {
		base, err := ToBaseUnits(in)
		require.NoError(t, err)
		again, err := ToBaseUnits(ToDisplayUnits(base))
		require.NoError(t, err)
		require.Equalf(t, 0, base.Cmp(again), "round trip of %q drifted: %s != %s", in, base, again)
	}
}

func TestParsePositive(t *testing.T) {
	amount, err := ParsePositive("amount", "2.25")
	require.NoError(t, err)
	require.Equal(t, "2250000000000000000", amount.Base.String())
	require.Equal(t, "2.25", amount.Display)
	require.False(t, amount.IsZero())

	_, err = ParsePositive("amount", "0")
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Contains(t, err.Error(), "amount")

	_, err = ParsePositive("stake", "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Contains(t, err.Error(), "stake")
}

func TestParseOptional(t *testing.T) {
	amount, ok, err := ParseOptional("value", "")
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, amount.IsZero())

	amount, ok, err = ParseOptional("value", "0.01")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "10000000000000000", amount.Base.String())

	_, _, err = ParseOptional("value", "-3")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFromBaseCopies(t *testing.T) {
	src := big.NewInt(5)
	amount := FromBase(src)
	src.SetInt64(7)
	require.Equal(t, "5", amount.Base.String())
	require.Equal(t, "0.000000000000000005", amount.String())
	require.True(t, FromBase(nil).IsZero())
	require.Equal(t, "0", Amount{}.String())
}

func TestCheckUint256(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	require.NoError(t, CheckUint256(max))
	require.ErrorIs(t, CheckUint256(new(big.Int).Add(max, big.NewInt(1))), ErrInvalidAmount)
	require.ErrorIs(t, CheckUint256(big.NewInt(-1)), ErrInvalidAmount)
	require.ErrorIs(t, CheckUint256(nil), ErrInvalidAmount)
}
