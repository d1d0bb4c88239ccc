package quote

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestInterestSimpleFormula(t *testing.T) {
	got, err := Interest(decimal.NewFromInt(1000), decimal.RequireFromString("8.2"), 30)
	require.NoError(t, err)
	require.Equal(t, "6.74", got.StringFixed(2))

	_, err = Interest(decimal.NewFromInt(-1), decimal.RequireFromString("8.2"), 30)
	require.True(t, errors.Is(err, ErrInvalidInput))
}

func TestForLoan(t *testing.T) {
	q, err := ForLoan("1000", 30)
	require.NoError(t, err)
	require.Equal(t, "6.74", q.Interest.StringFixed(2))
	require.Equal(t, "1006.74", q.Total.StringFixed(2))
	require.Equal(t, "30 days", q.Term.Label())

	q, err = ForLoan("", 0)
	require.NoError(t, err)
	require.True(t, q.Interest.IsZero())
	require.Equal(t, 30, q.Term.Days)

	_, err = ForLoan("100", 45)
	require.ErrorIs(t, err, ErrUnknownDuration)

	_, err = ForLoan("abc", 7)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestTermsOrdered(t *testing.T) {
	terms := Terms()
	require.Len(t, terms, 4)
	days := []int{terms[0].Days, terms[1].Days, terms[2].Days, terms[3].Days}
	require.Equal(t, []int{7, 30, 90, 180}, days)
	require.Equal(t, "11", terms[3].APR.String())
}

func TestMaxBorrow(t *testing.T) {
	require.Equal(t, "8", MaxBorrow(decimal.NewFromInt(50), decimal.NewFromInt(10)).String())
	require.Equal(t, "5", MaxBorrow(decimal.NewFromInt(5), decimal.NewFromInt(10)).String())
	require.True(t, MaxBorrow(decimal.NewFromInt(5), decimal.NewFromInt(-1)).IsZero())
}

func TestTiers(t *testing.T) {
	require.Equal(t, TierExcellent, TierFor(850))
	require.Equal(t, TierExcellent, TierFor(800))
	require.Equal(t, TierGood, TierFor(799))
	require.Equal(t, TierFair, TierFor(600))
	require.Equal(t, TierPoor, TierFor(300))

	benefits := TierGood.Benefits()
	require.Len(t, benefits, 4)
	benefits[0] = "changed"
	require.Equal(t, "Standard loan rates", TierGood.Benefits()[0])

	require.True(t, InDisplayRange(300))
	require.False(t, InDisplayRange(851))
	require.False(t, InDisplayRange(299))
}
