package platform

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"elegentdefi/contracts"
	"elegentdefi/platform/platformtest"
)

func TestContractDataAssemblesSnapshot(t *testing.T) {
	backend := platformtest.NewBackend()
	fixed := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	client, err := New(Config{PlatformAddress: platformtest.PlatformAddress}, backend,
		WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	snap, err := client.ContractData(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(0), snap.TotalLoans)
	require.Equal(t, "100", snap.MaxLoanAmount.Display)
	require.Equal(t, "0.01", snap.MinLoanAmount.Display)
	require.Equal(t, uint64(100), snap.PlatformFeeBPS)
	require.Equal(t, uint64(9), snap.FlashLoanFeeBPS)
	require.Equal(t, 30*24*time.Hour, snap.LoanDuration)
	require.Equal(t, uint64(850), snap.MaxTrustScore)
	require.False(t, snap.Paused)
	require.Equal(t, fixed, snap.FetchedAt)

	for _, method := range contracts.SnapshotMethods() {
		require.Equalf(t, 1, backend.Calls(method), "method %s", method)
	}
}

func TestContractDataFailsAtomically(t *testing.T) {
	backend := platformtest.NewBackend()
	backend.FailView(contracts.MethodTreasuryBalance, errors.New("connection reset"))
	client := newTestClient(t, backend)

	snap, err := client.ContractData(context.Background())
	require.ErrorIs(t, err, ErrRPC)
	require.Contains(t, err.Error(), contracts.MethodTreasuryBalance)
	require.Equal(t, Snapshot{}, snap)

	backend.FailView(contracts.MethodTreasuryBalance, nil)
	snap, err = client.ContractData(context.Background())
	require.NoError(t, err)
	require.False(t, snap.FetchedAt.IsZero())
}

func TestAssembleSnapshotRejectsWrongTypes(t *testing.T) {
	methods := contracts.SnapshotMethods()
	results := make([]any, len(methods))
	for i := range results {
		results[i] = "not a number"
	}
	_, err := assembleSnapshot(methods, results, time.Now())
	require.ErrorIs(t, err, ErrRPC)
}

func TestAssembleSnapshotRejectsOversizedLoanDuration(t *testing.T) {
	methods := contracts.SnapshotMethods()
	results := make([]any, len(methods))
	for i, method := range methods {
		switch method {
		case contracts.MethodPaused:
			results[i] = false
		case contracts.MethodLoanDuration:
			results[i] = new(big.Int).SetUint64(1 << 40)
		default:
			results[i] = big.NewInt(1)
		}
	}
	_, err := assembleSnapshot(methods, results, time.Now())
	require.ErrorIs(t, err, ErrRPC)
	require.Contains(t, err.Error(), contracts.MethodLoanDuration)

	for i, method := range methods {
		if method == contracts.MethodLoanDuration {
			results[i] = big.NewInt(3600)
		}
	}
	snap, err := assembleSnapshot(methods, results, time.Now())
	require.NoError(t, err)
	require.Equal(t, time.Hour, snap.LoanDuration)
}
