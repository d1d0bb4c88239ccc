package state

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"elegentdefi/contracts"
	"elegentdefi/platform"
	"elegentdefi/platform/platformtest"
	"elegentdefi/quote"
)

var (
	testAccount  = common.HexToAddress("0xABCDEF0000000000000000000000000000000001")
	otherAccount = common.HexToAddress("0x1234500000000000000000000000000000000002")
	nativeToken  = common.Address{}.Hex()
)

func passthroughWallet(account common.Address) platform.FuncWallet {
	return platform.FuncWallet{
		AccountsFunc: func(context.Context) ([]common.Address, error) {
			return []common.Address{account}, nil
		},
		SignerFunc: func(*big.Int) (platform.SignerFn, error) {
			return func(_ common.Address, tx *types.Transaction) (*types.Transaction, error) {
				return tx, nil
			}, nil
		},
	}
}

func newStores(t *testing.T, backend *platformtest.Backend, handlers Handlers) *Stores {
	t.Helper()
	client, err := platform.New(platform.Config{
		PlatformAddress:     platformtest.PlatformAddress,
		TrustScoreAddress:   platformtest.TrustScoreAddress,
		ReceiptPollInterval: time.Millisecond,
	}, backend)
	require.NoError(t, err)
	stores := New(client, time.Hour, handlers, Options{})
	t.Cleanup(stores.Close)
	return stores
}

func connect(t *testing.T, stores *Stores) {
	t.Helper()
	account, err := stores.Session.Connect(context.Background(), passthroughWallet(testAccount))
	require.NoError(t, err)
	require.Equal(t, testAccount, account)
}

func TestConnectLoadsAccountState(t *testing.T) {
	backend := platformtest.NewBackend()
	backend.SetBalance(testAccount, new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18)))
	stores := newStores(t, backend, Handlers{})
	connect(t, stores)

	session := stores.Session.View().Data
	require.True(t, session.Connected)
	require.Equal(t, "3", session.Balance.Display)
	require.Equal(t, "100", stores.Stats.View().Data.MaxLoanAmount.Display)
	require.False(t, stores.Loans.View().UpdatedAt.IsZero())

	stores.Session.Disconnect(context.Background())
	require.False(t, stores.Session.View().Data.Connected)
	require.Empty(t, stores.Loans.View().Data.Loans)
}

func TestRequestLoanRefreshesLoans(t *testing.T) {
	backend := platformtest.NewBackend()
	backend.SetTrustScore(testAccount, 700)
	stores := newStores(t, backend, Handlers{})
	connect(t, stores)

	result, err := stores.Loans.RequestLoan(context.Background(), nativeToken, "1.5", "")
	require.NoError(t, err)
	require.Contains(t, result.Invalidates, platform.KeyLoans)

	view := stores.Loans.View()
	require.False(t, view.Loading)
	require.Empty(t, view.Err)
	require.Len(t, view.Data.Loans, 1)
	require.Equal(t, "1.5", view.Data.Loans[0].Principal.Display)
	require.Equal(t, "70", view.Data.MaxLoan.Display)
	require.Len(t, view.Data.Active(), 1)
	require.Equal(t, uint64(1), stores.Stats.View().Data.TotalLoans)
}

func TestFailedRequestLoanLeavesLoansUnchanged(t *testing.T) {
	backend := platformtest.NewBackend()
	stores := newStores(t, backend, Handlers{})
	connect(t, stores)

	_, err := stores.Loans.RequestLoan(context.Background(), nativeToken, "1", "")
	require.NoError(t, err)
	before := stores.Loans.View().Data

	backend.RevertOn(contracts.MethodRequestLoan, "Paused")
	_, err = stores.Loans.RequestLoan(context.Background(), nativeToken, "1", "")
	require.ErrorIs(t, err, platform.ErrReverted)

	view := stores.Loans.View()
	require.Equal(t, before, view.Data)
	require.NotEmpty(t, view.Err)
	require.Contains(t, view.Err, "Paused")
	require.False(t, view.Loading)

	_, err = stores.Loans.RequestLoan(context.Background(), nativeToken, "-1", "")
	require.ErrorIs(t, err, platform.ErrValidation)
	require.Equal(t, before, stores.Loans.View().Data)
}

func TestStakeThenUnstakeRestoresStake(t *testing.T) {
	backend := platformtest.NewBackend()
	stores := newStores(t, backend, Handlers{})
	connect(t, stores)
	ctx := context.Background()

	_, err := stores.Staking.Stake(ctx, "2")
	require.NoError(t, err)
	view := stores.Staking.View().Data
	require.Equal(t, "2", view.Stake.Amount.Display)
	require.Equal(t, "0.02", view.PendingRewards.Display)
	require.Equal(t, "2", stores.Stats.View().Data.TotalStaked.Display)

	_, err = stores.Staking.Unstake(ctx, "2")
	require.NoError(t, err)
	require.Equal(t, "0", stores.Staking.View().Data.Stake.Amount.Display)
	require.Equal(t, "0", stores.Stats.View().Data.TotalStaked.Display)

	_, err = stores.Staking.Unstake(ctx, "1")
	require.ErrorIs(t, err, platform.ErrReverted)
	require.Contains(t, stores.Staking.View().Err, "Insufficient stake")
}

func TestTrustScoreTiers(t *testing.T) {
	backend := platformtest.NewBackend()
	stores := newStores(t, backend, Handlers{})
	connect(t, stores)
	ctx := context.Background()

	require.False(t, stores.TrustScores.View().Data.Exists)
	_, err := stores.TrustScores.Create(ctx)
	require.NoError(t, err)
	st := stores.TrustScores.View().Data
	require.True(t, st.Exists)
	require.Equal(t, uint64(500), st.Score)
	require.Equal(t, quote.TierPoor, st.Tier)
	require.NotEmpty(t, st.Benefits)

	_, err = stores.TrustScores.Update(ctx, testAccount.Hex(), 810)
	require.NoError(t, err)
	require.Equal(t, quote.TierExcellent, stores.TrustScores.View().Data.Tier)

	backend.SetTrustScore(otherAccount, 650)
	other, err := stores.TrustScores.Fetch(ctx, otherAccount.Hex())
	require.NoError(t, err)
	require.Equal(t, quote.TierFair, other.Tier)
}

func TestLiquidityAndFlashLoans(t *testing.T) {
	backend := platformtest.NewBackend()
	stores := newStores(t, backend, Handlers{})
	connect(t, stores)
	ctx := context.Background()

	_, err := stores.Liquidity.AddLiquidity(ctx, nativeToken, "5", "5")
	require.NoError(t, err)
	pool, ok := stores.Liquidity.View().Data.Pool(common.Address{})
	require.True(t, ok)
	require.True(t, pool.Supported)
	require.Equal(t, "5", pool.Available.Display)

	result, err := stores.FlashLoans.Execute(ctx, nativeToken, "10", nil)
	require.NoError(t, err)
	require.Equal(t, result.Tx.Hash, stores.FlashLoans.View().Data.Hash)
	require.Equal(t, "0.009", stores.Stats.View().Data.TreasuryBalance.Display)
}

func TestStatsFailureKeepsPreviousSnapshot(t *testing.T) {
	backend := platformtest.NewBackend()
	stores := newStores(t, backend, Handlers{})
	ctx := context.Background()

	require.NoError(t, stores.Stats.Refresh(ctx))
	good := stores.Stats.View().Data
	require.False(t, good.FetchedAt.IsZero())

	backend.FailView(contracts.MethodTotalVolume, errors.New("connection reset"))
	require.Error(t, stores.Stats.Refresh(ctx))
	view := stores.Stats.View()
	require.Equal(t, good, view.Data)
	require.NotEmpty(t, view.Err)

	backend.FailView(contracts.MethodTotalVolume, nil)
	require.NoError(t, stores.Stats.Refresh(ctx))
	require.Empty(t, stores.Stats.View().Err)
}

func TestStatsPollerStopsOnClose(t *testing.T) {
	backend := platformtest.NewBackend()
	client, err := platform.New(platform.Config{PlatformAddress: platformtest.PlatformAddress}, backend)
	require.NoError(t, err)
	stats := NewStats(client, NewBus(nil), 5*time.Millisecond, Options{})
	require.Equal(t, 5*time.Millisecond, stats.Interval())
	require.Equal(t, DefaultPollInterval, NewStats(client, nil, 0, Options{}).Interval())

	stats.Start(context.Background())
	stats.Start(context.Background())
	require.True(t, stats.Running())
	require.Eventually(t, func() bool {
		return backend.Calls(contracts.MethodTotalLoans) >= 3
	}, time.Second, time.Millisecond)

	stats.Close()
	require.False(t, stats.Running())
	polls := backend.Calls(contracts.MethodTotalLoans)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, polls, backend.Calls(contracts.MethodTotalLoans))

	stats.Start(context.Background())
	require.False(t, stats.Running())
}

// gatedSnapshots holds its first ContractData call until release closes.
type gatedSnapshots struct {
	mu      sync.Mutex
	calls   uint64
	started chan struct{}
	release chan struct{}
}

func (g *gatedSnapshots) ContractData(ctx context.Context) (platform.Snapshot, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if n == 1 {
		close(g.started)
		<-g.release
	}
	return platform.Snapshot{TotalLoans: n}, nil
}

func TestStatsKeepsNewerSnapshotOverSlowPoll(t *testing.T) {
	client := &gatedSnapshots{started: make(chan struct{}), release: make(chan struct{})}
	stats := NewStats(client, NewBus(nil), time.Hour, Options{})
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() { slow <- stats.Refresh(ctx) }()
	<-client.started

	require.NoError(t, stats.Refresh(ctx))
	require.Equal(t, uint64(2), stats.View().Data.TotalLoans)

	close(client.release)
	require.NoError(t, <-slow)
	view := stats.View()
	require.Equal(t, uint64(2), view.Data.TotalLoans)
	require.False(t, view.Loading)
}

func TestWatcherDropsOtherAccounts(t *testing.T) {
	backend := platformtest.NewBackend()
	staked := make(chan platform.StakedEvent, 2)
	stores := newStores(t, backend, Handlers{
		Staked: func(ev platform.StakedEvent) { staked <- ev },
	})
	connect(t, stores)
	require.NoError(t, stores.Watcher.Start(context.Background()))
	require.ErrorIs(t, stores.Watcher.Start(context.Background()), ErrWatcherRunning)

	backend.Emit(backend.Log(contracts.EventStaked,
		[]common.Hash{platformtest.AddressTopic(otherAccount)}, big.NewInt(1e18)))
	backend.Emit(backend.Log(contracts.EventStaked,
		[]common.Hash{platformtest.AddressTopic(testAccount)}, big.NewInt(2e18)))

	select {
	case ev := <-staked:
		require.Equal(t, testAccount, ev.User)
		require.Equal(t, "2", ev.Amount.Display)
	case <-time.After(time.Second):
		t.Fatal("own staked event not delivered")
	}
	select {
	case ev := <-staked:
		t.Fatalf("unexpected event for %s", ev.User.Hex())
	default:
	}
}

func TestUnscopedWatcherRelaysEveryAccount(t *testing.T) {
	backend := platformtest.NewBackend()
	seen := make(chan common.Address, 2)
	stores := newStores(t, backend, Handlers{
		Staked:   func(ev platform.StakedEvent) { seen <- ev.User },
		Unscoped: true,
	})
	require.NoError(t, stores.Watcher.Start(context.Background()))

	backend.Emit(backend.Log(contracts.EventStaked,
		[]common.Hash{platformtest.AddressTopic(otherAccount)}, big.NewInt(1e18)))
	select {
	case user := <-seen:
		require.Equal(t, otherAccount, user)
	case <-time.After(time.Second):
		t.Fatal("unscoped watcher dropped the event")
	}
}

func TestWatcherInvalidatesOnFlashLoan(t *testing.T) {
	backend := platformtest.NewBackend()
	seen := make(chan string, 4)
	stores := newStores(t, backend, Handlers{
		Any: func(name string, _ any) { seen <- name },
	})
	require.NoError(t, stores.Watcher.Start(context.Background()))

	backend.Emit(backend.Log(contracts.EventFlashLoanExecuted,
		[]common.Hash{platformtest.AddressTopic(otherAccount)},
		common.Address{}, big.NewInt(1e18), big.NewInt(9e14)))

	select {
	case name := <-seen:
		require.Equal(t, contracts.EventFlashLoanExecuted, name)
	case <-time.After(time.Second):
		t.Fatal("flash loan event not delivered")
	}
	require.Eventually(t, func() bool {
		return !stores.Stats.View().Data.FetchedAt.IsZero()
	}, time.Second, time.Millisecond)
}

func TestWatcherReportsMalformedEvents(t *testing.T) {
	backend := platformtest.NewBackend()
	stores := newStores(t, backend, Handlers{})
	require.NoError(t, stores.Watcher.Start(context.Background()))

	backend.Emit(backend.Log(contracts.EventUnstaked,
		[]common.Hash{platformtest.AddressTopic(common.Address{})}, big.NewInt(1)))
	select {
	case err := <-stores.Watcher.Err():
		require.ErrorIs(t, err, platform.ErrMalformedEvent)
		require.Contains(t, err.Error(), contracts.EventUnstaked)
	case <-time.After(time.Second):
		t.Fatal("malformed event not reported")
	}

	stores.Watcher.Stop()
	stores.Watcher.Stop()
	require.Eventually(t, func() bool {
		return backend.Subscribers(contracts.EventStaked) == 0
	}, time.Second, 5*time.Millisecond)
}
