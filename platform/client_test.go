package platform

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"elegentdefi/contracts"
	"elegentdefi/platform/platformtest"
)

var testAccount = common.HexToAddress("0xABCDEF0000000000000000000000000000000001")

func newTestClient(t *testing.T, backend *platformtest.Backend) *Client {
	t.Helper()
	client, err := New(Config{
		PlatformAddress:     platformtest.PlatformAddress,
		TrustScoreAddress:   platformtest.TrustScoreAddress,
		ReceiptPollInterval: time.Millisecond,
	}, backend)
	require.NoError(t, err)
	return client
}

// passthroughWallet reports a fixed account and hands transactions through
// unsigned; the fake backend does not verify signatures.
func passthroughWallet(account common.Address) FuncWallet {
	return FuncWallet{
		AccountsFunc: func(context.Context) ([]common.Address, error) {
			return []common.Address{account}, nil
		},
		SignerFunc: func(*big.Int) (SignerFn, error) {
			return func(_ common.Address, tx *types.Transaction) (*types.Transaction, error) {
				return tx, nil
			}, nil
		},
	}
}

func connectedClient(t *testing.T, backend *platformtest.Backend) *Client {
	t.Helper()
	client := newTestClient(t, backend)
	addr, err := client.Connect(context.Background(), passthroughWallet(testAccount))
	require.NoError(t, err)
	require.Equal(t, testAccount, addr)
	return client
}

func TestNewRequiresBackendAndAddress(t *testing.T) {
	_, err := New(Config{PlatformAddress: platformtest.PlatformAddress}, nil)
	require.ErrorIs(t, err, ErrRPC)

	_, err = New(Config{}, platformtest.NewBackend())
	require.ErrorIs(t, err, ErrContractNotReady)
}

func TestClientStartsNotReady(t *testing.T) {
	backend := platformtest.NewBackend()
	client := newTestClient(t, backend)
	require.False(t, client.Ready())

	_, err := client.RequestLoan(context.Background(), common.Address{}.Hex(), "1", "")
	require.ErrorIs(t, err, ErrContractNotReady)
	require.Empty(t, backend.Sent())
}

func TestConnectErrors(t *testing.T) {
	client := newTestClient(t, platformtest.NewBackend())
	ctx := context.Background()

	_, err := client.Connect(ctx, nil)
	require.ErrorIs(t, err, ErrWalletUnavailable)

	_, err = client.Connect(ctx, FuncWallet{})
	require.ErrorIs(t, err, ErrWalletUnavailable)

	empty := FuncWallet{AccountsFunc: func(context.Context) ([]common.Address, error) { return nil, nil }}
	_, err = client.Connect(ctx, empty)
	require.ErrorIs(t, err, ErrWalletUnavailable)

	rejecting := FuncWallet{AccountsFunc: func(context.Context) ([]common.Address, error) {
		return nil, errors.New("User rejected the request.")
	}}
	_, err = client.Connect(ctx, rejecting)
	require.ErrorIs(t, err, ErrUserRejected)
	require.False(t, client.Ready())
}

func TestConnectAndDisconnect(t *testing.T) {
	client := connectedClient(t, platformtest.NewBackend())
	account, ok := client.Account()
	require.True(t, ok)
	require.Equal(t, testAccount, account)

	client.Disconnect()
	require.False(t, client.Ready())
	_, err := client.Stake(context.Background(), "1")
	require.ErrorIs(t, err, ErrContractNotReady)
}

func TestRequestLoanSendsBaseUnits(t *testing.T) {
	backend := platformtest.NewBackend()
	client := connectedClient(t, backend)

	result, err := client.RequestLoan(context.Background(), "0x0000000000000000000000000000000000000000", "1.5", "")
	require.NoError(t, err)

	sent := backend.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, contracts.MethodRequestLoan, sent[0].Method)
	require.Equal(t, testAccount, sent[0].From)
	require.Equal(t, common.Address{}, sent[0].Args[0])
	require.Equal(t, "1500000000000000000", sent[0].Args[1].(*big.Int).String())
	require.Zero(t, sent[0].Value.Sign())

	require.Equal(t, sent[0].Hash, result.Tx.Hash)
	require.Equal(t, contracts.MethodRequestLoan, result.Tx.Method)
	require.ElementsMatch(t, []CacheKey{KeyLoans, KeySnapshot}, result.Invalidates)
	require.NotNil(t, result.Receipt)

	created, ok := client.LoanCreatedIn(result.Receipt)
	require.True(t, ok)
	require.Equal(t, uint64(0), created.LoanID)
	require.Equal(t, "1.5", created.Amount.Display)
}

func TestRequestLoanAttachesValue(t *testing.T) {
	backend := platformtest.NewBackend()
	client := connectedClient(t, backend)

	_, err := client.RequestLoan(context.Background(), common.Address{}.Hex(), "2", "0.25")
	require.NoError(t, err)
	require.Equal(t, "250000000000000000", backend.Sent()[0].Value.String())
}

func TestValidationHappensBeforeNetwork(t *testing.T) {
	backend := platformtest.NewBackend()
	client := connectedClient(t, backend)
	ctx := context.Background()

	cases := map[string]func() error{
		"empty amount": func() error { _, err := client.Stake(ctx, ""); return err },
		"zero amount":  func() error { _, err := client.Unstake(ctx, "0"); return err },
		"negative":     func() error { _, err := client.RequestLoan(ctx, common.Address{}.Hex(), "-1", ""); return err },
		"bad token":    func() error { _, err := client.FlashLoan(ctx, "0x1234", "1", nil); return err },
		"decimals": func() error {
			_, err := client.AddLiquidity(ctx, common.Address{}.Hex(), "0.0000000000000000001", "")
			return err
		},
		"bad value":   func() error { _, err := client.RepayLoan(ctx, 1, "abc"); return err },
		"zero score":  func() error { _, err := client.UpdateTrustScore(ctx, testAccount.Hex(), 0); return err },
		"bad address": func() error { _, err := client.AddLiquidator(ctx, "liquidator"); return err },
	}
	for name, run := range cases {
		err := run()
		require.ErrorIsf(t, err, ErrValidation, "case %s", name)
	}
	require.Empty(t, backend.Sent())
}

func TestRevertReasonPassesThrough(t *testing.T) {
	backend := platformtest.NewBackend()
	backend.RevertOn(contracts.MethodRequestLoan, "Insufficient liquidity")
	client := connectedClient(t, backend)

	_, err := client.RequestLoan(context.Background(), common.Address{}.Hex(), "1", "")
	require.ErrorIs(t, err, ErrReverted)
	reason, ok := RevertReason(err)
	require.True(t, ok)
	require.Equal(t, "Insufficient liquidity", reason)
	require.Empty(t, backend.Sent())
}

func TestFailedReceiptRecoversReason(t *testing.T) {
	backend := platformtest.NewBackend()
	backend.FailStatusOn(contracts.MethodLiquidateLoan, "Loan not overdue")
	client := connectedClient(t, backend)

	_, err := client.LiquidateLoan(context.Background(), 0)
	require.ErrorIs(t, err, ErrReverted)
	var revert *RevertError
	require.True(t, errors.As(err, &revert))
	require.Equal(t, "Loan not overdue", revert.Reason)
	require.Equal(t, backend.Sent()[0].Hash, revert.TxHash)
}

func TestWaitMinedKeepsPolling(t *testing.T) {
	backend := platformtest.NewBackend()
	client := connectedClient(t, backend)
	backend.DelayReceipts(3)

	result, err := client.Stake(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, result.Receipt.Status)
}

func TestWaitMinedHonoursContext(t *testing.T) {
	client := newTestClient(t, platformtest.NewBackend())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.WaitMined(ctx, PendingTx{Hash: common.HexToHash("0x01"), Method: "stake"})
	require.ErrorIs(t, err, ErrRPC)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStakeThenUnstakeRestoresBalance(t *testing.T) {
	backend := platformtest.NewBackend()
	client := connectedClient(t, backend)
	ctx := context.Background()

	before, err := client.UserStake(ctx, testAccount.Hex())
	require.NoError(t, err)

	_, err = client.Stake(ctx, "3.5")
	require.NoError(t, err)
	during, err := client.UserStake(ctx, testAccount.Hex())
	require.NoError(t, err)
	require.Equal(t, "3.5", during.Amount.Display)

	_, err = client.Unstake(ctx, "3.5")
	require.NoError(t, err)
	after, err := client.UserStake(ctx, testAccount.Hex())
	require.NoError(t, err)
	require.Equal(t, before.Amount.Base.String(), after.Amount.Base.String())

	_, err = client.Unstake(ctx, "1")
	require.ErrorIs(t, err, ErrReverted)
}

func TestLoanViews(t *testing.T) {
	backend := platformtest.NewBackend()
	backend.SetTrustScore(testAccount, 720)
	client := connectedClient(t, backend)
	ctx := context.Background()

	_, err := client.RequestLoan(ctx, common.Address{}.Hex(), "10", "")
	require.NoError(t, err)

	ids, err := client.UserLoans(ctx, testAccount.Hex())
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, ids)

	loans, err := client.LoansOf(ctx, testAccount.Hex())
	require.NoError(t, err)
	require.Len(t, loans, 1)
	require.Equal(t, testAccount, loans[0].Borrower)
	require.Equal(t, contracts.LoanActive, loans[0].Status)
	require.Equal(t, "10", loans[0].Principal.Display)
	require.Equal(t, "0.82", loans[0].Interest.Display)
	require.Equal(t, uint64(820), loans[0].RateBPS)
	require.False(t, loans[0].DueDate.IsZero())

	maxLoan, err := client.MaxLoan(ctx, testAccount.Hex())
	require.NoError(t, err)
	require.Equal(t, "72", maxLoan.Display)

	rate, err := client.DynamicRate(ctx, 720)
	require.NoError(t, err)
	require.Equal(t, uint64(1280), rate)

	_, err = client.RepayLoan(ctx, 0, "10.82")
	require.NoError(t, err)
	loan, err := client.Loan(ctx, 0)
	require.NoError(t, err)
	require.True(t, loan.Status.Terminal())
}

func TestTrustScoreAndAdmin(t *testing.T) {
	backend := platformtest.NewBackend()
	client := connectedClient(t, backend)
	ctx := context.Background()

	result, err := client.CreateTrustScore(ctx)
	require.NoError(t, err)
	require.Contains(t, result.Invalidates, KeyTrustScore)

	score, err := client.TrustScoreOf(ctx, testAccount.Hex())
	require.NoError(t, err)
	require.Equal(t, uint64(500), score.Score)

	_, err = client.UpdateTrustScore(ctx, testAccount.Hex(), 810)
	require.NoError(t, err)
	require.Equal(t, platformtest.TrustScoreAddress, backend.Sent()[1].To)
	score, err = client.TrustScoreOf(ctx, testAccount.Hex())
	require.NoError(t, err)
	require.Equal(t, uint64(810), score.Score)

	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	supported, err := client.SupportedToken(ctx, token.Hex())
	require.NoError(t, err)
	require.False(t, supported)
	result, err = client.AddSupportedToken(ctx, token.Hex())
	require.NoError(t, err)
	require.Equal(t, []CacheKey{KeyLiquidity}, result.Invalidates)
	supported, err = client.SupportedToken(ctx, token.Hex())
	require.NoError(t, err)
	require.True(t, supported)

	result, err = client.AddLiquidator(ctx, testAccount.Hex())
	require.NoError(t, err)
	require.Empty(t, result.Invalidates)

	_, err = client.SetPaused(ctx, true)
	require.NoError(t, err)
	paused, err := client.Paused(ctx)
	require.NoError(t, err)
	require.True(t, paused)
}

func TestTrustScoreNeedsContract(t *testing.T) {
	client, err := New(Config{PlatformAddress: platformtest.PlatformAddress}, platformtest.NewBackend())
	require.NoError(t, err)
	_, err = client.TrustScoreOf(context.Background(), testAccount.Hex())
	require.ErrorIs(t, err, ErrContractNotReady)
}

func TestLiquidityAndFlashLoan(t *testing.T) {
	backend := platformtest.NewBackend()
	client := connectedClient(t, backend)
	ctx := context.Background()

	_, err := client.AddLiquidity(ctx, common.Address{}.Hex(), "5", "5")
	require.NoError(t, err)
	liquidity, err := client.TokenLiquidity(ctx, common.Address{}.Hex())
	require.NoError(t, err)
	require.Equal(t, "5", liquidity.Display)

	result, err := client.FlashLoanText(ctx, common.Address{}.Hex(), "1", "arbitrage:v1")
	require.NoError(t, err)
	require.Equal(t, []CacheKey{KeySnapshot}, result.Invalidates)
	sent := backend.Sent()
	require.Equal(t, []byte("arbitrage:v1"), sent[len(sent)-1].Args[2])
}

func TestKeyWalletSigns(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet, err := NewKeyWallet(key)
	require.NoError(t, err)

	backend := platformtest.NewBackend()
	client := newTestClient(t, backend)
	addr, err := client.Connect(context.Background(), wallet)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	_, err = client.Stake(context.Background(), "1")
	require.NoError(t, err)
	sent := backend.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, addr, sent[0].From)
}

func TestKeystoreWallet(t *testing.T) {
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	account, err := ks.NewAccount("correct horse")
	require.NoError(t, err)

	wrong := NewKeystoreWallet(ks, common.Address{}, func(context.Context) (string, error) { return "nope", nil })
	_, err = wrong.RequestAccounts(context.Background())
	require.ErrorIs(t, err, ErrUserRejected)

	wallet := NewKeystoreWallet(ks, account.Address, func(context.Context) (string, error) { return "correct horse", nil })
	_, err = wallet.SignerFn(platformtest.ChainID)
	require.ErrorIs(t, err, ErrWalletUnavailable)

	client := newTestClient(t, platformtest.NewBackend())
	addr, err := client.Connect(context.Background(), wallet)
	require.NoError(t, err)
	require.Equal(t, account.Address, addr)
	require.NoError(t, wallet.Lock())

	missing := NewKeystoreWallet(ks, testAccount, func(context.Context) (string, error) { return "", nil })
	_, err = missing.RequestAccounts(context.Background())
	require.ErrorIs(t, err, ErrWalletUnavailable)
}

func TestBalance(t *testing.T) {
	backend := platformtest.NewBackend()
	backend.SetBalance(testAccount, big.NewInt(2_500_000_000_000_000_000))
	client := newTestClient(t, backend)
	balance, err := client.Balance(context.Background(), testAccount)
	require.NoError(t, err)
	require.Equal(t, "2.5", balance.Display)
}
