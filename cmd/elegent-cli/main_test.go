package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"elegentdefi/config"
	"elegentdefi/contracts"
	"elegentdefi/platform"
	"elegentdefi/platform/platformtest"
)

var nativeToken = common.Address{}.Hex()

// syncBuffer lets the watch test read output while the command writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// localEnv points config loading at the simulated localhost deployment.
func localEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ELEGENT_CONFIG", "")
	t.Setenv("DEFAULT_NETWORK", "localhost")
	t.Setenv("APP_ENV", config.EnvDevelopment)
	t.Setenv("LOAN_PLATFORM_CONTRACT", platformtest.PlatformAddress.Hex())
	t.Setenv("TRUST_SCORE_CONTRACT", platformtest.TrustScoreAddress.Hex())
	t.Setenv("RECEIPT_POLL_INTERVAL", "100ms")
	t.Setenv("KEYSTORE_PATH", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FILE", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv(defaultKeyEnv, "")
}

func useBackend(t *testing.T, backend *platformtest.Backend) {
	t.Helper()
	original := dialBackend
	dialBackend = func(context.Context, string) (platform.Backend, func(), error) {
		return backend, nil, nil
	}
	t.Cleanup(func() { dialBackend = original })
}

func useKey(t *testing.T) common.Address {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	original := openWallet
	openWallet = func(config.Config, string) (platform.Wallet, error) {
		return platform.NewKeyWallet(key)
	}
	t.Cleanup(func() { openWallet = original })
	return crypto.PubkeyToAddress(key.PublicKey)
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeOutput(t *testing.T, out string) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &body), out)
	return body
}

func TestUsageAndUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Usage: elegent-cli")

	code, stdout, _ := runCLI(t, "help")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "flash-loan")

	code, _, stderr = runCLI(t, "borrow")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Unknown command: borrow")

	code, _, stderr = runCLI(t, "loan", "refinance")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Unknown loan subcommand")
}

func TestOfflineQuote(t *testing.T) {
	code, stdout, _ := runCLI(t, "quote", "--principal", "1000", "--days", "30")
	require.Equal(t, 0, code)
	body := decodeOutput(t, stdout)
	require.Equal(t, "6.74", body["interest"])
	require.Equal(t, "1006.74", body["total"])

	code, _, stderr := runCLI(t, "quote", "--principal", "1000", "--days", "45")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "unknown loan duration")

	code, _, stderr = runCLI(t, "quote")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "missing required flag --principal")
}

func TestTermsAndTier(t *testing.T) {
	code, stdout, _ := runCLI(t, "terms")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "7 days")
	require.Contains(t, lines[0], "6.5% APR")

	code, stdout, _ = runCLI(t, "tier", "--score", "810")
	require.Equal(t, 0, code)
	body := decodeOutput(t, stdout)
	require.Equal(t, "Excellent", body["tier"])
	require.Equal(t, true, body["inRange"])

	code, _, _ = runCLI(t, "tier", "--score", "high")
	require.Equal(t, 1, code)
}

func TestFlagValidationHappensBeforeDialing(t *testing.T) {
	localEnv(t)
	original := dialBackend
	dialBackend = func(context.Context, string) (platform.Backend, func(), error) {
		t.Fatal("unexpected dial")
		return nil, nil, nil
	}
	t.Cleanup(func() { dialBackend = original })

	cases := map[string][]string{
		"missing required flag --token": {"loan", "request", "--amount", "1"},
		"--id must be":                  {"loan", "repay", "--id", "x", "--value", "1"},
		"missing required flag --value": {"loan", "repay", "--id", "1"},
		"unexpected arguments":          {"stake", "deposit", "--amount", "1", "extra"},
		"invalid token address":         {"liquidity", "show", "--token", "pool"},
	}
	for want, args := range cases {
		code, _, stderr := runCLI(t, args...)
		require.Equal(t, 1, code, args)
		require.Contains(t, stderr, want, args)
	}
}

func TestInvalidConfigurationIsReported(t *testing.T) {
	localEnv(t)
	t.Setenv("LOAN_PLATFORM_CONTRACT", config.ZeroAddress)
	useBackend(t, platformtest.NewBackend())

	code, _, stderr := runCLI(t, "stats")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "invalid configuration")
}

func TestStakeDepositAndInfo(t *testing.T) {
	localEnv(t)
	backend := platformtest.NewBackend()
	useBackend(t, backend)
	account := useKey(t)

	code, stdout, stderr := runCLI(t, "stake", "deposit", "--amount", "2")
	require.Equal(t, 0, code, stderr)
	body := decodeOutput(t, stdout)
	require.Equal(t, contracts.MethodStake, body["method"])
	require.Contains(t, body["invalidates"], string(platform.KeyStake))
	stake := body["detail"].(map[string]any)["stake"].(map[string]any)
	require.Equal(t, "2", stake["amount"].(map[string]any)["display"])

	code, stdout, stderr = runCLI(t, "stake", "info", "--address", account.Hex())
	require.Equal(t, 0, code, stderr)
	body = decodeOutput(t, stdout)
	require.Equal(t, "0.02", body["pendingRewards"].(map[string]any)["display"])

	sent := backend.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, account, sent[0].From)
}

func TestRevertReasonIsPrinted(t *testing.T) {
	localEnv(t)
	backend := platformtest.NewBackend()
	backend.RevertOn(contracts.MethodStake, "Pausable: paused")
	useBackend(t, backend)
	useKey(t)

	code, stdout, stderr := runCLI(t, "stake", "deposit", "--amount", "1")
	require.Equal(t, 1, code)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "Revert reason: Pausable: paused")
}

func TestLoanRequestAndList(t *testing.T) {
	localEnv(t)
	backend := platformtest.NewBackend()
	useBackend(t, backend)
	account := useKey(t)
	backend.SetTrustScore(account, 700)

	code, stdout, stderr := runCLI(t, "loan", "request", "--token", nativeToken, "--amount", "1.5")
	require.Equal(t, 0, code, stderr)
	body := decodeOutput(t, stdout)
	detail := body["detail"].(map[string]any)
	require.Equal(t, float64(0), detail["loanId"])
	require.Equal(t, float64(820), detail["rateBps"])

	code, stdout, stderr = runCLI(t, "loan", "list", "--active")
	require.Equal(t, 0, code, stderr)
	var loans []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &loans))
	require.Len(t, loans, 1)
	require.Equal(t, "1.5", loans[0]["principal"].(map[string]any)["display"])

	code, stdout, stderr = runCLI(t, "loan", "max", "--address", account.Hex())
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "70", decodeOutput(t, stdout)["maxLoan"].(map[string]any)["display"])

	code, stdout, _ = runCLI(t, "loan", "rate", "--score", "700")
	require.Equal(t, 0, code)
	require.Equal(t, float64(1300), decodeOutput(t, stdout)["rateBps"])
}

func TestReadsWithoutSignerNeedAddress(t *testing.T) {
	localEnv(t)
	useBackend(t, platformtest.NewBackend())

	code, _, stderr := runCLI(t, "trust", "show")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "or pass --address")
	require.Contains(t, stderr, defaultKeyEnv)
}

func TestTrustScoreLifecycle(t *testing.T) {
	localEnv(t)
	backend := platformtest.NewBackend()
	useBackend(t, backend)
	account := useKey(t)

	code, stdout, stderr := runCLI(t, "trust", "create")
	require.Equal(t, 0, code, stderr)
	detail := decodeOutput(t, stdout)["detail"].(map[string]any)
	require.Equal(t, float64(500), detail["score"])
	require.Equal(t, "Poor", detail["tier"])

	code, _, stderr = runCLI(t, "trust", "update", "--user", account.Hex(), "--score", "900")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stderr, "outside the usual 300-850 range")

	code, stdout, _ = runCLI(t, "trust", "show", "--address", account.Hex())
	require.Equal(t, 0, code)
	require.Equal(t, "Excellent", decodeOutput(t, stdout)["tier"])
}

func TestLiquidityAndFlashLoan(t *testing.T) {
	localEnv(t)
	backend := platformtest.NewBackend()
	useBackend(t, backend)
	useKey(t)

	code, stdout, stderr := runCLI(t, "liquidity", "add", "--token", nativeToken, "--amount", "10", "--value", "10")
	require.Equal(t, 0, code, stderr)
	pool := decodeOutput(t, stdout)["detail"].(map[string]any)
	require.Equal(t, "10", pool["available"].(map[string]any)["display"])

	code, _, stderr = runCLI(t, "flash-loan", "--token", nativeToken, "--amount", "10", "--params", "arbitrage:v1")
	require.Equal(t, 0, code, stderr)
	sent := backend.Sent()
	require.Equal(t, []byte("arbitrage:v1"), sent[len(sent)-1].Args[2])

	code, stdout, _ = runCLI(t, "stats")
	require.Equal(t, 0, code)
	require.Equal(t, "0.009", decodeOutput(t, stdout)["treasuryBalance"].(map[string]any)["display"])
}

func TestAdminPauseAndStatus(t *testing.T) {
	localEnv(t)
	backend := platformtest.NewBackend()
	useBackend(t, backend)
	useKey(t)

	code, _, stderr := runCLI(t, "admin", "pause")
	require.Equal(t, 0, code, stderr)
	code, stdout, _ := runCLI(t, "admin", "status")
	require.Equal(t, 0, code)
	require.Equal(t, true, decodeOutput(t, stdout)["paused"])

	code, _, stderr = runCLI(t, "admin", "add-token", "--token", "0x00000000000000000000000000000000000000aa")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, contracts.MethodAddSupportedToken, backend.Sent()[1].Method)
}

func TestBalance(t *testing.T) {
	localEnv(t)
	backend := platformtest.NewBackend()
	useBackend(t, backend)
	account := useKey(t)
	backend.SetBalance(account, new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18)))

	code, stdout, stderr := runCLI(t, "balance")
	require.Equal(t, 0, code, stderr)
	body := decodeOutput(t, stdout)
	require.Equal(t, "3", body["balance"].(map[string]any)["display"])
	require.True(t, strings.EqualFold(account.Hex(), body["address"].(string)))
}

func TestWatchStreamsEvents(t *testing.T) {
	localEnv(t)
	backend := platformtest.NewBackend()
	useBackend(t, backend)
	account := useKey(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stdout := &syncBuffer{}
	stderr := &syncBuffer{}
	done := make(chan int, 1)
	go func() { done <- run(ctx, []string{"watch", "--for", "30s"}, stdout, stderr) }()

	require.Eventually(t, func() bool {
		return backend.Subscribers(contracts.EventFlashLoanExecuted) > 0
	}, 5*time.Second, 10*time.Millisecond)
	backend.Emit(backend.Log(contracts.EventFlashLoanExecuted,
		[]common.Hash{platformtest.AddressTopic(account)},
		common.Address{}, big.NewInt(1e18), big.NewInt(9e14)))
	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), contracts.EventFlashLoanExecuted)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		require.Equal(t, 0, code, stderr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	require.Zero(t, backend.Subscribers(contracts.EventFlashLoanExecuted))
}
