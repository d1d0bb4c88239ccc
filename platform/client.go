package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"elegentdefi/contracts"
	"elegentdefi/units"
)

// Backend is the subset of the Ethereum JSON-RPC API the client uses.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Dial opens a JSON-RPC connection to the provider endpoint. HTTP requests
// carry trace context.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(rpcURL)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: rpc url required", ErrRPC)
	}
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	rpcClient, err := rpc.DialOptions(ctx, trimmed, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("%w: dial provider: %w", ErrRPC, err)
	}
	return ethclient.NewClient(rpcClient), nil
}

// Config identifies the deployed contracts and tunes confirmation polling.
type Config struct {
	PlatformAddress   common.Address
	TrustScoreAddress common.Address
	// ChainID is fetched from the backend on Connect when nil.
	ChainID             *big.Int
	ReceiptPollInterval time.Duration
}

const defaultReceiptPoll = 2 * time.Second

// Option customises a Client.
type Option func(*Client)

// WithLogger routes client logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTracer overrides the tracer used for per-call spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

type contract struct {
	name    string
	address common.Address
	abi     abi.ABI
}

func (k contract) configured() bool {
	return k.address != (common.Address{})
}

// Client is the typed translator between display-level requests and the
// platform contract. It starts without a signer; reads work immediately,
// writes need Connect.
type Client struct {
	backend  Backend
	platform contract
	trust    contract
	poll     time.Duration
	chainID  *big.Int

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	mu      sync.RWMutex
	account common.Address
	signer  SignerFn
}

// New constructs a client in the not-ready state.
func New(cfg Config, backend Backend, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend required", ErrRPC)
	}
	if (cfg.PlatformAddress == common.Address{}) {
		return nil, fmt.Errorf("%w: platform contract address required", ErrContractNotReady)
	}
	platformABI, err := contracts.Platform()
	if err != nil {
		return nil, err
	}
	trustABI, err := contracts.TrustScore()
	if err != nil {
		return nil, err
	}
	poll := cfg.ReceiptPollInterval
	if poll <= 0 {
		poll = defaultReceiptPoll
	}
	c := &Client{
		backend:  backend,
		platform: contract{name: "platform", address: cfg.PlatformAddress, abi: platformABI},
		trust:    contract{name: "trust-score", address: cfg.TrustScoreAddress, abi: trustABI},
		poll:     poll,
		logger:   slog.Default(),
		tracer:   otel.Tracer("elegentdefi/platform"),
		now:      time.Now,
	}
	if cfg.ChainID != nil {
		c.chainID = new(big.Int).Set(cfg.ChainID)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// PlatformAddress returns the platform contract address.
func (c *Client) PlatformAddress() common.Address {
	if c == nil {
		return common.Address{}
	}
	return c.platform.address
}

// Connect requests accounts from wallet and binds the first one as signer.
// Connecting again replaces the previous binding.
func (c *Client) Connect(ctx context.Context, wallet Wallet) (common.Address, error) {
	if c == nil {
		return common.Address{}, ErrContractNotReady
	}
	if wallet == nil {
		return common.Address{}, fmt.Errorf("%w: no wallet provider", ErrWalletUnavailable)
	}
	accounts, err := wallet.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, walletError(err)
	}
	if len(accounts) == 0 {
		return common.Address{}, fmt.Errorf("%w: wallet returned no accounts", ErrWalletUnavailable)
	}
	chainID, err := c.resolveChainID(ctx)
	if err != nil {
		return common.Address{}, err
	}
	signer, err := wallet.SignerFn(chainID)
	if err != nil {
		return common.Address{}, walletError(err)
	}
	if signer == nil {
		return common.Address{}, fmt.Errorf("%w: wallet returned no signer", ErrWalletUnavailable)
	}

	account := accounts[0]
	c.mu.Lock()
	c.account = account
	c.signer = signer
	c.mu.Unlock()
	c.logger.Info("wallet connected", "account", account.Hex(), "chain_id", chainID.String())
	return account, nil
}

// Disconnect drops the signer binding. Reads keep working.
func (c *Client) Disconnect() {
	if c == nil {
		return
	}
	c.mu.Lock()
	account := c.account
	c.account = common.Address{}
	c.signer = nil
	c.mu.Unlock()
	if (account != common.Address{}) {
		c.logger.Info("wallet disconnected", "account", account.Hex())
	}
}

// Account returns the bound account and whether one is bound.
func (c *Client) Account() (common.Address, bool) {
	if c == nil {
		return common.Address{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account, c.signer != nil
}

// Ready reports whether a signer is bound.
func (c *Client) Ready() bool {
	_, ok := c.Account()
	return ok
}

// Balance returns the native balance of addr.
func (c *Client) Balance(ctx context.Context, addr common.Address) (units.Amount, error) {
	if c == nil {
		return units.Amount{}, ErrContractNotReady
	}
	balance, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return units.Amount{}, classify("balance", err)
	}
	return units.FromBase(balance), nil
}

func (c *Client) resolveChainID(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	cached := c.chainID
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, classify("chainId", err)
	}
	if id == nil || id.Sign() <= 0 {
		return nil, fmt.Errorf("%w: provider reported no chain id", ErrRPC)
	}
	c.mu.Lock()
	c.chainID = id
	c.mu.Unlock()
	return id, nil
}

func (c *Client) binding() (common.Address, SignerFn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.signer == nil {
		return common.Address{}, nil, fmt.Errorf("%w: no signer bound", ErrContractNotReady)
	}
	return c.account, c.signer, nil
}

func walletError(err error) error {
	classified := classify("", err)
	if errors.Is(classified, ErrRPC) {
		return fmt.Errorf("%w: %w", ErrWalletUnavailable, err)
	}
	return classified
}
