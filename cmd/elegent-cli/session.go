package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"elegentdefi/cmd/internal/passphrase"
	"elegentdefi/config"
	"elegentdefi/observability/logging"
	telemetry "elegentdefi/observability/otel"
	"elegentdefi/platform"
	"elegentdefi/state"
)

var (
	// dialBackend and openWallet are swapped out by tests.
	dialBackend = func(ctx context.Context, rpcURL string) (platform.Backend, func(), error) {
		client, err := platform.Dial(ctx, rpcURL)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}
	openWallet = walletFromConfig
)

// session is one command's view of the platform: the loaded config, a
// client over the provider and the stores built on it.
type session struct {
	cfg    config.Config
	opts   globalOptions
	logger *slog.Logger
	client *platform.Client
	stores *state.Stores

	closers []func()
}

func openSession(ctx context.Context, opts globalOptions, stderr io.Writer, handlers state.Handlers) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := logging.SetupWithOptions("elegent-cli", cfg.Env, logging.Options{
		File:   cfg.Log.File,
		Level:  logging.ParseLevel(cfg.Log.Level),
		Output: stderr,
	})
	s := &session{cfg: cfg, opts: opts, logger: logger}

	shutdown, err := telemetry.Init(ctx, telemetry.ConfigFromEnv("elegent-cli", cfg.Env, string(cfg.Network)))
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s.closers = append(s.closers, func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	})

	backend, closeBackend, err := dialBackend(ctx, cfg.RPCURL())
	if err != nil {
		s.Close()
		return nil, err
	}
	if closeBackend != nil {
		s.closers = append(s.closers, closeBackend)
	}

	client, err := platform.New(platform.Config{
		PlatformAddress:     common.HexToAddress(cfg.Contracts.Platform),
		TrustScoreAddress:   optionalAddress(cfg.Contracts.TrustScore),
		ChainID:             cfg.ChainID(),
		ReceiptPollInterval: cfg.ReceiptPollInterval.Duration,
	}, backend, platform.WithLogger(logger))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.client = client
	s.stores = state.New(client, cfg.StatsPollInterval.Duration, handlers, state.Options{Logger: logger})
	s.closers = append(s.closers, s.stores.Close)
	return s, nil
}

// Close runs the registered closers in reverse order.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// connect binds the configured signing key to the session.
func (s *session) connect(ctx context.Context) (common.Address, error) {
	wallet, err := openWallet(s.cfg, s.opts.keyEnv)
	if err != nil {
		return common.Address{}, err
	}
	if locker, ok := wallet.(interface{ Lock() error }); ok {
		s.logger.Debug("unlocking keystore",
			logging.MaskField("keystore", s.cfg.Keystore.Path),
			logging.MaskField("passphrase_env", s.cfg.Keystore.PassphraseEnv))
		s.closers = append(s.closers, func() { _ = locker.Lock() })
	} else {
		s.logger.Debug("using raw key", logging.MaskField("key_source", keyEnvName(s.opts.keyEnv)))
	}
	return s.stores.Session.Connect(ctx, wallet)
}

// subject resolves the account a read targets: the explicit address when
// given, otherwise the connected signer.
func (s *session) subject(ctx context.Context, address string) (string, error) {
	if address = strings.TrimSpace(address); address != "" {
		return address, nil
	}
	account, err := s.connect(ctx)
	if err != nil {
		return "", fmt.Errorf("%w (or pass --address)", err)
	}
	return account.Hex(), nil
}

func loadConfig(opts globalOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if network := strings.TrimSpace(opts.network); network != "" {
		cfg.Network = config.Network(strings.ToLower(network))
	}
	if rpcURL := strings.TrimSpace(opts.rpcURL); rpcURL != "" {
		switch cfg.Network {
		case config.NetworkMainnet:
			cfg.RPC.Mainnet = rpcURL
		case config.NetworkTestnet:
			cfg.RPC.Sepolia = rpcURL
		case config.NetworkLocalhost:
			cfg.RPC.Localhost = rpcURL
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func optionalAddress(raw string) common.Address {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}
	}
	return common.HexToAddress(raw)
}

// walletFromConfig prefers a raw key from keyEnv and falls back to the
// configured keystore.
func walletFromConfig(cfg config.Config, keyEnv string) (platform.Wallet, error) {
	if keyEnv = strings.TrimSpace(keyEnv); keyEnv != "" {
		if raw := strings.TrimSpace(os.Getenv(keyEnv)); raw != "" {
			return platform.NewKeyWalletFromHex(raw)
		}
	}
	if path := strings.TrimSpace(cfg.Keystore.Path); path != "" {
		ks := platform.OpenKeystore(path)
		source := passphrase.NewSource(cfg.Keystore.PassphraseEnv)
		return platform.NewKeystoreWallet(ks, optionalAddress(cfg.Keystore.Account), source.Func()), nil
	}
	return nil, fmt.Errorf("%w: set %s or keystore.path", platform.ErrWalletUnavailable, keyEnvName(keyEnv))
}

func keyEnvName(keyEnv string) string {
	if keyEnv == "" {
		return defaultKeyEnv
	}
	return keyEnv
}

// withSession opens a session, runs fn and closes it, printing any error.
func withSession(ctx context.Context, opts globalOptions, stderr io.Writer, handlers state.Handlers, fn func(*session) error) int {
	s, err := openSession(ctx, opts, stderr, handlers)
	if err != nil {
		return printError(stderr, err)
	}
	defer s.Close()
	if err := fn(s); err != nil {
		return printError(stderr, err)
	}
	return 0
}

var errMissingFlag = errors.New("missing required flag")

func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w --%s", errMissingFlag, name)
	}
	return nil
}
