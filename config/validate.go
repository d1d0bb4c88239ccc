package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MinReceiptPollInterval bounds how hard WaitMined may poll the node.
var MinReceiptPollInterval = 100 * time.Millisecond

// Validate reports every problem in cfg at once. In production the platform
// address and the RPC URL must be set explicitly rather than left at their
// development defaults.
func (cfg Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !cfg.Network.Valid() {
		add("network: unknown network %q (want mainnet, testnet or localhost)", cfg.Network)
	}
	if !common.IsHexAddress(cfg.Contracts.Platform) {
		add("contracts.platform: invalid address %q", cfg.Contracts.Platform)
	} else if common.HexToAddress(cfg.Contracts.Platform) == (common.Address{}) {
		add("contracts.platform: zero address")
	}
	for label, raw := range map[string]string{
		"contracts.loan_nft":    cfg.Contracts.LoanNFT,
		"contracts.trust_score": cfg.Contracts.TrustScore,
		"deployment.deployer":   cfg.Deployment.Deployer,
	} {
		if raw != "" && !common.IsHexAddress(raw) {
			add("%s: invalid address %q", label, raw)
		}
	}
	if hash := cfg.Deployment.TxHash; hash != "" && !isTxHash(hash) {
		add("deployment.tx_hash: invalid transaction hash %q", hash)
	}
	if cfg.Keystore.Account != "" && !common.IsHexAddress(cfg.Keystore.Account) {
		add("keystore.account: invalid address %q", cfg.Keystore.Account)
	}

	rpcURL := cfg.RPCURL()
	if cfg.Network.Valid() {
		if rpcURL == "" {
			add("rpc: no endpoint configured for network %s", cfg.Network)
		} else if err := checkURL(rpcURL, "http", "https", "ws", "wss"); err != nil {
			add("rpc: %v", err)
		}
	}
	if cfg.APIBaseURL != "" {
		if err := checkURL(cfg.APIBaseURL, "http", "https"); err != nil {
			add("api_base_url: %v", err)
		}
	}

	if cfg.StatsPollInterval.Duration <= 0 {
		add("stats_poll_interval: must be positive")
	}
	if cfg.ReceiptPollInterval.Duration < MinReceiptPollInterval {
		add("receipt_poll_interval: must be at least %s", MinReceiptPollInterval)
	}
	if strings.TrimSpace(cfg.Dashboard.Listen) == "" {
		add("dashboard.listen: required")
	}
	if cfg.Dashboard.RatePerSecond <= 0 {
		add("dashboard.rate_per_second: must be positive")
	}
	if cfg.Dashboard.Burst <= 0 {
		add("dashboard.burst: must be positive")
	}
	if cfg.Dashboard.MaxStreamClients < 0 {
		add("dashboard.max_stream_clients: must be non-negative")
	}

	if cfg.Production() {
		if strings.EqualFold(cfg.Contracts.Platform, DefaultPlatformContract) {
			add("contracts.platform: production requires an explicit contract address")
		}
		if rpcURL == "" || rpcURL == DefaultLocalhostRPC {
			add("rpc: production requires an explicit RPC URL")
		}
		if cfg.Network == NetworkLocalhost {
			add("network: production cannot target localhost")
		}
	}
	return errors.Join(errs...)
}

func checkURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q", maskURL(raw))
	}
	if parsed.Host == "" {
		return fmt.Errorf("url %q has no host", maskURL(raw))
	}
	for _, scheme := range schemes {
		if strings.EqualFold(parsed.Scheme, scheme) {
			return nil
		}
	}
	return fmt.Errorf("url %q: unsupported scheme %q", maskURL(raw), parsed.Scheme)
}

func isTxHash(raw string) bool {
	decoded, err := hexutil.Decode(raw)
	return err == nil && len(decoded) == common.HashLength
}
