package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration is a time.Duration that decodes from strings such as "30s" in
// both YAML and TOML files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Contracts holds the deployed contract addresses as hex strings.
type Contracts struct {
	Platform   string `yaml:"platform" toml:"Platform"`
	LoanNFT    string `yaml:"loan_nft" toml:"LoanNFT"`
	TrustScore string `yaml:"trust_score" toml:"TrustScore"`
}

// RPC lists the JSON-RPC endpoint per network.
type RPC struct {
	Mainnet   string `yaml:"mainnet" toml:"Mainnet"`
	Sepolia   string `yaml:"sepolia" toml:"Sepolia"`
	Localhost string `yaml:"localhost" toml:"Localhost"`
}

// Deployment records where the platform contract was deployed. It is shown
// by the dashboard and not used for reads.
type Deployment struct {
	Block    uint64 `yaml:"block" toml:"Block"`
	TxHash   string `yaml:"tx_hash" toml:"TxHash"`
	Deployer string `yaml:"deployer" toml:"Deployer"`
}

// Keystore locates the signing key for the CLI and daemon.
type Keystore struct {
	Path          string `yaml:"path" toml:"Path"`
	Account       string `yaml:"account" toml:"Account"`
	PassphraseEnv string `yaml:"passphrase_env" toml:"PassphraseEnv"`
}

// Dashboard configures the HTTP surface.
type Dashboard struct {
	Listen           string   `yaml:"listen" toml:"Listen"`
	RatePerSecond    float64  `yaml:"rate_per_second" toml:"RatePerSecond"`
	Burst            int      `yaml:"burst" toml:"Burst"`
	AllowedOrigins   []string `yaml:"allowed_origins" toml:"AllowedOrigins"`
	MaxStreamClients int      `yaml:"max_stream_clients" toml:"MaxStreamClients"`
}

// Log configures slog output.
type Log struct {
	File  string `yaml:"file" toml:"File"`
	Level string `yaml:"level" toml:"Level"`
}
