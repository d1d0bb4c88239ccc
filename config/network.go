package config

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

// Network selects the chain and RPC endpoint.
type Network string

const (
	NetworkMainnet   Network = "mainnet"
	NetworkTestnet   Network = "testnet"
	NetworkLocalhost Network = "localhost"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "prod"
)

var chainIDs = map[Network]int64{
	NetworkMainnet:   1,
	NetworkTestnet:   11155111,
	NetworkLocalhost: 31337,
}

// Networks lists the supported networks.
func Networks() []Network {
	return []Network{NetworkMainnet, NetworkTestnet, NetworkLocalhost}
}

func (n Network) Valid() bool {
	_, ok := chainIDs[n]
	return ok
}

// ChainID returns the EIP-155 chain id, or nil for an unknown network.
func (n Network) ChainID() *big.Int {
	id, ok := chainIDs[n]
	if !ok {
		return nil
	}
	return big.NewInt(id)
}

// RPCURL returns the endpoint configured for the selected network. The
// testnet is Sepolia.
func (cfg Config) RPCURL() string {
	switch cfg.Network {
	case NetworkMainnet:
		return strings.TrimSpace(cfg.RPC.Mainnet)
	case NetworkTestnet:
		return strings.TrimSpace(cfg.RPC.Sepolia)
	case NetworkLocalhost:
		return strings.TrimSpace(cfg.RPC.Localhost)
	}
	return ""
}

// ChainID returns the chain id of the selected network.
func (cfg Config) ChainID() *big.Int {
	return cfg.Network.ChainID()
}

func (cfg Config) Production() bool {
	return cfg.Env == EnvProduction
}

func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "***"
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}
	return fmt.Sprintf("%s://%s/***", parsed.Scheme, parsed.Host)
}
