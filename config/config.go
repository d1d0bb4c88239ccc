package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration shared by the CLI and the dashboard
// daemon.
type Config struct {
	Network             Network    `yaml:"network" toml:"Network"`
	Env                 string     `yaml:"env" toml:"Env"`
	Contracts           Contracts  `yaml:"contracts" toml:"contracts"`
	RPC                 RPC        `yaml:"rpc" toml:"rpc"`
	Deployment          Deployment `yaml:"deployment" toml:"deployment"`
	APIBaseURL          string     `yaml:"api_base_url" toml:"APIBaseURL"`
	EnableAnalytics     bool       `yaml:"enable_analytics" toml:"EnableAnalytics"`
	StatsPollInterval   Duration   `yaml:"stats_poll_interval" toml:"StatsPollInterval"`
	ReceiptPollInterval Duration   `yaml:"receipt_poll_interval" toml:"ReceiptPollInterval"`
	Keystore            Keystore   `yaml:"keystore" toml:"keystore"`
	Dashboard           Dashboard  `yaml:"dashboard" toml:"dashboard"`
	Log                 Log        `yaml:"log" toml:"log"`
}

const (
	envNetwork             = "DEFAULT_NETWORK"
	envPlatformContract    = "LOAN_PLATFORM_CONTRACT"
	envLoanNFTContract     = "LOAN_NFT_CONTRACT"
	envTrustScoreContract  = "TRUST_SCORE_CONTRACT"
	envMainnetRPC          = "MAINNET_RPC"
	envSepoliaRPC          = "SEPOLIA_RPC"
	envLocalhostRPC        = "LOCALHOST_RPC"
	envDeployedBlock       = "DEPLOYED_BLOCK"
	envDeploymentHash      = "DEPLOYMENT_HASH"
	envDeployerAddress     = "DEPLOYER_ADDRESS"
	envAPIBaseURL          = "API_BASE_URL"
	envEnableAnalytics     = "ENABLE_ANALYTICS"
	envAppEnv              = "APP_ENV"
	envStatsPollInterval   = "STATS_POLL_INTERVAL"
	envReceiptPollInterval = "RECEIPT_POLL_INTERVAL"
	envKeystorePath        = "KEYSTORE_PATH"
	envKeystoreAccount     = "KEYSTORE_ACCOUNT"
	envPassphraseEnv       = "KEYSTORE_PASSPHRASE_ENV"
	envDashboardListen     = "DASHBOARD_LISTEN"
	envLogFile             = "LOG_FILE"
	envLogLevel            = "LOG_LEVEL"

	DefaultPlatformContract = "0xd8b934580fcE35a11B58C6D73aDeE468a2833fa8"
	ZeroAddress             = "0x0000000000000000000000000000000000000000"
	DefaultLocalhostRPC     = "http://127.0.0.1:8545"
	DefaultDeployedBlock    = 23510035
	DefaultPassphraseEnv    = "ELEGENT_KEYSTORE_PASSPHRASE"
	DefaultDashboardListen  = "127.0.0.1:8088"

	defaultStatsPollInterval   = 30 * time.Second
	defaultReceiptPollInterval = 2 * time.Second
	defaultRatePerSecond       = 10
	defaultBurst               = 20
	defaultMaxStreamClients    = 64
)

// Default returns the configuration used when neither a file nor the
// environment sets a value.
func Default() Config {
	return Config{
		Network: NetworkTestnet,
		Env:     EnvDevelopment,
		Contracts: Contracts{
			Platform:   DefaultPlatformContract,
			LoanNFT:    ZeroAddress,
			TrustScore: ZeroAddress,
		},
		RPC:                 RPC{Localhost: DefaultLocalhostRPC},
		Deployment:          Deployment{Block: DefaultDeployedBlock},
		StatsPollInterval:   Duration{defaultStatsPollInterval},
		ReceiptPollInterval: Duration{defaultReceiptPollInterval},
		Keystore:            Keystore{PassphraseEnv: DefaultPassphraseEnv},
		Dashboard: Dashboard{
			Listen:           DefaultDashboardListen,
			RatePerSecond:    defaultRatePerSecond,
			Burst:            defaultBurst,
			MaxStreamClients: defaultMaxStreamClients,
		},
		Log: Log{Level: "info"},
	}
}

// Load builds the configuration from defaults, then the optional file at
// path, then the environment. The file format follows the extension: .yaml
// or .yml for YAML and .toml for TOML. Load does not validate; call
// Validate before use.
func Load(path string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			return fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
		}
	default:
		return fmt.Errorf("config file %s: unsupported extension %q", path, ext)
	}
	return nil
}

// applyEnv overlays set environment variables. Malformed numeric, boolean
// and duration values are reported together.
func (cfg *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if v := strings.TrimSpace(getenv(envNetwork)); v != "" {
		cfg.Network = Network(strings.ToLower(v))
	}
	str(envAppEnv, &cfg.Env)
	str(envPlatformContract, &cfg.Contracts.Platform)
	str(envLoanNFTContract, &cfg.Contracts.LoanNFT)
	str(envTrustScoreContract, &cfg.Contracts.TrustScore)
	str(envMainnetRPC, &cfg.RPC.Mainnet)
	str(envSepoliaRPC, &cfg.RPC.Sepolia)
	str(envLocalhostRPC, &cfg.RPC.Localhost)
	str(envDeploymentHash, &cfg.Deployment.TxHash)
	str(envDeployerAddress, &cfg.Deployment.Deployer)
	str(envAPIBaseURL, &cfg.APIBaseURL)
	str(envKeystorePath, &cfg.Keystore.Path)
	str(envKeystoreAccount, &cfg.Keystore.Account)
	str(envPassphraseEnv, &cfg.Keystore.PassphraseEnv)
	str(envDashboardListen, &cfg.Dashboard.Listen)
	str(envLogFile, &cfg.Log.File)
	str(envLogLevel, &cfg.Log.Level)
	dur(envStatsPollInterval, &cfg.StatsPollInterval)
	dur(envReceiptPollInterval, &cfg.ReceiptPollInterval)

	if v := strings.TrimSpace(getenv(envDeployedBlock)); v != "" {
		block, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid block number %q", envDeployedBlock, v))
		} else {
			cfg.Deployment.Block = block
		}
	}
	if v := strings.TrimSpace(getenv(envEnableAnalytics)); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid boolean %q", envEnableAnalytics, v))
		} else {
			cfg.EnableAnalytics = enabled
		}
	}
	return errors.Join(errs...)
}

func (cfg *Config) normalize() {
	cfg.Network = Network(strings.ToLower(strings.TrimSpace(string(cfg.Network))))
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = EnvDevelopment
	}
	cfg.Contracts.Platform = strings.TrimSpace(cfg.Contracts.Platform)
	cfg.Contracts.LoanNFT = strings.TrimSpace(cfg.Contracts.LoanNFT)
	cfg.Contracts.TrustScore = strings.TrimSpace(cfg.Contracts.TrustScore)
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	origins := make([]string, 0, len(cfg.Dashboard.AllowedOrigins))
	for _, origin := range cfg.Dashboard.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.Dashboard.AllowedOrigins = origins
}

// Sanitized returns a copy safe to log. RPC URLs often embed provider API
// keys in the path, so only their scheme and host are kept.
func (cfg Config) Sanitized() Config {
	clone := cfg
	clone.RPC.Mainnet = maskURL(clone.RPC.Mainnet)
	clone.RPC.Sepolia = maskURL(clone.RPC.Sepolia)
	clone.RPC.Localhost = maskURL(clone.RPC.Localhost)
	return clone
}
