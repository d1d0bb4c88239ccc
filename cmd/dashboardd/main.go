package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"elegentdefi/config"
	"elegentdefi/dashboard"
	"elegentdefi/observability/logging"
	telemetry "elegentdefi/observability/otel"
	"elegentdefi/platform"
	"elegentdefi/state"
)

const serviceName = "elegent-dashboard"

func main() {
	var cfgPath string
	var listen string
	flag.StringVar(&cfgPath, "config", os.Getenv("ELEGENT_CONFIG"), "path to a YAML or TOML config file")
	flag.StringVar(&listen, "listen", "", "override dashboard.listen")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "dashboardd: invalid configuration:\n%v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(listen) != "" {
		cfg.Dashboard.Listen = listen
	}

	logger := logging.SetupWithOptions(serviceName, cfg.Env, logging.Options{
		File:  cfg.Log.File,
		Level: logging.ParseLevel(cfg.Log.Level),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("dashboard exited", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, cfg.Env, string(cfg.Network)))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	logger.Info("configuration loaded", "config", cfg.Sanitized())

	backend, err := platform.Dial(ctx, cfg.RPCURL())
	if err != nil {
		return err
	}
	defer backend.Close()

	client, err := platform.New(platform.Config{
		PlatformAddress:     common.HexToAddress(cfg.Contracts.Platform),
		TrustScoreAddress:   address(cfg.Contracts.TrustScore),
		ChainID:             cfg.ChainID(),
		ReceiptPollInterval: cfg.ReceiptPollInterval.Duration,
	}, backend, platform.WithLogger(logger))
	if err != nil {
		return err
	}

	hub := dashboard.NewHub(cfg.Dashboard.MaxStreamClients)
	stores := state.New(client, cfg.StatsPollInterval.Duration, state.Handlers{
		Any:      hub.Publish,
		Unscoped: true,
	}, state.Options{Logger: logger})
	defer stores.Close()

	stores.Stats.Start(ctx)
	if err := stores.Watcher.Start(ctx); err != nil {
		// Plain HTTP providers cannot push logs; the snapshot poller still
		// keeps the dashboard current.
		logger.Warn("event stream unavailable", "error", err)
	} else {
		go logWatcherErrors(ctx, stores.Watcher, logger)
	}

	server, err := dashboard.New(dashboard.Config{
		Service: serviceName,
		Meta: dashboard.Meta{
			Network:           string(cfg.Network),
			ChainID:           cfg.ChainID().Int64(),
			PlatformAddress:   client.PlatformAddress(),
			TrustScoreAddress: address(cfg.Contracts.TrustScore),
			LoanNFTAddress:    address(cfg.Contracts.LoanNFT),
			DeployedBlock:     cfg.Deployment.Block,
			DeploymentHash:    cfg.Deployment.TxHash,
			Deployer:          cfg.Deployment.Deployer,
			PollInterval:      stores.Stats.Interval().String(),
		},
		RateLimit: dashboard.RateLimit{
			RatePerSecond: cfg.Dashboard.RatePerSecond,
			Burst:         cfg.Dashboard.Burst,
		},
		AllowedOrigins: cfg.Dashboard.AllowedOrigins,
	}, client, stores.Stats, hub, logger)
	if err != nil {
		return err
	}
	err = server.ListenAndServe(ctx, cfg.Dashboard.Listen)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func logWatcherErrors(ctx context.Context, watcher *state.Watcher, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-watcher.Err():
			logger.Error("event subscription ended", "error", err)
		}
	}
}

func address(raw string) common.Address {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}
	}
	return common.HexToAddress(raw)
}
