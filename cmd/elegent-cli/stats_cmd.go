package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"elegentdefi/platform"
	"elegentdefi/state"
)

func runStatsCommand(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("stats", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		if err := s.stores.Stats.Refresh(ctx); err != nil {
			return err
		}
		return printJSON(stdout, s.stores.Stats.View().Data)
	})
}

func runBalanceCommand(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
	var address string
	fs.StringVar(&address, "address", "", "account (defaults to the signer)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if address != "" && !common.IsHexAddress(strings.TrimSpace(address)) {
		return printUsageError(stderr, fmt.Sprintf("invalid address %q", address))
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		user, err := s.subject(ctx, address)
		if err != nil {
			return err
		}
		balance, err := s.client.Balance(ctx, common.HexToAddress(user))
		if err != nil {
			return err
		}
		return printJSON(stdout, map[string]any{"address": common.HexToAddress(user), "balance": balance})
	})
}

// runWatchCommand streams contract events as JSON lines until the context
// ends, --for elapses or a subscription fails.
func runWatchCommand(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("watch", stderr)
	var window time.Duration
	fs.DurationVar(&window, "for", 0, "stop after this long (0 runs until interrupted)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if window > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, window)
		defer cancel()
	}

	var mu sync.Mutex
	handlers := state.Handlers{
		Any: func(name string, payload any) {
			mu.Lock()
			defer mu.Unlock()
			_ = printJSON(stdout, map[string]any{"event": name, "payload": payload})
		},
	}
	return withSession(ctx, opts, stderr, handlers, func(s *session) error {
		if _, err := s.connect(ctx); err != nil {
			if !errors.Is(err, platform.ErrWalletUnavailable) {
				return err
			}
			s.logger.Warn("no signer configured; only unscoped events are shown", "error", err)
		}
		if err := s.stores.Watcher.Start(ctx); err != nil {
			return err
		}
		defer s.stores.Watcher.Stop()
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.stores.Watcher.Err():
			return err
		}
	})
}
