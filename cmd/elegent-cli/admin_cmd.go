package main

import (
	"context"
	"fmt"
	"io"

	"elegentdefi/platform"
	"elegentdefi/state"
)

func runAdminCommand(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "add-liquidator":
		return runAdminAddress(ctx, opts, args[0], "address", args[1:], stdout, stderr)
	case "add-token":
		return runAdminAddress(ctx, opts, args[0], "token", args[1:], stdout, stderr)
	case "pause", "unpause":
		return runAdminPause(ctx, opts, args[0] == "pause", args[1:], stdout, stderr)
	case "status":
		return runAdminStatus(ctx, opts, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown admin subcommand: %s\n", args[0])
		return 1
	}
}

func runAdminAddress(ctx context.Context, opts globalOptions, name, flagName string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin "+name, stderr)
	var address string
	fs.StringVar(&address, flagName, "", "target address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := requireFlag(flagName, address); err != nil {
		return printUsageError(stderr, err.Error())
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		call := s.client.AddLiquidator
		if name == "add-token" {
			call = s.client.AddSupportedToken
		}
		return s.admin(ctx, stdout, func() (platform.Result, error) { return call(ctx, address) })
	})
}

func runAdminPause(ctx context.Context, opts globalOptions, paused bool, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin pause", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		return s.admin(ctx, stdout, func() (platform.Result, error) { return s.client.SetPaused(ctx, paused) })
	})
}

func runAdminStatus(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin status", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		paused, err := s.client.Paused(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, map[string]any{
			"platform": s.client.PlatformAddress(),
			"paused":   paused,
		})
	})
}

// admin sends an owner-only transaction and publishes its invalidations.
// The contract enforces ownership; a non-owner signer sees the revert.
func (s *session) admin(ctx context.Context, stdout io.Writer, send func() (platform.Result, error)) error {
	if _, err := s.connect(ctx); err != nil {
		return err
	}
	result, err := send()
	if err != nil {
		return err
	}
	if err := s.stores.Bus.Invalidate(ctx, result.Invalidates...); err != nil {
		s.logger.Warn("refetch after admin call failed", "method", result.Tx.Method, "error", err)
	}
	return printJSON(stdout, reportOf(result, nil))
}
