package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	"elegentdefi/state"
)

func runLiquidityCommand(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "add":
		return runLiquidityAdd(ctx, opts, args[1:], stdout, stderr)
	case "show":
		return runLiquidityShow(ctx, opts, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown liquidity subcommand: %s\n", args[0])
		return 1
	}
}

func runLiquidityAdd(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("liquidity add", stderr)
	var token, amount, value string
	fs.StringVar(&token, "token", "", "token address (0x0 for the native asset)")
	fs.StringVar(&amount, "amount", "", "amount in display units")
	fs.StringVar(&value, "value", "", "optional native value to attach")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := requireFlag("token", token); err != nil {
		return printUsageError(stderr, err.Error())
	}
	if err := requireFlag("amount", amount); err != nil {
		return printUsageError(stderr, err.Error())
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		if _, err := s.connect(ctx); err != nil {
			return err
		}
		result, err := s.stores.Liquidity.AddLiquidity(ctx, token, amount, value)
		if err != nil {
			return err
		}
		pool, _ := s.stores.Liquidity.View().Data.Pool(common.HexToAddress(token))
		return printJSON(stdout, reportOf(result, pool))
	})
}

func runLiquidityShow(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("liquidity show", stderr)
	var token string
	fs.StringVar(&token, "token", "", "token address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := requireFlag("token", token); err != nil {
		return printUsageError(stderr, err.Error())
	}
	if !common.IsHexAddress(token) {
		return printUsageError(stderr, fmt.Sprintf("invalid token address %q", token))
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		addr := common.HexToAddress(token)
		if err := s.stores.Liquidity.Track(ctx, addr); err != nil {
			return err
		}
		pool, _ := s.stores.Liquidity.View().Data.Pool(addr)
		return printJSON(stdout, pool)
	})
}

func runFlashLoanCommand(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("flash-loan", stderr)
	var token, amount, params string
	fs.StringVar(&token, "token", "", "token address")
	fs.StringVar(&amount, "amount", "", "amount in display units")
	fs.StringVar(&params, "params", "", "text forwarded to the receiver")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := requireFlag("token", token); err != nil {
		return printUsageError(stderr, err.Error())
	}
	if err := requireFlag("amount", amount); err != nil {
		return printUsageError(stderr, err.Error())
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		if _, err := s.connect(ctx); err != nil {
			return err
		}
		result, err := s.stores.FlashLoans.Execute(ctx, token, amount, []byte(params))
		if err != nil {
			return err
		}
		return printJSON(stdout, reportOf(result, nil))
	})
}
