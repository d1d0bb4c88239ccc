package main

import (
	"context"
	"fmt"
	"io"

	"elegentdefi/state"
)

func runStakeCommand(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "deposit", "withdraw":
		return runStakeChange(ctx, opts, args[0], args[1:], stdout, stderr)
	case "info":
		return runStakeInfo(ctx, opts, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown stake subcommand: %s\n", args[0])
		return 1
	}
}

func runStakeChange(ctx context.Context, opts globalOptions, mode string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("stake "+mode, stderr)
	var amount string
	fs.StringVar(&amount, "amount", "", "amount in display units")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := requireFlag("amount", amount); err != nil {
		return printUsageError(stderr, err.Error())
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		if _, err := s.connect(ctx); err != nil {
			return err
		}
		stake := s.stores.Staking.Stake
		if mode == "withdraw" {
			stake = s.stores.Staking.Unstake
		}
		result, err := stake(ctx, amount)
		if err != nil {
			return err
		}
		return printJSON(stdout, reportOf(result, s.stores.Staking.View().Data))
	})
}

func runStakeInfo(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("stake info", stderr)
	var address string
	fs.StringVar(&address, "address", "", "staker address (defaults to the signer)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		user, err := s.subject(ctx, address)
		if err != nil {
			return err
		}
		stake, err := s.client.UserStake(ctx, user)
		if err != nil {
			return err
		}
		rewards, err := s.client.PendingRewards(ctx, user)
		if err != nil {
			return err
		}
		return printJSON(stdout, state.StakingState{Stake: stake, PendingRewards: rewards})
	})
}
