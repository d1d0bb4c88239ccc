package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"elegentdefi/platform"
	"elegentdefi/state"
)

func runLoanCommand(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "request":
		return runLoanRequest(ctx, opts, args[1:], stdout, stderr)
	case "repay":
		return runLoanRepay(ctx, opts, args[1:], stdout, stderr)
	case "liquidate":
		return runLoanLiquidate(ctx, opts, args[1:], stdout, stderr)
	case "list":
		return runLoanList(ctx, opts, args[1:], stdout, stderr)
	case "max":
		return runLoanMax(ctx, opts, args[1:], stdout, stderr)
	case "rate":
		return runLoanRate(ctx, opts, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown loan subcommand: %s\n", args[0])
		return 1
	}
}

func runLoanRequest(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("loan request", stderr)
	var token, amount, value string
	fs.StringVar(&token, "token", "", "token address (0x0 for the native asset)")
	fs.StringVar(&amount, "amount", "", "principal in display units")
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
		result, err := s.stores.Loans.RequestLoan(ctx, token, amount, value)
		if err != nil {
			return err
		}
		var detail any
		if created, ok := s.client.LoanCreatedIn(result.Receipt); ok {
			detail = created
		}
		return printJSON(stdout, reportOf(result, detail))
	})
}

func runLoanRepay(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("loan repay", stderr)
	var id, value string
	fs.StringVar(&id, "id", "", "loan id")
	fs.StringVar(&value, "value", "", "native value covering principal and interest")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	loanID, err := parseLoanID(id)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	if err := requireFlag("value", value); err != nil {
		return printUsageError(stderr, err.Error())
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		if _, err := s.connect(ctx); err != nil {
			return err
		}
		result, err := s.stores.Loans.RepayLoan(ctx, loanID, value)
		if err != nil {
			return err
		}
		return printJSON(stdout, reportOf(result, s.stores.Loans.View().Data))
	})
}

func runLoanLiquidate(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("loan liquidate", stderr)
	var id string
	fs.StringVar(&id, "id", "", "loan id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	loanID, err := parseLoanID(id)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		if _, err := s.connect(ctx); err != nil {
			return err
		}
		result, err := s.stores.Loans.LiquidateLoan(ctx, loanID)
		if err != nil {
			return err
		}
		return printJSON(stdout, reportOf(result, nil))
	})
}

func runLoanList(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("loan list", stderr)
	var address string
	var activeOnly bool
	fs.StringVar(&address, "address", "", "borrower address (defaults to the signer)")
	fs.BoolVar(&activeOnly, "active", false, "only show open loans")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		user, err := s.subject(ctx, address)
		if err != nil {
			return err
		}
		loans, err := s.client.LoansOf(ctx, user)
		if err != nil {
			return err
		}
		book := state.LoansState{Loans: loans}
		if activeOnly {
			book.Loans = book.Active()
		}
		if book.Loans == nil {
			book.Loans = []platform.Loan{}
		}
		return printJSON(stdout, book.Loans)
	})
}

func runLoanMax(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("loan max", stderr)
	var address string
	fs.StringVar(&address, "address", "", "borrower address (defaults to the signer)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		user, err := s.subject(ctx, address)
		if err != nil {
			return err
		}
		limit, err := s.client.MaxLoan(ctx, user)
		if err != nil {
			return err
		}
		return printJSON(stdout, map[string]any{"address": user, "maxLoan": limit})
	})
}

func runLoanRate(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("loan rate", stderr)
	var raw string
	fs.StringVar(&raw, "score", "", "trust score")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	score, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return printUsageError(stderr, "--score must be a non-negative integer")
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		rate, err := s.client.DynamicRate(ctx, score)
		if err != nil {
			return err
		}
		return printJSON(stdout, map[string]uint64{"score": score, "rateBps": rate})
	})
}

func parseLoanID(raw string) (uint64, error) {
	if err := requireFlag("id", raw); err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("--id must be a non-negative integer")
	}
	return id, nil
}
