package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"elegentdefi/quote"
	"elegentdefi/state"
)

func runTrustCommand(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "create":
		return runTrustCreate(ctx, opts, args[1:], stdout, stderr)
	case "update":
		return runTrustUpdate(ctx, opts, args[1:], stdout, stderr)
	case "show":
		return runTrustShow(ctx, opts, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown trust subcommand: %s\n", args[0])
		return 1
	}
}

func runTrustCreate(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("trust create", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		if _, err := s.connect(ctx); err != nil {
			return err
		}
		result, err := s.stores.TrustScores.Create(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, reportOf(result, s.stores.TrustScores.View().Data))
	})
}

func runTrustUpdate(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("trust update", stderr)
	var user, raw string
	fs.StringVar(&user, "user", "", "address whose score is set")
	fs.StringVar(&raw, "score", "", "new score")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := requireFlag("user", user); err != nil {
		return printUsageError(stderr, err.Error())
	}
	score, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return printUsageError(stderr, "--score must be a non-negative integer")
	}
	if !quote.InDisplayRange(score) {
		fmt.Fprintf(stderr, "Warning: score %d is outside the usual %d-%d range\n", score, quote.MinTrustScore, quote.MaxTrustScore)
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		if _, err := s.connect(ctx); err != nil {
			return err
		}
		result, err := s.stores.TrustScores.Update(ctx, user, score)
		if err != nil {
			return err
		}
		return printJSON(stdout, reportOf(result, nil))
	})
}

func runTrustShow(ctx context.Context, opts globalOptions, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("trust show", stderr)
	var address string
	fs.StringVar(&address, "address", "", "score owner (defaults to the signer)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return withSession(ctx, opts, stderr, state.Handlers{}, func(s *session) error {
		user, err := s.subject(ctx, address)
		if err != nil {
			return err
		}
		trust, err := s.stores.TrustScores.Fetch(ctx, user)
		if err != nil {
			return err
		}
		return printJSON(stdout, trust)
	})
}
