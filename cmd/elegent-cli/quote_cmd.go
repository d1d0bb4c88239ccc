package main

import (
	"fmt"
	"io"
	"strconv"

	"elegentdefi/quote"
)

func runQuoteCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("quote", stderr)
	var principal string
	var days int
	fs.StringVar(&principal, "principal", "", "principal in display units")
	fs.IntVar(&days, "days", 0, "term in days (defaults to 30)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := requireFlag("principal", principal); err != nil {
		return printUsageError(stderr, err.Error())
	}
	q, err := quote.ForLoan(principal, days)
	if err != nil {
		return printError(stderr, err)
	}
	if err := printJSON(stdout, q); err != nil {
		return printError(stderr, err)
	}
	return 0
}

func runTermsCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("terms", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	for _, term := range quote.Terms() {
		fmt.Fprintf(stdout, "%-8s %s%% APR\n", term.Label(), term.APR.StringFixed(1))
	}
	return 0
}

func runTierCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("tier", stderr)
	var raw string
	fs.StringVar(&raw, "score", "", "trust score")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	score, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return printUsageError(stderr, "--score must be a non-negative integer")
	}
	tier := quote.TierFor(score)
	if err := printJSON(stdout, map[string]any{
		"score":    score,
		"tier":     tier,
		"benefits": tier.Benefits(),
		"inRange":  quote.InDisplayRange(score),
	}); err != nil {
		return printError(stderr, err)
	}
	return 0
}
