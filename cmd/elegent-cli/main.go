package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"elegentdefi/platform"
)

const defaultKeyEnv = "ELEGENT_PRIVATE_KEY"

type globalOptions struct {
	configPath string
	network    string
	rpcURL     string
	keyEnv     string
	timeout    time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("elegent-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprintln(stderr, usage()) }
	var opts globalOptions
	fs.StringVar(&opts.configPath, "config", os.Getenv("ELEGENT_CONFIG"), "path to a YAML or TOML config file")
	fs.StringVar(&opts.network, "network", "", "override the configured network (mainnet, testnet, localhost)")
	fs.StringVar(&opts.rpcURL, "rpc", "", "override the RPC endpoint of the selected network")
	fs.StringVar(&opts.keyEnv, "key-env", defaultKeyEnv, "environment variable holding a hex private key")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "deadline for the whole command")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	switch rest[0] {
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	case "quote":
		return runQuoteCommand(rest[1:], stdout, stderr)
	case "terms":
		return runTermsCommand(rest[1:], stdout, stderr)
	case "tier":
		return runTierCommand(rest[1:], stdout, stderr)
	case "balance":
		return runBalanceCommand(ctx, opts, rest[1:], stdout, stderr)
	case "loan":
		return runLoanCommand(ctx, opts, rest[1:], stdout, stderr)
	case "stake":
		return runStakeCommand(ctx, opts, rest[1:], stdout, stderr)
	case "trust":
		return runTrustCommand(ctx, opts, rest[1:], stdout, stderr)
	case "liquidity":
		return runLiquidityCommand(ctx, opts, rest[1:], stdout, stderr)
	case "flash-loan":
		return runFlashLoanCommand(ctx, opts, rest[1:], stdout, stderr)
	case "admin":
		return runAdminCommand(ctx, opts, rest[1:], stdout, stderr)
	case "stats":
		return runStatsCommand(ctx, opts, rest[1:], stdout, stderr)
	case "watch":
		return runWatchCommand(ctx, opts, rest[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", rest[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: elegent-cli [--config file] [--network name] [--rpc url] [--key-env VAR] <command> [flags]",
		"",
		"Offline:",
		"  quote --principal <amount> [--days 7|30|90|180]",
		"  terms",
		"  tier --score <n>",
		"",
		"Reads:",
		"  balance [--address <addr>]",
		"  loan list|max [--address <addr>]",
		"  loan rate --score <n>",
		"  stake info [--address <addr>]",
		"  trust show [--address <addr>]",
		"  liquidity show --token <addr>",
		"  stats",
		"  watch [--for <duration>]",
		"",
		"Transactions:",
		"  loan request --token <addr> --amount <amount> [--value <eth>]",
		"  loan repay --id <n> --value <eth>",
		"  loan liquidate --id <n>",
		"  stake deposit|withdraw --amount <amount>",
		"  trust create",
		"  trust update --user <addr> --score <n>",
		"  liquidity add --token <addr> --amount <amount> [--value <eth>]",
		"  flash-loan --token <addr> --amount <amount> [--params <text>]",
		"  admin add-liquidator --address <addr>",
		"  admin add-token --token <addr>",
		"  admin pause|unpause|status",
	}, "\n")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFlags parses args and rejects positional leftovers.
func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return false
	}
	return true
}

func printError(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	if reason, ok := platform.RevertReason(err); ok && reason != "" {
		fmt.Fprintf(stderr, "Revert reason: %s\n", reason)
	}
	return 1
}

func printUsageError(stderr io.Writer, message string) int {
	fmt.Fprintf(stderr, "Error: %s\n", message)
	return 1
}

func printJSON(stdout io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}
