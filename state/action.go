package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"elegentdefi/platform"
)

// AccountSource reports the account bound to the platform client.
type AccountSource interface {
	Account() (common.Address, bool)
}

// Options are shared by every store constructor.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// runAction drives the common write path: mark loading, submit and wait
// through the client, then publish the result's cache keys so the affected
// stores refetch. A failed action leaves Data untouched and sets Err.
func runAction[T any](ctx context.Context, store *Store[T], bus *Bus, logger *slog.Logger, name string, action func(context.Context) (platform.Result, error)) (platform.Result, error) {
	token := store.begin()
	result, err := action(ctx)
	if err != nil {
		store.fail(token, err)
		logger.Warn("action failed", "action", name, "error", err)
		return result, err
	}
	if err := bus.Invalidate(ctx, result.Invalidates...); err != nil {
		logger.Warn("refetch after action failed", "action", name, "tx_hash", result.Tx.Hash.Hex(), "error", err)
	}
	store.settle(token)
	return result, nil
}

// currentAccount returns the bound account as a hex string, or false.
func currentAccount(src AccountSource) (string, bool) {
	if src == nil {
		return "", false
	}
	account, ok := src.Account()
	if !ok {
		return "", false
	}
	return account.Hex(), true
}
