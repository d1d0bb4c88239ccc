package state

import (
	"context"
	"log/slog"

	"elegentdefi/platform"
)

// FlashLoanClient is the slice of the platform client used by FlashLoans.
type FlashLoanClient interface {
	FlashLoan(ctx context.Context, token, amount string, params []byte) (platform.Result, error)
}

// FlashLoans runs flash loans. It has no read state of its own; Data is the
// last confirmed flash-loan transaction.
type FlashLoans struct {
	*Store[platform.PendingTx]
	client FlashLoanClient
	bus    *Bus
	logger *slog.Logger
}

func NewFlashLoans(client FlashLoanClient, bus *Bus, opts Options) *FlashLoans {
	return &FlashLoans{
		Store:  NewStore[platform.PendingTx](opts.Now),
		client: client,
		bus:    bus,
		logger: opts.logger(),
	}
}

// Execute borrows and repays amount of token within one transaction.
func (f *FlashLoans) Execute(ctx context.Context, token, amount string, params []byte) (platform.Result, error) {
	result, err := runAction(ctx, f.Store, f.bus, f.logger, "flashLoan", func(ctx context.Context) (platform.Result, error) {
		return f.client.FlashLoan(ctx, token, amount, params)
	})
	if err == nil {
		f.reset(result.Tx)
	}
	return result, err
}
