package state

import (
	"context"
	"log/slog"

	"elegentdefi/platform"
	"elegentdefi/units"
)

// LoanClient is the slice of the platform client used by Loans.
type LoanClient interface {
	AccountSource
	RequestLoan(ctx context.Context, token, amount, ethValue string) (platform.Result, error)
	RepayLoan(ctx context.Context, loanID uint64, ethValue string) (platform.Result, error)
	LiquidateLoan(ctx context.Context, loanID uint64) (platform.Result, error)
	LoansOf(ctx context.Context, user string) ([]platform.Loan, error)
	MaxLoan(ctx context.Context, user string) (units.Amount, error)
}

// LoansState is the connected account's loan book.
type LoansState struct {
	Loans   []platform.Loan `json:"loans"`
	MaxLoan units.Amount    `json:"maxLoan"`
}

// Active returns the loans that are still open.
func (s LoansState) Active() []platform.Loan {
	var out []platform.Loan
	for _, loan := range s.Loans {
		if !loan.Status.Terminal() {
			out = append(out, loan)
		}
	}
	return out
}

// Loans holds the account's loans and borrowing limit.
type Loans struct {
	*Store[LoansState]
	client LoanClient
	bus    *Bus
	logger *slog.Logger
	cancel func()
}

func NewLoans(client LoanClient, bus *Bus, opts Options) *Loans {
	l := &Loans{
		Store:  NewStore[LoansState](opts.Now),
		client: client,
		bus:    bus,
		logger: opts.logger(),
	}
	l.cancel = bus.Register(platform.KeyLoans, l.Refresh)
	return l
}

func (l *Loans) Close() {
	l.cancel()
	l.Store.Close()
}

// RequestLoan borrows amount of token. ethValue is the collateral sent with
// the call and may be empty.
func (l *Loans) RequestLoan(ctx context.Context, token, amount, ethValue string) (platform.Result, error) {
	return runAction(ctx, l.Store, l.bus, l.logger, "requestLoan", func(ctx context.Context) (platform.Result, error) {
		return l.client.RequestLoan(ctx, token, amount, ethValue)
	})
}

func (l *Loans) RepayLoan(ctx context.Context, loanID uint64, ethValue string) (platform.Result, error) {
	return runAction(ctx, l.Store, l.bus, l.logger, "repayLoan", func(ctx context.Context) (platform.Result, error) {
		return l.client.RepayLoan(ctx, loanID, ethValue)
	})
}

func (l *Loans) LiquidateLoan(ctx context.Context, loanID uint64) (platform.Result, error) {
	return runAction(ctx, l.Store, l.bus, l.logger, "liquidateLoan", func(ctx context.Context) (platform.Result, error) {
		return l.client.LiquidateLoan(ctx, loanID)
	})
}

// Refresh reloads the loans and the borrowing limit of the bound account.
// Without an account the state is emptied.
func (l *Loans) Refresh(ctx context.Context) error {
	token := l.begin()
	account, ok := currentAccount(l.client)
	if !ok {
		l.succeed(token, LoansState{})
		return nil
	}
	loans, err := l.client.LoansOf(ctx, account)
	if err != nil {
		l.fail(token, err)
		return err
	}
	limit, err := l.client.MaxLoan(ctx, account)
	if err != nil {
		l.fail(token, err)
		return err
	}
	l.succeed(token, LoansState{Loans: loans, MaxLoan: limit})
	return nil
}
