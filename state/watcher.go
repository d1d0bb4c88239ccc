package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"elegentdefi/contracts"
	"elegentdefi/observability"
	"elegentdefi/platform"
)

// EventSource is the slice of the platform client used by Watcher.
type EventSource interface {
	AccountSource
	WatchLoanCreated(ctx context.Context, handler func(platform.LoanCreatedEvent)) (event.Subscription, error)
	WatchLoanRepaid(ctx context.Context, handler func(platform.LoanRepaidEvent)) (event.Subscription, error)
	WatchLoanLiquidated(ctx context.Context, handler func(platform.LoanLiquidatedEvent)) (event.Subscription, error)
	WatchStaked(ctx context.Context, handler func(platform.StakedEvent)) (event.Subscription, error)
	WatchUnstaked(ctx context.Context, handler func(platform.UnstakedEvent)) (event.Subscription, error)
	WatchFlashLoanExecuted(ctx context.Context, handler func(platform.FlashLoanExecutedEvent)) (event.Subscription, error)
}

// Handlers receive events after account filtering. Any may be nil.
type Handlers struct {
	LoanCreated       func(platform.LoanCreatedEvent)
	LoanRepaid        func(platform.LoanRepaidEvent)
	LoanLiquidated    func(platform.LoanLiquidatedEvent)
	Staked            func(platform.StakedEvent)
	Unstaked          func(platform.UnstakedEvent)
	FlashLoanExecuted func(platform.FlashLoanExecutedEvent)
	// Any sees every delivered event with its name.
	Any func(name string, payload any)
	// Unscoped turns off the connected-account filter. The dashboard feed
	// sets it to relay events for every account.
	Unscoped bool
}

// ErrWatcherRunning is returned by Start on a running watcher.
var ErrWatcherRunning = errors.New("state: watcher already running")

// Watcher subscribes to platform events on behalf of the connected account.
// Staking and loan events for other accounts are dropped; flash loans move
// platform totals and are delivered to everyone. Each delivered event
// invalidates the cache keys it affects.
type Watcher struct {
	source   EventSource
	bus      *Bus
	handlers Handlers
	logger   *slog.Logger

	mu   sync.Mutex
	subs []event.Subscription
	errs chan error
}

func NewWatcher(source EventSource, bus *Bus, handlers Handlers, opts Options) *Watcher {
	return &Watcher{
		source:   source,
		bus:      bus,
		handlers: handlers,
		logger:   opts.logger(),
		errs:     make(chan error, 6),
	}
}

// Err delivers subscription failures such as malformed events or a dropped
// connection. The failed subscription is not restarted.
func (w *Watcher) Err() <-chan error { return w.errs }

// Start opens all six subscriptions. If any fails the others are closed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.subs) > 0 {
		return ErrWatcherRunning
	}

	type opener struct {
		name string
		open func() (event.Subscription, error)
	}
	openers := []opener{
		{contracts.EventLoanCreated, func() (event.Subscription, error) {
			return w.source.WatchLoanCreated(ctx, func(ev platform.LoanCreatedEvent) {
				deliver(ctx, w, contracts.EventLoanCreated, &ev.Borrower, ev, w.handlers.LoanCreated,
					platform.KeyLoans, platform.KeySnapshot)
			})
		}},
		{contracts.EventLoanRepaid, func() (event.Subscription, error) {
			return w.source.WatchLoanRepaid(ctx, func(ev platform.LoanRepaidEvent) {
				deliver(ctx, w, contracts.EventLoanRepaid, &ev.Borrower, ev, w.handlers.LoanRepaid,
					platform.KeyLoans, platform.KeySnapshot)
			})
		}},
		{contracts.EventLoanLiquidated, func() (event.Subscription, error) {
			// The event names only the liquidator, so it cannot be scoped to
			// the borrower.
			return w.source.WatchLoanLiquidated(ctx, func(ev platform.LoanLiquidatedEvent) {
				deliver(ctx, w, contracts.EventLoanLiquidated, nil, ev, w.handlers.LoanLiquidated,
					platform.KeyLoans, platform.KeySnapshot)
			})
		}},
		{contracts.EventStaked, func() (event.Subscription, error) {
			return w.source.WatchStaked(ctx, func(ev platform.StakedEvent) {
				deliver(ctx, w, contracts.EventStaked, &ev.User, ev, w.handlers.Staked,
					platform.KeyStake, platform.KeySnapshot)
			})
		}},
		{contracts.EventUnstaked, func() (event.Subscription, error) {
			return w.source.WatchUnstaked(ctx, func(ev platform.UnstakedEvent) {
				deliver(ctx, w, contracts.EventUnstaked, &ev.User, ev, w.handlers.Unstaked,
					platform.KeyStake, platform.KeySnapshot)
			})
		}},
		{contracts.EventFlashLoanExecuted, func() (event.Subscription, error) {
			return w.source.WatchFlashLoanExecuted(ctx, func(ev platform.FlashLoanExecutedEvent) {
				deliver(ctx, w, contracts.EventFlashLoanExecuted, nil, ev, w.handlers.FlashLoanExecuted,
					platform.KeySnapshot)
			})
		}},
	}

	subs := make([]event.Subscription, 0, len(openers))
	for _, o := range openers {
		sub, err := o.open()
		if err != nil {
			for _, s := range subs {
				s.Unsubscribe()
			}
			return fmt.Errorf("watch %s: %w", o.name, err)
		}
		subs = append(subs, sub)
		go w.forward(o.name, sub)
	}
	w.subs = subs
	w.logger.Info("event watcher started", "subscriptions", len(subs))
	return nil
}

// Stop closes every subscription. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if len(subs) > 0 {
		w.logger.Info("event watcher stopped")
	}
}

func (w *Watcher) forward(name string, sub event.Subscription) {
	err, ok := <-sub.Err()
	if !ok || err == nil {
		return
	}
	w.logger.Error("event subscription failed", "event", name, "error", err)
	select {
	case w.errs <- fmt.Errorf("%s: %w", name, err):
	default:
	}
}

// ownedBy reports whether party is the bound account.
func (w *Watcher) ownedBy(party common.Address) bool {
	account, ok := w.source.Account()
	return ok && account == party
}

func deliver[T any](ctx context.Context, w *Watcher, name string, party *common.Address, ev T, handler func(T), keys ...platform.CacheKey) {
	if party != nil && !w.handlers.Unscoped && !w.ownedBy(*party) {
		observability.Events().RecordDropped(name, "other_account")
		return
	}
	if handler != nil {
		handler(ev)
	}
	if w.handlers.Any != nil {
		w.handlers.Any(name, ev)
	}
	if err := w.bus.Invalidate(ctx, keys...); err != nil {
		w.logger.Warn("refetch after event failed", "event", name, "error", err)
	}
}
