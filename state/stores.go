package state

import (
	"context"
	"time"

	"elegentdefi/platform"
)

// Stores bundles every store over one platform client and one bus.
type Stores struct {
	Bus         *Bus
	Session     *Session
	Loans       *Loans
	Staking     *Staking
	TrustScores *TrustScores
	FlashLoans  *FlashLoans
	Liquidity   *Liquidity
	Stats       *Stats
	Watcher     *Watcher
}

// New wires all stores to client. pollInterval <= 0 selects
// DefaultPollInterval.
func New(client *platform.Client, pollInterval time.Duration, handlers Handlers, opts Options) *Stores {
	bus := NewBus(opts.logger())
	return &Stores{
		Bus:         bus,
		Session:     NewSession(client, bus, opts),
		Loans:       NewLoans(client, bus, opts),
		Staking:     NewStaking(client, bus, opts),
		TrustScores: NewTrustScores(client, bus, opts),
		FlashLoans:  NewFlashLoans(client, bus, opts),
		Liquidity:   NewLiquidity(client, bus, opts),
		Stats:       NewStats(client, bus, pollInterval, opts),
		Watcher:     NewWatcher(client, bus, handlers, opts),
	}
}

// Refresh reloads every store once.
func (s *Stores) Refresh(ctx context.Context) error {
	return s.Bus.Invalidate(ctx, platform.AllCacheKeys()...)
}

// Close stops the poller and the watcher and freezes every store.
func (s *Stores) Close() {
	s.Watcher.Stop()
	s.Stats.Close()
	s.Session.Close()
	s.Loans.Close()
	s.Staking.Close()
	s.TrustScores.Close()
	s.FlashLoans.Close()
	s.Liquidity.Close()
}
