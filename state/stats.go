package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"elegentdefi/observability"
	"elegentdefi/observability/metrics"
	"elegentdefi/platform"
	"elegentdefi/units"
)

// DefaultPollInterval is how often Stats reloads the platform snapshot.
const DefaultPollInterval = 30 * time.Second

// SnapshotClient is the slice of the platform client used by Stats.
type SnapshotClient interface {
	ContractData(ctx context.Context) (platform.Snapshot, error)
}

// Stats polls the platform-wide snapshot. A failed poll records the error
// and keeps the previous snapshot.
type Stats struct {
	*Store[platform.Snapshot]
	client   SnapshotClient
	logger   *slog.Logger
	interval time.Duration
	cancels  []func()

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewStats returns a poller. interval <= 0 selects DefaultPollInterval.
func NewStats(client SnapshotClient, bus *Bus, interval time.Duration, opts Options) *Stats {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := &Stats{
		Store:    NewStore[platform.Snapshot](opts.Now),
		client:   client,
		logger:   opts.logger(),
		interval: interval,
	}
	s.cancels = append(s.cancels,
		bus.Register(platform.KeySnapshot, s.Refresh),
		bus.Register(platform.KeyPaused, s.Refresh),
	)
	return s
}

// Interval returns the poll period.
func (s *Stats) Interval() time.Duration { return s.interval }

// Refresh loads one snapshot. A poll overtaken by a newer Refresh is
// discarded.
func (s *Stats) Refresh(ctx context.Context) error {
	token := s.begin()
	snap, err := s.client.ContractData(ctx)
	observability.ContractMetrics().RecordPoll(err)
	if err != nil {
		s.fail(token, err)
		s.logger.Warn("platform snapshot poll failed", "error", err)
		return err
	}
	if s.succeed(token, snap) {
		metrics.Platform().ObserveSnapshot(snapshotValues(snap))
	}
	return nil
}

// Start loads a snapshot immediately and then on every interval until Stop,
// Close or ctx cancellation. Starting a running poller is a no-op.
func (s *Stats) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil || s.Closed() {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done
	go s.run(ctx, stop, done)
}

func (s *Stats) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	_ = s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

// Stop halts the poller and waits for the loop to exit.
func (s *Stats) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the poll loop is active.
func (s *Stats) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Close stops polling, unregisters from the bus and freezes the store.
func (s *Stats) Close() {
	s.Stop()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.Store.Close()
}

func snapshotValues(snap platform.Snapshot) metrics.SnapshotValues {
	return metrics.SnapshotValues{
		TotalLoans:      float64(snap.TotalLoans),
		TotalStaked:     amountFloat(snap.TotalStaked),
		TotalVolume:     amountFloat(snap.TotalVolume),
		TreasuryBalance: amountFloat(snap.TreasuryBalance),
		PlatformFeeBPS:  float64(snap.PlatformFeeBPS),
		FlashLoanFeeBPS: float64(snap.FlashLoanFeeBPS),
		Paused:          snap.Paused,
		FetchedAtUnix:   float64(snap.FetchedAt.Unix()),
	}
}

func amountFloat(a units.Amount) float64 {
	return a.Decimal().InexactFloat64()
}
