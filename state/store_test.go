package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"elegentdefi/platform"
)

func TestStoreNotifiesListeners(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewStore[int](func() time.Time { return fixed })

	var seen []View[int]
	cancel := store.Subscribe(func(v View[int]) { seen = append(seen, v) })

	token := store.begin()
	require.True(t, store.succeed(token, 7))
	require.Len(t, seen, 2)
	require.True(t, seen[0].Loading)
	require.Equal(t, View[int]{Data: 7, UpdatedAt: fixed}, seen[1])

	cancel()
	store.succeed(store.begin(), 8)
	require.Len(t, seen, 2)
	require.Equal(t, 8, store.View().Data)
}

func TestStoreFailKeepsData(t *testing.T) {
	store := NewStore[string](nil)
	store.succeed(store.begin(), "good")
	store.fail(store.begin(), errors.New("boom"))

	v := store.View()
	require.Equal(t, "good", v.Data)
	require.Equal(t, "boom", v.Err)
	require.False(t, v.Loading)

	store.begin()
	require.Empty(t, store.View().Err)
}

func TestStoreCloseIgnoresLateWrites(t *testing.T) {
	store := NewStore[int](nil)
	store.succeed(store.begin(), 1)
	calls := 0
	store.Subscribe(func(View[int]) { calls++ })
	before := store.View()
	store.Close()

	token := store.begin()
	require.False(t, store.succeed(token, 2))
	store.fail(token, errors.New("late"))
	store.reset(3)
	require.Equal(t, before, store.View())
	require.Zero(t, calls)
	require.True(t, store.Closed())

	cancel := store.Subscribe(func(View[int]) { calls++ })
	cancel()
}

func TestStoreDropsOvertakenResults(t *testing.T) {
	store := NewStore[int](nil)
	older := store.begin()
	newer := store.begin()

	require.False(t, store.succeed(older, 1))
	v := store.View()
	require.Zero(t, v.Data)
	require.True(t, v.Loading, "newer call still in flight")

	require.True(t, store.succeed(newer, 2))
	store.fail(older, errors.New("stale"))
	store.settle(older)
	v = store.View()
	require.Equal(t, 2, v.Data)
	require.Empty(t, v.Err)
	require.False(t, v.Loading)

	inFlight := store.begin()
	store.reset(0)
	require.False(t, store.succeed(inFlight, 9))
	require.Zero(t, store.View().Data)
}

func TestBusRunsRefetchersInOrder(t *testing.T) {
	bus := NewBus(nil)
	var order []string
	bus.Register(platform.KeyLoans, func(context.Context) error { order = append(order, "a"); return nil })
	cancel := bus.Register(platform.KeyLoans, func(context.Context) error { order = append(order, "b"); return nil })
	bus.Register(platform.KeyStake, func(context.Context) error { order = append(order, "c"); return nil })

	require.NoError(t, bus.Invalidate(context.Background(), platform.KeyLoans, platform.KeyStake, platform.KeyLoans))
	require.Equal(t, []string{"a", "b", "c"}, order)

	cancel()
	order = nil
	require.NoError(t, bus.Invalidate(context.Background(), platform.KeyLoans))
	require.Equal(t, []string{"a"}, order)
}

func TestBusJoinsRefetchErrors(t *testing.T) {
	bus := NewBus(nil)
	boom := errors.New("boom")
	ran := false
	bus.Register(platform.KeySnapshot, func(context.Context) error { return boom })
	bus.Register(platform.KeySnapshot, func(context.Context) error { ran = true; return nil })

	err := bus.Invalidate(context.Background(), platform.KeySnapshot, platform.KeyPaused)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "refetch snapshot")
	require.True(t, ran)

	var nilBus *Bus
	require.NoError(t, nilBus.Invalidate(context.Background(), platform.KeyLoans))
	nilBus.Register(platform.KeyLoans, func(context.Context) error { return nil })()
}

func TestBusKeysDoNotWaitOnEachOther(t *testing.T) {
	bus := NewBus(nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	bus.Register(platform.KeyLoans, func(context.Context) error {
		close(entered)
		<-release
		return nil
	})
	bus.Register(platform.KeyStake, func(context.Context) error { return nil })

	loansDone := make(chan error, 1)
	go func() { loansDone <- bus.Invalidate(context.Background(), platform.KeyLoans) }()
	<-entered

	stakeDone := make(chan error, 1)
	go func() { stakeDone <- bus.Invalidate(context.Background(), platform.KeyStake) }()
	select {
	case err := <-stakeDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stake invalidation waited on the loans refetch")
	}

	select {
	case <-loansDone:
		t.Fatal("loans invalidation returned before its refetch finished")
	default:
	}
	close(release)
	require.NoError(t, <-loansDone)
}

func TestBusAllowsNestedInvalidation(t *testing.T) {
	bus := NewBus(nil)
	stakeRuns := 0
	bus.Register(platform.KeyLoans, func(ctx context.Context) error {
		return bus.Invalidate(ctx, platform.KeyStake)
	})
	bus.Register(platform.KeyStake, func(context.Context) error {
		stakeRuns++
		return nil
	})

	store := NewStore[int](nil)
	store.Subscribe(func(v View[int]) {
		if v.Data == 1 {
			_ = bus.Invalidate(context.Background(), platform.KeyStake)
		}
	})

	done := make(chan error, 1)
	go func() {
		err := bus.Invalidate(context.Background(), platform.KeyLoans)
		if err == nil {
			store.succeed(store.begin(), 1)
		}
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("nested invalidation never returned")
	}
	require.Equal(t, 2, stakeRuns)
}

func TestBusInvalidateStopsWaitingOnCancel(t *testing.T) {
	bus := NewBus(nil)
	release := make(chan struct{})
	defer close(release)
	bus.Register(platform.KeySnapshot, func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := bus.Invalidate(ctx, platform.KeySnapshot)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
