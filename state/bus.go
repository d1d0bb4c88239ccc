package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"

	"elegentdefi/platform"
)

// Refetcher reloads the state behind one cache key.
type Refetcher func(ctx context.Context) error

type invalidation struct {
	ctx  context.Context
	key  platform.CacheKey
	errs []error
	done chan struct{}
}

type registration struct {
	id string
	fn Refetcher
}

// Bus routes cache-key invalidations to the stores that read that data. The
// write path only publishes keys; each store decides how to refetch.
type Bus struct {
	bus    evbus.Bus
	logger *slog.Logger

	mu         sync.Mutex
	refetchers map[platform.CacheKey][]registration
}

// NewBus wires one topic per cache key. Refetchers run on their own
// goroutine, outside the EventBus lock, so a slow key never holds up another
// and a refetcher may itself invalidate.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		bus:        evbus.New(),
		logger:     logger,
		refetchers: make(map[platform.CacheKey][]registration),
	}
	for _, key := range platform.AllCacheKeys() {
		if err := b.bus.SubscribeAsync(topic(key), b.dispatch, false); err != nil {
			logger.Error("subscribe invalidation topic", "key", key.String(), "error", err)
		}
	}
	return b
}

func topic(key platform.CacheKey) string {
	return "invalidate:" + key.String()
}

// Register adds fn as a refetcher for key. Refetchers for one key run in
// registration order. The returned func removes it.
func (b *Bus) Register(key platform.CacheKey, fn Refetcher) (cancel func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	b.mu.Lock()
	b.refetchers[key] = append(b.refetchers[key], registration{id: id, fn: fn})
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.refetchers[key]
		for i, reg := range list {
			if reg.id == id {
				b.refetchers[key] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Invalidate runs the refetchers of each distinct key in turn and returns
// their joined errors. It returns once every refetch has finished, or with
// ctx's error if ctx ends first.
func (b *Bus) Invalidate(ctx context.Context, keys ...platform.CacheKey) error {
	if b == nil {
		return nil
	}
	seen := make(map[platform.CacheKey]struct{}, len(keys))
	var errs []error
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if !b.bus.HasCallback(topic(key)) {
			continue
		}
		req := &invalidation{ctx: ctx, key: key, done: make(chan struct{})}
		b.bus.Publish(topic(key), req)
		select {
		case <-req.done:
			errs = append(errs, req.errs...)
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) dispatch(req *invalidation) {
	defer close(req.done)
	b.mu.Lock()
	list := append([]registration(nil), b.refetchers[req.key]...)
	b.mu.Unlock()
	for _, reg := range list {
		if err := reg.fn(req.ctx); err != nil {
			b.logger.Warn("refetch failed", "key", req.key.String(), "error", err)
			req.errs = append(req.errs, fmt.Errorf("refetch %s: %w", req.key, err))
		}
	}
}
