// Package state keeps view-friendly copies of on-chain data. Each store holds
// the last confirmed read plus loading and error flags, runs actions through
// the platform client and refreshes itself through the invalidation bus once
// a transaction confirms. Nothing here mutates data optimistically.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// View is the observable state of one store.
type View[T any] struct {
	Data      T         `json:"data"`
	Loading   bool      `json:"loading"`
	Err       string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a mutex-guarded View with change listeners. After Close every
// setter is a no-op, so late results from in-flight calls are discarded.
//
// Every call starts with begin, which hands out a generation token. Results
// carrying an older token than the latest begin are dropped, so a slow read
// never overwrites a newer one.
type Store[T any] struct {
	mu        sync.RWMutex
	view      View[T]
	gen       uint64
	listeners map[string]func(View[T])
	closed    bool
	now       func() time.Time
}

// NewStore returns an empty store. now defaults to time.Now.
func NewStore[T any](now func() time.Time) *Store[T] {
	if now == nil {
		now = time.Now
	}
	return &Store[T]{listeners: make(map[string]func(View[T])), now: now}
}

// View returns the current state.
func (s *Store[T]) View() View[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Subscribe registers fn for every change. The returned func removes it.
func (s *Store[T]) Subscribe(fn func(View[T])) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close detaches all listeners and freezes the store.
func (s *Store[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.listeners = make(map[string]func(View[T]))
	s.mu.Unlock()
}

func (s *Store[T]) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// begin marks a call in flight, clears the previous error and returns the
// call's token.
func (s *Store[T]) begin() uint64 {
	var token uint64
	s.update(func(v *View[T]) bool {
		s.gen++
		token = s.gen
		v.Loading = true
		v.Err = ""
		return true
	})
	return token
}

// succeed replaces Data with a freshly read value and reports whether the
// value was kept.
func (s *Store[T]) succeed(token uint64, data T) bool {
	return s.commit(token, func(v *View[T]) {
		v.Data = data
		v.Loading = false
		v.Err = ""
		v.UpdatedAt = s.now()
	})
}

// settle ends a call that produced no new data.
func (s *Store[T]) settle(token uint64) {
	s.commit(token, func(v *View[T]) { v.Loading = false })
}

// fail records err and keeps the last-known-good Data.
func (s *Store[T]) fail(token uint64, err error) {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	s.commit(token, func(v *View[T]) {
		v.Loading = false
		v.Err = msg
	})
}

// reset replaces Data outright and supersedes any call in flight.
func (s *Store[T]) reset(data T) {
	s.update(func(v *View[T]) bool {
		s.gen++
		v.Data = data
		v.Loading = false
		v.Err = ""
		v.UpdatedAt = s.now()
		return true
	})
}

// commit applies mutate only if token belongs to the latest begin.
func (s *Store[T]) commit(token uint64, mutate func(*View[T])) bool {
	return s.update(func(v *View[T]) bool {
		if token != s.gen {
			return false
		}
		mutate(v)
		return true
	})
}

func (s *Store[T]) update(mutate func(*View[T]) bool) bool {
	s.mu.Lock()
	if s.closed || !mutate(&s.view) {
		s.mu.Unlock()
		return false
	}
	snapshot := s.view
	listeners := make([]func(View[T]), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
	return true
}
