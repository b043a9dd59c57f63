package state

import (
	"bytes"
	"maps"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentsandbox/core"
	"github.com/hupe1980/agentsandbox/logging"
)

// Snapshot is an immutable point-in-time copy of the full store mapping.
// Callers own the returned map and may mutate it freely without affecting
// the store or other observers.
type Snapshot map[string]any

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot { return maps.Clone(s) }

// SubscriberFunc receives the post-merge full-state snapshot after every
// change. Callbacks run synchronously on the mutating goroutine while the
// store lock is held: keep them fast, and never call back into ApplyDelta,
// Set, Subscribe or Unsubscribe on the same store (see ErrReentrantCall).
type SubscriberFunc func(snapshot Snapshot)

// Subscription is the removal handle returned by Subscribe.
type Subscription struct{ id string }

// ID returns the unique identifier of this subscription.
func (s *Subscription) ID() string { return s.id }

// subscriber pairs a handle id with its callback, kept in registration order.
type subscriber struct {
	id string
	fn SubscriberFunc
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Logger receives store mutation events. Defaults to NoOpLogger.
	Logger logging.Logger

	// Initial seeds the mapping before any subscriber is registered.
	Initial map[string]any
}

// Store is a thread-safe observable key/value mapping. Mutation happens only
// through atomic merges (ApplyDelta / Set): new keys are inserted, existing
// keys overwritten, and there is no deletion primitive. After every merge the
// store synchronously notifies all subscribers, in registration order, with a
// fresh copy of the post-merge state.
//
// Locking discipline: a single non-reentrant mutex guards both the mapping
// and the subscriber list, and is held across the whole merge+notify
// sequence. This buys strict consistency — subscribers observe every change
// exactly once, in order, and never a partial merge — at the cost of
// reentrancy: a callback calling a mutating operation on its own store gets
// ErrReentrantCall instead of deadlocking. Readers (State, Get, Revision)
// remain safe from inside callbacks. No timeout protects against a hung
// callback; owners of slow observers should dispatch asynchronously.
type Store struct {
	mu       sync.Mutex
	values   map[string]any
	subs     []subscriber
	revision uint64

	// notifier holds the goroutine id currently delivering notifications,
	// or zero when idle. Backs the fail-fast reentrancy guard.
	notifier atomic.Int64

	logger logging.Logger
}

// New constructs a Store with optional overrides.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	values := make(map[string]any, len(opts.Initial))
	maps.Copy(values, opts.Initial)

	return &Store{values: values, logger: opts.Logger}
}

// Subscribe registers callback to be invoked on every future state change
// and returns a handle usable for later removal. Registration order defines
// notification order. Subscribing from within a notification callback of the
// same store returns ErrReentrantCall.
func (s *Store) Subscribe(callback SubscriberFunc) (*Subscription, error) {
	if s.reentrant() {
		return nil, ErrReentrantCall
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscription{id: core.NewID()}
	s.subs = append(s.subs, subscriber{id: sub.id, fn: callback})

	s.logger.Debug("store subscriber added id=%s count=%d", sub.id, len(s.subs))

	return sub, nil
}

// Unsubscribe removes a previously registered callback. It returns
// ErrSubscriberNotFound when the handle is nil, was never registered, or has
// already been removed.
func (s *Store) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrSubscriberNotFound
	}

	if s.reentrant() {
		return ErrReentrantCall
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.subs {
		if existing.id == sub.id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			s.logger.Debug("store subscriber removed id=%s count=%d", sub.id, len(s.subs))
			return nil
		}
	}

	return ErrSubscriberNotFound
}

// ApplyDelta atomically merges delta into the stored mapping (key-wise
// overwrite/insert) and then synchronously invokes every registered callback,
// in registration order, with its own copy of the post-merge full state.
// Concurrent callers serialize on the store lock; readers never observe a
// partial merge. Calling ApplyDelta from within a notification callback of
// the same store returns ErrReentrantCall.
func (s *Store) ApplyDelta(delta map[string]any) error {
	if s.reentrant() {
		return ErrReentrantCall
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.values, delta)
	s.revision++

	s.logger.Debug("store delta applied keys=%d revision=%d subscribers=%d", len(delta), s.revision, len(s.subs))

	s.notifier.Store(goid())
	defer s.notifier.Store(0)

	for _, sub := range s.subs {
		sub.fn(s.snapshotLocked())
	}

	return nil
}

// Set merges a single key/value pair. Convenience wrapper around ApplyDelta
// with identical notification semantics.
func (s *Store) Set(key string, value any) error {
	return s.ApplyDelta(map[string]any{key: value})
}

// State returns an immutable point-in-time copy of the full mapping. It is
// safe to call from inside a notification callback: the notifying goroutine
// already holds the lock and the post-merge mapping is stable for the
// duration of the notification.
func (s *Store) State() Snapshot {
	if s.reentrant() {
		return s.snapshotLocked()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// Get returns the value and existence flag for a single key, snapshot
// consistent with concurrent writers.
func (s *Store) Get(key string) (any, bool) {
	if s.reentrant() {
		v, ok := s.values[key]
		return v, ok
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]

	return v, ok
}

// Revision returns a counter incremented by every applied merge. Pollers use
// it to detect change without diffing snapshots.
func (s *Store) Revision() uint64 {
	if s.reentrant() {
		return s.revision
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revision
}

// snapshotLocked copies the current mapping; caller must hold the lock or be
// the notifying goroutine.
func (s *Store) snapshotLocked() Snapshot {
	return Snapshot(maps.Clone(s.values))
}

// reentrant reports whether the calling goroutine is currently inside a
// notification delivered by this store.
func (s *Store) reentrant() bool {
	owner := s.notifier.Load()
	return owner != 0 && owner == goid()
}

// goid extracts the current goroutine id from the runtime stack header
// ("goroutine N [running]:"). Used only by the reentrancy guard.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -1
	}

	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -1
	}

	return id
}
