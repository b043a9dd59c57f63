package state

import "errors"

var (
	// ErrSubscriberNotFound is returned by Unsubscribe when the handle was
	// never registered or has already been removed. The store reports this
	// explicitly rather than silently ignoring the call, so double-removal
	// bugs surface in tests instead of hiding.
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrReentrantCall is returned when a notification callback calls back
	// into a mutating store operation on the same store. The store lock is
	// non-reentrant; failing fast here replaces a silent deadlock.
	ErrReentrantCall = errors.New("reentrant store call from notification callback")
)
