// Package state houses the observable state store: a thread-safe key/value
// mapping that broadcasts a fresh post-merge snapshot to every registered
// subscriber after each change. The store is purely in-memory and transient;
// it lives exactly as long as its owner and persists nothing.
package state
