// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage defines the media that hold Satchel entries and the
// change-notification contract between tabs.
//
// A Medium is a flat key-value store with prefix scans and
// subscriptions. Two implementations exist:
//
//   - SQLite: the durable medium. One database file per installation,
//     shared by every tab (process) of that installation. Survives
//     restarts. Change notifications come from polling a changelog
//     table; CheckNow forces an immediate poll.
//   - Memory: the ephemeral medium, scoped to one handle's lifetime.
//     Tests also use a single shared Memory instance as a stand-in
//     durable medium for multi-tab scenarios, because its
//     notifications are delivered synchronously and deterministically.
//
// Media store and notify raw bytes. They know nothing about
// encryption or namespacing — that is the vault's job, and every
// durable write is required to flow through the vault so those
// invariants cannot be bypassed.
//
// Notification semantics: a subscriber receives events for ALL writes
// to the medium, including its own (the echo a tab observes of its own
// write) and including keys belonging to other namespaces. Consumers
// filter by prefix and by writer identity.
package storage

// Op identifies the kind of change in an Event.
type Op uint8

const (
	// OpSet is a write (insert or overwrite).
	OpSet Op = iota + 1
	// OpRemove is a deletion.
	OpRemove
)

// String returns the human-readable name of an Op.
func (op Op) String() string {
	switch op {
	case OpSet:
		return "set"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event describes one observed change on a medium. It carries only
// the key — the observer re-reads the value through its own decrypting
// store, so a stale event degrades to a harmless re-read.
type Event struct {
	Key string
	Op  Op
}

// Medium is the storage capability contract shared by the durable and
// ephemeral implementations.
//
// Operations are synchronous and bounded: media are process-local or
// machine-local, and the SQLite implementation caps lock waits with a
// busy timeout. Writes are last-writer-wins; no merge policy exists at
// this layer.
type Medium interface {
	// Get returns the value for key. found is false when the key is
	// absent; absence is not an error.
	Get(key string) (value []byte, found bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(key string, value []byte) error

	// Remove deletes key. Removing an absent key is a no-op.
	Remove(key string) error

	// Keys returns all keys with the given prefix, sorted. An empty
	// prefix returns every key.
	Keys(prefix string) ([]string, error)

	// Subscribe registers a change handler and returns its cancel
	// function. Handlers must be fast and must not call back into the
	// medium's write path.
	Subscribe(handler func(Event)) (cancel func())

	// Close releases the medium. Subscriptions stop firing.
	Close() error
}
