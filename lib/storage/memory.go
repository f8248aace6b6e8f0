// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Medium. It backs the ephemeral (per-tab)
// store in production, and serves as the shared durable medium in
// tests: several simulated tabs hold the same *Memory and observe each
// other's writes through synchronous notifications.
//
// Memory is safe for concurrent use. Handlers run synchronously on the
// writer's goroutine, in subscription order, after the write is
// visible — so a handler that re-reads the key sees the new value.
type Memory struct {
	mu          sync.Mutex
	entries     map[string][]byte
	subscribers map[int]func(Event)
	nextID      int
	closed      bool
}

// NewMemory returns an empty in-process medium.
func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[string][]byte),
		subscribers: make(map[int]func(Event)),
	}
}

// Get returns the value for key.
func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, fmt.Errorf("storage: memory medium is closed")
	}
	value, found := m.entries[key]
	if !found {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set stores a copy of value under key and notifies subscribers.
func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("storage: memory medium is closed")
	}
	m.entries[key] = append([]byte(nil), value...)
	handlers := m.handlersLocked()
	m.mu.Unlock()

	dispatch(handlers, Event{Key: key, Op: OpSet})
	return nil
}

// Remove deletes key and notifies subscribers. Removing an absent key
// is a no-op and produces no event.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("storage: memory medium is closed")
	}
	if _, found := m.entries[key]; !found {
		m.mu.Unlock()
		return nil
	}
	delete(m.entries, key)
	handlers := m.handlersLocked()
	m.mu.Unlock()

	dispatch(handlers, Event{Key: key, Op: OpRemove})
	return nil
}

// Keys returns all keys with the given prefix, sorted.
func (m *Memory) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("storage: memory medium is closed")
	}

	var keys []string
	for key := range m.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Subscribe registers a change handler.
func (m *Memory) Subscribe(handler func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers[id] = handler

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Close empties the medium and drops all subscriptions.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = nil
	m.subscribers = nil
	return nil
}

// handlersLocked snapshots the subscriber list in a stable order so
// dispatch can run outside the lock.
func (m *Memory) handlersLocked() []func(Event) {
	ids := make([]int, 0, len(m.subscribers))
	for id := range m.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	handlers := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, m.subscribers[id])
	}
	return handlers
}

func dispatch(handlers []func(Event), event Event) {
	for _, handler := range handlers {
		handler(event)
	}
}
