// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a deterministic Clock for tests. Time only moves when
// Advance is called. Waiters created by After, NewTicker, and Sleep
// fire synchronously inside Advance, in deadline order, before Advance
// returns.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
	period   time.Duration // zero for one-shot waiters
	stopped  bool
}

// NewFake returns a Fake clock starting at a fixed, arbitrary epoch.
// The starting instant is deterministic so timestamps in test fixtures
// are stable.
func NewFake() *Fake {
	return &Fake{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After returns a channel that fires when the fake time passes d from
// now.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	waiter := &fakeWaiter{
		deadline: f.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	if d <= 0 {
		waiter.ch <- f.now
		return waiter.ch
	}
	f.waiters = append(f.waiters, waiter)
	return waiter.ch
}

// NewTicker returns a Ticker driven by Advance.
func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	waiter := &fakeWaiter{
		deadline: f.now.Add(d),
		ch:       make(chan time.Time, 1),
		period:   d,
	}
	f.waiters = append(f.waiters, waiter)

	return &Ticker{
		C: waiter.ch,
		stop: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			waiter.stopped = true
		},
	}
}

// Sleep advances nothing; it returns once the fake time passes the
// deadline. A goroutine calling Sleep blocks until another goroutine
// calls Advance far enough.
func (f *Fake) Sleep(d time.Duration) {
	<-f.After(d)
}

// Advance moves the fake time forward by d, firing every waiter whose
// deadline is reached, in deadline order. Periodic waiters fire once
// per elapsed period (ticks beyond channel capacity are dropped, like
// time.Ticker with a slow consumer).
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.now.Add(d)

	for {
		next := f.nextWaiterLocked(target)
		if next == nil {
			break
		}
		f.now = next.deadline
		select {
		case next.ch <- f.now:
		default:
		}
		if next.period > 0 {
			next.deadline = next.deadline.Add(next.period)
		} else {
			next.stopped = true
		}
	}

	f.now = target
	f.compactLocked()
}

// nextWaiterLocked returns the live waiter with the earliest deadline
// at or before target, or nil when none remain.
func (f *Fake) nextWaiterLocked(target time.Time) *fakeWaiter {
	var earliest *fakeWaiter
	for _, waiter := range f.waiters {
		if waiter.stopped || waiter.deadline.After(target) {
			continue
		}
		if earliest == nil || waiter.deadline.Before(earliest.deadline) {
			earliest = waiter
		}
	}
	return earliest
}

// compactLocked drops stopped waiters and keeps the remainder sorted
// for stable iteration.
func (f *Fake) compactLocked() {
	live := f.waiters[:0]
	for _, waiter := range f.waiters {
		if !waiter.stopped {
			live = append(live, waiter)
		}
	}
	f.waiters = live
	sort.Slice(f.waiters, func(i, j int) bool {
		return f.waiters[i].deadline.Before(f.waiters[j].deadline)
	})
}
