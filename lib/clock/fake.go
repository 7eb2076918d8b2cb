// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called. After and Sleep register pending
// sleepers that fire when the clock advances past their deadline.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{
		current: initial,
	}
	clock.sleepersChanged = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for testing. Time advances only
// when Advance is called. Sleeps block until the clock is advanced
// past their deadline.
type FakeClock struct {
	mu              sync.Mutex
	current         time.Time
	sleepers        []*fakeSleeper
	sleepersChanged *sync.Cond
}

// fakeSleeper represents a pending After or Sleep operation.
type fakeSleeper struct {
	deadline time.Time
	channel  chan time.Time
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives after duration d elapses. If
// d <= 0, the channel receives immediately without registering a
// sleeper.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}

	c.sleepers = append(c.sleepers, &fakeSleeper{
		deadline: c.current.Add(d),
		channel:  channel,
	})
	c.sleepersChanged.Broadcast()
	return channel
}

// Sleep pauses the calling goroutine until the clock advances past
// the deadline. If d <= 0, returns immediately.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and fires all sleepers whose
// deadlines fall within the new time, in deadline order for
// determinism. Channel sends are buffered, so Advance never blocks on
// a receiver.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current

	var toFire []*fakeSleeper
	var remaining []*fakeSleeper
	for _, sleeper := range c.sleepers {
		if !sleeper.deadline.After(target) {
			toFire = append(toFire, sleeper)
		} else {
			remaining = append(remaining, sleeper)
		}
	}
	c.sleepers = remaining
	c.mu.Unlock()

	sort.Slice(toFire, func(i, j int) bool {
		return toFire[i].deadline.Before(toFire[j].deadline)
	})
	for _, sleeper := range toFire {
		sleeper.channel <- target
	}
}

// WaitForSleepers blocks until at least n sleepers are pending
// (registered but not yet fired). This synchronization primitive
// eliminates the race between a goroutine registering a sleep and the
// test advancing the clock.
//
// Example:
//
//	go func() { fakeClock.Sleep(5 * time.Second) }()
//	fakeClock.WaitForSleepers(1)       // blocks until Sleep registers
//	fakeClock.Advance(5 * time.Second) // deterministically fires
func (c *FakeClock) WaitForSleepers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.sleepers) < n {
		c.sleepersChanged.Wait()
	}
}

// PendingCount returns the number of pending sleepers. Useful for test
// assertions.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleepers)
}
