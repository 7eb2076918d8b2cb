// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock interface parameter instead of
// calling time.Now, time.After, or time.Sleep directly. In production,
// Real() provides the standard library behavior. In tests, Fake()
// provides a deterministic clock that advances only when Advance is
// called.
//
// The revenant lock-retry and handshake-poll loops sleep in tight
// fixed intervals; with a FakeClock a test can count exactly how many
// attempts a loop made without depending on wall time.
//
// # Wiring Pattern
//
// Add a Clock field to structs that use time:
//
//	type Supervisor struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	// ... start the goroutine under test ...
//	c.WaitForSleepers(1)      // wait until it blocks on the clock
//	c.Advance(10 * time.Millisecond)
//
// WaitForSleepers eliminates the race between a goroutine registering
// a sleep and the test advancing the clock.
package clock
