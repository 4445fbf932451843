/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clock supplies the wall-clock source and periodic triggers used by
// the countdown core. Production code runs on the real clock; tests drive a
// fake clock forward explicitly.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the interface we use for time operations.
// In production, use New(). In tests, NewFake().
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
	NewTimer(d time.Duration) clockwork.Timer
}

// Fake is a Clock whose time only moves when advanced.
type Fake = *clockwork.FakeClock

// New returns the real wall clock.
func New() Clock {
	return clockwork.NewRealClock()
}

// NewFake returns a fake clock pinned at start.
func NewFake(start time.Time) Fake {
	return clockwork.NewFakeClockAt(start)
}

// StopTicker stops a ticker and drains a pending tick so the next reader
// never sees a stale instant.
func StopTicker(t clockwork.Ticker) {
	t.Stop()
	select {
	case <-t.Chan():
	default:
	}
}
