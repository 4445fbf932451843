/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package countdown implements the presentation state machine: given the
// latest schedule snapshot and the current instant it decides whether the
// display is idle, counting down, showing a presentation, or out of entries.
package countdown

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/expo_display/internal/schedule"
	"github.com/friendsincode/expo_display/internal/telemetry"
)

// DefaultDuration is how long a presentation window stays open.
const DefaultDuration = 10 * time.Minute

// Engine owns the presentation window and derives the countdown state.
// Tick must be called from a single goroutine; PresentationActive is safe
// to call from any goroutine.
type Engine struct {
	duration time.Duration
	logger   zerolog.Logger

	window   *Window
	consumed time.Time
	pending  time.Time
	last     State
	active   atomic.Bool
}

// NewEngine creates an engine in the idle state.
func NewEngine(duration time.Duration, logger zerolog.Logger) *Engine {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Engine{
		duration: duration,
		logger:   logger.With().Str("component", "countdown").Logger(),
		last:     idleState(time.Time{}),
	}
}

// Duration returns the configured presentation length.
func (e *Engine) Duration() time.Duration {
	return e.duration
}

// Tick recomputes the state from the absolute instant now. synced is false
// until the synchronizer has committed its first snapshot.
func (e *Engine) Tick(now time.Time, snap schedule.Snapshot, synced bool) State {
	res := Evaluate(Input{
		Now:      now,
		Entries:  snap.Entries(),
		Synced:   synced,
		Window:   e.window,
		Consumed: e.consumed,
		Pending:  e.pending,
		Duration: e.duration,
	})

	if e.window != nil && res.Window == nil {
		e.logger.Info().Time("started", e.window.Start).Time("ended", e.window.End).Msg("presentation window closed")
	}
	if res.Opened {
		telemetry.PresentationsStartedTotal.Inc()
		e.logger.Info().Time("start", res.Window.Start).Time("ends_at", res.Window.End).Msg("presentation window opened")
	}
	if res.State.Phase != e.last.Phase {
		e.logger.Debug().
			Str("from", string(e.last.Phase)).
			Str("to", string(res.State.Phase)).
			Msg("countdown phase changed")
	}

	e.window = res.Window
	e.consumed = res.Consumed
	e.pending = res.Pending
	e.last = res.State
	e.active.Store(res.Window != nil)

	telemetry.CountdownTicksTotal.Inc()
	telemetry.CountdownSecondsRemaining.Set(float64(res.State.SecondsRemaining))
	for _, p := range Phases {
		v := 0.0
		if p == res.State.Phase {
			v = 1
		}
		telemetry.CountdownPhase.WithLabelValues(string(p)).Set(v)
	}

	return res.State
}

// State returns the result of the last tick.
func (e *Engine) State() State {
	return e.last
}

// Window returns the open presentation window, if any.
func (e *Engine) Window() (Window, bool) {
	if e.window == nil {
		return Window{}, false
	}
	return *e.window, true
}

// PresentationActive reports whether a window was open at the last tick.
func (e *Engine) PresentationActive() bool {
	return e.active.Load()
}
