/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package countdown

import (
	"fmt"
	"time"
)

// Phase is the discrete countdown state shown to presenters.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseWaiting    Phase = "waiting"
	PhaseInProgress Phase = "in_progress"
	PhaseExhausted  Phase = "exhausted"
)

// Phases lists every phase, used to reset per-phase gauges.
var Phases = []Phase{PhaseIdle, PhaseWaiting, PhaseInProgress, PhaseExhausted}

// Presenter messages.
const (
	MessageIdle       = "Loading schedule..."
	MessageInProgress = "Presentation in progress!"
	MessageExhausted  = "No more presentations today."
)

// Window is an in-progress presentation, open over [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// State is the read-only snapshot handed to presenters each tick.
type State struct {
	Phase            Phase      `json:"phase"`
	Target           *time.Time `json:"target,omitempty"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
	SecondsRemaining int64      `json:"seconds_remaining"`
	SecondsElapsed   int64      `json:"seconds_elapsed,omitempty"`
	Clock            string     `json:"clock"`
	Message          string     `json:"message"`
	EvaluatedAt      time.Time  `json:"evaluated_at"`
}

func idleState(now time.Time) State {
	return State{Phase: PhaseIdle, Clock: FormatClock(0), Message: MessageIdle, EvaluatedAt: now}
}

func exhaustedState(now time.Time) State {
	return State{Phase: PhaseExhausted, Clock: FormatClock(0), Message: MessageExhausted, EvaluatedAt: now}
}

func waitingState(now, target time.Time) State {
	remaining := SecondsBetween(now, target)
	clock := FormatClock(remaining)
	return State{
		Phase:            PhaseWaiting,
		Target:           &target,
		SecondsRemaining: remaining,
		Clock:            clock,
		Message:          "Next presentation in " + clock,
		EvaluatedAt:      now,
	}
}

func inProgressState(now time.Time, w Window) State {
	start, end := w.Start, w.End
	return State{
		Phase:          PhaseInProgress,
		Target:         &start,
		EndsAt:         &end,
		SecondsElapsed: SecondsBetween(start, now),
		Clock:          FormatClock(0),
		Message:        MessageInProgress,
		EvaluatedAt:    now,
	}
}

// SecondsBetween returns whole seconds from a to b, truncating the
// millisecond difference and clamping negatives to zero.
func SecondsBetween(a, b time.Time) int64 {
	ms := b.Sub(a).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return ms / 1000
}

// FormatClock renders seconds as HH:MM:SS. Hours widen past two digits.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
