/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package countdown

import (
	"slices"
	"time"
)

// Input is everything a single evaluation depends on.
type Input struct {
	Now time.Time
	// Entries are upcoming starts, ascending. Duplicates are tolerated.
	Entries []time.Time
	// Synced is false until the first schedule poll has committed.
	Synced bool
	// Window is the presentation currently open, if any.
	Window *Window
	// Consumed is the latest start already turned into a window; entries at or
	// before it are never considered again.
	Consumed time.Time
	// Pending is the target shown by the last Waiting evaluation. A poll that
	// commits after it has passed drops it from Entries; it still opens.
	Pending  time.Time
	Duration time.Duration
}

// Result is the outcome of an evaluation plus the engine state to carry forward.
type Result struct {
	State    State
	Window   *Window
	Consumed time.Time
	// Opened is set when this evaluation opened a new window.
	Opened bool
	// Pending is the Waiting target, zero in every other phase.
	Pending time.Time
}

// Evaluate applies the transition rules in priority order:
//
//  1. open window and now < end: in progress
//  2. open window and now >= end: close it and continue
//  3. earliest remaining start after now: waiting
//  4. earliest remaining start at or before now: open a window, in progress
//  5. nothing left: exhausted
//
// A start whose whole window already lies in the past is consumed without
// opening a window and the scan continues with the next start.
//
// A pending target that has passed and is no longer in Entries is scanned as
// if it were, so a snapshot committed after the start cannot skip it.
func Evaluate(in Input) Result {
	now := in.Now
	window := in.Window
	consumed := in.Consumed

	if window != nil {
		if now.Before(window.End) {
			return Result{State: inProgressState(now, *window), Window: window, Consumed: consumed}
		}
		window = nil
	}

	if !in.Synced {
		return Result{State: idleState(now), Consumed: consumed, Pending: in.Pending}
	}

	entries := withPending(in.Entries, in.Pending, consumed, now)
	for _, target := range entries {
		if !target.After(consumed) {
			continue
		}
		if target.After(now) {
			return Result{State: waitingState(now, target), Consumed: consumed, Pending: target}
		}

		consumed = target
		opened := Window{Start: target, End: target.Add(in.Duration)}
		if now.Before(opened.End) {
			return Result{State: inProgressState(now, opened), Window: &opened, Consumed: consumed, Opened: true}
		}
	}

	return Result{State: exhaustedState(now), Consumed: consumed}
}

// withPending returns entries with pending merged in when it is due, not yet
// consumed, and missing. entries is never modified.
func withPending(entries []time.Time, pending, consumed, now time.Time) []time.Time {
	if pending.IsZero() || !pending.After(consumed) || pending.After(now) {
		return entries
	}
	i, found := slices.BinarySearchFunc(entries, pending, func(a, b time.Time) int { return a.Compare(b) })
	if found {
		return entries
	}
	return slices.Insert(slices.Clone(entries), i, pending)
}
