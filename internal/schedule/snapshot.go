/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"slices"
	"time"
)

// Snapshot is the ordered set of upcoming presentation starts as of ProducedAt.
// A Snapshot is never mutated after construction; a successful poll replaces it.
type Snapshot struct {
	entries    []time.Time
	producedAt time.Time
}

// NewSnapshot keeps the instants strictly after now, collapses duplicates
// and sorts the remainder ascending.
func NewSnapshot(instants []time.Time, now time.Time) Snapshot {
	entries := make([]time.Time, 0, len(instants))
	for _, t := range instants {
		if t.After(now) {
			entries = append(entries, t.UTC())
		}
	}
	slices.SortStableFunc(entries, func(a, b time.Time) int { return a.Compare(b) })
	entries = slices.CompactFunc(entries, func(a, b time.Time) bool { return a.Equal(b) })

	return Snapshot{entries: entries, producedAt: now}
}

// Entries returns a copy of the upcoming instants.
func (s Snapshot) Entries() []time.Time {
	return slices.Clone(s.entries)
}

// Len reports how many upcoming instants the snapshot holds.
func (s Snapshot) Len() int {
	return len(s.entries)
}

// Empty reports whether nothing is upcoming.
func (s Snapshot) Empty() bool {
	return len(s.entries) == 0
}

// Earliest returns the first upcoming instant.
func (s Snapshot) Earliest() (time.Time, bool) {
	if len(s.entries) == 0 {
		return time.Time{}, false
	}
	return s.entries[0], true
}

// ProducedAt is the clock reading the entries were filtered against.
func (s Snapshot) ProducedAt() time.Time {
	return s.producedAt
}

// SameEntries reports whether both snapshots list the same instants.
func (s Snapshot) SameEntries(other Snapshot) bool {
	return slices.EqualFunc(s.entries, other.entries, func(a, b time.Time) bool { return a.Equal(b) })
}
