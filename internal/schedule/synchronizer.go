/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/expo_display/internal/clock"
	"github.com/friendsincode/expo_display/internal/telemetry"
)

// Outcome classifies a single poll.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeFailed     Outcome = "failed"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeCancelled  Outcome = "cancelled"
)

// PollResult describes what a poll did. Snapshot is the committed snapshot
// after the poll, which on failure is the one that was already in place.
type PollResult struct {
	Outcome   Outcome
	Snapshot  Snapshot
	Synced    bool
	Changed   bool
	Reason    string
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// ActivityReporter tells the synchronizer whether a presentation is underway.
type ActivityReporter interface {
	PresentationActive() bool
}

// Recorder persists poll results for operators.
type Recorder interface {
	RecordPoll(ctx context.Context, result PollResult) error
}

// Options configures a Synchronizer.
type Options struct {
	// Field is the document key holding the timestamps.
	Field string
	// SuppressWhilePresentationActive skips fetching while a window is open.
	SuppressWhilePresentationActive bool
}

// Synchronizer polls a Source and publishes the upcoming presentation starts.
// It is the only writer of the snapshot; readers may call Snapshot from any goroutine.
type Synchronizer struct {
	source   Source
	clock    clock.Clock
	opts     Options
	activity ActivityReporter
	recorder Recorder
	logger   zerolog.Logger

	current atomic.Pointer[Snapshot]
}

// NewSynchronizer constructs a synchronizer with no snapshot committed yet.
func NewSynchronizer(source Source, clk clock.Clock, opts Options, logger zerolog.Logger) *Synchronizer {
	if opts.Field == "" {
		opts.Field = DefaultField
	}
	return &Synchronizer{
		source: source,
		clock:  clk,
		opts:   opts,
		logger: logger.With().Str("component", "schedule_sync").Logger(),
	}
}

// SetActivityReporter wires the suppression guard input.
func (s *Synchronizer) SetActivityReporter(r ActivityReporter) {
	s.activity = r
}

// SetRecorder sets the poll journal.
func (s *Synchronizer) SetRecorder(r Recorder) {
	s.recorder = r
}

// Snapshot returns the last committed snapshot and whether any poll has succeeded yet.
func (s *Synchronizer) Snapshot() (Snapshot, bool) {
	snap := s.current.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// Poll fetches, parses and commits the schedule. Failures are logged and
// recorded; they never surface to the caller and leave the snapshot untouched.
func (s *Synchronizer) Poll(ctx context.Context) PollResult {
	started := s.clock.Now()
	prev, synced := s.Snapshot()

	if s.opts.SuppressWhilePresentationActive && s.activity != nil && s.activity.PresentationActive() {
		s.logger.Debug().Msg("presentation in progress, skipping schedule fetch")
		telemetry.SchedulePollsTotal.WithLabelValues(string(OutcomeSuppressed)).Inc()
		return PollResult{
			Outcome:   OutcomeSuppressed,
			Snapshot:  prev,
			Synced:    synced,
			StartedAt: started,
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "schedule", "Poll")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{
		"schedule.location": s.source.Location(),
	})

	instants, err := s.fetchAndParse(ctx)
	if ctx.Err() != nil {
		s.logger.Debug().Msg("poll cancelled, discarding result")
		return PollResult{Outcome: OutcomeCancelled, Snapshot: prev, Synced: synced, StartedAt: started}
	}

	result := PollResult{StartedAt: started}
	if err != nil {
		telemetry.RecordError(span, err)
		result.Outcome = OutcomeFailed
		result.Snapshot = prev
		result.Synced = synced
		result.Reason = failureReason(err)
		result.Err = err

		s.logger.Warn().
			Err(err).
			Str("reason", result.Reason).
			Str("location", s.source.Location()).
			Int("retained_entries", prev.Len()).
			Msg("schedule poll failed, keeping previous snapshot")
	} else {
		next := NewSnapshot(instants, s.clock.Now())
		s.current.Store(&next)

		result.Outcome = OutcomeCommitted
		result.Snapshot = next
		result.Synced = true
		result.Changed = !synced || !prev.SameEntries(next)

		telemetry.ScheduleEntries.Set(float64(next.Len()))
		ev := s.logger.Debug()
		if result.Changed {
			ev = s.logger.Info()
		}
		ev.Int("entries", next.Len()).
			Int("document_entries", len(instants)).
			Bool("changed", result.Changed).
			Msg("schedule snapshot committed")
	}

	result.Duration = s.clock.Now().Sub(started)
	telemetry.SchedulePollsTotal.WithLabelValues(string(result.Outcome)).Inc()
	telemetry.SchedulePollDuration.WithLabelValues(string(result.Outcome)).Observe(result.Duration.Seconds())

	if s.recorder != nil {
		if err := s.recorder.RecordPoll(ctx, result); err != nil {
			s.logger.Debug().Err(err).Msg("failed to record poll")
		}
	}

	return result
}

func (s *Synchronizer) fetchAndParse(ctx context.Context) ([]time.Time, error) {
	data, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ParseDocument(data, s.opts.Field)
}
