/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package journal persists poll outcomes and presentation windows for operators.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/expo_display/internal/db"
	"github.com/friendsincode/expo_display/internal/events"
	"github.com/friendsincode/expo_display/internal/schedule"
)

// DefaultLimit caps Recent queries without an explicit limit.
const DefaultLimit = 50

// Store writes journal rows through gorm.
type Store struct {
	db         *gorm.DB
	instanceID string
	logger     zerolog.Logger
}

// New creates a journal store.
func New(database *gorm.DB, instanceID string, logger zerolog.Logger) *Store {
	return &Store{
		db:         database,
		instanceID: instanceID,
		logger:     logger.With().Str("component", "journal").Logger(),
	}
}

// Migrate creates or updates the journal tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&PollRecord{}, &PresentationRecord{}); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

// RecordPoll stores a poll result. Cancelled polls are not recorded.
func (s *Store) RecordPoll(ctx context.Context, result schedule.PollResult) error {
	if result.Outcome == schedule.OutcomeCancelled {
		return nil
	}

	rec := PollRecord{
		ID:         uuid.NewString(),
		InstanceID: s.instanceID,
		PolledAt:   result.StartedAt.UTC(),
		Outcome:    string(result.Outcome),
		Reason:     result.Reason,
		Entries:    result.Snapshot.Len(),
		Changed:    result.Changed,
		DurationMs: result.Duration.Milliseconds(),
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}

	// The poll context may already be past its deadline; the row is still wanted.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.WithContext(writeCtx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record poll: %w", err)
	}
	db.UpdateConnectionMetrics(s.db)
	return nil
}

// RecentPolls returns the newest poll records first.
func (s *Store) RecentPolls(ctx context.Context, limit int) ([]PollRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var records []PollRecord
	err := s.db.WithContext(ctx).
		Order("polled_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	return records, nil
}

// RecentPresentations returns the newest presentation windows first.
func (s *Store) RecentPresentations(ctx context.Context, limit int) ([]PresentationRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var records []PresentationRecord
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	return records, nil
}

// PresentationStarted opens a presentation row.
func (s *Store) PresentationStarted(ctx context.Context, target, startedAt time.Time) error {
	rec := PresentationRecord{
		ID:         uuid.NewString(),
		InstanceID: s.instanceID,
		Target:     target.UTC(),
		StartedAt:  startedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record presentation start: %w", err)
	}
	return nil
}

// PresentationEnded closes the open row for target.
func (s *Store) PresentationEnded(ctx context.Context, target, endedAt time.Time) error {
	var rec PresentationRecord
	err := s.db.WithContext(ctx).
		Where("instance_id = ? AND target = ? AND ended_at IS NULL", s.instanceID, target.UTC()).
		Order("started_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find presentation: %w", err)
	}

	ended := endedAt.UTC()
	if err := s.db.WithContext(ctx).Model(&rec).Update("ended_at", ended).Error; err != nil {
		return fmt.Errorf("record presentation end: %w", err)
	}
	return nil
}

// Watch records presentation windows published on the bus until ctx is done.
func (s *Store) Watch(ctx context.Context, bus *events.Bus) {
	started := bus.Subscribe(events.EventPresentationStart)
	ended := bus.Subscribe(events.EventPresentationEnd)
	defer func() {
		bus.Unsubscribe(events.EventPresentationStart, started)
		bus.Unsubscribe(events.EventPresentationEnd, ended)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-started:
			if !ok {
				return
			}
			target, at, ok := windowTimes(payload)
			if !ok {
				continue
			}
			if err := s.PresentationStarted(ctx, target, at); err != nil {
				s.logger.Warn().Err(err).Msg("failed to journal presentation start")
			}
		case payload, ok := <-ended:
			if !ok {
				return
			}
			target, at, ok := windowTimes(payload)
			if !ok {
				continue
			}
			if err := s.PresentationEnded(ctx, target, at); err != nil {
				s.logger.Warn().Err(err).Msg("failed to journal presentation end")
			}
		}
	}
}

func windowTimes(payload events.Payload) (target, at time.Time, ok bool) {
	target, ok = payload["target"].(time.Time)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	at, ok = payload["at"].(time.Time)
	return target, at, ok
}
