/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package journal

import "time"

// PollRecord stores the outcome of one schedule poll.
type PollRecord struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	InstanceID string    `gorm:"type:varchar(64);index" json:"instance_id"`
	PolledAt   time.Time `gorm:"index" json:"polled_at"`
	Outcome    string    `gorm:"type:varchar(16);index" json:"outcome"`
	Reason     string    `gorm:"type:varchar(16)" json:"reason,omitempty"`
	Entries    int       `json:"entries"`
	Changed    bool      `json:"changed"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// TableName pins the table name across backends.
func (PollRecord) TableName() string { return "poll_records" }

// PresentationRecord stores one presentation window as seen by a display.
type PresentationRecord struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	InstanceID string     `gorm:"type:varchar(64);index" json:"instance_id"`
	Target     time.Time  `gorm:"index" json:"target"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// TableName pins the table name across backends.
func (PresentationRecord) TableName() string { return "presentation_records" }
