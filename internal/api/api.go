/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api serves the countdown, schedule and project catalog to
// presenters, plus the operator endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/expo_display/internal/auth"
	"github.com/friendsincode/expo_display/internal/countdown"
	"github.com/friendsincode/expo_display/internal/events"
	"github.com/friendsincode/expo_display/internal/journal"
	"github.com/friendsincode/expo_display/internal/logbuffer"
	"github.com/friendsincode/expo_display/internal/projects"
	"github.com/friendsincode/expo_display/internal/schedule"
	"github.com/friendsincode/expo_display/internal/version"
)

// Display is the read side of the running countdown plus the refresh trigger.
type Display interface {
	State() countdown.State
	Snapshot() (schedule.Snapshot, bool)
	RequestPoll() bool
}

// History reads the poll journal.
type History interface {
	RecentPolls(ctx context.Context, limit int) ([]journal.PollRecord, error)
	RecentPresentations(ctx context.Context, limit int) ([]journal.PresentationRecord, error)
}

// DocumentInvalidator drops a cached schedule document.
type DocumentInvalidator interface {
	InvalidateDocument(ctx context.Context, location string) error
}

// API exposes HTTP handlers.
type API struct {
	display   Display
	catalog   *projects.Catalog
	bus       *events.Bus
	jwtSecret []byte
	logBuffer *logbuffer.Buffer
	logger    zerolog.Logger

	history       History
	cache         DocumentInvalidator
	cacheLocation string
	duration      time.Duration
}

// New creates the API handler.
func New(display Display, catalog *projects.Catalog, bus *events.Bus, jwtSecret []byte, logBuf *logbuffer.Buffer, logger zerolog.Logger) *API {
	if catalog == nil {
		catalog = projects.Default()
	}
	return &API{
		display:   display,
		catalog:   catalog,
		bus:       bus,
		jwtSecret: jwtSecret,
		logBuffer: logBuf,
		logger:    logger.With().Str("component", "api").Logger(),
		duration:  countdown.DefaultDuration,
	}
}

// SetPresentationDuration sets the event length used by the calendar export.
func (a *API) SetPresentationDuration(d time.Duration) {
	if d > 0 {
		a.duration = d
	}
}

// SetHistory enables the journal endpoints.
func (a *API) SetHistory(h History) {
	a.history = h
}

// SetCache lets operator refreshes bypass the shared document cache.
func (a *API) SetCache(c DocumentInvalidator, location string) {
	a.cache = c
	a.cacheLocation = location
}

// Routes registers API routes.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealth)
	r.Get("/ws/countdown", a.handleCountdownStream)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/countdown", a.handleCountdown)
		r.Get("/schedule", a.handleSchedule)
		r.Get("/schedule.ics", a.handleScheduleICal)
		r.Get("/projects", a.handleProjects)

		if len(a.jwtSecret) == 0 {
			return
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Middleware(a.jwtSecret))
			r.Post("/refresh", a.handleRefresh)
			r.Get("/polls", a.handlePolls)
			r.Get("/presentations", a.handlePresentations)
			r.Get("/logs", a.handleLogs)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, synced := a.display.Snapshot()
	state := a.display.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"synced":           synced,
		"schedule_empty":   synced && snap.Empty(),
		"phase":            state.Phase,
		"tick_subscribers": a.bus.SubscriberCount(events.EventCountdownTick),
		"version":          version.Version,
		"time":             time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
