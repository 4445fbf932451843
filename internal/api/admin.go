/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/expo_display/internal/auth"
	"github.com/friendsincode/expo_display/internal/journal"
	"github.com/friendsincode/expo_display/internal/logbuffer"
)

const maxListLimit = 500

// handleRefresh asks the runner for an immediate poll. The suppression guard
// still applies, so a refresh during a presentation is a no-op.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if a.cache != nil {
		if err := a.cache.InvalidateDocument(r.Context(), a.cacheLocation); err != nil {
			a.logger.Warn().Err(err).Msg("cache invalidation failed")
		}
	}

	queued := a.display.RequestPoll()

	operator := ""
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		operator = claims.Operator
	}
	a.logger.Info().Str("operator", operator).Bool("queued", queued).Msg("schedule refresh requested")

	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

func (a *API) handlePolls(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, http.StatusServiceUnavailable, "journal_disabled")
		return
	}
	limit, ok := parseLimit(r, journal.DefaultLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	polls, err := a.history.RecentPolls(r.Context(), limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("list polls failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"polls": polls, "count": len(polls)})
}

func (a *API) handlePresentations(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, http.StatusServiceUnavailable, "journal_disabled")
		return
	}
	limit, ok := parseLimit(r, journal.DefaultLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	presentations, err := a.history.RecentPresentations(r.Context(), limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("list presentations failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"presentations": presentations, "count": len(presentations)})
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusOK, map[string]any{"logs": []logbuffer.LogEntry{}, "count": 0})
		return
	}
	limit, ok := parseLimit(r, 200)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		Search:     q.Get("search"),
		Limit:      limit,
		Descending: true,
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		params.Since = since
	}
	// field.<key>=<value> matches structured log fields exactly.
	for key, values := range q {
		name, ok := strings.CutPrefix(key, "field.")
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		if params.Fields == nil {
			params.Fields = make(map[string]string)
		}
		params.Fields[name] = values[0]
	}
	entries := a.logBuffer.Query(params)
	if entries == nil {
		entries = []logbuffer.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":       entries,
		"count":      len(entries),
		"components": a.logBuffer.GetComponents(),
	})
}

func parseLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}
