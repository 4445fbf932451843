/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/friendsincode/expo_display/internal/projects"
	"github.com/friendsincode/expo_display/internal/schedule"
)

func (a *API) handleCountdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.display.State())
}

type scheduleResponse struct {
	Synced     bool        `json:"synced"`
	Entries    []time.Time `json:"entries"`
	Count      int         `json:"count"`
	ProducedAt *time.Time  `json:"produced_at,omitempty"`
	Next       *time.Time  `json:"next,omitempty"`
}

func (a *API) handleSchedule(w http.ResponseWriter, r *http.Request) {
	snap, synced := a.display.Snapshot()
	resp := scheduleResponse{Synced: synced, Entries: []time.Time{}}
	if synced {
		resp.Entries = snap.Entries()
		resp.Count = snap.Len()
		produced := snap.ProducedAt()
		resp.ProducedAt = &produced
		if next, ok := snap.Earliest(); ok {
			resp.Next = &next
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleScheduleICal(w http.ResponseWriter, r *http.Request) {
	snap, synced := a.display.Snapshot()
	if !synced {
		writeError(w, http.StatusServiceUnavailable, "schedule_not_synced")
		return
	}
	export := schedule.ExportICal(snap, a.catalog.Title, a.duration, time.Now())
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

type projectsResponse struct {
	Title        string          `json:"title"`
	Filter       string          `json:"filter,omitempty"`
	Projects     []projectCard   `json:"projects"`
	Contributors []string        `json:"contributors"`
	Layout       projects.Layout `json:"layout"`
}

// projectCard is a project plus whether presenters should render it as a
// live link or greyed out.
type projectCard struct {
	projects.Project
	Available bool `json:"available"`
}

func (a *API) handleProjects(w http.ResponseWriter, r *http.Request) {
	contributor := strings.TrimSpace(r.URL.Query().Get("contributor"))
	matched := a.catalog.Filter(contributor)
	cards := make([]projectCard, 0, len(matched))
	for _, p := range matched {
		cards = append(cards, projectCard{Project: p, Available: p.Available()})
	}
	writeJSON(w, http.StatusOK, projectsResponse{
		Title:        a.catalog.Title,
		Filter:       contributor,
		Projects:     cards,
		Contributors: a.catalog.Contributors(),
		Layout:       projects.LayoutFor(len(cards)),
	})
}
