package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/expo_display/internal/auth"
	"github.com/friendsincode/expo_display/internal/countdown"
	"github.com/friendsincode/expo_display/internal/events"
	"github.com/friendsincode/expo_display/internal/journal"
	"github.com/friendsincode/expo_display/internal/logbuffer"
	"github.com/friendsincode/expo_display/internal/projects"
	"github.com/friendsincode/expo_display/internal/schedule"
)

var testSecret = []byte("test-signing-key")

type fakeDisplay struct {
	state    countdown.State
	snap     schedule.Snapshot
	synced   bool
	requests int
	queue    bool
}

func (f *fakeDisplay) State() countdown.State { return f.state }

func (f *fakeDisplay) Snapshot() (schedule.Snapshot, bool) { return f.snap, f.synced }

func (f *fakeDisplay) RequestPoll() bool {
	f.requests++
	return f.queue
}

type fakeHistory struct {
	polls []journal.PollRecord
	err   error
}

func (f *fakeHistory) RecentPolls(ctx context.Context, limit int) ([]journal.PollRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.polls) {
		return f.polls[:limit], nil
	}
	return f.polls, nil
}

func (f *fakeHistory) RecentPresentations(ctx context.Context, limit int) ([]journal.PresentationRecord, error) {
	return []journal.PresentationRecord{}, f.err
}

type fakeInvalidator struct {
	locations []string
}

func (f *fakeInvalidator) InvalidateDocument(ctx context.Context, location string) error {
	f.locations = append(f.locations, location)
	return nil
}

func newTestRouter(t *testing.T, display Display, secret []byte, configure func(*API)) (chi.Router, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	a := New(display, projects.Default(), bus, secret, logbuffer.New(100), zerolog.Nop())
	if configure != nil {
		configure(a)
	}
	r := chi.NewRouter()
	a.Routes(r)
	return r, bus
}

func operatorToken(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := auth.Issue(testSecret, auth.Claims{Operator: "desk", Roles: roles}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestCountdownReturnsCurrentState(t *testing.T) {
	target := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	display := &fakeDisplay{state: countdown.State{
		Phase:            countdown.PhaseWaiting,
		Target:           &target,
		SecondsRemaining: 30,
		Clock:            "00:00:30",
	}}
	r, _ := newTestRouter(t, display, nil, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/countdown", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var got countdown.State
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Phase != countdown.PhaseWaiting || got.SecondsRemaining != 30 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if got.Target == nil || !got.Target.Equal(target) {
		t.Fatalf("unexpected target: %v", got.Target)
	}
}

func TestScheduleReportsSyncStatus(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	entries := []time.Time{now.Add(time.Hour), now.Add(2 * time.Hour)}

	tests := []struct {
		name      string
		display   *fakeDisplay
		wantSync  bool
		wantCount int
	}{
		{"before first commit", &fakeDisplay{}, false, 0},
		{"synced", &fakeDisplay{snap: schedule.NewSnapshot(entries, now), synced: true}, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, tt.display, nil, nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/schedule", nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			var got scheduleResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Synced != tt.wantSync || got.Count != tt.wantCount || len(got.Entries) != tt.wantCount {
				t.Fatalf("unexpected response: %+v", got)
			}
			if tt.wantSync && got.ProducedAt == nil {
				t.Fatal("expected produced_at on a synced snapshot")
			}
			if tt.wantCount > 0 && (got.Next == nil || !got.Next.Equal(entries[0])) {
				t.Fatalf("next = %v, want %v", got.Next, entries[0])
			}
			if tt.wantCount == 0 && got.Next != nil {
				t.Fatalf("next = %v, want none", got.Next)
			}
		})
	}
}

func TestProjectsFilterByContributor(t *testing.T) {
	r, _ := newTestRouter(t, &fakeDisplay{}, nil, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	var all projectsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all.Projects) != 3 || all.Layout.Count != 3 {
		t.Fatalf("unexpected catalog: %+v", all)
	}
	if all.Title != projects.DefaultTitle {
		t.Fatalf("title = %q", all.Title)
	}
	for _, p := range all.Projects {
		if want := p.Link != "#"; p.Available != want {
			t.Fatalf("%s: available = %v, want %v", p.Name, p.Available, want)
		}
	}

	contributor := all.Projects[0].Contributors[0]
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/projects?contributor="+strings.ReplaceAll(contributor, " ", "+"), nil))
	var filtered projectsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &filtered); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if filtered.Filter != contributor || len(filtered.Projects) == 0 {
		t.Fatalf("unexpected filtered response: %+v", filtered)
	}
	for _, p := range filtered.Projects {
		if !p.HasContributor(contributor) {
			t.Fatalf("project %q does not list %q", p.Name, contributor)
		}
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/projects?contributor=nobody", nil))
	var none projectsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &none); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if none.Projects == nil || len(none.Projects) != 0 || none.Layout.Count != 0 {
		t.Fatalf("expected empty project list, got %+v", none)
	}
}

func TestAdminRoutesRequireSigningKey(t *testing.T) {
	r, _ := newTestRouter(t, &fakeDisplay{}, nil, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/admin/refresh", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected admin routes unmounted, got %d", rr.Code)
	}
}

func TestRefreshAuthorization(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"no operator role", "Bearer " + operatorToken(t, "viewer"), http.StatusForbidden},
		{"operator", "Bearer " + operatorToken(t, auth.RoleOperator), http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display := &fakeDisplay{queue: true}
			r, _ := newTestRouter(t, display, testSecret, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/refresh", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			wantRequests := 0
			if tt.wantStatus == http.StatusAccepted {
				wantRequests = 1
			}
			if display.requests != wantRequests {
				t.Fatalf("RequestPoll calls = %d, want %d", display.requests, wantRequests)
			}
		})
	}
}

func TestRefreshInvalidatesCache(t *testing.T) {
	inv := &fakeInvalidator{}
	r, _ := newTestRouter(t, &fakeDisplay{}, testSecret, func(a *API) {
		a.SetCache(inv, "https://example.com/schedule.json")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, auth.RoleOperator))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["queued"] {
		t.Fatal("expected queued=false from fake display")
	}
	if len(inv.locations) != 1 || inv.locations[0] != "https://example.com/schedule.json" {
		t.Fatalf("unexpected invalidations: %v", inv.locations)
	}
}

func TestPollHistory(t *testing.T) {
	polls := []journal.PollRecord{
		{ID: "a", Outcome: "committed", Entries: 2},
		{ID: "b", Outcome: "failed", Reason: "network"},
		{ID: "c", Outcome: "suppressed"},
	}

	tests := []struct {
		name       string
		history    History
		query      string
		wantStatus int
		wantCount  int
	}{
		{"journal disabled", nil, "", http.StatusServiceUnavailable, 0},
		{"default limit", &fakeHistory{polls: polls}, "", http.StatusOK, 3},
		{"explicit limit", &fakeHistory{polls: polls}, "?limit=2", http.StatusOK, 2},
		{"invalid limit", &fakeHistory{polls: polls}, "?limit=abc", http.StatusBadRequest, 0},
		{"store failure", &fakeHistory{err: errors.New("boom")}, "", http.StatusInternalServerError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, &fakeDisplay{}, testSecret, func(a *API) {
				if tt.history != nil {
					a.SetHistory(tt.history)
				}
			})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/polls"+tt.query, nil)
			req.Header.Set("Authorization", "Bearer "+operatorToken(t, auth.RoleOperator))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if rr.Code != http.StatusOK {
				return
			}
			var body struct {
				Polls []journal.PollRecord `json:"polls"`
				Count int                  `json:"count"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Count != tt.wantCount || len(body.Polls) != tt.wantCount {
				t.Fatalf("count = %d, want %d", body.Count, tt.wantCount)
			}
		})
	}
}

func TestHealthReportsPhase(t *testing.T) {
	r, _ := newTestRouter(t, &fakeDisplay{state: countdown.State{Phase: countdown.PhaseIdle}}, nil, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["phase"] != string(countdown.PhaseIdle) || body["synced"] != false {
		t.Fatalf("unexpected health body: %v", body)
	}
	if body["schedule_empty"] != false || body["tick_subscribers"] != float64(0) {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestHealthReportsEmptyScheduleAndSubscribers(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	display := &fakeDisplay{state: countdown.State{Phase: countdown.PhaseExhausted}, snap: schedule.NewSnapshot(nil, now), synced: true}
	r, bus := newTestRouter(t, display, nil, nil)
	sub := bus.Subscribe(events.EventCountdownTick)
	defer bus.Unsubscribe(events.EventCountdownTick, sub)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["schedule_empty"] != true {
		t.Fatalf("schedule_empty = %v, want true", body["schedule_empty"])
	}
	if body["tick_subscribers"] != float64(1) {
		t.Fatalf("tick_subscribers = %v, want 1", body["tick_subscribers"])
	}
}

func TestCountdownStreamSendsStateThenEvents(t *testing.T) {
	display := &fakeDisplay{state: countdown.State{Phase: countdown.PhaseExhausted, Message: countdown.MessageExhausted}}
	r, bus := newTestRouter(t, display, nil, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/countdown?types=" + string(events.EventPhaseChanged)
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	var first struct {
		Type    events.EventType `json:"type"`
		Payload struct {
			State countdown.State `json:"state"`
		} `json:"payload"`
	}
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.Type != events.EventCountdownTick || first.Payload.State.Phase != countdown.PhaseExhausted {
		t.Fatalf("unexpected initial message: %+v", first)
	}

	// The subscription is registered before the initial write, so this is not lost.
	bus.Publish(events.EventPhaseChanged, events.Payload{"from": "waiting", "to": "in_progress"})

	var next struct {
		Type    events.EventType  `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := wsjson.Read(ctx, conn, &next); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if next.Type != events.EventPhaseChanged || next.Payload["to"] != "in_progress" {
		t.Fatalf("unexpected event: %+v", next)
	}
}

func TestParseEventTypes(t *testing.T) {
	got := parseEventTypes(" countdown.tick, ,presentation.start ")
	if len(got) != 2 || got[0] != events.EventCountdownTick || got[1] != events.EventPresentationStart {
		t.Fatalf("unexpected types: %v", got)
	}
	if parseEventTypes("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestScheduleICal(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name       string
		display    *fakeDisplay
		wantStatus int
	}{
		{"not synced", &fakeDisplay{}, http.StatusServiceUnavailable},
		{"synced", &fakeDisplay{snap: schedule.NewSnapshot([]time.Time{now.Add(time.Hour)}, now), synced: true}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, tt.display, nil, func(a *API) {
				a.SetPresentationDuration(15 * time.Minute)
			})
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/schedule.ics", nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if rr.Code != http.StatusOK {
				return
			}
			if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
				t.Fatalf("Content-Type = %q", ct)
			}
			if !strings.Contains(rr.Body.String(), "BEGIN:VEVENT") {
				t.Fatalf("missing event:\n%s", rr.Body.String())
			}
		})
	}
}

func TestAdminLogsFiltersByField(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	buf := logbuffer.New(10)
	buf.Add(logbuffer.LogEntry{Timestamp: at, Level: "warn", Message: "schedule poll failed", Component: "schedule", Fields: map[string]any{"outcome": "failed"}})
	buf.Add(logbuffer.LogEntry{Timestamp: at.Add(time.Second), Level: "info", Message: "schedule committed", Component: "schedule", Fields: map[string]any{"outcome": "committed"}})
	buf.Add(logbuffer.LogEntry{Timestamp: at.Add(2 * time.Second), Level: "info", Message: "presentation window opened", Component: "countdown"})

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"no filter", "", http.StatusOK, 3},
		{"field match", "?field.outcome=failed", http.StatusOK, 1},
		{"field with component", "?component=schedule&field.outcome=committed", http.StatusOK, 1},
		{"field without match", "?field.outcome=suppressed", http.StatusOK, 0},
		{"since", "?since=2026-05-01T09:00:01Z", http.StatusOK, 2},
		{"bad since", "?since=yesterday", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, &fakeDisplay{}, testSecret, func(a *API) {
				a.logBuffer = buf
			})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/logs"+tt.query, nil)
			req.Header.Set("Authorization", "Bearer "+operatorToken(t, auth.RoleOperator))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if rr.Code != http.StatusOK {
				return
			}
			var body struct {
				Logs  []logbuffer.LogEntry `json:"logs"`
				Count int                  `json:"count"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Count != tt.wantCount || len(body.Logs) != tt.wantCount {
				t.Fatalf("count = %d, want %d", body.Count, tt.wantCount)
			}
			if tt.query == "?field.outcome=failed" && body.Logs[0].Message != "schedule poll failed" {
				t.Fatalf("matched %q", body.Logs[0].Message)
			}
		})
	}
}
