package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/expo_display/internal/config"
	"github.com/friendsincode/expo_display/internal/logbuffer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.json")
	start := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	if err := os.WriteFile(path, []byte(fmt.Sprintf(`{"presentations":[%q]}`, start)), 0o644); err != nil {
		t.Fatalf("write schedule: %v", err)
	}

	return &config.Config{
		Environment:          "test",
		HTTPBind:             "127.0.0.1",
		HTTPPort:             0,
		InstanceID:           "test-node",
		ScheduleURL:          path,
		ScheduleField:        "presentations",
		FetchTimeout:         time.Second,
		PollInterval:         time.Hour,
		TickInterval:         50 * time.Millisecond,
		SuppressWhileActive:  true,
		PresentationDuration: 10 * time.Minute,
		DBBackend:            config.DatabaseSQLite,
		DBDSN:                fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		JWTSigningKey:        "test-key",
	}
}

func TestServerSyncsScheduleOnStart(t *testing.T) {
	srv, err := New(testConfig(t), logbuffer.New(100), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer srv.Close()

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, synced := srv.Runner().Snapshot(); synced {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("schedule never synced")
		}
		time.Sleep(20 * time.Millisecond)
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/schedule", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Synced bool `json:"synced"`
		Count  int  `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Synced || body.Count != 1 {
		t.Fatalf("unexpected schedule response: %+v", body)
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
}

func TestServerRejectsUnknownProjectsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProjectsFile = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := New(cfg, logbuffer.New(10), zerolog.Nop()); err == nil {
		t.Fatal("expected missing projects file to fail")
	}
}
