/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/expo_display/internal/api"
	"github.com/friendsincode/expo_display/internal/cache"
	"github.com/friendsincode/expo_display/internal/clock"
	"github.com/friendsincode/expo_display/internal/config"
	"github.com/friendsincode/expo_display/internal/countdown"
	"github.com/friendsincode/expo_display/internal/db"
	"github.com/friendsincode/expo_display/internal/display"
	"github.com/friendsincode/expo_display/internal/eventbus"
	"github.com/friendsincode/expo_display/internal/events"
	"github.com/friendsincode/expo_display/internal/journal"
	"github.com/friendsincode/expo_display/internal/logbuffer"
	"github.com/friendsincode/expo_display/internal/projects"
	"github.com/friendsincode/expo_display/internal/schedule"
	"github.com/friendsincode/expo_display/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	clock     clock.Clock
	bus       *events.Bus
	publisher events.Publisher
	natsBus   *eventbus.NATSBus
	cache     *cache.Cache
	journal   *journal.Store
	logBuffer *logbuffer.Buffer
	runner    *display.Runner
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("expo-display-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(timeoutMiddleware(30 * time.Second))

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		clock:     clock.New(),
		bus:       events.NewBus(),
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.runClosers()
		return nil, err
	}

	srv.configureRoutes()
	if err := srv.startBackgroundWorkers(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.httpServer = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Websocket streams manage their own deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// timeoutMiddleware bounds request handling, except for websocket upgrades.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(d)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			timeout.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' ws: wss:; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	s.publisher = s.bus
	if s.cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsCfg.Token = s.cfg.NATSToken
		natsCfg.SubjectPrefix = s.cfg.NATSSubjectPrefix
		s.natsBus = eventbus.NewNATSBus(natsCfg, s.bus, s.logger)
		s.publisher = s.natsBus
		s.DeferClose(s.natsBus.Close)
	}

	source, err := schedule.NewSource(s.cfg.ScheduleURL, s.cfg.FetchTimeout)
	if err != nil {
		return fmt.Errorf("schedule source: %w", err)
	}

	if s.cfg.RedisAddr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		cacheCfg.DocumentTTL = s.cfg.CacheTTL
		c, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		s.cache = c
		s.DeferClose(c.Close)
		source = schedule.NewCachedSource(source, c, c.TTL())
	}

	syncer := schedule.NewSynchronizer(source, s.clock, schedule.Options{
		Field:                           s.cfg.ScheduleField,
		SuppressWhilePresentationActive: s.cfg.SuppressWhileActive,
	}, s.logger)

	if s.cfg.JournalEnabled() {
		database, err := db.Connect(s.cfg)
		if err != nil {
			return fmt.Errorf("journal database: %w", err)
		}
		s.DeferClose(func() error { return db.Close(database) })

		store := journal.New(database, s.cfg.InstanceID, s.logger)
		if err := store.Migrate(); err != nil {
			return err
		}
		s.journal = store
		syncer.SetRecorder(store)
	}

	engine := countdown.NewEngine(s.cfg.PresentationDuration, s.logger)
	s.runner = display.NewRunner(syncer, engine, s.clock, s.publisher, display.Options{
		PollInterval: s.cfg.PollInterval,
		TickInterval: s.cfg.TickInterval,
	}, s.logger)

	catalog, err := projects.Load(s.cfg.ProjectsFile)
	if err != nil {
		return fmt.Errorf("project catalog: %w", err)
	}

	s.api = api.New(s.runner, catalog, s.bus, []byte(s.cfg.JWTSigningKey), s.logBuffer, s.logger)
	s.api.SetPresentationDuration(engine.Duration())
	if s.journal != nil {
		s.api.SetHistory(s.journal)
	}
	if s.cache != nil {
		s.api.SetCache(s.cache, source.Location())
	}
	if !s.cfg.OperatorEnabled() {
		s.logger.Info().Msg("operator endpoints disabled: no JWT signing key configured")
	}

	return nil
}

// HTTPServer exposes the configured HTTP server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Runner returns the display runner.
func (s *Server) Runner() *display.Runner {
	return s.runner
}

// Close stops background work and releases resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	return s.runClosers()
}

func (s *Server) runClosers() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.journal != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.journal.Watch(ctx, s.bus)
		}()
	}

	if err := s.runner.Start(ctx); err != nil && !errors.Is(err, display.ErrAlreadyRunning) {
		return fmt.Errorf("start display runner: %w", err)
	}
	return nil
}

func (s *Server) stopBackgroundWorkers() {
	if s.runner != nil {
		s.runner.Stop()
	}
	if s.bgCancel != nil {
		s.bgCancel()
		s.bgWG.Wait()
		s.bgCancel = nil
	}
}

func (s *Server) configureRoutes() {
	s.router.Handle("/metrics", telemetry.Handler())
	s.api.Routes(s.router)
}
