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
	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/announcer"
	"github.com/toptech5419/homebake/internal/api"
	"github.com/toptech5419/homebake/internal/audit"
	"github.com/toptech5419/homebake/internal/cache"
	"github.com/toptech5419/homebake/internal/config"
	"github.com/toptech5419/homebake/internal/db"
	"github.com/toptech5419/homebake/internal/eventbus"
	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/handoff"
	"github.com/toptech5419/homebake/internal/leadership"
	"github.com/toptech5419/homebake/internal/logbuffer"
	"github.com/toptech5419/homebake/internal/production"
	"github.com/toptech5419/homebake/internal/reports"
	"github.com/toptech5419/homebake/internal/sales"
	"github.com/toptech5419/homebake/internal/shift"
	"github.com/toptech5419/homebake/internal/staff"
	"github.com/toptech5419/homebake/internal/telemetry"
	"github.com/toptech5419/homebake/internal/version"
	"github.com/toptech5419/homebake/internal/webhooks"
)

const connectionMetricsInterval = 30 * time.Second

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cache     *cache.Cache
	logBuffer *logbuffer.Buffer
	bus       *events.Bus
	relay     *eventbus.Relay
	tracer    *telemetry.TracerProvider
	api       *api.API
	auditSvc  *audit.Service
	reports   *reports.Service
	webhooks  *webhooks.Service
	election  *leadership.Election
	announcer *announcer.Announcer

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New wires configuration into a ready-to-serve HTTP server. Background
// workers are running when New returns; Close stops them.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("homebake-api"))
	router.Use(telemetry.MetricsMiddleware)
	// The event stream is long-lived; everything else gets a request deadline.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       events.NewBus(),
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Zero so the event stream is not cut off; the middleware deadline
		// bounds ordinary requests.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	tracer, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "homebake",
		ServiceVersion: version.Version,
		OTLPEndpoint:   s.cfg.OTLPEndpoint,
		Enabled:        s.cfg.TracingEnabled,
		SampleRate:     s.cfg.TracingSampleRate,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	s.tracer = tracer
	s.DeferClose(func() error { return tracer.Shutdown(context.Background()) })

	database, err := db.Connect(s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		if s.cfg.ReportCacheTTL > 0 {
			cacheCfg.ReportTTL = s.cfg.ReportCacheTTL
		}
		reportCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
			reportCache = cache.Disabled(s.logger)
		}
		s.cache = reportCache
	} else {
		s.cache = cache.Disabled(s.logger)
	}
	s.DeferClose(func() error { return s.cache.Close() })

	if s.cfg.NATSEnabled {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsCfg.Token = s.cfg.NATSToken
		if s.cfg.InstanceID != "" {
			natsCfg.NodeID = s.cfg.InstanceID
		}
		s.relay = eventbus.NewRelay(natsCfg, s.bus, s.logger)
		s.DeferClose(s.relay.Close)
	}

	if s.cfg.AnnouncerEnabled {
		var leader announcer.Leader
		if s.cfg.LeaderElectionEnabled {
			electionCfg := leadership.DefaultConfig()
			electionCfg.RedisAddr = s.cfg.RedisAddr
			electionCfg.RedisPassword = s.cfg.RedisPassword
			electionCfg.RedisDB = s.cfg.RedisDB
			if s.cfg.InstanceID != "" {
				electionCfg.InstanceID = s.cfg.InstanceID
			}
			election, err := leadership.NewElection(electionCfg, s.logger)
			if err != nil {
				return fmt.Errorf("leader election: %w", err)
			}
			s.election = election
			s.DeferClose(election.Stop)
			leader = election
		}
		s.announcer = announcer.New(s.bus, shift.SystemClock{}, leader, s.logger)
	}

	prod := production.NewService(database, s.bus, s.logger)
	sl := sales.NewService(database, s.bus, s.logger)
	s.auditSvc = audit.NewService(database, s.bus, s.logger)
	s.reports = reports.NewService(prod, sl, s.cache, s.bus, s.logger)
	s.webhooks = webhooks.NewService(database, s.bus, s.logger)

	s.api = api.New(database, []byte(s.cfg.JWTSigningKey), api.Services{
		Production: prod,
		Sales:      sl,
		Handoffs:   handoff.NewService(database, s.bus, s.logger),
		Reports:    s.reports,
		Staff:      staff.NewService(database, s.bus, s.logger),
		Audit:      s.auditSvc,
		Webhooks:   s.webhooks,
		Logs:       s.logBuffer,
	}, s.bus, s.logger)

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// LogBuffer returns the server's log buffer, nil when none was supplied.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
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

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.auditSvc != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.auditSvc.Start(ctx)
		}()
	}

	if s.reports != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.reports.RunInvalidation(ctx)
		}()
	}

	if s.election != nil {
		s.election.Start(ctx)
	}

	if s.announcer != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.announcer.Run(ctx)
		}()
	}

	if s.webhooks != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.webhooks.Start(ctx)
		}()
	}

	if s.relay != nil {
		if err := s.relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("event relay failed to start")
		}
	}

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runConnectionMetrics(ctx)
		}()
	}
}

func (s *Server) runConnectionMetrics(ctx context.Context) {
	ticker := time.NewTicker(connectionMetricsInterval)
	defer ticker.Stop()

	db.UpdateConnectionMetrics(s.db)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.UpdateConnectionMetrics(s.db)
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := `{"status":"ok"`
		if s.relay != nil {
			if s.relay.Connected() {
				response += `,"relay":true`
			} else {
				response += `,"relay":false`
			}
		}
		if s.election != nil {
			if s.election.IsLeader() {
				response += `,"leader":true`
			} else {
				response += `,"leader":false`
			}
		}
		response += `}`
		_, _ = w.Write([]byte(response))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
