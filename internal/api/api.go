/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/audit"
	"github.com/toptech5419/homebake/internal/auth"
	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/handoff"
	"github.com/toptech5419/homebake/internal/logbuffer"
	"github.com/toptech5419/homebake/internal/models"
	"github.com/toptech5419/homebake/internal/production"
	"github.com/toptech5419/homebake/internal/reports"
	"github.com/toptech5419/homebake/internal/sales"
	"github.com/toptech5419/homebake/internal/shift"
	"github.com/toptech5419/homebake/internal/staff"
	"github.com/toptech5419/homebake/internal/version"
	"github.com/toptech5419/homebake/internal/webhooks"
)

const maxBodyBytes = 1 << 20

// Services bundles the domain services the API delegates to.
type Services struct {
	Production *production.Service
	Sales      *sales.Service
	Handoffs   *handoff.Service
	Reports    *reports.Service
	Staff      *staff.Service
	Audit      *audit.Service
	Webhooks   *webhooks.Service
	Logs       *logbuffer.Buffer // optional
}

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	jwtSecret []byte
	svc       Services
	bus       *events.Bus
	clock     shift.Clock
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, svc Services, bus *events.Bus, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		jwtSecret: jwtSecret,
		svc:       svc,
		bus:       bus,
		clock:     shift.SystemClock{},
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// SetClock replaces the clock used to observe "now" when resolving windows.
func (a *API) SetClock(c shift.Clock) {
	a.clock = c
}

// Routes registers all API routes on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Get("/shifts/{shift}/window", a.handleShiftWindow)

			pr.Route("/production", func(r chi.Router) {
				r.Get("/", a.handleProductionList)
				r.With(a.requireRoles(models.RoleManager)).Post("/", a.handleProductionCreate)
			})

			pr.Route("/sales", func(r chi.Router) {
				r.Get("/", a.handleSalesList)
				r.With(a.requireRoles(models.RoleManager, models.RoleSalesRep)).Post("/", a.handleSalesCreate)
			})

			pr.Route("/handoffs", func(r chi.Router) {
				r.Get("/", a.handleHandoffList)
				r.Post("/", a.handleHandoffCreate)
			})

			pr.With(a.requireRoles(models.RoleManager)).Get("/reports/shift", a.handleShiftReport)

			pr.Route("/staff", func(r chi.Router) {
				r.Use(a.requireRoles())
				r.Get("/", a.handleStaffList)
				r.Post("/", a.handleStaffCreate)
				r.Route("/{userID}", func(r chi.Router) {
					r.Get("/", a.handleStaffGet)
					r.Patch("/", a.handleStaffUpdate)
					r.Delete("/", a.handleStaffDelete)
				})
			})

			pr.Route("/apikeys", func(r chi.Router) {
				r.Get("/", a.handleAPIKeyList)
				r.Post("/", a.handleAPIKeyCreate)
				r.Delete("/{keyID}", a.handleAPIKeyRevoke)
			})

			pr.With(a.requireRoles()).Get("/audit", a.handleAuditList)
			pr.With(a.requireRoles()).Get("/logs", a.handleLogList)

			pr.Route("/webhooks", func(r chi.Router) {
				r.Use(a.requireRoles())
				r.Get("/", a.handleWebhookList)
				r.Post("/", a.handleWebhookCreate)
				r.Route("/{webhookID}", func(r chi.Router) {
					r.Delete("/", a.handleWebhookDelete)
					r.Post("/test", a.handleWebhookTest)
					r.Get("/deliveries", a.handleWebhookDeliveries)
				})
			})

			pr.Get("/events", a.handleEvents)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": version.Version,
		"time":    a.clock.NowUTC().UTC().Format(time.RFC3339),
	})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.MiddlewareWithJWT(a.db, a.jwtSecret)
}

// requireRoles admits owners plus any of the listed roles.
func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	return auth.RequireRoles(allowed...)
}

// actor identifies the caller for events and audit entries.
func (a *API) actor(r *http.Request) events.Actor {
	actor := events.Actor{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		actor.UserID = claims.UserID
		actor.Email = claims.Email
	}
	return actor
}

func decodeJSON(r *http.Request, dest any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeValidationError reports a rejected input with its reason.
func writeValidationError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":   "validation_failed",
		"message": err.Error(),
	})
}

// isValidation reports whether err is an input problem rather than a fault.
func isValidation(err error) bool {
	return errors.Is(err, shift.ErrInvalidArgument) ||
		errors.Is(err, production.ErrInvalidRecord) ||
		errors.Is(err, sales.ErrInvalidSale) ||
		errors.Is(err, handoff.ErrInvalidHandoff) ||
		errors.Is(err, staff.ErrInvalidInput) ||
		errors.Is(err, webhooks.ErrInvalidTarget)
}
