/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/toptech5419/homebake/internal/shift"
	"github.com/toptech5419/homebake/internal/telemetry"
)

// windowResponse is the resolver output as served over HTTP.
type windowResponse struct {
	Shift      string     `json:"shift"`
	Cleared    bool       `json:"cleared"`
	State      string     `json:"state"`
	Reason     string     `json:"reason,omitempty"`
	StartUTC   *time.Time `json:"start_utc,omitempty"`
	EndUTC     *time.Time `json:"end_utc,omitempty"`
	ObservedAt string     `json:"observed_at"`
}

func newWindowResponse(name shift.Name, now shift.CivilInstant, w shift.Window) windowResponse {
	resp := windowResponse{
		Shift:      name.String(),
		Cleared:    w.IsCleared(),
		State:      w.State(),
		ObservedAt: now.String(),
	}
	if w.IsCleared() {
		resp.Reason = shift.ClearedReason
		return resp
	}
	start, end := w.StartUTC, w.EndUTC
	resp.StartUTC, resp.EndUTC = &start, &end
	return resp
}

// resolveWindow resolves name at the API clock's current civil time and
// records the outcome.
func (a *API) resolveWindow(ctx context.Context, name shift.Name) (shift.CivilInstant, shift.Window, error) {
	return a.resolveWindowAt(ctx, name, shift.Now(a.clock))
}

func (a *API) resolveWindowAt(ctx context.Context, name shift.Name, now shift.CivilInstant) (shift.CivilInstant, shift.Window, error) {
	_, span := telemetry.StartSpan(ctx, "homebake/api", "shift.Resolve")
	defer span.End()

	window, err := shift.Resolve(name, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return now, window, err
	}
	span.SetAttributes(telemetry.ShiftAttributes(name.String(), window.State())...)
	telemetry.ShiftWindowResolutions.WithLabelValues(name.String(), window.State()).Inc()
	return now, window, nil
}

// parseShiftParam reads the shift from the query string.
func parseShiftParam(r *http.Request) (shift.Name, error) {
	return shift.ParseName(r.URL.Query().Get("shift"))
}

// handleShiftWindow serves GET /shifts/{shift}/window. An optional ?at=
// (local civil time, 2006-01-02T15:04:05) overrides the current time.
func (a *API) handleShiftWindow(w http.ResponseWriter, r *http.Request) {
	name, err := shift.ParseName(chi.URLParam(r, "shift"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_shift")
		return
	}

	now := shift.Now(a.clock)
	if raw := r.URL.Query().Get("at"); raw != "" {
		if now, err = shift.ParseCivil(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time")
			return
		}
	}

	now, window, err := a.resolveWindowAt(r.Context(), name, now)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newWindowResponse(name, now, window))
}
