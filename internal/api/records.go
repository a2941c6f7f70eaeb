/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"

	"github.com/toptech5419/homebake/internal/handoff"
	"github.com/toptech5419/homebake/internal/production"
	"github.com/toptech5419/homebake/internal/sales"
	"github.com/toptech5419/homebake/internal/shift"
)

// windowedList is the envelope for every shift-scoped listing. Items is
// always present, empty while the window is cleared.
type windowedList struct {
	windowResponse
	Items any `json:"items"`
}

// listForShift resolves the requested shift and hands the window to load.
func (a *API) listForShift(w http.ResponseWriter, r *http.Request, load func(shift.Name, shift.Window) (any, error)) {
	name, err := parseShiftParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_shift")
		return
	}

	now, window, err := a.resolveWindow(r.Context(), name)
	if err != nil {
		a.writeWindowFault(w, name, err)
		return
	}

	items, err := load(name, window)
	if err != nil {
		a.logger.Error().Err(err).Str("shift", name.String()).Str("path", r.URL.Path).Msg("list failed")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}

	writeJSON(w, http.StatusOK, windowedList{
		windowResponse: newWindowResponse(name, now, window),
		Items:          items,
	})
}

// writeWindowFault answers a resolver rejection of the server clock's own
// reading. The shift name is already validated, so this is never the caller's fault.
func (a *API) writeWindowFault(w http.ResponseWriter, name shift.Name, err error) {
	a.logger.Error().Err(err).Str("shift", name.String()).Msg("window resolution failed")
	writeError(w, http.StatusInternalServerError, "window_resolution_failed")
}

func (a *API) handleProductionList(w http.ResponseWriter, r *http.Request) {
	a.listForShift(w, r, func(name shift.Name, window shift.Window) (any, error) {
		return a.svc.Production.ListForWindow(r.Context(), name, window)
	})
}

func (a *API) handleProductionCreate(w http.ResponseWriter, r *http.Request) {
	var req production.RecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	entry, err := a.svc.Production.Record(r.Context(), req, a.actor(r))
	if err != nil {
		if isValidation(err) {
			writeValidationError(w, err)
			return
		}
		a.logger.Error().Err(err).Msg("record production failed")
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleSalesList(w http.ResponseWriter, r *http.Request) {
	a.listForShift(w, r, func(name shift.Name, window shift.Window) (any, error) {
		return a.svc.Sales.ListForWindow(r.Context(), name, window)
	})
}

func (a *API) handleSalesCreate(w http.ResponseWriter, r *http.Request) {
	var req sales.RecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	entry, err := a.svc.Sales.Record(r.Context(), req, a.actor(r))
	if err != nil {
		if isValidation(err) {
			writeValidationError(w, err)
			return
		}
		a.logger.Error().Err(err).Msg("record sale failed")
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"sale":    entry,
		"revenue": entry.Revenue(),
	})
}

func (a *API) handleHandoffList(w http.ResponseWriter, r *http.Request) {
	a.listForShift(w, r, func(name shift.Name, window shift.Window) (any, error) {
		return a.svc.Handoffs.ListForWindow(r.Context(), name, window)
	})
}

func (a *API) handleHandoffCreate(w http.ResponseWriter, r *http.Request) {
	var req handoff.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	note, err := a.svc.Handoffs.Create(r.Context(), req, a.actor(r))
	if err != nil {
		if isValidation(err) {
			writeValidationError(w, err)
			return
		}
		a.logger.Error().Err(err).Msg("create handoff failed")
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (a *API) handleShiftReport(w http.ResponseWriter, r *http.Request) {
	name, err := parseShiftParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_shift")
		return
	}

	report, err := a.svc.Reports.ShiftReport(r.Context(), name, shift.Now(a.clock))
	if err != nil {
		if errors.Is(err, shift.ErrInvalidArgument) {
			a.writeWindowFault(w, name, err)
			return
		}
		a.logger.Error().Err(err).Str("shift", name.String()).Msg("shift report failed")
		writeError(w, http.StatusInternalServerError, "report_failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
