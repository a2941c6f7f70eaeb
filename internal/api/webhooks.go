/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/toptech5419/homebake/internal/webhooks"
)

func (a *API) handleWebhookList(w http.ResponseWriter, r *http.Request) {
	targets, err := a.svc.Webhooks.List(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list webhooks failed")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": targets})
}

// handleWebhookCreate registers a target. The signing secret is only ever
// returned here.
func (a *API) handleWebhookCreate(w http.ResponseWriter, r *http.Request) {
	var req webhooks.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	target, err := a.svc.Webhooks.Create(r.Context(), req, a.actor(r))
	if err != nil {
		a.writeWebhookError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"webhook": target,
		"secret":  target.Secret,
	})
}

func (a *API) handleWebhookDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Webhooks.Delete(r.Context(), chi.URLParam(r, "webhookID"), a.actor(r)); err != nil {
		a.writeWebhookError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWebhookTest(w http.ResponseWriter, r *http.Request) {
	err := a.svc.Webhooks.Test(r.Context(), chi.URLParam(r, "webhookID"))
	if errors.Is(err, webhooks.ErrNotFound) {
		writeError(w, http.StatusNotFound, "webhook_not_found")
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "delivery_failed",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func (a *API) handleWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := a.svc.Webhooks.Deliveries(r.Context(), chi.URLParam(r, "webhookID"), limit)
	if err != nil {
		a.writeWebhookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": logs})
}

func (a *API) writeWebhookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, webhooks.ErrNotFound):
		writeError(w, http.StatusNotFound, "webhook_not_found")
	case isValidation(err):
		writeValidationError(w, err)
	default:
		a.logger.Error().Err(err).Msg("webhook operation failed")
		writeError(w, http.StatusInternalServerError, "webhook_operation_failed")
	}
}
