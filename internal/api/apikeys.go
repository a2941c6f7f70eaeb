/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/toptech5419/homebake/internal/auth"
	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/models"
)

// maxAPIKeyDays caps how long a device key may live.
const maxAPIKeyDays = 365

type apiKeyCreateRequest struct {
	Label         string `json:"label"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"`
}

func (a *API) handleAPIKeyList(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	keys, err := auth.ListAPIKeys(a.db.WithContext(r.Context()), claims.UserID)
	if err != nil {
		a.logger.Error().Err(err).Msg("list api keys failed")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": keys})
}

func (a *API) handleAPIKeyCreate(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var req apiKeyCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "label_required")
		return
	}
	if req.ExpiresInDays < 0 || req.ExpiresInDays > maxAPIKeyDays {
		writeError(w, http.StatusBadRequest, "invalid_expiry")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, "id = ?", claims.UserID).Error; err != nil || !user.Active {
		writeError(w, http.StatusForbidden, "staff_account_required")
		return
	}

	plaintext, key, err := auth.GenerateAPIKey(user.ID, req.Label, time.Duration(req.ExpiresInDays)*24*time.Hour)
	if err != nil {
		a.logger.Error().Err(err).Msg("generate api key failed")
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}
	if err := a.db.WithContext(r.Context()).Create(key).Error; err != nil {
		a.logger.Error().Err(err).Msg("store api key failed")
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}

	a.bus.Publish(events.EventAuditAPIKeyCreate, a.actor(r).Stamp(events.Payload{
		"resource_type": "api_key",
		"resource_id":   key.ID,
		"label":         key.Label,
		"key_prefix":    key.KeyPrefix,
	}))

	writeJSON(w, http.StatusCreated, map[string]any{
		"api_key": key,
		"key":     plaintext,
	})
}

func (a *API) handleAPIKeyRevoke(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	keyID := chi.URLParam(r, "keyID")

	if err := auth.RevokeAPIKey(a.db.WithContext(r.Context()), keyID, claims.UserID); err != nil {
		if errors.Is(err, auth.ErrAPIKeyNotFound) {
			writeError(w, http.StatusNotFound, "api_key_not_found")
			return
		}
		a.logger.Error().Err(err).Msg("revoke api key failed")
		writeError(w, http.StatusInternalServerError, "revoke_failed")
		return
	}

	a.bus.Publish(events.EventAuditAPIKeyRevoke, a.actor(r).Stamp(events.Payload{
		"resource_type": "api_key",
		"resource_id":   keyID,
	}))
	w.WriteHeader(http.StatusNoContent)
}
