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

	"github.com/toptech5419/homebake/internal/models"
	"github.com/toptech5419/homebake/internal/staff"
)

// staffUpdateRequest is a partial update; absent fields are left alone.
type staffUpdateRequest struct {
	Role   *models.RoleName `json:"role,omitempty"`
	Active *bool            `json:"active,omitempty"`
}

func (a *API) handleStaffList(w http.ResponseWriter, r *http.Request) {
	filter := staff.ListFilter{Role: models.RoleName(r.URL.Query().Get("role"))}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_active")
			return
		}
		filter.Active = &active
	}

	users, err := a.svc.Staff.List(r.Context(), filter)
	if err != nil {
		a.logger.Error().Err(err).Msg("list staff failed")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": users})
}

func (a *API) handleStaffCreate(w http.ResponseWriter, r *http.Request) {
	var req staff.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	user, err := a.svc.Staff.Create(r.Context(), req, a.actor(r))
	if err != nil {
		a.writeStaffError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleStaffGet(w http.ResponseWriter, r *http.Request) {
	user, err := a.svc.Staff.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		a.writeStaffError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleStaffUpdate(w http.ResponseWriter, r *http.Request) {
	var req staffUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Role == nil && req.Active == nil {
		writeError(w, http.StatusBadRequest, "nothing_to_update")
		return
	}

	id := chi.URLParam(r, "userID")
	actor := a.actor(r)

	var (
		user *models.User
		err  error
	)
	if req.Role != nil {
		if user, err = a.svc.Staff.UpdateRole(r.Context(), id, *req.Role, actor); err != nil {
			a.writeStaffError(w, err)
			return
		}
	}
	if req.Active != nil {
		if user, err = a.svc.Staff.SetActive(r.Context(), id, *req.Active, actor); err != nil {
			a.writeStaffError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleStaffDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Staff.Delete(r.Context(), chi.URLParam(r, "userID"), a.actor(r)); err != nil {
		a.writeStaffError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) writeStaffError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, staff.ErrNotFound):
		writeError(w, http.StatusNotFound, "staff_not_found")
	case errors.Is(err, staff.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken")
	case errors.Is(err, staff.ErrLastOwner):
		writeError(w, http.StatusConflict, "last_owner")
	case isValidation(err):
		writeValidationError(w, err)
	default:
		a.logger.Error().Err(err).Msg("staff operation failed")
		writeError(w, http.StatusInternalServerError, "staff_operation_failed")
	}
}
