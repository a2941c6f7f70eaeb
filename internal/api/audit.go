/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/toptech5419/homebake/internal/audit"
	"github.com/toptech5419/homebake/internal/models"
	"github.com/toptech5419/homebake/internal/shift"
)

// handleAuditList returns a paginated list of audit logs (owner only).
func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	filters, err := parseAuditFilters(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	logs, total, err := a.svc.Audit.Query(r.Context(), filters)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to query audit logs")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"audit_logs": logs,
		"total":      total,
		"limit":      filters.Limit,
		"offset":     filters.Offset,
	})
}

// parseAuditFilters extracts query filters from the request. Malformed
// times and paging values are ignored; an unknown shift is rejected.
func parseAuditFilters(r *http.Request) (audit.QueryFilters, error) {
	q := r.URL.Query()
	filters := audit.QueryFilters{Limit: 100}

	if userID := q.Get("user_id"); userID != "" {
		filters.UserID = &userID
	}
	if raw := q.Get("shift"); raw != "" {
		name, err := shift.ParseName(raw)
		if err != nil {
			return filters, err
		}
		s := name.String()
		filters.Shift = &s
	}
	if action := q.Get("action"); action != "" {
		a := models.AuditAction(action)
		filters.Action = &a
	}
	if t, err := time.Parse(time.RFC3339, q.Get("start_time")); err == nil {
		t = t.UTC()
		filters.StartTime = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("end_time")); err == nil {
		t = t.UTC()
		filters.EndTime = &t
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= audit.MaxQueryLimit {
		filters.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		filters.Offset = n
	}

	return filters, nil
}
