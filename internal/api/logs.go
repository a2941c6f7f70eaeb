/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/toptech5419/homebake/internal/logbuffer"
	"github.com/toptech5419/homebake/internal/shift"
)

// handleLogList serves the in-memory log tail. Returns 404 when the process
// runs without a log buffer.
func (a *API) handleLogList(w http.ResponseWriter, r *http.Request) {
	if a.svc.Logs == nil {
		writeError(w, http.StatusNotFound, "log_buffer_disabled")
		return
	}

	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		Search:     q.Get("search"),
		Limit:      200,
		Descending: true,
	}
	if raw := q.Get("shift"); raw != "" {
		name, err := shift.ParseName(raw)
		if err != nil {
			writeValidationError(w, err)
			return
		}
		params.Shift = name.String()
	}
	if raw := q.Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			params.Since = t.UTC()
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			params.Limit = n
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  a.svc.Logs.Query(params),
		"stats": a.svc.Logs.Stats(),
	})
}
