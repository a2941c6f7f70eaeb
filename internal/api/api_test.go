package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	ws "nhooyr.io/websocket"

	"github.com/toptech5419/homebake/internal/audit"
	"github.com/toptech5419/homebake/internal/auth"
	"github.com/toptech5419/homebake/internal/cache"
	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/handoff"
	"github.com/toptech5419/homebake/internal/logbuffer"
	"github.com/toptech5419/homebake/internal/models"
	"github.com/toptech5419/homebake/internal/production"
	"github.com/toptech5419/homebake/internal/reports"
	"github.com/toptech5419/homebake/internal/sales"
	"github.com/toptech5419/homebake/internal/shift"
	"github.com/toptech5419/homebake/internal/staff"
	"github.com/toptech5419/homebake/internal/webhooks"
)

var testSecret = []byte("test-secret")

// 2024-03-14 10:00:00 local.
var testNow = time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

const ownerID = "0f7e6c1a-2b3d-4e5f-8a9b-0c1d2e3f4a5b"

type testEnv struct {
	api    *API
	router chi.Router
	db     *gorm.DB
	bus    *events.Bus
	svc    Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.User{}, &models.APIKey{}, &models.AuditLog{}, &models.ProductionLog{}, &models.SalesLog{}, &models.ShiftHandoff{}, &models.WebhookTarget{}, &models.WebhookLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	owner := models.User{ID: ownerID, Name: "Owner", Email: "owner@example.com", Role: models.RoleOwner, Active: true}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("seed owner: %v", err)
	}

	bus := events.NewBus()
	logger := zerolog.Nop()
	clock := shift.FixedClock{At: testNow}

	prod := production.NewService(db, bus, logger).WithClock(clock)
	sl := sales.NewService(db, bus, logger).WithClock(clock)
	svc := Services{
		Production: prod,
		Sales:      sl,
		Handoffs:   handoff.NewService(db, bus, logger).WithClock(clock),
		Reports:    reports.NewService(prod, sl, cache.Disabled(logger), bus, logger),
		Staff:      staff.NewService(db, bus, logger),
		Audit:      audit.NewService(db, bus, logger),
		Webhooks:   webhooks.NewService(db, bus, logger),
		Logs:       logbuffer.New(100),
	}

	a := New(db, testSecret, svc, bus, logger)
	a.SetClock(clock)

	r := chi.NewRouter()
	a.Routes(r)

	return &testEnv{api: a, router: r, db: db, bus: bus, svc: svc}
}

func tokenFor(t *testing.T, userID string, role models.RoleName) string {
	t.Helper()
	token, err := auth.Issue(testSecret, claimsFor(userID, role), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func claimsFor(userID string, role models.RoleName) auth.Claims {
	return auth.Claims{UserID: userID, Email: userID + "@example.com", Roles: []string{string(role)}}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestShiftWindowEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "u1", models.RoleSalesRep)

	cases := []struct {
		name      string
		path      string
		wantCode  int
		cleared   bool
		wantStart string
		wantEnd   string
	}{
		{"morning now", "/api/v1/shifts/morning/window", 200, false, "2024-03-13T23:00:30Z", "2024-03-14T22:59:59Z"},
		{"night before boundary", "/api/v1/shifts/night/window?at=2024-03-14T09:30:00", 200, false, "2024-03-13T14:00:30Z", "2024-03-14T13:59:59Z"},
		{"night after boundary", "/api/v1/shifts/NIGHT/window?at=2024-03-14T16:00:00", 200, false, "2024-03-14T14:00:30Z", "2024-03-15T13:59:59Z"},
		{"night cleared", "/api/v1/shifts/night/window?at=2024-03-14T15:00:29", 200, true, "", ""},
		{"unknown shift", "/api/v1/shifts/brunch/window", 400, false, "", ""},
		{"bad time", "/api/v1/shifts/morning/window?at=2023-02-29T10:00:00", 400, false, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tc.path, token, nil)
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d body=%s", tc.wantCode, rr.Code, rr.Body.String())
			}
			if tc.wantCode != http.StatusOK {
				return
			}
			body := decode(t, rr)
			if body["cleared"] != tc.cleared {
				t.Fatalf("cleared = %v, want %v", body["cleared"], tc.cleared)
			}
			if tc.cleared {
				if body["reason"] != shift.ClearedReason {
					t.Fatalf("unexpected reason %v", body["reason"])
				}
				if _, ok := body["start_utc"]; ok {
					t.Fatal("cleared window must not carry bounds")
				}
				return
			}
			if body["start_utc"] != tc.wantStart || body["end_utc"] != tc.wantEnd {
				t.Fatalf("bounds = %v..%v, want %s..%s", body["start_utc"], body["end_utc"], tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestClearedWindowReadPublishesNothing(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "u1", models.RoleSalesRep)

	sub := env.bus.Subscribe(events.EventShiftWindowCleared)
	defer env.bus.Unsubscribe(events.EventShiftWindowCleared, sub)

	for i := 0; i < 3; i++ {
		rr := env.do(t, http.MethodGet, "/api/v1/shifts/morning/window?at=2019-01-01T00:00:05", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
		}
		if body := decode(t, rr); body["cleared"] != true {
			t.Fatalf("expected cleared window, got %v", body)
		}
	}

	select {
	case payload := <-sub:
		t.Fatalf("window read published %v", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWindowFaultIsServerError(t *testing.T) {
	env := newTestEnv(t)
	rr := httptest.NewRecorder()

	env.api.writeWindowFault(rr, shift.Night, fmt.Errorf("%w: day 30 out of range for 2024-02", shift.ErrInvalidArgument))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if body := decode(t, rr); body["error"] != "window_resolution_failed" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestShiftWindowRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/v1/shifts/morning/window", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestProductionRolesAndListing(t *testing.T) {
	env := newTestEnv(t)
	batch := map[string]any{"product_name": "Agege bread", "quantity": 40, "unit_price": 1.25, "shift": "morning"}

	rr := env.do(t, http.MethodPost, "/api/v1/production", tokenFor(t, "rep", models.RoleSalesRep), batch)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("sales rep must not record production, got %d", rr.Code)
	}

	manager := tokenFor(t, "mgr", models.RoleManager)
	rr = env.do(t, http.MethodPost, "/api/v1/production", manager, batch)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/v1/production", manager, map[string]any{"product_name": "x", "quantity": 0, "shift": "morning"})
	if rr.Code != http.StatusBadRequest || decode(t, rr)["error"] != "validation_failed" {
		t.Fatalf("expected validation failure, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/v1/production?shift=morning", manager, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decode(t, rr)
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 item, got %v", body["items"])
	}

	rr = env.do(t, http.MethodGet, "/api/v1/production?shift=afternoon", manager, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown shift, got %d", rr.Code)
	}
}

func TestClearedWindowListsAreEmpty(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "rep", models.RoleSalesRep)

	rr := env.do(t, http.MethodPost, "/api/v1/sales", token, map[string]any{"product_name": "Chin chin", "quantity": 2, "unit_price": 3, "shift": "morning"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	// 00:00:05 local on the 15th: the morning window has just rolled over.
	env.api.SetClock(shift.FixedClock{At: time.Date(2024, 3, 14, 23, 0, 5, 0, time.UTC)})

	for _, path := range []string{"/api/v1/sales?shift=morning", "/api/v1/production?shift=morning", "/api/v1/handoffs?shift=morning"} {
		rr = env.do(t, http.MethodGet, path, token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"items":[]`) {
			t.Fatalf("%s: expected empty items array, got %s", path, rr.Body.String())
		}
		body := decode(t, rr)
		if body["cleared"] != true || body["reason"] != shift.ClearedReason {
			t.Fatalf("%s: expected cleared response, got %v", path, body)
		}
	}
}

func TestShiftReportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	manager := tokenFor(t, "mgr", models.RoleManager)

	env.do(t, http.MethodPost, "/api/v1/production", manager, map[string]any{"product_name": "Puff puff", "quantity": 10, "unit_price": 0.5, "shift": "morning"})
	env.do(t, http.MethodPost, "/api/v1/sales", manager, map[string]any{"product_name": "Puff puff", "quantity": 12, "unit_price": 0.5, "shift": "morning"})

	rr := env.do(t, http.MethodGet, "/api/v1/reports/shift?shift=morning", tokenFor(t, "rep", models.RoleSalesRep), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("sales rep must not read reports, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/reports/shift?shift=morning", manager, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var report reports.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Items) != 1 || report.Items[0].Remaining != 0 || !report.Items[0].Oversold {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestHandoffsAnyStaff(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "rep", models.RoleSalesRep)

	rr := env.do(t, http.MethodPost, "/api/v1/handoffs", token, map[string]any{"shift": "night", "note": "Oven 2 thermostat is off by 10 degrees"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodPost, "/api/v1/handoffs", token, map[string]any{"shift": "night", "note": ""})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty note, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/v1/handoffs", token, map[string]any{"shift": "night", "note": "x", "extra": true})
	if rr.Code != http.StatusBadRequest || decode(t, rr)["error"] != "invalid_json" {
		t.Fatalf("expected invalid_json for unknown field, got %d", rr.Code)
	}
}

func TestStaffIsOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := tokenFor(t, ownerID, models.RoleOwner)

	rr := env.do(t, http.MethodGet, "/api/v1/staff", tokenFor(t, "mgr", models.RoleManager), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("manager must not manage staff, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/staff", owner, map[string]any{"name": "Kemi", "email": "kemi@example.com", "role": "sales_rep"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	id, _ := decode(t, rr)["id"].(string)

	rr = env.do(t, http.MethodPost, "/api/v1/staff", owner, map[string]any{"name": "Kemi", "email": "kemi@example.com", "role": "sales_rep"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPatch, "/api/v1/staff/"+id, owner, map[string]any{"role": "manager", "active": false})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["role"] != "manager" || body["active"] != false {
		t.Fatalf("unexpected update result %v", body)
	}

	rr = env.do(t, http.MethodPatch, "/api/v1/staff/"+ownerID, owner, map[string]any{"active": false})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 when deactivating last owner, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/api/v1/staff/"+id, owner, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/staff/"+id, owner, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestAuditListIsOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	if err := env.svc.Audit.Log(context.Background(), &models.AuditLog{Action: models.AuditActionHandoffCreate, Shift: "night"}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	rr := env.do(t, http.MethodGet, "/api/v1/audit?shift=night", tokenFor(t, ownerID, models.RoleOwner), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if total := decode(t, rr)["total"]; total != float64(1) {
		t.Fatalf("expected total 1, got %v", total)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/audit?shift=lunch", tokenFor(t, ownerID, models.RoleOwner), nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown shift, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/audit", tokenFor(t, "mgr", models.RoleManager), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestLogTailIsOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Logs.Add(logbuffer.LogEntry{Timestamp: testNow, Level: "info", Component: "production", Shift: "morning", Message: "production recorded"})
	env.svc.Logs.Add(logbuffer.LogEntry{Timestamp: testNow, Level: "warn", Component: "cache", Message: "redis unavailable"})

	rr := env.do(t, http.MethodGet, "/api/v1/logs", tokenFor(t, "mgr", models.RoleManager), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/logs?shift=Morning", tokenFor(t, ownerID, models.RoleOwner), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	logs, _ := decode(t, rr)["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("expected 1 morning log entry, got %d", len(logs))
	}

	rr = env.do(t, http.MethodGet, "/api/v1/logs?shift=lunch", tokenFor(t, ownerID, models.RoleOwner), nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown shift, got %d", rr.Code)
	}
}

func TestWebhookManagement(t *testing.T) {
	env := newTestEnv(t)
	owner := tokenFor(t, ownerID, models.RoleOwner)

	rr := env.do(t, http.MethodPost, "/api/v1/webhooks", tokenFor(t, "mgr", models.RoleManager), map[string]any{"url": "https://example.com/hook"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/webhooks", owner, map[string]any{"url": "https://example.com/hook", "events": []string{"user.deleted"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for internal event, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/v1/webhooks", owner, map[string]any{"label": "till", "url": "https://example.com/hook", "events": []string{"sales.recorded"}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if secret, _ := body["secret"].(string); secret == "" {
		t.Fatal("expected signing secret in create response")
	}
	hook, _ := body["webhook"].(map[string]any)
	id, _ := hook["id"].(string)

	rr = env.do(t, http.MethodGet, "/api/v1/webhooks", owner, nil)
	if rr.Code != http.StatusOK || strings.Contains(rr.Body.String(), "secret") {
		t.Fatalf("list must not expose secrets: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/v1/webhooks/"+id+"/deliveries", owner, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/api/v1/webhooks/"+id, owner, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/v1/webhooks/"+id+"/test", owner, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestAPIKeyCreateUseAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	owner := tokenFor(t, ownerID, models.RoleOwner)

	rr := env.do(t, http.MethodPost, "/api/v1/apikeys", owner, map[string]any{"label": "counter tablet", "expires_in_days": 30})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	plaintext, _ := body["key"].(string)
	keyID, _ := body["api_key"].(map[string]any)["id"].(string)
	if !strings.HasPrefix(plaintext, auth.APIKeyPrefix) || keyID == "" {
		t.Fatalf("unexpected create response %v", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales?shift=night", nil)
	req.Header.Set("X-API-Key", plaintext)
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected API key to authenticate, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/api/v1/apikeys/"+keyID, owner, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked key to be rejected, got %d", rr.Code)
	}
}

func TestEventsWebSocketStreamsDomainEvents(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?types=sales.recorded"
	conn, _, err := ws.Dial(ctx, url, &ws.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + tokenFor(t, "mgr", models.RoleManager)}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	env.bus.Publish(events.EventProductionRecorded, events.Payload{"shift": "morning"})
	env.bus.Publish(events.EventSalesRecorded, events.Payload{"shift": "night", "quantity": 1})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Type != string(events.EventSalesRecorded) || evt.Payload["shift"] != "night" {
		t.Fatalf("unexpected event %+v", evt)
	}
}
