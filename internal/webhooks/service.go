/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/eventbus"
	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/models"
	"github.com/toptech5419/homebake/internal/telemetry"
)

// Header names set on every delivery.
const (
	HeaderEvent     = "X-HomeBake-Event"
	HeaderDelivery  = "X-HomeBake-Delivery"
	HeaderTimestamp = "X-HomeBake-Timestamp"
	HeaderSignature = "X-HomeBake-Signature"
)

// EventTest is sent by Test and never published on the bus.
const EventTest = "test"

var (
	ErrNotFound      = errors.New("webhook target not found")
	ErrInvalidTarget = errors.New("invalid webhook target")
)

// Deliverable lists the bus events forwarded to webhook targets. Staff and
// audit events stay internal.
var Deliverable = []events.EventType{
	events.EventProductionRecorded,
	events.EventSalesRecorded,
	events.EventHandoffCreated,
	events.EventShiftWindowCleared,
}

// Payload keys never sent to third parties.
var privateKeys = map[string]bool{
	"ip_address":       true,
	"user_agent":       true,
	eventbus.OriginKey: true,
}

// WebhookPayload is the body posted to webhook endpoints.
type WebhookPayload struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Shift     string         `json:"shift,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// CreateRequest registers a new target.
type CreateRequest struct {
	Label  string   `json:"label"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// Service handles webhook delivery.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	client *http.Client
}

// NewService creates a new webhook service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start forwards deliverable events to subscribed targets until ctx is done.
// Events relayed from other instances are skipped; their origin delivers them.
func (s *Service) Start(ctx context.Context) {
	s.run(ctx, s.subscribe())
}

type subscription struct {
	eventType events.EventType
	ch        events.Subscriber
}

func (s *Service) subscribe() []subscription {
	subs := make([]subscription, 0, len(Deliverable))
	for _, eventType := range Deliverable {
		subs = append(subs, subscription{eventType: eventType, ch: s.bus.Subscribe(eventType)})
	}
	return subs
}

func (s *Service) run(ctx context.Context, subs []subscription) {
	s.logger.Info().Int("events", len(subs)).Msg("webhook service started")

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub subscription) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub.ch:
					if !ok {
						return
					}
					if _, remote := payload[eventbus.OriginKey]; remote {
						continue
					}
					s.fireWebhooks(ctx, string(sub.eventType), payload)
				}
			}
		}(sub)
	}

	<-ctx.Done()
	for _, sub := range subs {
		s.bus.Unsubscribe(sub.eventType, sub.ch)
	}
	wg.Wait()
	s.logger.Info().Msg("webhook service stopped")
}

// fireWebhooks sends eventType to every active target subscribed to it.
func (s *Service) fireWebhooks(ctx context.Context, eventType string, payload events.Payload) {
	var targets []models.WebhookTarget
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&targets).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch webhooks")
		return
	}

	body := newPayload(eventType, payload)
	for _, target := range targets {
		if !target.Handles(eventType) {
			continue
		}
		if err := s.send(ctx, target, body); err != nil {
			s.logger.Warn().Err(err).Str("webhook", target.ID).Str("event", eventType).Msg("webhook delivery failed")
		}
	}
}

func newPayload(eventType string, payload events.Payload) WebhookPayload {
	out := WebhookPayload{
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		Data:      make(map[string]any, len(payload)),
	}
	for k, v := range payload {
		if privateKeys[k] {
			continue
		}
		if k == "shift" {
			out.Shift, _ = v.(string)
			continue
		}
		out.Data[k] = v
	}
	return out
}

// send posts one payload and records the attempt.
func (s *Service) send(ctx context.Context, target models.WebhookTarget, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		s.logDelivery(target, payload.Event, 0, 0, err)
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "HomeBake-Webhook/1.0")
	req.Header.Set(HeaderEvent, payload.Event)
	req.Header.Set(HeaderDelivery, uuid.NewString())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(payload.Timestamp.Unix(), 10))
	if target.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(body, target.Secret))
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		s.logDelivery(target, payload.Event, 0, elapsed, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	s.logDelivery(target, payload.Event, resp.StatusCode, elapsed, err)
	if err == nil {
		s.logger.Debug().Str("webhook", target.ID).Str("event", payload.Event).Int("status", resp.StatusCode).Msg("webhook delivered")
	}
	return err
}

// Sign returns the HMAC-SHA256 signature header value for body.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// logDelivery records a delivery attempt and its outcome.
func (s *Service) logDelivery(target models.WebhookTarget, eventType string, statusCode int, elapsed time.Duration, deliveryErr error) {
	result := "success"
	entry := &models.WebhookLog{
		ID:         uuid.NewString(),
		TargetID:   target.ID,
		Event:      eventType,
		StatusCode: statusCode,
		Duration:   int(elapsed.Milliseconds()),
		CreatedAt:  time.Now().UTC(),
	}
	if deliveryErr != nil {
		result = "failure"
		entry.Error = deliveryErr.Error()
	}
	telemetry.WebhookDeliveriesTotal.WithLabelValues(eventType, result).Inc()

	if err := s.db.Create(entry).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to log webhook delivery")
	}
}

// Create validates and stores a new target. The returned target carries its
// signing secret, which is not serialised afterwards.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor events.Actor) (*models.WebhookTarget, error) {
	parsed, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidTarget)
	}

	subscribed := make([]string, 0, len(req.Events))
	for _, raw := range req.Events {
		e := strings.TrimSpace(raw)
		if !isDeliverable(e) {
			return nil, fmt.Errorf("%w: event %q cannot be delivered", ErrInvalidTarget, raw)
		}
		subscribed = append(subscribed, e)
	}

	target := models.NewWebhookTarget(strings.TrimSpace(req.Label), parsed.String(), subscribed)
	target.CreatedBy = actor.UserID
	if err := s.db.WithContext(ctx).Create(target).Error; err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}

	s.bus.Publish(events.EventAuditWebhookCreate, actor.Stamp(events.Payload{
		"resource_type": "webhook",
		"resource_id":   target.ID,
		"url":           target.URL,
		"events":        target.Events,
	}))
	return target, nil
}

func isDeliverable(eventType string) bool {
	for _, e := range Deliverable {
		if string(e) == eventType {
			return true
		}
	}
	return false
}

// List returns all targets, newest first.
func (s *Service) List(ctx context.Context) ([]models.WebhookTarget, error) {
	var targets []models.WebhookTarget
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&targets).Error; err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return targets, nil
}

func (s *Service) get(ctx context.Context, id string) (*models.WebhookTarget, error) {
	var target models.WebhookTarget
	err := s.db.WithContext(ctx).First(&target, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	return &target, nil
}

// Delete removes a target and its delivery history.
func (s *Service) Delete(ctx context.Context, id string, actor events.Actor) error {
	target, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_id = ?", id).Delete(&models.WebhookLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(target).Error
	})
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	s.bus.Publish(events.EventAuditWebhookDelete, actor.Stamp(events.Payload{
		"resource_type": "webhook",
		"resource_id":   id,
		"url":           target.URL,
	}))
	return nil
}

// Deliveries returns the most recent delivery attempts for a target.
func (s *Service) Deliveries(ctx context.Context, id string, limit int) ([]models.WebhookLog, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var logs []models.WebhookLog
	err := s.db.WithContext(ctx).
		Where("target_id = ?", id).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return logs, nil
}

// Test sends a synthetic payload to a target regardless of its event filter.
func (s *Service) Test(ctx context.Context, id string) error {
	target, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	return s.send(ctx, *target, WebhookPayload{
		Event:     EventTest,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"message": "This is a test webhook delivery"},
	})
}
