/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/models"
)

// auditedEvents maps bus events onto the audit action they record.
var auditedEvents = map[events.EventType]models.AuditAction{
	events.EventUserCreated:        models.AuditActionUserCreate,
	events.EventUserRoleChanged:    models.AuditActionUserRoleChange,
	events.EventUserDeactivated:    models.AuditActionUserDeactivate,
	events.EventUserActivated:      models.AuditActionUserActivate,
	events.EventUserDeleted:        models.AuditActionUserDelete,
	events.EventAuditAPIKeyCreate:  models.AuditActionAPIKeyCreate,
	events.EventAuditAPIKeyRevoke:  models.AuditActionAPIKeyRevoke,
	events.EventProductionRecorded: models.AuditActionProductionRecord,
	events.EventSalesRecorded:      models.AuditActionSalesRecord,
	events.EventHandoffCreated:     models.AuditActionHandoffCreate,
	events.EventAuditWebhookCreate: models.AuditActionWebhookCreate,
	events.EventAuditWebhookDelete: models.AuditActionWebhookDelete,
}

// Payload keys lifted into AuditLog columns. Everything else lands in Details.
var extractedKeys = map[string]bool{
	"user_id":       true,
	"user_email":    true,
	"shift":         true,
	"resource_type": true,
	"resource_id":   true,
	"ip_address":    true,
	"user_agent":    true,
}

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

type subscription struct {
	eventType events.EventType
	action    models.AuditAction
	ch        events.Subscriber
}

// Start subscribes to audited events and records them until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.run(ctx, s.subscribe())
}

func (s *Service) subscribe() []subscription {
	subs := make([]subscription, 0, len(auditedEvents))
	for eventType, action := range auditedEvents {
		subs = append(subs, subscription{eventType: eventType, action: action, ch: s.bus.Subscribe(eventType)})
	}
	return subs
}

func (s *Service) run(ctx context.Context, subs []subscription) {
	s.logger.Info().Int("events", len(subs)).Msg("audit service started")

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
					s.logAuditEntry(ctx, sub.action, payload)
				}
			}
		}(sub)
	}

	<-ctx.Done()
	s.logger.Info().Msg("audit service stopping")
	for _, sub := range subs {
		s.bus.Unsubscribe(sub.eventType, sub.ch)
	}
	wg.Wait()
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{
		Action:  action,
		Details: make(map[string]any),
	}

	if userID, ok := payload["user_id"].(string); ok && userID != "" {
		entry.UserID = &userID
	}
	entry.UserEmail, _ = payload["user_email"].(string)
	entry.Shift, _ = payload["shift"].(string)
	entry.ResourceType, _ = payload["resource_type"].(string)
	entry.ResourceID, _ = payload["resource_id"].(string)
	entry.IPAddress, _ = payload["ip_address"].(string)
	entry.UserAgent, _ = payload["user_agent"].(string)

	for k, v := range payload {
		if !extractedKeys[k] {
			entry.Details[k] = v
		}
	}

	if err := s.Log(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly (for non-event-bus actions).
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")

	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	UserID    *string
	Shift     *string
	Action    *models.AuditAction
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// MaxQueryLimit caps a single page of audit results.
const MaxQueryLimit = 500

// Query retrieves audit logs with filters, newest first, plus the total match count.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Shift != nil {
		query = query.Where("shift = ?", *filters.Shift)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	query = query.Limit(limit)
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
