/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package production records baked batches against the shift they belong to.
package production

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/models"
	"github.com/toptech5419/homebake/internal/shift"
)

// ErrInvalidRecord wraps every validation failure of a production record.
var ErrInvalidRecord = errors.New("invalid production record")

// RecordRequest is one batch coming out of the oven.
type RecordRequest struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Shift       string  `json:"shift"`
	Notes       string  `json:"notes,omitempty"`
}

// Service persists production logs.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	clock  shift.Clock
	logger zerolog.Logger
}

// NewService creates a production service stamping rows with the system clock.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		clock:  shift.SystemClock{},
		logger: logger.With().Str("component", "production").Logger(),
	}
}

// WithClock overrides the clock used for CreatedAt.
func (s *Service) WithClock(c shift.Clock) *Service {
	s.clock = c
	return s
}

func (r RecordRequest) validate() (shift.Name, error) {
	if strings.TrimSpace(r.ProductName) == "" {
		return "", fmt.Errorf("%w: product_name required", ErrInvalidRecord)
	}
	if r.Quantity <= 0 {
		return "", fmt.Errorf("%w: quantity must be positive", ErrInvalidRecord)
	}
	if r.UnitPrice < 0 {
		return "", fmt.Errorf("%w: unit_price must not be negative", ErrInvalidRecord)
	}
	name, err := shift.ParseName(r.Shift)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return name, nil
}

// Record validates and stores a batch, then publishes production.recorded.
func (s *Service) Record(ctx context.Context, req RecordRequest, actor events.Actor) (*models.ProductionLog, error) {
	name, err := req.validate()
	if err != nil {
		return nil, err
	}

	entry := &models.ProductionLog{
		ID:          uuid.NewString(),
		ProductName: strings.TrimSpace(req.ProductName),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Shift:       name.String(),
		RecordedBy:  actor.UserID,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   s.clock.NowUTC().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("create production log: %w", err)
	}

	s.bus.Publish(events.EventProductionRecorded, actor.Stamp(events.Payload{
		"shift":         entry.Shift,
		"resource_type": "production_log",
		"resource_id":   entry.ID,
		"product_name":  entry.ProductName,
		"quantity":      entry.Quantity,
	}))

	s.logger.Debug().
		Str("shift", entry.Shift).
		Str("product", entry.ProductName).
		Int("quantity", entry.Quantity).
		Msg("production recorded")

	return entry, nil
}

// ListForWindow returns the shift's batches recorded inside w, oldest first.
// A cleared window has no rows by definition and is not queried.
func (s *Service) ListForWindow(ctx context.Context, name shift.Name, w shift.Window) ([]models.ProductionLog, error) {
	logs := []models.ProductionLog{}
	if w.IsCleared() {
		return logs, nil
	}

	err := s.db.WithContext(ctx).
		Where("shift = ? AND created_at >= ? AND created_at <= ?", name.String(), w.StartUTC, w.EndUTC).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list production logs: %w", err)
	}
	return logs, nil
}
