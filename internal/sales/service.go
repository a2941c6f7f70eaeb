/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sales records counter sales against the shift they belong to.
package sales

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

// ErrInvalidSale wraps every validation failure of a sale.
var ErrInvalidSale = errors.New("invalid sale")

// RecordRequest is one sales transaction.
type RecordRequest struct {
	ProductName    string  `json:"product_name"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	DiscountAmount float64 `json:"discount_amount"`
	Shift          string  `json:"shift"`
}

// Service persists sales logs.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	clock  shift.Clock
	logger zerolog.Logger
}

// NewService creates a sales service stamping rows with the system clock.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		clock:  shift.SystemClock{},
		logger: logger.With().Str("component", "sales").Logger(),
	}
}

// WithClock overrides the clock used for CreatedAt.
func (s *Service) WithClock(c shift.Clock) *Service {
	s.clock = c
	return s
}

func (r RecordRequest) validate() (shift.Name, error) {
	if strings.TrimSpace(r.ProductName) == "" {
		return "", fmt.Errorf("%w: product_name required", ErrInvalidSale)
	}
	if r.Quantity <= 0 {
		return "", fmt.Errorf("%w: quantity must be positive", ErrInvalidSale)
	}
	if r.UnitPrice < 0 {
		return "", fmt.Errorf("%w: unit_price must not be negative", ErrInvalidSale)
	}
	if r.DiscountAmount < 0 {
		return "", fmt.Errorf("%w: discount_amount must not be negative", ErrInvalidSale)
	}
	if r.DiscountAmount > float64(r.Quantity)*r.UnitPrice {
		return "", fmt.Errorf("%w: discount_amount exceeds sale total", ErrInvalidSale)
	}
	name, err := shift.ParseName(r.Shift)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSale, err)
	}
	return name, nil
}

// Record validates and stores a sale, then publishes sales.recorded.
func (s *Service) Record(ctx context.Context, req RecordRequest, actor events.Actor) (*models.SalesLog, error) {
	name, err := req.validate()
	if err != nil {
		return nil, err
	}

	entry := &models.SalesLog{
		ID:             uuid.NewString(),
		ProductName:    strings.TrimSpace(req.ProductName),
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		DiscountAmount: req.DiscountAmount,
		Shift:          name.String(),
		RecordedBy:     actor.UserID,
		CreatedAt:      s.clock.NowUTC().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("create sales log: %w", err)
	}

	s.bus.Publish(events.EventSalesRecorded, actor.Stamp(events.Payload{
		"shift":         entry.Shift,
		"resource_type": "sales_log",
		"resource_id":   entry.ID,
		"product_name":  entry.ProductName,
		"quantity":      entry.Quantity,
		"revenue":       entry.Revenue(),
	}))

	s.logger.Debug().
		Str("shift", entry.Shift).
		Str("product", entry.ProductName).
		Int("quantity", entry.Quantity).
		Float64("revenue", entry.Revenue()).
		Msg("sale recorded")

	return entry, nil
}

// ListForWindow returns the shift's sales recorded inside w, oldest first.
// A cleared window yields an empty slice without touching the database.
func (s *Service) ListForWindow(ctx context.Context, name shift.Name, w shift.Window) ([]models.SalesLog, error) {
	logs := []models.SalesLog{}
	if w.IsCleared() {
		return logs, nil
	}

	err := s.db.WithContext(ctx).
		Where("shift = ? AND created_at >= ? AND created_at <= ?", name.String(), w.StartUTC, w.EndUTC).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list sales logs: %w", err)
	}
	return logs, nil
}
