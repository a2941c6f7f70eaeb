/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package handoff stores notes staff leave for the next shift.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/models"
	"github.com/toptech5419/homebake/internal/shift"
)

// MaxNoteLength caps a handoff note, in characters.
const MaxNoteLength = 2000

// ErrInvalidHandoff wraps every validation failure of a handoff note.
var ErrInvalidHandoff = errors.New("invalid handoff")

// CreateRequest is a handoff note as submitted.
type CreateRequest struct {
	Shift string `json:"shift"`
	Note  string `json:"note"`
}

// Service persists shift handoffs.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	clock  shift.Clock
	logger zerolog.Logger
}

// NewService creates a handoff service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		clock:  shift.SystemClock{},
		logger: logger.With().Str("component", "handoff").Logger(),
	}
}

// WithClock overrides the clock used for CreatedAt.
func (s *Service) WithClock(c shift.Clock) *Service {
	s.clock = c
	return s
}

// Create stores a note and publishes handoff.created.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor events.Actor) (*models.ShiftHandoff, error) {
	note := strings.TrimSpace(req.Note)
	if note == "" {
		return nil, fmt.Errorf("%w: note required", ErrInvalidHandoff)
	}
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return nil, fmt.Errorf("%w: note longer than %d characters", ErrInvalidHandoff, MaxNoteLength)
	}
	name, err := shift.ParseName(req.Shift)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandoff, err)
	}

	entry := &models.ShiftHandoff{
		ID:        uuid.NewString(),
		Shift:     name.String(),
		UserID:    actor.UserID,
		Note:      note,
		CreatedAt: s.clock.NowUTC().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("create handoff: %w", err)
	}

	s.bus.Publish(events.EventHandoffCreated, actor.Stamp(events.Payload{
		"shift":         entry.Shift,
		"resource_type": "shift_handoff",
		"resource_id":   entry.ID,
	}))
	s.logger.Debug().Str("shift", entry.Shift).Msg("handoff created")

	return entry, nil
}

// ListForWindow returns notes left during w, newest first.
func (s *Service) ListForWindow(ctx context.Context, name shift.Name, w shift.Window) ([]models.ShiftHandoff, error) {
	notes := []models.ShiftHandoff{}
	if w.IsCleared() {
		return notes, nil
	}

	err := s.db.WithContext(ctx).
		Where("shift = ? AND created_at >= ? AND created_at <= ?", name.String(), w.StartUTC, w.EndUTC).
		Order("created_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("list handoffs: %w", err)
	}
	return notes, nil
}
