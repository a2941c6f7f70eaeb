/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package staff manages bakery staff accounts and their roles.
package staff

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/models"
)

var (
	ErrNotFound     = errors.New("staff member not found")
	ErrInvalidInput = errors.New("invalid staff input")
	ErrEmailTaken   = errors.New("email already registered")
	// ErrLastOwner guards against leaving the bakery without an active owner.
	ErrLastOwner = errors.New("cannot remove the last active owner")
)

// CreateRequest describes a new staff account.
type CreateRequest struct {
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  models.RoleName `json:"role"`
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Role   models.RoleName
	Active *bool
}

// Service manages users.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a staff service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "staff").Logger(),
	}
}

// List returns staff ordered by name.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.User, error) {
	users := []models.User{}
	query := s.db.WithContext(ctx).Model(&models.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", models.NormalizeRole(filter.Role))
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	if err := query.Order("name ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return users, nil
}

// Get loads a user by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}
	return &user, nil
}

// Create adds an active staff member.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor events.Actor) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, fmt.Errorf("%w: email: %v", ErrInvalidInput, err)
	}
	email := strings.ToLower(addr.Address)
	role := models.NormalizeRole(req.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, req.Role)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	user := &models.User{
		ID:     uuid.NewString(),
		Name:   name,
		Email:  email,
		Role:   role,
		Active: true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create staff: %w", err)
	}

	s.publish(events.EventUserCreated, user, actor, events.Payload{"role": string(role)})
	return user, nil
}

// UpdateRole changes a user's role.
func (s *Service) UpdateRole(ctx context.Context, id string, role models.RoleName, actor events.Actor) (*models.User, error) {
	role = models.NormalizeRole(role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	var (
		user    *models.User
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = s.getTx(tx, id); err != nil {
			return err
		}
		if user.Role == role {
			return nil
		}
		if user.IsOwner() && user.Active {
			if err := s.ensureAnotherOwner(tx, user.ID); err != nil {
				return err
			}
		}
		if err := tx.Model(user).Update("role", role).Error; err != nil {
			return err
		}
		user.Role = role
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(events.EventUserRoleChanged, user, actor, events.Payload{"role": string(role)})
	}
	return user, nil
}

// SetActive activates or deactivates a user.
func (s *Service) SetActive(ctx context.Context, id string, active bool, actor events.Actor) (*models.User, error) {
	var (
		user    *models.User
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = s.getTx(tx, id); err != nil {
			return err
		}
		if user.Active == active {
			return nil
		}
		if !active && user.IsOwner() {
			if err := s.ensureAnotherOwner(tx, user.ID); err != nil {
				return err
			}
		}
		if err := tx.Model(user).Update("active", active).Error; err != nil {
			return err
		}
		user.Active = active
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return user, nil
	}

	eventType := events.EventUserDeactivated
	if active {
		eventType = events.EventUserActivated
	}
	s.publish(eventType, user, actor, nil)
	return user, nil
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, id string, actor events.Actor) error {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = s.getTx(tx, id); err != nil {
			return err
		}
		if user.IsOwner() && user.Active {
			if err := s.ensureAnotherOwner(tx, user.ID); err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		return err
	}

	s.publish(events.EventUserDeleted, user, actor, nil)
	return nil
}

func (s *Service) getTx(tx *gorm.DB, id string) (*models.User, error) {
	var user models.User
	err := tx.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) ensureAnotherOwner(tx *gorm.DB, excludeID string) error {
	var owners int64
	err := tx.Model(&models.User{}).
		Where("role = ? AND active = ? AND id <> ?", models.RoleOwner, true, excludeID).
		Count(&owners).Error
	if err != nil {
		return err
	}
	if owners == 0 {
		return ErrLastOwner
	}
	return nil
}

func (s *Service) publish(eventType events.EventType, user *models.User, actor events.Actor, extra events.Payload) {
	payload := actor.Stamp(events.Payload{
		"resource_type": "user",
		"resource_id":   user.ID,
		"target_email":  user.Email,
	})
	for k, v := range extra {
		payload[k] = v
	}
	s.bus.Publish(eventType, payload)
	s.logger.Info().Str("event", string(eventType)).Str("user_id", user.ID).Msg("staff change")
}
