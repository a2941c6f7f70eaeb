/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/models"
)

// Models lists every table owned by the service, in creation order.
func Models() []any {
	return []any{
		&models.User{},
		&models.APIKey{},
		&models.AuditLog{},
		&models.ProductionLog{},
		&models.SalesLog{},
		&models.ShiftHandoff{},
		&models.WebhookTarget{},
		&models.WebhookLog{},
	}
}

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
