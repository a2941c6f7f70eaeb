/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// APIKey grants a device or integration (e.g. a shop-floor tablet) access on
// behalf of a staff member. The key never carries more than the owner's role.
type APIKey struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string     `gorm:"type:uuid;index;not null" json:"user_id"`
	Label      string     `gorm:"not null" json:"label"`
	KeyHash    string     `gorm:"uniqueIndex;not null" json:"-"`
	KeyPrefix  string     `gorm:"size:11" json:"key_prefix"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// UsableAt reports whether the key is neither revoked nor expired at t.
func (k *APIKey) UsableAt(t time.Time) bool {
	return k.RevokedAt == nil && t.Before(k.ExpiresAt)
}
