/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

// Audit action constants for all sensitive operations.
const (
	AuditActionUserCreate       AuditAction = "user.create"
	AuditActionUserRoleChange   AuditAction = "user.role_change"
	AuditActionUserDeactivate   AuditAction = "user.deactivate"
	AuditActionUserActivate     AuditAction = "user.activate"
	AuditActionUserDelete       AuditAction = "user.delete"
	AuditActionAPIKeyCreate     AuditAction = "apikey.create"
	AuditActionAPIKeyRevoke     AuditAction = "apikey.revoke"
	AuditActionProductionRecord AuditAction = "production.record"
	AuditActionSalesRecord      AuditAction = "sales.record"
	AuditActionHandoffCreate    AuditAction = "handoff.create"
	AuditActionWebhookCreate    AuditAction = "webhook.create"
	AuditActionWebhookDelete    AuditAction = "webhook.delete"
)

// AuditLog records sensitive operations for security and compliance.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null" json:"timestamp"`
	UserID       *string        `gorm:"type:uuid;index:idx_audit_user" json:"user_id,omitempty"` // NULL for system actions
	UserEmail    string         `gorm:"type:varchar(255)" json:"user_email,omitempty"`
	Shift        string         `gorm:"type:varchar(16)" json:"shift,omitempty"`
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null" json:"action"`
	ResourceType string         `gorm:"type:varchar(64)" json:"resource_type,omitempty"`
	ResourceID   string         `gorm:"type:uuid" json:"resource_id,omitempty"`
	Details      map[string]any `gorm:"type:jsonb;serializer:json" json:"details,omitempty"`
	IPAddress    string         `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent    string         `gorm:"type:varchar(512)" json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
