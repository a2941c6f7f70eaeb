/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ProductionLog records one baked batch.
type ProductionLog struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	ProductName string    `gorm:"type:varchar(128);index;not null" json:"product_name"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	Shift       string    `gorm:"type:varchar(16);index:idx_production_shift_created,priority:1;not null" json:"shift"`
	RecordedBy  string    `gorm:"type:uuid;index" json:"recorded_by"`
	Notes       string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time `gorm:"index:idx_production_shift_created,priority:2" json:"created_at"`
}

// TableName returns the table name for GORM.
func (ProductionLog) TableName() string {
	return "production_logs"
}

// SalesLog records one sales transaction.
type SalesLog struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	ProductName    string    `gorm:"type:varchar(128);index;not null" json:"product_name"`
	Quantity       int       `gorm:"not null" json:"quantity"`
	UnitPrice      float64   `json:"unit_price"`
	DiscountAmount float64   `json:"discount_amount"`
	Shift          string    `gorm:"type:varchar(16);index:idx_sales_shift_created,priority:1;not null" json:"shift"`
	RecordedBy     string    `gorm:"type:uuid;index" json:"recorded_by"`
	CreatedAt      time.Time `gorm:"index:idx_sales_shift_created,priority:2" json:"created_at"`
}

// TableName returns the table name for GORM.
func (SalesLog) TableName() string {
	return "sales_logs"
}

// Revenue is the amount collected for the sale.
func (s *SalesLog) Revenue() float64 {
	return float64(s.Quantity)*s.UnitPrice - s.DiscountAmount
}

// ShiftHandoff is a note left by staff for the next shift.
type ShiftHandoff struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Shift     string    `gorm:"type:varchar(16);index:idx_handoff_shift_created,priority:1;not null" json:"shift"`
	UserID    string    `gorm:"type:uuid;index" json:"user_id"`
	Note      string    `gorm:"type:text;not null" json:"note"`
	CreatedAt time.Time `gorm:"index:idx_handoff_shift_created,priority:2" json:"created_at"`
}

// TableName returns the table name for GORM.
func (ShiftHandoff) TableName() string {
	return "shift_handoffs"
}
