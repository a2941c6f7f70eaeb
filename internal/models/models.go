/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// RoleName enumerates the RBAC roles.
type RoleName string

const (
	RoleOwner    RoleName = "owner"
	RoleManager  RoleName = "manager"
	RoleSalesRep RoleName = "sales_rep"
)

// Roles lists every assignable role.
var Roles = []RoleName{RoleOwner, RoleManager, RoleSalesRep}

// NormalizeRole maps legacy and display spellings onto canonical roles.
// Unknown values are returned unchanged so Valid can reject them.
func NormalizeRole(role RoleName) RoleName {
	switch strings.ToLower(strings.TrimSpace(string(role))) {
	case "owner", "admin":
		return RoleOwner
	case "manager":
		return RoleManager
	case "sales_rep", "sales_representative", "salesrep", "sales":
		return RoleSalesRep
	}
	return role
}

// Valid reports whether role is a canonical role.
func (r RoleName) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleSalesRep:
		return true
	}
	return false
}

// User is a staff account. Identity itself lives with the auth provider;
// this row carries the bakery-side role and status.
type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Role      RoleName  `gorm:"type:varchar(16);index" json:"role"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOwner reports whether the user holds the owner role.
func (u *User) IsOwner() bool {
	return NormalizeRole(u.Role) == RoleOwner
}
