package model

import (
	"time"

	"gorm.io/gorm"
)

// Tenant statuses
const (
	TenantStatusActive    = "active"
	TenantStatusInactive  = "inactive"
	TenantStatusSuspended = "suspended"
)

// Tenant represents a customer organisation, the outer axis of data isolation.
// Tenants are created at signup and never hard-deleted.
type Tenant struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	UUID       string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	Name       string         `json:"name" gorm:"type:varchar(100);not null"`
	Domain     string         `json:"domain" gorm:"type:varchar(100);uniqueIndex"`
	Status     string         `json:"status" gorm:"type:varchar(20);default:'active'"`
	Plan       string         `json:"plan" gorm:"type:varchar(50);default:'free'"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	MaxUsers   int            `json:"max_users" gorm:"default:50"`
	MaxStorage int64          `json:"max_storage" gorm:"default:10737418240"` // bytes
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Tenant) TableName() string {
	return "core_tenants"
}
