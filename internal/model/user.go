package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents the user model stored in the database.
// Platform admins carry a nil TenantID and may act cross-tenant; every other
// user belongs to exactly one tenant. The same username may exist in several
// tenants, which is why login may require tenant selection.
type User struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	UUID            string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	TenantID        *uint          `json:"tenant_id" gorm:"index:idx_users_tenant_username,unique"`
	Username        string         `json:"username" gorm:"type:varchar(100);not null;index:idx_users_tenant_username,unique"`
	Email           string         `json:"email" gorm:"type:varchar(100)"`
	FullName        string         `json:"full_name" gorm:"type:varchar(100)"`
	PasswordHash    string         `json:"-" gorm:"type:varchar(255)"`
	IsActive        bool           `json:"is_active" gorm:"default:true"`
	IsPlatformAdmin bool           `json:"is_platform_admin" gorm:"default:false"`
	IsTenantAdmin   bool           `json:"is_tenant_admin" gorm:"default:false"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "core_users"
}

// LoginLog is an append-only audit record of login attempts, written
// fire-and-forget so it never slows down or fails a login.
type LoginLog struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	TenantID      *uint     `json:"tenant_id" gorm:"index"`
	UserID        *uint     `json:"user_id" gorm:"index"`
	Username      string    `json:"username" gorm:"type:varchar(100)"`
	LoginStatus   string    `json:"login_status" gorm:"type:varchar(20)"` // success, failed
	FailureReason string    `json:"failure_reason" gorm:"type:varchar(200)"`
	IP            string    `json:"ip" gorm:"type:varchar(64)"`
	UserAgent     string    `json:"user_agent" gorm:"type:varchar(500)"`
	Browser       string    `json:"browser" gorm:"type:varchar(100)"`
	OS            string    `json:"os" gorm:"type:varchar(100)"`
	Device        string    `json:"device" gorm:"type:varchar(100)"`
	CreatedAt     time.Time `json:"created_at"`
}

func (LoginLog) TableName() string {
	return "core_login_logs"
}
