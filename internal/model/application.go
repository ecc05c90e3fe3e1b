package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Application is a bundle of business routes discovered as a plugin,
// installable per tenant. The registry is the only writer of this table.
// The (tenant_id, code) pair is unique among live rows via a partial index
// created in database.Migrate, so a deleted app can be rediscovered.
type Application struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	UUID           string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	TenantID       uint           `json:"tenant_id" gorm:"index;not null"`
	Code           string         `json:"code" gorm:"type:varchar(100);not null;index"`
	Name           string         `json:"name" gorm:"type:varchar(100);not null"`
	Description    string         `json:"description" gorm:"type:text"`
	Icon           string         `json:"icon" gorm:"type:varchar(100)"`
	Version        string         `json:"version" gorm:"type:varchar(50);default:'1.0.0'"`
	RoutePath      string         `json:"route_path" gorm:"type:varchar(200)"`
	EntryPoint     string         `json:"entry_point" gorm:"type:varchar(200)"`
	MenuConfig     datatypes.JSON `json:"menu_config"`
	PermissionCode string         `json:"permission_code" gorm:"type:varchar(100)"`
	IsSystem       bool           `json:"is_system" gorm:"default:false"`
	IsInstalled    bool           `json:"is_installed" gorm:"default:false"`
	IsActive       bool           `json:"is_active" gorm:"default:true"`
	SortOrder      int            `json:"sort_order" gorm:"default:0"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Application) TableName() string {
	return "core_applications"
}

// Menu is a navigation row derived from an application's menu_config.
// Rows are kept in lockstep with the owning application's lifecycle.
type Menu struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	UUID            string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	TenantID        uint           `json:"tenant_id" gorm:"index;not null"`
	ApplicationUUID string         `json:"application_uuid" gorm:"type:varchar(36);index"`
	ParentID        *uint          `json:"parent_id" gorm:"index"`
	Name            string         `json:"name" gorm:"type:varchar(100);not null"`
	Path            string         `json:"path" gorm:"type:varchar(200)"`
	Icon            string         `json:"icon" gorm:"type:varchar(100)"`
	Component       string         `json:"component" gorm:"type:varchar(200)"`
	PermissionCode  string         `json:"permission_code" gorm:"type:varchar(100)"`
	SortOrder       int            `json:"sort_order" gorm:"default:0"`
	IsActive        bool           `json:"is_active" gorm:"default:true"`
	IsExternal      bool           `json:"is_external" gorm:"default:false"`
	ExternalURL     string         `json:"external_url" gorm:"type:varchar(500)"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Menu) TableName() string {
	return "core_menus"
}
