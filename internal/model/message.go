package model

import (
	"time"

	"gorm.io/gorm"
)

// Message categories
const (
	MessageCategoryApproval = "approval"
	MessageCategorySystem   = "system"
	MessageCategoryBusiness = "business"
)

// Message is an in-app notification addressed to a single user. Delivery
// over websocket is best effort; the row is the durable copy.
type Message struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	UUID       string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	TenantID   uint           `json:"tenant_id" gorm:"index;not null"`
	UserID     uint           `json:"user_id" gorm:"index;not null"`
	Category   string         `json:"category" gorm:"type:varchar(50);default:'system';index"`
	Title      string         `json:"title" gorm:"type:varchar(200);not null"`
	Content    string         `json:"content" gorm:"type:text"`
	EntityType string         `json:"entity_type" gorm:"type:varchar(100)"`
	EntityID   string         `json:"entity_id" gorm:"type:varchar(100)"`
	IsRead     bool           `json:"is_read" gorm:"default:false;index"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Message) TableName() string {
	return "core_messages"
}
