package model

import (
	"time"

	"gorm.io/gorm"
)

// Relation modes. Explicit edges are push or manual; derived edges are
// computed at read time and never stored.
const (
	RelationModePush    = "push"
	RelationModeDerived = "derived"
	RelationModeManual  = "manual"
)

// DocumentRelation is a directed edge between two business documents,
// e.g. a sales order deriving a production demand. There is no referential
// integrity to the documents themselves; either endpoint may not exist.
// Edge uniqueness among live rows is enforced by a partial index created
// in database.Migrate, so a deleted edge can be recreated.
type DocumentRelation struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	UUID         string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	TenantID     uint           `json:"tenant_id" gorm:"index;not null"`
	SourceType   string         `json:"source_type" gorm:"type:varchar(100);not null;index:idx_document_relations_source"`
	SourceID     string         `json:"source_id" gorm:"type:varchar(100);not null;index:idx_document_relations_source"`
	TargetType   string         `json:"target_type" gorm:"type:varchar(100);not null;index:idx_document_relations_target"`
	TargetID     string         `json:"target_id" gorm:"type:varchar(100);not null;index:idx_document_relations_target"`
	RelationMode string         `json:"relation_mode" gorm:"type:varchar(50);default:'manual'"`
	BusinessMode string         `json:"business_mode" gorm:"type:varchar(100)"`
	DemandID     string         `json:"demand_id" gorm:"type:varchar(100)"`
	RelationDesc string         `json:"relation_desc" gorm:"type:varchar(500)"`
	CreatedBy    uint           `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

func (DocumentRelation) TableName() string {
	return "core_document_relations"
}
