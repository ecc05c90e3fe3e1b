package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Approval instance statuses
const (
	ApprovalStatusPending   = "pending"
	ApprovalStatusApproved  = "approved"
	ApprovalStatusRejected  = "rejected"
	ApprovalStatusCancelled = "cancelled"
)

// Approval actions recorded in history
const (
	ApprovalActionSubmit   = "submit"
	ApprovalActionApprove  = "approve"
	ApprovalActionReject   = "reject"
	ApprovalActionCancel   = "cancel"
	ApprovalActionTransfer = "transfer"
)

// ApprovalProcess is a reusable definition of an approval flow. Nodes holds
// the serialized graph (node_id -> {type, approver, edges}); the engine only
// ever reads it, all graph evaluation happens in memory.
type ApprovalProcess struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	UUID        string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	TenantID    uint           `json:"tenant_id" gorm:"index;not null"`
	Code        string         `json:"code" gorm:"type:varchar(100);not null;index"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	Description string         `json:"description" gorm:"type:text"`
	EntityType  string         `json:"entity_type" gorm:"type:varchar(100);index"`
	Nodes       datatypes.JSON `json:"nodes"`
	IsActive    bool           `json:"is_active" gorm:"default:true"`
	CreatedBy   uint           `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (ApprovalProcess) TableName() string {
	return "core_approval_processes"
}

// ApprovalInstance is one run of a process against a business entity.
// While status is pending, CurrentNode and CurrentApproverID are both set;
// a terminal status clears them and stamps CompletedAt.
type ApprovalInstance struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	UUID              string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	TenantID          uint           `json:"tenant_id" gorm:"index;not null"`
	ProcessUUID       string         `json:"process_uuid" gorm:"type:varchar(36);index;not null"`
	EntityType        string         `json:"entity_type" gorm:"type:varchar(100);index:idx_approval_instances_entity"`
	EntityID          string         `json:"entity_id" gorm:"type:varchar(100);index:idx_approval_instances_entity"`
	Title             string         `json:"title" gorm:"type:varchar(200)"`
	Data              datatypes.JSON `json:"data"`
	Status            string         `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CurrentNode       string         `json:"current_node" gorm:"type:varchar(100)"`
	CurrentApproverID *uint          `json:"current_approver_id" gorm:"index"`
	SubmitterID       uint           `json:"submitter_id" gorm:"index;not null"`
	SubmittedAt       time.Time      `json:"submitted_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

func (ApprovalInstance) TableName() string {
	return "core_approval_instances"
}

// ApprovalHistory is the append-only trail of actions taken on an instance,
// recording the node and approver before and after each transition.
type ApprovalHistory struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	TenantID       uint      `json:"tenant_id" gorm:"index;not null"`
	InstanceUUID   string    `json:"instance_uuid" gorm:"type:varchar(36);index;not null"`
	Action         string    `json:"action" gorm:"type:varchar(20);not null"`
	ActionBy       uint      `json:"action_by" gorm:"not null"`
	ActionAt       time.Time `json:"action_at"`
	Comment        string    `json:"comment" gorm:"type:text"`
	FromNode       string    `json:"from_node" gorm:"type:varchar(100)"`
	ToNode         string    `json:"to_node" gorm:"type:varchar(100)"`
	FromApproverID *uint     `json:"from_approver_id"`
	ToApproverID   *uint     `json:"to_approver_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func (ApprovalHistory) TableName() string {
	return "core_approval_histories"
}
