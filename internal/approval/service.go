package approval

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/notify"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/database"
	"github.com/riveredge/platform/pkg/logger"
	"github.com/riveredge/platform/pkg/metrics"
)

// Callback runs after an instance completes, for business objects referenced
// by a known key in the instance data (e.g. "order_uuid"). A callback error
// is logged and never unwinds the approval.
type Callback func(inst *model.ApprovalInstance, value string, approved bool) error

// Service persists approval state and drives transitions through the graph
// engine. All reads and writes are tenant scoped.
type Service struct {
	notifier *notify.Service
	resolver Resolver

	mu        sync.RWMutex
	callbacks map[string]Callback
}

// NewService builds an approval service. resolver may be nil, in which case
// role and department approvers fall back to the submitter.
func NewService(notifier *notify.Service, resolver Resolver) *Service {
	return &Service{
		notifier:  notifier,
		resolver:  resolver,
		callbacks: map[string]Callback{},
	}
}

// RegisterCallback binds a post-completion callback to a data key. Business
// modules register at startup, e.g. for "order_uuid".
func (s *Service) RegisterCallback(dataKey string, cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[dataKey] = cb
}

// SubmitRequest starts a new approval instance.
type SubmitRequest struct {
	ProcessUUID string          `json:"process_uuid"`
	Title       string          `json:"title"`
	Data        json.RawMessage `json:"data"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
}

// Submit creates a pending instance positioned on the first approvable node
// and appends the submit history row. Instance and history share one
// transaction; the notification to the first approver does not.
func (s *Service) Submit(tc *tenant.Context, req *SubmitRequest) (*model.ApprovalInstance, error) {
	db := database.GetDB()

	if req.Title == "" {
		return nil, apperror.Validation("title is required")
	}

	var proc model.ApprovalProcess
	err := db.Scopes(tenant.Scoped(tc)).Where("uuid = ?", req.ProcessUUID).First(&proc).Error
	if err != nil {
		return nil, apperror.NotFound("approval process not found")
	}
	if !proc.IsActive {
		return nil, apperror.Validation("approval process is not active")
	}

	g, err := ParseGraph(proc.Nodes)
	if err != nil {
		return nil, err
	}
	tr, err := Begin(g, tc.TenantID, tc.UserID, s.resolver)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	inst := model.ApprovalInstance{
		UUID:              uuid.New().String(),
		TenantID:          tc.TenantID,
		ProcessUUID:       proc.UUID,
		EntityType:        req.EntityType,
		EntityID:          req.EntityID,
		Title:             req.Title,
		Data:              datatypes.JSON(req.Data),
		Status:            tr.Status,
		CurrentNode:       tr.CurrentNode,
		CurrentApproverID: tr.CurrentApproverID,
		SubmitterID:       tc.UserID,
		SubmittedAt:       now,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&inst).Error; err != nil {
			return apperror.External("failed to create approval instance", err)
		}
		history := tr.History
		history.TenantID = tc.TenantID
		history.InstanceUUID = inst.UUID
		if err := tx.Create(&history).Error; err != nil {
			return apperror.External("failed to record approval history", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApprovalActionCounter.WithLabelValues(model.ApprovalActionSubmit).Inc()
	if tr.CurrentApproverID != nil {
		s.notifier.Send(notify.Notification{
			TenantID:   tc.TenantID,
			UserID:     *tr.CurrentApproverID,
			Category:   model.MessageCategoryApproval,
			Title:      "Approval requested: " + inst.Title,
			Content:    "An approval is waiting for your action.",
			EntityType: "approval_instance",
			EntityID:   inst.UUID,
		})
	}
	return &inst, nil
}

// Act applies an approve/reject/cancel/transfer action to a pending
// instance. The instance update and history row share a transaction;
// callbacks and notifications run after commit and cannot fail the action.
func (s *Service) Act(tc *tenant.Context, instanceUUID string, act Action) (*model.ApprovalInstance, error) {
	db := database.GetDB()
	act.ActorID = tc.UserID

	var inst model.ApprovalInstance
	err := db.Scopes(tenant.Scoped(tc)).Where("uuid = ?", instanceUUID).First(&inst).Error
	if err != nil {
		return nil, apperror.NotFound("approval instance not found")
	}

	var proc model.ApprovalProcess
	err = db.Scopes(tenant.Scoped(tc)).Where("uuid = ?", inst.ProcessUUID).First(&proc).Error
	if err != nil {
		return nil, apperror.NotFound("approval process not found")
	}
	g, err := ParseGraph(proc.Nodes)
	if err != nil {
		return nil, err
	}

	tr, err := Step(g, &inst, act, s.resolver)
	if err != nil {
		return nil, err
	}

	prevApprover := inst.CurrentApproverID
	inst.Status = tr.Status
	inst.CurrentNode = tr.CurrentNode
	inst.CurrentApproverID = tr.CurrentApproverID
	if tr.Completed {
		now := time.Now()
		inst.CompletedAt = &now
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&inst).Error; err != nil {
			return apperror.External("failed to update approval instance", err)
		}
		history := tr.History
		history.TenantID = tc.TenantID
		history.InstanceUUID = inst.UUID
		if err := tx.Create(&history).Error; err != nil {
			return apperror.External("failed to record approval history", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApprovalActionCounter.WithLabelValues(act.Type).Inc()

	if tr.Completed && (tr.Status == model.ApprovalStatusApproved || tr.Status == model.ApprovalStatusRejected) {
		s.runCallbacks(&inst, tr.Status == model.ApprovalStatusApproved)
	}
	s.notifyTransition(tc, &inst, act, prevApprover)
	return &inst, nil
}

// runCallbacks scans the instance data for keys with a registered callback
// and invokes each exactly once. Failures are logged; the approval stands.
func (s *Service) runCallbacks(inst *model.ApprovalInstance, approved bool) {
	log := logger.GetLogger()

	var data map[string]interface{}
	if len(inst.Data) > 0 {
		if err := json.Unmarshal(inst.Data, &data); err != nil {
			log.Warn("Approval data is not an object, skipping callbacks",
				zap.String("instance_uuid", inst.UUID), zap.Error(err))
			return
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, cb := range s.callbacks {
		raw, ok := data[key]
		if !ok {
			continue
		}
		value, _ := raw.(string)
		if err := cb(inst, value, approved); err != nil {
			log.Error("Approval completion callback failed",
				zap.String("instance_uuid", inst.UUID),
				zap.String("data_key", key),
				zap.Error(err))
		}
	}
}

// notifyTransition fans out best-effort messages to the submitter, the
// previous approver, and the new approver if any.
func (s *Service) notifyTransition(tc *tenant.Context, inst *model.ApprovalInstance, act Action, prevApprover *uint) {
	recipients := []uint{inst.SubmitterID}
	if prevApprover != nil {
		recipients = append(recipients, *prevApprover)
	}
	if inst.CurrentApproverID != nil {
		recipients = append(recipients, *inst.CurrentApproverID)
	}

	s.notifier.SendMany(recipients, notify.Notification{
		TenantID:   tc.TenantID,
		Category:   model.MessageCategoryApproval,
		Title:      "Approval " + act.Type + ": " + inst.Title,
		Content:    "Approval status is now " + inst.Status + ".",
		EntityType: "approval_instance",
		EntityID:   inst.UUID,
	})
}

// Get returns a tenant-scoped instance by uuid.
func (s *Service) Get(tc *tenant.Context, instanceUUID string) (*model.ApprovalInstance, error) {
	var inst model.ApprovalInstance
	err := database.GetDB().Scopes(tenant.Scoped(tc)).Where("uuid = ?", instanceUUID).First(&inst).Error
	if err != nil {
		return nil, apperror.NotFound("approval instance not found")
	}
	return &inst, nil
}

// History returns the action trail of an instance, oldest first.
func (s *Service) History(tc *tenant.Context, instanceUUID string) ([]model.ApprovalHistory, error) {
	if _, err := s.Get(tc, instanceUUID); err != nil {
		return nil, err
	}
	var rows []model.ApprovalHistory
	err := database.GetDB().Scopes(tenant.Scoped(tc)).
		Where("instance_uuid = ?", instanceUUID).
		Order("action_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperror.External("failed to load approval history", err)
	}
	return rows, nil
}

// StartByEntity starts an approval for a business entity, picking the active
// process registered for its type. Business modules call this instead of
// knowing process uuids.
func (s *Service) StartByEntity(tc *tenant.Context, entityType, entityID, title string, data json.RawMessage) (*model.ApprovalInstance, error) {
	var proc model.ApprovalProcess
	err := database.GetDB().Scopes(tenant.Scoped(tc)).
		Where("entity_type = ? AND is_active = ?", entityType, true).
		Order("id ASC").
		First(&proc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No process registered: the caller falls back to its own
			// review path.
			return nil, nil
		}
		return nil, apperror.External("failed to look up approval process", err)
	}

	if existing, err := s.pendingByEntity(tc, entityType, entityID); err == nil && existing != nil {
		return nil, apperror.BusinessLogic("entity already has a pending approval")
	}

	return s.Submit(tc, &SubmitRequest{
		ProcessUUID: proc.UUID,
		Title:       title,
		Data:        data,
		EntityType:  entityType,
		EntityID:    entityID,
	})
}

func (s *Service) pendingByEntity(tc *tenant.Context, entityType, entityID string) (*model.ApprovalInstance, error) {
	var inst model.ApprovalInstance
	err := database.GetDB().Scopes(tenant.Scoped(tc)).
		Where("entity_type = ? AND entity_id = ? AND status = ?", entityType, entityID, model.ApprovalStatusPending).
		First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.External("failed to query approvals", err)
	}
	return &inst, nil
}

// StatusByEntity returns the latest instance for an entity, or NotFound.
func (s *Service) StatusByEntity(tc *tenant.Context, entityType, entityID string) (*model.ApprovalInstance, error) {
	var inst model.ApprovalInstance
	err := database.GetDB().Scopes(tenant.Scoped(tc)).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("submitted_at DESC, id DESC").
		First(&inst).Error
	if err != nil {
		return nil, apperror.NotFound("no approval found for entity")
	}
	return &inst, nil
}

// ActByEntity applies an action to the entity's pending instance.
func (s *Service) ActByEntity(tc *tenant.Context, entityType, entityID string, act Action) (*model.ApprovalInstance, error) {
	inst, err := s.pendingByEntity(tc, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, apperror.NotFound("no pending approval for entity")
	}
	return s.Act(tc, inst.UUID, act)
}

// CancelByEntity cancels the entity's pending instance.
func (s *Service) CancelByEntity(tc *tenant.Context, entityType, entityID, comment string) (*model.ApprovalInstance, error) {
	return s.ActByEntity(tc, entityType, entityID, Action{
		Type:    model.ApprovalActionCancel,
		Comment: comment,
	})
}
