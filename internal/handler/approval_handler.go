package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/approval"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/database"
)

// ApprovalHandler serves approval processes and instances.
type ApprovalHandler struct {
	service *approval.Service
}

// NewApprovalHandler wires the approval handlers.
func NewApprovalHandler(svc *approval.Service) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// CreateProcess stores a new process definition after validating its graph.
func (h *ApprovalHandler) CreateProcess(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req struct {
		Code        string          `json:"code"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		EntityType  string          `json:"entity_type"`
		Nodes       json.RawMessage `json:"nodes"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if req.Code == "" || req.Name == "" {
		return apperror.Validation("code and name are required")
	}
	if _, err := approval.ParseGraph(req.Nodes); err != nil {
		return err
	}

	proc := model.ApprovalProcess{
		UUID:        uuid.New().String(),
		TenantID:    tc.TenantID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		EntityType:  req.EntityType,
		Nodes:       datatypes.JSON(req.Nodes),
		IsActive:    true,
		CreatedBy:   tc.UserID,
	}
	if err := database.GetDB().Create(&proc).Error; err != nil {
		return apperror.BusinessLogic("process code already exists")
	}
	return c.JSON(http.StatusCreated, proc)
}

// ListProcesses returns the tenant's process definitions.
func (h *ApprovalHandler) ListProcesses(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var procs []model.ApprovalProcess
	err = database.GetDB().Scopes(tenant.Scoped(tc)).Order("id ASC").Find(&procs).Error
	if err != nil {
		return apperror.External("failed to list processes", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": procs, "total": len(procs)})
}

// Submit starts a new approval instance.
func (h *ApprovalHandler) Submit(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req approval.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	inst, err := h.service.Submit(tc, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inst)
}

// ListInstances returns instances, filterable by status and involvement.
func (h *ApprovalHandler) ListInstances(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	q := database.GetDB().Scopes(tenant.Scoped(tc)).Model(&model.ApprovalInstance{})
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	switch c.QueryParam("box") {
	case "submitted":
		q = q.Where("submitter_id = ?", tc.UserID)
	case "todo":
		q = q.Where("current_approver_id = ? AND status = ?", tc.UserID, model.ApprovalStatusPending)
	}

	var instances []model.ApprovalInstance
	if err := q.Order("submitted_at DESC, id DESC").Find(&instances).Error; err != nil {
		return apperror.External("failed to list approval instances", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": instances, "total": len(instances)})
}

// GetInstance returns one instance by uuid.
func (h *ApprovalHandler) GetInstance(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	inst, err := h.service.Get(tc, c.Param("uuid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inst)
}

// History returns the instance's action trail, oldest first.
func (h *ApprovalHandler) History(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	rows, err := h.service.History(tc, c.Param("uuid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows, "total": len(rows)})
}

type actionRequest struct {
	Comment          string `json:"comment"`
	TransferToUserID *uint  `json:"transfer_to_user_id"`
}

func (h *ApprovalHandler) act(c echo.Context, actionType string) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	inst, err := h.service.Act(tc, c.Param("uuid"), approval.Action{
		Type:       actionType,
		Comment:    req.Comment,
		TransferTo: req.TransferToUserID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inst)
}

// Approve advances or completes the instance.
func (h *ApprovalHandler) Approve(c echo.Context) error {
	return h.act(c, model.ApprovalActionApprove)
}

// Reject terminates the instance as rejected.
func (h *ApprovalHandler) Reject(c echo.Context) error {
	return h.act(c, model.ApprovalActionReject)
}

// Cancel terminates the instance as cancelled.
func (h *ApprovalHandler) Cancel(c echo.Context) error {
	return h.act(c, model.ApprovalActionCancel)
}

// Transfer reassigns the current node to another approver.
func (h *ApprovalHandler) Transfer(c echo.Context) error {
	return h.act(c, model.ApprovalActionTransfer)
}

// StartByEntity starts an approval for a business entity using the active
// process registered for its type.
func (h *ApprovalHandler) StartByEntity(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req struct {
		EntityType string          `json:"entity_type"`
		EntityID   string          `json:"entity_id"`
		Title      string          `json:"title"`
		Data       json.RawMessage `json:"data"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if req.EntityType == "" || req.EntityID == "" {
		return apperror.Validation("entity_type and entity_id are required")
	}

	inst, err := h.service.StartByEntity(tc, req.EntityType, req.EntityID, req.Title, req.Data)
	if err != nil {
		return err
	}
	if inst == nil {
		return c.JSON(http.StatusOK, echo.Map{"approval_required": false})
	}
	return c.JSON(http.StatusCreated, inst)
}

// StatusByEntity returns the latest instance for an entity.
func (h *ApprovalHandler) StatusByEntity(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	inst, err := h.service.StatusByEntity(tc, c.QueryParam("entity_type"), c.QueryParam("entity_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inst)
}

// CancelByEntity cancels the entity's pending instance.
func (h *ApprovalHandler) CancelByEntity(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req struct {
		EntityType string `json:"entity_type"`
		EntityID   string `json:"entity_id"`
		Comment    string `json:"comment"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	inst, err := h.service.CancelByEntity(tc, req.EntityType, req.EntityID, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inst)
}
