package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/notify"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/database"
)

// MessageHandler serves the user's notification inbox and the websocket
// subscription endpoint.
type MessageHandler struct {
	hub *notify.Hub
}

// NewMessageHandler wires the message handlers.
func NewMessageHandler(hub *notify.Hub) *MessageHandler {
	return &MessageHandler{hub: hub}
}

// List returns the authenticated user's messages, newest first.
func (h *MessageHandler) List(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	limit, offset := parsePagination(c, 50)
	q := database.GetDB().Scopes(tenant.Scoped(tc)).
		Where("user_id = ?", tc.UserID)
	if c.QueryParam("unread") == "true" {
		q = q.Where("is_read = ?", false)
	}

	var messages []model.Message
	err = q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&messages).Error
	if err != nil {
		return apperror.External("failed to list messages", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": messages, "total": len(messages)})
}

// MarkRead marks one message as read.
func (h *MessageHandler) MarkRead(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var msg model.Message
	err = database.GetDB().Scopes(tenant.Scoped(tc)).
		Where("uuid = ? AND user_id = ?", c.Param("uuid"), tc.UserID).
		First(&msg).Error
	if err != nil {
		return apperror.NotFound("message not found")
	}
	if !msg.IsRead {
		now := time.Now()
		msg.IsRead = true
		msg.ReadAt = &now
		if err := database.GetDB().Save(&msg).Error; err != nil {
			return apperror.External("failed to update message", err)
		}
	}
	return c.JSON(http.StatusOK, msg)
}

// MarkAllRead marks every unread message of the user as read.
func (h *MessageHandler) MarkAllRead(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	now := time.Now()
	err = database.GetDB().Model(&model.Message{}).
		Where("tenant_id = ? AND user_id = ? AND is_read = ?", tc.TenantID, tc.UserID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
	if err != nil {
		return apperror.External("failed to update messages", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Subscribe upgrades to a websocket delivering the user's notifications.
func (h *MessageHandler) Subscribe(c echo.Context) error {
	return h.hub.ServeWS(c)
}
