package notify

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/pkg/database"
	"github.com/riveredge/platform/pkg/logger"
)

// Notification is the payload persisted and fanned out to a user.
type Notification struct {
	TenantID   uint
	UserID     uint
	Category   string
	Title      string
	Content    string
	EntityType string
	EntityID   string
}

// Service persists notifications and pushes them over the websocket hub.
type Service struct {
	hub *Hub
}

// NewService returns a notification service over the hub. A nil hub is
// allowed; delivery then only persists the message row.
func NewService(hub *Hub) *Service {
	return &Service{hub: hub}
}

// Send stores the message and pushes it to the recipient in the background.
// It never returns an error: notification failures must stay invisible to
// the business flow that triggered them.
func (s *Service) Send(n Notification) {
	if n.UserID == 0 {
		return
	}
	if n.Category == "" {
		n.Category = model.MessageCategorySystem
	}

	msg := model.Message{
		UUID:       uuid.New().String(),
		TenantID:   n.TenantID,
		UserID:     n.UserID,
		Category:   n.Category,
		Title:      n.Title,
		Content:    n.Content,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
	}

	go func() {
		if err := database.GetDB().Create(&msg).Error; err != nil {
			logger.GetLogger().Warn("Failed to persist notification",
				zap.Uint("user_id", n.UserID), zap.Error(err))
			return
		}
		if s.hub != nil {
			s.hub.SendToUser(n.TenantID, n.UserID, echoPayload(&msg))
		}
	}()
}

// SendMany fans one notification out to several recipients, deduplicated.
func (s *Service) SendMany(userIDs []uint, n Notification) {
	seen := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		n.UserID = id
		s.Send(n)
	}
}

// echoPayload is the wire shape pushed to websocket clients.
func echoPayload(m *model.Message) map[string]interface{} {
	return map[string]interface{}{
		"type":        "message",
		"uuid":        m.UUID,
		"category":    m.Category,
		"title":       m.Title,
		"content":     m.Content,
		"entity_type": m.EntityType,
		"entity_id":   m.EntityID,
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}
}
