package menu

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/pkg/database"
	"github.com/riveredge/platform/pkg/logger"
)

// Node is one entry of an application's menu_config navigation tree.
type Node struct {
	Name           string `json:"name"`
	Path           string `json:"path"`
	Icon           string `json:"icon"`
	Component      string `json:"component"`
	PermissionCode string `json:"permission_code"`
	SortOrder      int    `json:"sort_order"`
	IsExternal     bool   `json:"is_external"`
	ExternalURL    string `json:"external_url"`
	Children       []Node `json:"children,omitempty"`
}

// flatNode is a tree entry flattened to a list, parent-before-child.
// ParentIndex is -1 for roots, otherwise an index into the same list.
type flatNode struct {
	Node        Node
	ParentIndex int
}

// ParseMenuConfig decodes a menu_config document. An empty document yields
// an empty tree, not an error.
func ParseMenuConfig(raw []byte) ([]Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var nodes []Node
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, apperror.Validation("invalid menu_config: " + err.Error())
	}
	return nodes, nil
}

// flatten walks the tree depth-first so every parent precedes its children.
func flatten(nodes []Node) []flatNode {
	var out []flatNode
	var walk func(nodes []Node, parent int)
	walk = func(nodes []Node, parent int) {
		for _, n := range nodes {
			children := n.Children
			n.Children = nil
			out = append(out, flatNode{Node: n, ParentIndex: parent})
			walk(children, len(out)-1)
		}
	}
	walk(nodes, -1)
	return out
}

// menuKey identifies a row across reconciliations. Path is the stable
// identity when present; nested groups without a path fall back to name.
func menuKey(name, path string) string {
	if path != "" {
		return path
	}
	return "name:" + name
}

// Synchronizer keeps core_menus in lockstep with application manifests.
type Synchronizer struct {
	cache *Cache
}

// NewSynchronizer returns a Synchronizer backed by the given cache.
func NewSynchronizer(cache *Cache) *Synchronizer {
	return &Synchronizer{cache: cache}
}

// SyncApp reconciles the menu rows of one application against its current
// menu_config: rows are updated in place by key, missing ones created, and
// vanished ones soft-deleted, so per-row customisations survive a re-scan.
// The menu cache is NOT invalidated here; callers flush once per batch.
func (s *Synchronizer) SyncApp(tenantID uint, app *model.Application) error {
	log := logger.GetLogger()

	nodes, err := ParseMenuConfig(app.MenuConfig)
	if err != nil {
		return err
	}
	flat := flatten(nodes)

	return database.GetDB().Transaction(func(tx *gorm.DB) error {
		var existing []model.Menu
		if err := tx.Where("tenant_id = ? AND application_uuid = ?", tenantID, app.UUID).
			Find(&existing).Error; err != nil {
			return apperror.External("failed to load menus", err)
		}
		byKey := make(map[string]*model.Menu, len(existing))
		for i := range existing {
			byKey[menuKey(existing[i].Name, existing[i].Path)] = &existing[i]
		}

		seen := make(map[uint]bool, len(flat))
		rowIDs := make([]uint, len(flat))
		for i, fn := range flat {
			var parentID *uint
			if fn.ParentIndex >= 0 {
				parentID = &rowIDs[fn.ParentIndex]
			}

			if row, ok := byKey[menuKey(fn.Node.Name, fn.Node.Path)]; ok {
				row.ParentID = parentID
				row.Name = fn.Node.Name
				row.Path = fn.Node.Path
				row.Icon = fn.Node.Icon
				row.Component = fn.Node.Component
				row.PermissionCode = fn.Node.PermissionCode
				row.SortOrder = fn.Node.SortOrder
				row.IsActive = app.IsActive
				row.IsExternal = fn.Node.IsExternal
				row.ExternalURL = fn.Node.ExternalURL
				if err := tx.Save(row).Error; err != nil {
					return apperror.External("failed to update menu", err)
				}
				rowIDs[i] = row.ID
				seen[row.ID] = true
				continue
			}

			row := model.Menu{
				UUID:            uuid.New().String(),
				TenantID:        tenantID,
				ApplicationUUID: app.UUID,
				ParentID:        parentID,
				Name:            fn.Node.Name,
				Path:            fn.Node.Path,
				Icon:            fn.Node.Icon,
				Component:       fn.Node.Component,
				PermissionCode:  fn.Node.PermissionCode,
				SortOrder:       fn.Node.SortOrder,
				IsActive:        app.IsActive,
				IsExternal:      fn.Node.IsExternal,
				ExternalURL:     fn.Node.ExternalURL,
			}
			if err := tx.Create(&row).Error; err != nil {
				return apperror.External("failed to create menu", err)
			}
			rowIDs[i] = row.ID
			seen[row.ID] = true
		}

		for i := range existing {
			if !seen[existing[i].ID] {
				if err := tx.Delete(&existing[i]).Error; err != nil {
					return apperror.External("failed to delete menu", err)
				}
			}
		}

		log.Debug("Menus synchronized",
			zap.Uint("tenant_id", tenantID),
			zap.String("app_code", app.Code),
			zap.Int("menu_count", len(flat)))
		return nil
	})
}

// SetAppActive flips is_active on an application's menu rows without
// touching their structure. Used on enable/disable.
func (s *Synchronizer) SetAppActive(tenantID uint, appUUID string, active bool) error {
	err := database.GetDB().Model(&model.Menu{}).
		Where("tenant_id = ? AND application_uuid = ?", tenantID, appUUID).
		Update("is_active", active).Error
	if err != nil {
		return apperror.External("failed to update menus", err)
	}
	return nil
}

// RemoveApp soft-deletes all menu rows of an application. Used on
// uninstall and delete.
func (s *Synchronizer) RemoveApp(tenantID uint, appUUID string) error {
	err := database.GetDB().
		Where("tenant_id = ? AND application_uuid = ?", tenantID, appUUID).
		Delete(&model.Menu{}).Error
	if err != nil {
		return apperror.External("failed to remove menus", err)
	}
	return nil
}

// Invalidate flushes the cached tree for one tenant.
func (s *Synchronizer) Invalidate(tenantID uint) {
	s.cache.Invalidate(tenantID)
}
