package menu

import (
	"sync"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/pkg/database"
)

// TreeNode is a menu row with its resolved children, as served to clients.
type TreeNode struct {
	model.Menu
	Children []*TreeNode `json:"children,omitempty"`
}

// Cache is a read-through cache of per-tenant menu trees. The database is
// the source of truth; the cache is flushed wholesale after reconciliation
// batches, so entries need no per-row locking or expiry.
type Cache struct {
	mu    sync.RWMutex
	trees map[uint][]*TreeNode
}

// NewCache returns an empty menu cache.
func NewCache() *Cache {
	return &Cache{trees: map[uint][]*TreeNode{}}
}

// Tree returns the tenant's active menu tree, loading it on first access.
func (c *Cache) Tree(tenantID uint) ([]*TreeNode, error) {
	c.mu.RLock()
	tree, ok := c.trees[tenantID]
	c.mu.RUnlock()
	if ok {
		return tree, nil
	}

	var rows []model.Menu
	err := database.GetDB().
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("sort_order ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperror.External("failed to load menus", err)
	}
	tree = BuildTree(rows)

	c.mu.Lock()
	c.trees[tenantID] = tree
	c.mu.Unlock()
	return tree, nil
}

// Invalidate drops the cached tree for one tenant.
func (c *Cache) Invalidate(tenantID uint) {
	c.mu.Lock()
	delete(c.trees, tenantID)
	c.mu.Unlock()
}

// InvalidateAll drops every cached tree.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.trees = map[uint][]*TreeNode{}
	c.mu.Unlock()
}

// BuildTree assembles rows into a forest by ParentID, preserving input
// order. Rows whose parent is missing (soft-deleted) surface as roots
// rather than disappearing.
func BuildTree(rows []model.Menu) []*TreeNode {
	nodes := make(map[uint]*TreeNode, len(rows))
	for i := range rows {
		nodes[rows[i].ID] = &TreeNode{Menu: rows[i]}
	}

	var roots []*TreeNode
	for i := range rows {
		node := nodes[rows[i].ID]
		if pid := rows[i].ParentID; pid != nil {
			if parent, ok := nodes[*pid]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}
