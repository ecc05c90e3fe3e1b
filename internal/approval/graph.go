package approval

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/pkg/logger"
)

// Node types in a process graph.
const (
	NodeTypeStart = "start"
	NodeTypeTask  = "task"
	NodeTypeEnd   = "end"
)

// Approver is a tagged union naming who acts on a node: a concrete user,
// or a role/department resolved at runtime.
type Approver struct {
	UserID       *uint `json:"user_id,omitempty"`
	RoleID       *uint `json:"role_id,omitempty"`
	DepartmentID *uint `json:"department_id,omitempty"`
}

// Edge is a directed connection to another node.
type Edge struct {
	Target string `json:"target"`
}

// Node is one vertex of a process graph.
type Node struct {
	Type     string    `json:"type"`
	Approver *Approver `json:"approver,omitempty"`
	Edges    []Edge    `json:"edges,omitempty"`
}

// Graph is a process definition keyed by node id.
type Graph map[string]Node

// ParseGraph decodes and validates a process node document: there must be
// a start node and every edge target must reference an existing node.
func ParseGraph(raw []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, apperror.Validation("invalid process definition: " + err.Error())
	}
	if _, err := g.Start(); err != nil {
		return nil, err
	}
	for id, node := range g {
		for _, e := range node.Edges {
			if _, ok := g[e.Target]; !ok {
				return nil, apperror.Validation("node " + id + " has edge to unknown node " + e.Target)
			}
		}
	}
	return g, nil
}

// Start returns the id of the start node.
func (g Graph) Start() (string, error) {
	for id, node := range g {
		if node.Type == NodeTypeStart {
			return id, nil
		}
	}
	return "", apperror.Validation("process has no start node")
}

// Successor returns the next node id after the given one. When a node has
// several outgoing edges the first in declaration order is taken; there is
// no conditional routing. ok is false at the end of the graph.
func (g Graph) Successor(nodeID string) (string, bool) {
	node, exists := g[nodeID]
	if !exists || len(node.Edges) == 0 {
		return "", false
	}
	return node.Edges[0].Target, true
}

// Resolver maps role and department approver references to a user id.
type Resolver interface {
	ResolveRole(tenantID, roleID uint) (uint, error)
	ResolveDepartment(tenantID, departmentID uint) (uint, error)
}

// ResolveApprover resolves an approver reference to a user id. An absent or
// unresolvable reference falls back to the submitter so the instance never
// strands without an actor; the fallback is logged.
func ResolveApprover(a *Approver, tenantID, submitterID uint, r Resolver) uint {
	log := logger.GetLogger()

	if a == nil {
		return submitterID
	}
	if a.UserID != nil {
		return *a.UserID
	}
	if a.RoleID != nil && r != nil {
		if userID, err := r.ResolveRole(tenantID, *a.RoleID); err == nil {
			return userID
		}
		log.Warn("Role approver unresolved, falling back to submitter",
			zap.Uint("role_id", *a.RoleID), zap.Uint("submitter_id", submitterID))
		return submitterID
	}
	if a.DepartmentID != nil && r != nil {
		if userID, err := r.ResolveDepartment(tenantID, *a.DepartmentID); err == nil {
			return userID
		}
		log.Warn("Department approver unresolved, falling back to submitter",
			zap.Uint("department_id", *a.DepartmentID), zap.Uint("submitter_id", submitterID))
		return submitterID
	}

	log.Warn("Approver reference empty, falling back to submitter",
		zap.Uint("submitter_id", submitterID))
	return submitterID
}
