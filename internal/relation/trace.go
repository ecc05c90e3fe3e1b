package relation

import (
	"github.com/riveredge/platform/internal/apperror"
)

// TraceNode is one document in a trace tree. Code and name are null when the
// referenced document no longer exists; the node itself is still rendered.
type TraceNode struct {
	DocumentType string       `json:"document_type"`
	DocumentID   string       `json:"document_id"`
	DocumentCode *string      `json:"document_code"`
	DocumentName *string      `json:"document_name"`
	RelationMode string       `json:"relation_mode,omitempty"`
	Level        int          `json:"level"`
	Children     []*TraceNode `json:"children"`
}

type docKey struct {
	docType string
	docID   string
}

// Trace walks the relation graph from a document, depth-limited and
// cycle-safe: a node already visited in this traversal is pruned silently.
func (s *Service) Trace(tenantID uint, docType, docID, direction string, maxDepth int) (*TraceNode, error) {
	switch direction {
	case DirectionUpstream, DirectionDownstream, DirectionBoth:
	case "":
		direction = DirectionBoth
	default:
		return nil, apperror.Validation("direction must be upstream, downstream or both")
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	visited := map[docKey]bool{{docType: docType, docID: docID}: true}
	root := s.newTraceNode(tenantID, docType, docID, "", 0)

	if direction == DirectionDownstream || direction == DirectionBoth {
		if err := s.expand(tenantID, root, DirectionDownstream, 1, maxDepth, visited); err != nil {
			return nil, err
		}
	}
	if direction == DirectionUpstream || direction == DirectionBoth {
		if err := s.expand(tenantID, root, DirectionUpstream, 1, maxDepth, visited); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// expand appends children of node in one direction, recursing to maxDepth.
func (s *Service) expand(tenantID uint, node *TraceNode, direction string, depth, maxDepth int, visited map[docKey]bool) error {
	if depth > maxDepth {
		return nil
	}

	rels, err := s.Relations(tenantID, node.DocumentType, node.DocumentID)
	if err != nil {
		return err
	}

	edges := rels.Downstream
	if direction == DirectionUpstream {
		edges = rels.Upstream
	}

	for _, e := range edges {
		nextType, nextID := e.TargetType, e.TargetID
		if direction == DirectionUpstream {
			nextType, nextID = e.SourceType, e.SourceID
		}
		key := docKey{docType: nextType, docID: nextID}
		if visited[key] {
			continue
		}
		visited[key] = true

		child := s.newTraceNode(tenantID, nextType, nextID, e.RelationMode, depth)
		node.Children = append(node.Children, child)
		if err := s.expand(tenantID, child, direction, depth+1, maxDepth, visited); err != nil {
			return err
		}
	}
	return nil
}

// newTraceNode resolves display fields through the type's lookup adapter.
// Unknown types and missing rows both yield null code/name.
func (s *Service) newTraceNode(tenantID uint, docType, docID, mode string, level int) *TraceNode {
	node := &TraceNode{
		DocumentType: docType,
		DocumentID:   docID,
		RelationMode: mode,
		Level:        level,
		Children:     []*TraceNode{},
	}
	if lookup, ok := s.lookups[docType]; ok {
		if code, name, _, found, err := lookup(tenantID, docID); err == nil && found {
			node.DocumentCode = &code
			node.DocumentName = &name
		}
	}
	return node
}

// ImpactedDocument is one downstream document affected by a change.
type ImpactedDocument struct {
	DocumentType string  `json:"document_type"`
	DocumentID   string  `json:"document_id"`
	DocumentCode *string `json:"document_code"`
	DocumentName *string `json:"document_name"`
	Status       string  `json:"status,omitempty"`
	Level        int     `json:"level"`
}

// ChangeImpact is the downstream analysis of a mutated document: reachable
// documents bucketed by type, with recommended follow-up actions.
type ChangeImpact struct {
	Source             docRef                        `json:"source"`
	Impacted           map[string][]ImpactedDocument `json:"impacted"`
	RecommendedActions []string                      `json:"recommended_actions"`
}

type docRef struct {
	DocumentType string `json:"document_type"`
	DocumentID   string `json:"document_id"`
}

// AnalyzeChangeImpact collects the downstream tree once, resolves each
// reachable document's status through its adapter, and buckets results by
// type with recommended actions from a fixed lookup.
func (s *Service) AnalyzeChangeImpact(tenantID uint, docType, docID string, maxDepth int) (*ChangeImpact, error) {
	root, err := s.Trace(tenantID, docType, docID, DirectionDownstream, maxDepth)
	if err != nil {
		return nil, err
	}

	impact := &ChangeImpact{
		Source:             docRef{DocumentType: docType, DocumentID: docID},
		Impacted:           map[string][]ImpactedDocument{},
		RecommendedActions: []string{},
	}

	seenActions := map[string]bool{}
	var collect func(n *TraceNode)
	collect = func(n *TraceNode) {
		for _, child := range n.Children {
			doc := ImpactedDocument{
				DocumentType: child.DocumentType,
				DocumentID:   child.DocumentID,
				DocumentCode: child.DocumentCode,
				DocumentName: child.DocumentName,
				Level:        child.Level,
			}
			if lookup, ok := s.lookups[child.DocumentType]; ok {
				if _, _, status, found, err := lookup(tenantID, child.DocumentID); err == nil && found {
					doc.Status = status
				}
			}
			impact.Impacted[child.DocumentType] = append(impact.Impacted[child.DocumentType], doc)

			if action, ok := s.actions[child.DocumentType]; ok && !seenActions[action] {
				seenActions[action] = true
				impact.RecommendedActions = append(impact.RecommendedActions, action)
			}
			collect(child)
		}
	}
	collect(root)
	return impact, nil
}
