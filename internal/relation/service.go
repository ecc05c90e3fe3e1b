package relation

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/database"
	"github.com/riveredge/platform/pkg/logger"
)

// Trace directions.
const (
	DirectionUpstream   = "upstream"
	DirectionDownstream = "downstream"
	DirectionBoth       = "both"
)

// DefaultMaxDepth bounds traversals when the caller does not specify one.
const DefaultMaxDepth = 10

// Store abstracts edge persistence so traversal logic is testable without a
// database.
type Store interface {
	Outgoing(tenantID uint, docType, docID string) ([]model.DocumentRelation, error)
	Incoming(tenantID uint, docType, docID string) ([]model.DocumentRelation, error)
}

// Deriver computes implicit edges for a document at read time. Derived
// edges are never stored.
type Deriver func(tenantID uint, docType, docID string) ([]model.DocumentRelation, error)

// DocumentLookup resolves display fields and status for a referenced
// document. Missing documents return found=false, not an error.
type DocumentLookup func(tenantID uint, docID string) (code, name, status string, found bool, err error)

// Service stores explicit document edges and answers graph queries over the
// union of explicit and derived edges.
type Service struct {
	store    Store
	derivers map[string]Deriver
	lookups  map[string]DocumentLookup
	actions  map[string]string
}

// NewService builds a relation service over the given store. Use
// NewGormStore for production.
func NewService(store Store) *Service {
	return &Service{
		store:    store,
		derivers: map[string]Deriver{},
		lookups:  map[string]DocumentLookup{},
		actions: map[string]string{
			"demand":             "recompute demand",
			"demand_computation": "recompute demand",
			"production_plan":    "reschedule production plan",
			"work_order":         "review work order",
			"purchase_order":     "review purchase order",
		},
	}
}

// RegisterDeriver installs the derivation function for a document type.
func (s *Service) RegisterDeriver(docType string, d Deriver) {
	s.derivers[docType] = d
}

// RegisterLookup installs the display/status adapter for a document type.
func (s *Service) RegisterLookup(docType string, l DocumentLookup) {
	s.lookups[docType] = l
}

// CreateRequest describes a new explicit edge.
type CreateRequest struct {
	SourceType   string `json:"source_type"`
	SourceID     string `json:"source_id"`
	TargetType   string `json:"target_type"`
	TargetID     string `json:"target_id"`
	RelationMode string `json:"relation_mode"`
	BusinessMode string `json:"business_mode"`
	DemandID     string `json:"demand_id"`
	RelationDesc string `json:"relation_desc"`
}

// Create stores an explicit edge. Duplicate tuples are rejected; deleting
// then recreating yields the same logical edge with a new row.
func (s *Service) Create(tc *tenant.Context, req *CreateRequest) (*model.DocumentRelation, error) {
	db := database.GetDB()

	if req.SourceType == "" || req.SourceID == "" || req.TargetType == "" || req.TargetID == "" {
		return nil, apperror.Validation("source and target are required")
	}
	if req.SourceType == req.TargetType && req.SourceID == req.TargetID {
		return nil, apperror.Validation("a document cannot relate to itself")
	}
	mode := req.RelationMode
	if mode == "" {
		mode = model.RelationModeManual
	}
	if mode == model.RelationModeDerived {
		return nil, apperror.Validation("derived relations are computed, not stored")
	}

	var count int64
	err := db.Model(&model.DocumentRelation{}).
		Where("tenant_id = ? AND source_type = ? AND source_id = ? AND target_type = ? AND target_id = ?",
			tc.TenantID, req.SourceType, req.SourceID, req.TargetType, req.TargetID).
		Count(&count).Error
	if err != nil {
		return nil, apperror.BusinessLogic("failed to check existing relations")
	}
	if count > 0 {
		return nil, apperror.BusinessLogic("relation already exists")
	}

	rel := model.DocumentRelation{
		UUID:         uuid.New().String(),
		TenantID:     tc.TenantID,
		SourceType:   req.SourceType,
		SourceID:     req.SourceID,
		TargetType:   req.TargetType,
		TargetID:     req.TargetID,
		RelationMode: mode,
		BusinessMode: req.BusinessMode,
		DemandID:     req.DemandID,
		RelationDesc: req.RelationDesc,
		CreatedBy:    tc.UserID,
	}
	if err := db.Create(&rel).Error; err != nil {
		return nil, apperror.BusinessLogic("failed to create relation")
	}
	return &rel, nil
}

// Delete soft-deletes an explicit edge by uuid.
func (s *Service) Delete(tc *tenant.Context, relUUID string) error {
	db := database.GetDB()
	var rel model.DocumentRelation
	if err := db.Scopes(tenant.Scoped(tc)).Where("uuid = ?", relUUID).First(&rel).Error; err != nil {
		return apperror.NotFound("relation not found")
	}
	if err := db.Delete(&rel).Error; err != nil {
		return apperror.BusinessLogic("failed to delete relation")
	}
	return nil
}

// Relations is the direct neighbourhood of a document.
type Relations struct {
	Upstream   []model.DocumentRelation `json:"upstream"`
	Downstream []model.DocumentRelation `json:"downstream"`
}

// Relations returns explicit plus derived edges touching the document.
// Derived edges carry a deterministic synthetic uuid and lose against
// explicit edges on the same tuple.
func (s *Service) Relations(tenantID uint, docType, docID string) (*Relations, error) {
	down, err := s.store.Outgoing(tenantID, docType, docID)
	if err != nil {
		return nil, apperror.BusinessLogic("failed to load relations")
	}
	up, err := s.store.Incoming(tenantID, docType, docID)
	if err != nil {
		return nil, apperror.BusinessLogic("failed to load relations")
	}

	derived := s.derive(tenantID, docType, docID)
	for _, d := range derived {
		if d.SourceType == docType && d.SourceID == docID {
			down = mergeDerived(down, d)
		} else if d.TargetType == docType && d.TargetID == docID {
			up = mergeDerived(up, d)
		}
	}
	return &Relations{Upstream: up, Downstream: down}, nil
}

// derive runs the type's derivation function; a deriver error degrades to
// explicit edges only.
func (s *Service) derive(tenantID uint, docType, docID string) []model.DocumentRelation {
	d, ok := s.derivers[docType]
	if !ok {
		return nil
	}
	edges, err := d(tenantID, docType, docID)
	if err != nil {
		logger.GetLogger().Warn("Relation derivation failed",
			zap.String("document_type", docType),
			zap.String("document_id", docID),
			zap.Error(err))
		return nil
	}
	for i := range edges {
		edges[i].TenantID = tenantID
		edges[i].RelationMode = model.RelationModeDerived
		edges[i].UUID = syntheticUUID(&edges[i])
	}
	return edges
}

// syntheticUUID is deterministic over the edge tuple so repeated reads of a
// derived edge agree on identity.
func syntheticUUID(r *model.DocumentRelation) string {
	key := r.SourceType + "|" + r.SourceID + "|" + r.TargetType + "|" + r.TargetID
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// mergeDerived appends a derived edge unless an edge with the same tuple is
// already present (explicit wins).
func mergeDerived(edges []model.DocumentRelation, d model.DocumentRelation) []model.DocumentRelation {
	for _, e := range edges {
		if e.SourceType == d.SourceType && e.SourceID == d.SourceID &&
			e.TargetType == d.TargetType && e.TargetID == d.TargetID {
			return edges
		}
	}
	return append(edges, d)
}

// GormStore persists edges in core_document_relations.
type GormStore struct{}

// NewGormStore returns the production store.
func NewGormStore() *GormStore {
	return &GormStore{}
}

func (GormStore) Outgoing(tenantID uint, docType, docID string) ([]model.DocumentRelation, error) {
	var edges []model.DocumentRelation
	err := database.GetDB().
		Where("tenant_id = ? AND source_type = ? AND source_id = ?", tenantID, docType, docID).
		Find(&edges).Error
	return edges, err
}

func (GormStore) Incoming(tenantID uint, docType, docID string) ([]model.DocumentRelation, error) {
	var edges []model.DocumentRelation
	err := database.GetDB().
		Where("tenant_id = ? AND target_type = ? AND target_id = ?", tenantID, docType, docID).
		Find(&edges).Error
	return edges, err
}

var _ Store = GormStore{}
