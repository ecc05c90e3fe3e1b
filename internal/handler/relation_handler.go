package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/relation"
	"github.com/riveredge/platform/internal/tenant"
)

// RelationHandler serves the document relation graph.
type RelationHandler struct {
	service *relation.Service
}

// NewRelationHandler wires the relation handlers.
func NewRelationHandler(svc *relation.Service) *RelationHandler {
	return &RelationHandler{service: svc}
}

// Create stores an explicit edge between two documents.
func (h *RelationHandler) Create(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req relation.CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	rel, err := h.service.Create(tc, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rel)
}

// Delete soft-deletes an explicit edge.
func (h *RelationHandler) Delete(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(tc, c.Param("uuid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Relations returns the direct neighbourhood of a document, explicit plus
// derived edges.
func (h *RelationHandler) Relations(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	docType, docID := c.QueryParam("document_type"), c.QueryParam("document_id")
	if docType == "" || docID == "" {
		return apperror.Validation("document_type and document_id are required")
	}
	rels, err := h.service.Relations(tc.TenantID, docType, docID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rels)
}

// Trace walks the relation graph from a document and returns the tree.
func (h *RelationHandler) Trace(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	docType, docID := c.QueryParam("document_type"), c.QueryParam("document_id")
	if docType == "" || docID == "" {
		return apperror.Validation("document_type and document_id are required")
	}
	maxDepth, _ := strconv.Atoi(c.QueryParam("max_depth"))

	tree, err := h.service.Trace(tc.TenantID, docType, docID, c.QueryParam("direction"), maxDepth)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tree)
}

// ChangeImpact analyses the downstream effect of mutating a document.
func (h *RelationHandler) ChangeImpact(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	docType, docID := c.QueryParam("document_type"), c.QueryParam("document_id")
	if docType == "" || docID == "" {
		return apperror.Validation("document_type and document_id are required")
	}
	maxDepth, _ := strconv.Atoi(c.QueryParam("max_depth"))

	impact, err := h.service.AnalyzeChangeImpact(tc.TenantID, docType, docID, maxDepth)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, impact)
}
