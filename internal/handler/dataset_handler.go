package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/dataset"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/database"
)

// DatasetHandler serves datasets, data sources and the API registry.
type DatasetHandler struct {
	engine *dataset.Service
}

// NewDatasetHandler wires the dataset handlers.
func NewDatasetHandler(engine *dataset.Service) *DatasetHandler {
	return &DatasetHandler{engine: engine}
}

// CreateDataSource registers a connection descriptor. Credentials are
// accepted on input but never rendered in responses.
func (h *DatasetHandler) CreateDataSource(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req struct {
		Code       string            `json:"code"`
		Name       string            `json:"name"`
		SourceType string            `json:"source_type"`
		DSN        string            `json:"dsn"`
		BaseURL    string            `json:"base_url"`
		Headers    map[string]string `json:"headers"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if req.Code == "" || req.Name == "" {
		return apperror.Validation("code and name are required")
	}
	switch req.SourceType {
	case model.DataSourceTypePostgres, model.DataSourceTypeAPI:
	default:
		return apperror.Validation("source_type must be postgresql or api")
	}

	source := model.DataSource{
		UUID:       uuid.New().String(),
		TenantID:   tc.TenantID,
		Code:       req.Code,
		Name:       req.Name,
		SourceType: req.SourceType,
		DSN:        req.DSN,
		BaseURL:    req.BaseURL,
	}
	if len(req.Headers) > 0 {
		raw, err := json.Marshal(req.Headers)
		if err != nil {
			return apperror.Validation("invalid headers")
		}
		source.Headers = datatypes.JSON(raw)
	}
	if err := database.GetDB().Create(&source).Error; err != nil {
		return apperror.BusinessLogic("data source code already exists")
	}
	return c.JSON(http.StatusCreated, source)
}

// ListDataSources returns the tenant's data sources.
func (h *DatasetHandler) ListDataSources(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var sources []model.DataSource
	err = database.GetDB().Scopes(tenant.Scoped(tc)).Order("id ASC").Find(&sources).Error
	if err != nil {
		return apperror.External("failed to list data sources", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": sources, "total": len(sources)})
}

// TestDataSource probes the source and records the result.
func (h *DatasetHandler) TestDataSource(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	source, err := h.engine.TestConnection(tc, c.Param("uuid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"uuid":         source.UUID,
		"is_connected": source.IsConnected,
	})
}

// CreateDataset stores a saved query over a data source.
func (h *DatasetHandler) CreateDataset(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req struct {
		Code        string          `json:"code"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		SourceUUID  string          `json:"source_uuid"`
		QueryType   string          `json:"query_type"`
		QueryConfig json.RawMessage `json:"query_config"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if req.Code == "" || req.Name == "" || req.SourceUUID == "" {
		return apperror.Validation("code, name and source_uuid are required")
	}
	switch req.QueryType {
	case model.DatasetQueryTypeSQL, model.DatasetQueryTypeAPI:
	default:
		return apperror.Validation("query_type must be sql or api")
	}

	var source model.DataSource
	err = database.GetDB().Scopes(tenant.Scoped(tc)).Where("uuid = ?", req.SourceUUID).First(&source).Error
	if err != nil {
		return apperror.NotFound("data source not found")
	}

	ds := model.Dataset{
		UUID:        uuid.New().String(),
		TenantID:    tc.TenantID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		SourceUUID:  req.SourceUUID,
		QueryType:   req.QueryType,
		QueryConfig: datatypes.JSON(req.QueryConfig),
		IsActive:    true,
	}
	if err := database.GetDB().Create(&ds).Error; err != nil {
		return apperror.BusinessLogic("dataset code already exists")
	}
	return c.JSON(http.StatusCreated, ds)
}

// ListDatasets returns the tenant's datasets.
func (h *DatasetHandler) ListDatasets(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var datasets []model.Dataset
	err = database.GetDB().Scopes(tenant.Scoped(tc)).Order("id ASC").Find(&datasets).Error
	if err != nil {
		return apperror.External("failed to list datasets", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": datasets, "total": len(datasets)})
}

// Execute runs a dataset with caller parameters and pagination.
func (h *DatasetHandler) Execute(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req struct {
		Parameters map[string]interface{} `json:"parameters"`
		Limit      int                    `json:"limit"`
		Offset     int                    `json:"offset"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	result, err := h.engine.Execute(tc, c.Param("uuid"), req.Parameters, req.Limit, req.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// CreateAPI registers an outbound HTTP endpoint callable by code.
func (h *DatasetHandler) CreateAPI(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req struct {
		Code        string            `json:"code"`
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Method      string            `json:"method"`
		URL         string            `json:"url"`
		Headers     map[string]string `json:"headers"`
		Params      map[string]string `json:"params"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if req.Code == "" || req.Name == "" || req.URL == "" {
		return apperror.Validation("code, name and url are required")
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	api := model.API{
		UUID:        uuid.New().String(),
		TenantID:    tc.TenantID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Method:      req.Method,
		URL:         req.URL,
		IsActive:    true,
	}
	if len(req.Headers) > 0 {
		raw, _ := json.Marshal(req.Headers)
		api.Headers = datatypes.JSON(raw)
	}
	if len(req.Params) > 0 {
		raw, _ := json.Marshal(req.Params)
		api.Params = datatypes.JSON(raw)
	}
	if err := database.GetDB().Create(&api).Error; err != nil {
		return apperror.BusinessLogic("api code already exists")
	}
	return c.JSON(http.StatusCreated, api)
}

// TestAPI performs the registered call with merged params and reports
// status and elapsed time.
func (h *DatasetHandler) TestAPI(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var req struct {
		Params map[string]string `json:"params"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	result, err := h.engine.TestAPI(tc, c.Param("uuid"), req.Params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ListAPIs returns the tenant's registered endpoints.
func (h *DatasetHandler) ListAPIs(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var apis []model.API
	err = database.GetDB().Scopes(tenant.Scoped(tc)).Order("id ASC").Find(&apis).Error
	if err != nil {
		return apperror.External("failed to list apis", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": apis, "total": len(apis)})
}

// parsePagination reads limit/offset query params with defaults.
func parsePagination(c echo.Context, defaultLimit int) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
