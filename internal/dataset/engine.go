package dataset

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/config"
	"github.com/riveredge/platform/pkg/database"
	"github.com/riveredge/platform/pkg/logger"
	"github.com/riveredge/platform/pkg/metrics"
)

// Result is the uniform outcome of a dataset execution. Execution failures
// (guard violations, disconnected sources, upstream errors) come back as
// Success=false with Error set; only a missing dataset raises.
type Result struct {
	Success     bool                     `json:"success"`
	Data        []map[string]interface{} `json:"data"`
	Total       int                      `json:"total"`
	Columns     []string                 `json:"columns"`
	ElapsedTime float64                  `json:"elapsed_time"`
	Error       string                   `json:"error,omitempty"`
}

// sqlQueryConfig is the query_config payload of a sql dataset.
type sqlQueryConfig struct {
	SQL        string                 `json:"sql"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Service executes datasets against their data sources. SQL sources get a
// lazily opened pooled connection per source; API sources go through a
// shared HTTP client with a bounded timeout.
type Service struct {
	cfg *config.DatasetConfig
	api *apiExecutor

	mu    sync.Mutex
	pools map[string]*gorm.DB
}

// NewService builds the engine with the configured limits.
func NewService(cfg *config.DatasetConfig) *Service {
	return &Service{
		cfg:   cfg,
		api:   newAPIExecutor(cfg.APITimeout),
		pools: map[string]*gorm.DB{},
	}
}

// Execute runs a dataset with caller parameters and pagination. Caller
// parameters win over query_config defaults; limit is clamped to the hard
// ceiling.
func (s *Service) Execute(tc *tenant.Context, datasetUUID string, params map[string]interface{}, limit, offset int) (*Result, error) {
	db := database.GetDB()

	var ds model.Dataset
	err := db.Scopes(tenant.Scoped(tc)).
		Where("uuid = ? AND is_active = ?", datasetUUID, true).
		First(&ds).Error
	if err != nil {
		return nil, apperror.NotFound("dataset not found")
	}

	var source model.DataSource
	err = db.Scopes(tenant.Scoped(tc)).Where("uuid = ?", ds.SourceUUID).First(&source).Error
	if err != nil {
		return s.finish(&ds, failure("data source not found"), ds.QueryType)
	}
	if !source.IsConnected {
		return s.finish(&ds, failure("source not connected"), ds.QueryType)
	}

	limit = ClampLimit(limit, s.cfg.MaxLimit)
	if offset < 0 {
		offset = 0
	}

	start := time.Now()
	var res *Result
	switch ds.QueryType {
	case model.DatasetQueryTypeSQL:
		res = s.executeSQL(&ds, &source, params, limit, offset)
	case model.DatasetQueryTypeAPI:
		res = s.api.execute(tc, &ds, &source, params, limit, offset)
	default:
		res = failure("unknown query type: " + ds.QueryType)
	}
	res.ElapsedTime = time.Since(start).Seconds()

	return s.finish(&ds, res, ds.QueryType)
}

// finish records the execution outcome on the dataset row and the metrics
// counter. Bookkeeping failures are logged, never surfaced.
func (s *Service) finish(ds *model.Dataset, res *Result, queryType string) (*Result, error) {
	outcome := "success"
	lastError := ""
	if !res.Success {
		outcome = "failure"
		lastError = res.Error
	}
	metrics.DatasetExecutionCounter.WithLabelValues(queryType, outcome).Inc()

	now := time.Now()
	err := database.GetDB().Model(ds).Updates(map[string]interface{}{
		"last_executed_at": now,
		"last_error":       lastError,
	}).Error
	if err != nil {
		logger.GetLogger().Warn("Failed to record dataset execution",
			zap.String("dataset_uuid", ds.UUID), zap.Error(err))
	}
	return res, nil
}

// executeSQL runs a SELECT-only parameterised query over the source's
// pooled connection. Caller values always travel as driver parameters.
func (s *Service) executeSQL(ds *model.Dataset, source *model.DataSource, params map[string]interface{}, limit, offset int) *Result {
	if source.SourceType != model.DataSourceTypePostgres {
		return failure("sql datasets require a postgresql source")
	}

	var qc sqlQueryConfig
	if err := json.Unmarshal(ds.QueryConfig, &qc); err != nil {
		return failure("invalid query_config: " + err.Error())
	}
	if err := ValidateSelectOnly(qc.SQL); err != nil {
		return failure(errDetail(err))
	}

	merged := make(map[string]interface{}, len(qc.Parameters)+len(params))
	for k, v := range qc.Parameters {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}

	sql, args, err := ConvertNamedParams(qc.SQL, merged)
	if err != nil {
		return failure(errDetail(err))
	}
	sql, args = ApplyLimit(sql, args, limit, offset)

	pool, err := s.pool(source)
	if err != nil {
		return failure("failed to connect to data source: " + err.Error())
	}

	rows, err := pool.Raw(sql, args...).Rows()
	if err != nil {
		return failure(err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return failure(err.Error())
	}

	var data []map[string]interface{}
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return failure(err.Error())
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return failure(err.Error())
	}

	return &Result{
		Success: true,
		Data:    data,
		Total:   len(data),
		Columns: columns,
	}
}

// pool returns the lazily opened connection pool for a source.
func (s *Service) pool(source *model.DataSource) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pool, ok := s.pools[source.UUID]; ok {
		return pool, nil
	}
	pool, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  source.DSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	s.pools[source.UUID] = pool
	return pool, nil
}

// TestConnection probes a data source and records the outcome on the row.
func (s *Service) TestConnection(tc *tenant.Context, sourceUUID string) (*model.DataSource, error) {
	db := database.GetDB()

	var source model.DataSource
	err := db.Scopes(tenant.Scoped(tc)).Where("uuid = ?", sourceUUID).First(&source).Error
	if err != nil {
		return nil, apperror.NotFound("data source not found")
	}

	connected := false
	switch source.SourceType {
	case model.DataSourceTypePostgres:
		if pool, err := s.pool(&source); err == nil {
			if sqlDB, err := pool.DB(); err == nil && sqlDB.Ping() == nil {
				connected = true
			}
		}
	case model.DataSourceTypeAPI:
		connected = s.api.probe(source.BaseURL)
	default:
		return nil, apperror.Validation("unknown source type: " + source.SourceType)
	}

	now := time.Now()
	source.IsConnected = connected
	source.LastCheckAt = &now
	if err := db.Save(&source).Error; err != nil {
		return nil, apperror.External("failed to update data source", err)
	}
	if !connected {
		// A failed probe forgets any stale pool so the next test retries.
		s.mu.Lock()
		delete(s.pools, source.UUID)
		s.mu.Unlock()
	}
	return &source, nil
}

// APITestResult reports the outcome of a registered API test call.
type APITestResult struct {
	Success     bool   `json:"success"`
	StatusCode  int    `json:"status_code"`
	ElapsedTime int64  `json:"elapsed_time"`
	Error       string `json:"error,omitempty"`
}

// TestAPI calls a registered API with its stored params merged under the
// caller's and reports status plus elapsed time. The response body is
// discarded; this is a reachability check, not an execution.
func (s *Service) TestAPI(tc *tenant.Context, apiUUID string, params map[string]string) (*APITestResult, error) {
	var api model.API
	err := database.GetDB().Scopes(tenant.Scoped(tc)).Where("uuid = ?", apiUUID).First(&api).Error
	if err != nil {
		return nil, apperror.NotFound("api not found")
	}
	return s.api.testCall(&api, params), nil
}

func failure(msg string) *Result {
	return &Result{Success: false, Data: []map[string]interface{}{}, Columns: []string{}, Error: msg}
}

// errDetail unwraps taxonomy errors to their message for embedding in a
// structured failure.
func errDetail(err error) string {
	if appErr, ok := err.(*apperror.Error); ok {
		return appErr.Message
	}
	return err.Error()
}
