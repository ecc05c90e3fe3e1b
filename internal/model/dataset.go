package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Data source types
const (
	DataSourceTypePostgres = "postgresql"
	DataSourceTypeAPI      = "api"
)

// Dataset query types
const (
	DatasetQueryTypeSQL = "sql"
	DatasetQueryTypeAPI = "api"
)

// DataSource is a connection definition a dataset executes against: either
// an external database reachable by DSN or an HTTP API base endpoint.
type DataSource struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	UUID        string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	TenantID    uint           `json:"tenant_id" gorm:"index;not null"`
	Code        string         `json:"code" gorm:"type:varchar(100);not null;index"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	SourceType  string         `json:"source_type" gorm:"type:varchar(20);not null"`
	DSN         string         `json:"-" gorm:"type:varchar(500)"`
	BaseURL     string         `json:"base_url" gorm:"type:varchar(500)"`
	Headers     datatypes.JSON `json:"headers"`
	IsConnected bool           `json:"is_connected" gorm:"default:false"`
	LastCheckAt *time.Time     `json:"last_check_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (DataSource) TableName() string {
	return "core_data_sources"
}

// Dataset is a saved query over a data source. QueryConfig carries the
// type-specific payload: sql text and named params for sql datasets, path,
// method, params and response shape hints for api datasets.
type Dataset struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	UUID           string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	TenantID       uint           `json:"tenant_id" gorm:"index;not null"`
	Code           string         `json:"code" gorm:"type:varchar(100);not null;index"`
	Name           string         `json:"name" gorm:"type:varchar(100);not null"`
	Description    string         `json:"description" gorm:"type:text"`
	SourceUUID     string         `json:"source_uuid" gorm:"type:varchar(36);index;not null"`
	QueryType      string         `json:"query_type" gorm:"type:varchar(20);not null"`
	QueryConfig    datatypes.JSON `json:"query_config"`
	IsActive       bool           `json:"is_active" gorm:"default:true"`
	LastExecutedAt *time.Time     `json:"last_executed_at,omitempty"`
	LastError      string         `json:"last_error" gorm:"type:varchar(500)"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Dataset) TableName() string {
	return "core_datasets"
}

// API is a registered outbound HTTP endpoint that datasets and integrations
// can call by code instead of hardcoding URLs.
type API struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	UUID        string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	TenantID    uint           `json:"tenant_id" gorm:"index;not null"`
	Code        string         `json:"code" gorm:"type:varchar(100);not null;index"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Method      string         `json:"method" gorm:"type:varchar(10);default:'GET'"`
	URL         string         `json:"url" gorm:"type:varchar(500);not null"`
	Headers     datatypes.JSON `json:"headers"`
	Params      datatypes.JSON `json:"params"`
	IsActive    bool           `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (API) TableName() string {
	return "core_apis"
}
