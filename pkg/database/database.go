package database

import (
	"fmt"
	"log"

	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB initializes the database connection with the provided configuration
func InitDB(cfg *config.Config) error {
	var err error

	logLevel := cfg.DB.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}

	// Connect with PreferSimpleProtocol to prevent "prepared statement
	// already exists" errors behind connection poolers
	pgConfig := postgres.Config{
		DSN:                  cfg.DB.GetDSN(),
		PreferSimpleProtocol: true,
	}

	DB, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	if err := Migrate(DB); err != nil {
		return err
	}

	log.Println("Database connected and migrated successfully")
	return nil
}

// partialUniqueIndexes enforce uniqueness among live rows only. A plain
// unique index would keep a soft-deleted row occupying the key, so a
// deleted application, relation or dataset could never be recreated under
// the same code or edge tuple.
var partialUniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_tenant_code ON core_applications (tenant_id, code) WHERE deleted_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_approval_processes_tenant_code ON core_approval_processes (tenant_id, code) WHERE deleted_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_document_relations_edge ON core_document_relations (tenant_id, source_type, source_id, target_type, target_id) WHERE deleted_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_data_sources_tenant_code ON core_data_sources (tenant_id, code) WHERE deleted_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_datasets_tenant_code ON core_datasets (tenant_id, code) WHERE deleted_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_apis_tenant_code ON core_apis (tenant_id, code) WHERE deleted_at IS NULL`,
}

// Migrate creates or updates the table structure for all models and applies
// the partial unique indexes AutoMigrate cannot express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.LoginLog{},
		&model.Application{},
		&model.Menu{},
		&model.ApprovalProcess{},
		&model.ApprovalInstance{},
		&model.ApprovalHistory{},
		&model.DocumentRelation{},
		&model.DataSource{},
		&model.Dataset{},
		&model.API{},
		&model.Message{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	for _, stmt := range partialUniqueIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create unique index: %w", err)
		}
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Ping verifies the underlying connection is alive
func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
