package database

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/riveredge/platform/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func orderEdge(uuid string) model.DocumentRelation {
	return model.DocumentRelation{
		UUID:       uuid,
		TenantID:   1,
		SourceType: "order",
		SourceID:   "o1",
		TargetType: "demand",
		TargetID:   "d1",
	}
}

func TestDuplicateLiveRelationRejected(t *testing.T) {
	db := openTestDB(t)

	first := orderEdge("r1")
	require.NoError(t, db.Create(&first).Error)

	dup := orderEdge("r2")
	assert.Error(t, db.Create(&dup).Error)
}

func TestRecreateRelationAfterSoftDelete(t *testing.T) {
	db := openTestDB(t)

	first := orderEdge("r1")
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Delete(&first).Error)

	second := orderEdge("r2")
	require.NoError(t, db.Create(&second).Error)

	var live int64
	require.NoError(t, db.Model(&model.DocumentRelation{}).Count(&live).Error)
	assert.Equal(t, int64(1), live)

	var total int64
	require.NoError(t, db.Unscoped().Model(&model.DocumentRelation{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)
}

func TestRecreateApplicationAfterSoftDelete(t *testing.T) {
	db := openTestDB(t)

	first := model.Application{UUID: "a1", TenantID: 1, Code: "crm", Name: "CRM"}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Delete(&first).Error)

	// The next rescan must be able to rediscover the app under the same code.
	second := model.Application{UUID: "a2", TenantID: 1, Code: "crm", Name: "CRM"}
	require.NoError(t, db.Create(&second).Error)

	dup := model.Application{UUID: "a3", TenantID: 1, Code: "crm", Name: "CRM"}
	assert.Error(t, db.Create(&dup).Error)
}

func TestTenantCodeUniquenessIsPerTenant(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Create(&model.Dataset{UUID: "d1", TenantID: 1, Code: "sales", Name: "Sales", SourceUUID: "s1", QueryType: model.DatasetQueryTypeSQL}).Error)
	require.NoError(t, db.Create(&model.Dataset{UUID: "d2", TenantID: 2, Code: "sales", Name: "Sales", SourceUUID: "s1", QueryType: model.DatasetQueryTypeSQL}).Error)
}
