package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSelectOnly(t *testing.T) {
	assert.NoError(t, ValidateSelectOnly("SELECT 1"))
	assert.NoError(t, ValidateSelectOnly("  select id, name from orders  "))
	assert.NoError(t, ValidateSelectOnly("SELECT * FROM t;"))

	assert.Error(t, ValidateSelectOnly("DELETE FROM users"))
	assert.Error(t, ValidateSelectOnly("update t set a = 1"))
	assert.Error(t, ValidateSelectOnly("DROP TABLE t"))
	assert.Error(t, ValidateSelectOnly("SELECT 1; DELETE FROM users"))
	assert.Error(t, ValidateSelectOnly(""))
	assert.Error(t, ValidateSelectOnly("   "))
}

func TestConvertNamedParams(t *testing.T) {
	sql, args, err := ConvertNamedParams(
		"SELECT * FROM orders WHERE status = :status AND qty > :min_qty",
		map[string]interface{}{"status": "open", "min_qty": 5},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders WHERE status = ? AND qty > ?", sql)
	assert.Equal(t, []interface{}{"open", 5}, args)
}

func TestConvertNamedParamsRepeated(t *testing.T) {
	sql, args, err := ConvertNamedParams(
		"SELECT :v AS a, :v AS b",
		map[string]interface{}{"v": 1},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT ? AS a, ? AS b", sql)
	assert.Equal(t, []interface{}{1, 1}, args)
}

func TestConvertNamedParamsMissing(t *testing.T) {
	_, _, err := ConvertNamedParams("SELECT :missing", map[string]interface{}{})
	assert.Error(t, err)
}

func TestConvertNamedParamsIgnoresCastsAndStrings(t *testing.T) {
	sql, args, err := ConvertNamedParams(
		"SELECT id::text, ':notaparam' FROM t WHERE a = :a",
		map[string]interface{}{"a": 7},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id::text, ':notaparam' FROM t WHERE a = ?", sql)
	assert.Equal(t, []interface{}{7}, args)
}

func TestHasLimit(t *testing.T) {
	assert.True(t, HasLimit("SELECT * FROM t LIMIT 10"))
	assert.True(t, HasLimit("select * from t limit 5 offset 2"))
	assert.False(t, HasLimit("SELECT * FROM t"))
	assert.False(t, HasLimit("SELECT 'with LIMIT inside' FROM t"))
	assert.False(t, HasLimit("SELECT limited FROM t"))
}

func TestApplyLimit(t *testing.T) {
	sql, args := ApplyLimit("SELECT * FROM t", nil, 50, 10)
	assert.Equal(t, "SELECT * FROM t LIMIT ? OFFSET ?", sql)
	assert.Equal(t, []interface{}{50, 10}, args)

	sql, args = ApplyLimit("SELECT * FROM t LIMIT 3", []interface{}{1}, 50, 10)
	assert.Equal(t, "SELECT * FROM t LIMIT 3", sql)
	assert.Equal(t, []interface{}{1}, args)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 1000, ClampLimit(0, 1000))
	assert.Equal(t, 1000, ClampLimit(5000, 1000))
	assert.Equal(t, 50, ClampLimit(50, 1000))
}
