package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRowsBareList(t *testing.T) {
	rows, err := extractRows([]byte(`[{"a":1},{"a":2}]`))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestExtractRowsDataKey(t *testing.T) {
	rows, err := extractRows([]byte(`{"total": 99, "data": [{"a":1}]}`))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExtractRowsItemsKey(t *testing.T) {
	rows, err := extractRows([]byte(`{"items": [{"a":1},{"a":2},{"a":3}]}`))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExtractRowsNoTabularPayload(t *testing.T) {
	_, err := extractRows([]byte(`{"message": "ok"}`))
	assert.Error(t, err)

	_, err = extractRows([]byte(`not json`))
	assert.Error(t, err)
}

func TestColumnNamesSortedAndStable(t *testing.T) {
	rows := []map[string]interface{}{{"zeta": 1, "alpha": 2, "mid": 3}}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, columnNames(rows))
	assert.Empty(t, columnNames(nil))
}

func TestSliceRows(t *testing.T) {
	rows := []map[string]interface{}{{"i": 0}, {"i": 1}, {"i": 2}, {"i": 3}}

	assert.Len(t, sliceRows(rows, 0, 2), 2)
	assert.Len(t, sliceRows(rows, 3, 10), 1)
	assert.Empty(t, sliceRows(rows, 10, 5))
	assert.Equal(t, 1, sliceRows(rows, 1, 1)[0]["i"])
}
