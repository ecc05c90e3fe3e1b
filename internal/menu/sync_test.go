package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riveredge/platform/internal/model"
)

func TestParseMenuConfig(t *testing.T) {
	nodes, err := ParseMenuConfig([]byte(`[
		{"name":"Sales","path":"/sales","children":[
			{"name":"Orders","path":"/sales/orders","sort_order":1},
			{"name":"Quotes","path":"/sales/quotes","sort_order":2}
		]},
		{"name":"Docs","is_external":true,"external_url":"https://docs.example.com"}
	]`))
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Len(t, nodes[0].Children, 2)
	assert.True(t, nodes[1].IsExternal)
}

func TestParseMenuConfigEmpty(t *testing.T) {
	nodes, err := ParseMenuConfig(nil)
	assert.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestParseMenuConfigInvalid(t *testing.T) {
	_, err := ParseMenuConfig([]byte(`{"not":"a list"}`))
	assert.Error(t, err)
}

func TestFlattenParentBeforeChild(t *testing.T) {
	nodes := []Node{
		{Name: "Sales", Path: "/sales", Children: []Node{
			{Name: "Orders", Path: "/sales/orders", Children: []Node{
				{Name: "Detail", Path: "/sales/orders/detail"},
			}},
		}},
		{Name: "Stock", Path: "/stock"},
	}

	flat := flatten(nodes)
	require.Len(t, flat, 4)
	assert.Equal(t, -1, flat[0].ParentIndex)
	assert.Equal(t, 0, flat[1].ParentIndex)
	assert.Equal(t, 1, flat[2].ParentIndex)
	assert.Equal(t, -1, flat[3].ParentIndex)
	for _, fn := range flat {
		assert.Nil(t, fn.Node.Children)
	}
}

func TestMenuKeyFallsBackToName(t *testing.T) {
	assert.Equal(t, "/sales", menuKey("Sales", "/sales"))
	assert.Equal(t, "name:Group", menuKey("Group", ""))
}

func TestBuildTree(t *testing.T) {
	p1, p2 := uint(1), uint(99)
	rows := []model.Menu{
		{ID: 1, Name: "Sales", Path: "/sales"},
		{ID: 2, Name: "Orders", Path: "/sales/orders", ParentID: &p1},
		{ID: 3, Name: "Orphan", Path: "/orphan", ParentID: &p2},
	}

	roots := BuildTree(rows)
	require.Len(t, roots, 2)
	assert.Equal(t, "Sales", roots[0].Name)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, "Orders", roots[0].Children[0].Name)
	assert.Equal(t, "Orphan", roots[1].Name)
}
