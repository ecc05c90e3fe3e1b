package relation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riveredge/platform/internal/model"
)

// memStore holds edges in memory for traversal tests.
type memStore struct {
	edges []model.DocumentRelation
}

func (m *memStore) add(srcType, srcID, dstType, dstID string) {
	m.edges = append(m.edges, model.DocumentRelation{
		TenantID:     1,
		SourceType:   srcType,
		SourceID:     srcID,
		TargetType:   dstType,
		TargetID:     dstID,
		RelationMode: model.RelationModePush,
	})
}

func (m *memStore) Outgoing(tenantID uint, docType, docID string) ([]model.DocumentRelation, error) {
	var out []model.DocumentRelation
	for _, e := range m.edges {
		if e.TenantID == tenantID && e.SourceType == docType && e.SourceID == docID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Incoming(tenantID uint, docType, docID string) ([]model.DocumentRelation, error) {
	var out []model.DocumentRelation
	for _, e := range m.edges {
		if e.TenantID == tenantID && e.TargetType == docType && e.TargetID == docID {
			out = append(out, e)
		}
	}
	return out, nil
}

func chainService() (*Service, *memStore) {
	// order -> demand -> production_plan -> work_order
	store := &memStore{}
	store.add("order", "o1", "demand", "d1")
	store.add("demand", "d1", "production_plan", "p1")
	store.add("production_plan", "p1", "work_order", "w1")
	return NewService(store), store
}

func TestTraceDownstream(t *testing.T) {
	svc, _ := chainService()

	root, err := svc.Trace(1, "order", "o1", DirectionDownstream, 10)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	demand := root.Children[0]
	assert.Equal(t, "demand", demand.DocumentType)
	assert.Equal(t, 1, demand.Level)
	require.Len(t, demand.Children, 1)
	plan := demand.Children[0]
	require.Len(t, plan.Children, 1)
	assert.Equal(t, "work_order", plan.Children[0].DocumentType)
}

func TestTraceUpstream(t *testing.T) {
	svc, _ := chainService()

	root, err := svc.Trace(1, "work_order", "w1", DirectionUpstream, 10)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "production_plan", root.Children[0].DocumentType)
}

func TestTraceDepthLimit(t *testing.T) {
	svc, _ := chainService()

	root, err := svc.Trace(1, "order", "o1", DirectionDownstream, 1)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Empty(t, root.Children[0].Children)
}

func TestTraceCycleTerminates(t *testing.T) {
	store := &memStore{}
	store.add("a", "1", "b", "1")
	store.add("b", "1", "c", "1")
	store.add("c", "1", "a", "1")
	svc := NewService(store)

	root, err := svc.Trace(1, "a", "1", DirectionDownstream, 100)
	require.NoError(t, err)

	var count func(n *TraceNode) int
	count = func(n *TraceNode) int {
		total := 1
		for _, c := range n.Children {
			total += count(c)
		}
		return total
	}
	// a, b, c each visited once; the edge back to a is pruned.
	assert.Equal(t, 3, count(root))
}

func TestTraceInvalidDirection(t *testing.T) {
	svc, _ := chainService()
	_, err := svc.Trace(1, "order", "o1", "sideways", 10)
	assert.Error(t, err)
}

func TestMissingDocumentRenderedWithNullFields(t *testing.T) {
	svc, _ := chainService()
	svc.RegisterLookup("demand", func(tenantID uint, docID string) (string, string, string, bool, error) {
		return "", "", "", false, nil
	})

	root, err := svc.Trace(1, "order", "o1", DirectionDownstream, 1)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Nil(t, root.Children[0].DocumentCode)
	assert.Nil(t, root.Children[0].DocumentName)
}

func TestDerivedEdgesMergedExplicitWins(t *testing.T) {
	store := &memStore{}
	store.add("order", "o1", "demand", "d1")
	svc := NewService(store)
	svc.RegisterDeriver("order", func(tenantID uint, docType, docID string) ([]model.DocumentRelation, error) {
		return []model.DocumentRelation{
			// duplicate of the explicit edge: must be dropped
			{SourceType: "order", SourceID: "o1", TargetType: "demand", TargetID: "d1"},
			{SourceType: "order", SourceID: "o1", TargetType: "invoice", TargetID: "i1"},
		}, nil
	})

	rels, err := svc.Relations(1, "order", "o1")
	require.NoError(t, err)
	require.Len(t, rels.Downstream, 2)
	assert.Equal(t, model.RelationModePush, rels.Downstream[0].RelationMode)
	assert.Equal(t, model.RelationModeDerived, rels.Downstream[1].RelationMode)
	assert.NotEmpty(t, rels.Downstream[1].UUID)
}

func TestDerivedUUIDDeterministic(t *testing.T) {
	a := syntheticUUID(&model.DocumentRelation{SourceType: "order", SourceID: "o1", TargetType: "invoice", TargetID: "i1"})
	b := syntheticUUID(&model.DocumentRelation{SourceType: "order", SourceID: "o1", TargetType: "invoice", TargetID: "i1"})
	c := syntheticUUID(&model.DocumentRelation{SourceType: "order", SourceID: "o1", TargetType: "invoice", TargetID: "i2"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDeriverErrorDegradesToExplicit(t *testing.T) {
	store := &memStore{}
	store.add("order", "o1", "demand", "d1")
	svc := NewService(store)
	svc.RegisterDeriver("order", func(tenantID uint, docType, docID string) ([]model.DocumentRelation, error) {
		return nil, errors.New("derivation backend down")
	})

	rels, err := svc.Relations(1, "order", "o1")
	require.NoError(t, err)
	assert.Len(t, rels.Downstream, 1)
}

func TestTenantIsolationInStore(t *testing.T) {
	store := &memStore{}
	store.add("order", "o1", "demand", "d1")
	store.edges = append(store.edges, model.DocumentRelation{
		TenantID: 2, SourceType: "order", SourceID: "o1", TargetType: "demand", TargetID: "d2",
	})
	svc := NewService(store)

	rels, err := svc.Relations(1, "order", "o1")
	require.NoError(t, err)
	require.Len(t, rels.Downstream, 1)
	assert.Equal(t, "d1", rels.Downstream[0].TargetID)
}

func TestAnalyzeChangeImpact(t *testing.T) {
	svc, _ := chainService()
	svc.RegisterLookup("work_order", func(tenantID uint, docID string) (string, string, string, bool, error) {
		return "WO-001", "Assemble", "in_progress", true, nil
	})

	impact, err := svc.AnalyzeChangeImpact(1, "order", "o1", 10)
	require.NoError(t, err)

	assert.Len(t, impact.Impacted["demand"], 1)
	assert.Len(t, impact.Impacted["production_plan"], 1)
	require.Len(t, impact.Impacted["work_order"], 1)
	assert.Equal(t, "in_progress", impact.Impacted["work_order"][0].Status)
	assert.Contains(t, impact.RecommendedActions, "recompute demand")
	assert.Contains(t, impact.RecommendedActions, "review work order")
}
