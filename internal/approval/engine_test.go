package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riveredge/platform/internal/model"
)

func uintPtr(v uint) *uint { return &v }

// start -> task1(approver=U2) -> end
func linearGraph(t *testing.T) Graph {
	t.Helper()
	g, err := ParseGraph([]byte(`{
		"start": {"type": "start", "edges": [{"target": "task1"}]},
		"task1": {"type": "task", "approver": {"user_id": 2}, "edges": [{"target": "end"}]},
		"end":   {"type": "end"}
	}`))
	require.NoError(t, err)
	return g
}

func pendingInstance(g Graph, t *testing.T) *model.ApprovalInstance {
	t.Helper()
	tr, err := Begin(g, 1, 1, nil)
	require.NoError(t, err)
	return &model.ApprovalInstance{
		TenantID:          1,
		Status:            tr.Status,
		CurrentNode:       tr.CurrentNode,
		CurrentApproverID: tr.CurrentApproverID,
		SubmitterID:       1,
	}
}

func TestParseGraphValidation(t *testing.T) {
	_, err := ParseGraph([]byte(`{"task1": {"type": "task"}}`))
	assert.Error(t, err, "no start node")

	_, err = ParseGraph([]byte(`{"start": {"type": "start", "edges": [{"target": "ghost"}]}}`))
	assert.Error(t, err, "edge to unknown node")
}

func TestBeginSkipsApproverlessStart(t *testing.T) {
	g := linearGraph(t)
	tr, err := Begin(g, 1, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, model.ApprovalStatusPending, tr.Status)
	assert.Equal(t, "task1", tr.CurrentNode)
	require.NotNil(t, tr.CurrentApproverID)
	assert.Equal(t, uint(2), *tr.CurrentApproverID)
	assert.Equal(t, model.ApprovalActionSubmit, tr.History.Action)
	assert.Equal(t, uint(1), tr.History.ActionBy)
}

func TestApproveHappyPath(t *testing.T) {
	g := linearGraph(t)
	inst := pendingInstance(g, t)

	tr, err := Step(g, inst, Action{Type: model.ApprovalActionApprove, ActorID: 2}, nil)
	require.NoError(t, err)
	assert.True(t, tr.Completed)
	assert.Equal(t, model.ApprovalStatusApproved, tr.Status)
	assert.Empty(t, tr.CurrentNode)
	assert.Nil(t, tr.CurrentApproverID)
	assert.Equal(t, "task1", tr.History.FromNode)
}

func TestApproveAdvancesMidGraph(t *testing.T) {
	g, err := ParseGraph([]byte(`{
		"start": {"type": "start", "edges": [{"target": "task1"}]},
		"task1": {"type": "task", "approver": {"user_id": 2}, "edges": [{"target": "task2"}]},
		"task2": {"type": "task", "approver": {"user_id": 3}, "edges": [{"target": "end"}]},
		"end":   {"type": "end"}
	}`))
	require.NoError(t, err)
	inst := pendingInstance(g, t)

	tr, err := Step(g, inst, Action{Type: model.ApprovalActionApprove, ActorID: 2}, nil)
	require.NoError(t, err)
	assert.False(t, tr.Completed)
	assert.Equal(t, model.ApprovalStatusPending, tr.Status)
	assert.Equal(t, "task2", tr.CurrentNode)
	assert.Equal(t, uint(3), *tr.CurrentApproverID)
}

func TestFirstEdgeWinsOnMultipleSuccessors(t *testing.T) {
	g, err := ParseGraph([]byte(`{
		"start": {"type": "start", "edges": [{"target": "a"}]},
		"a": {"type": "task", "approver": {"user_id": 2}, "edges": [{"target": "b"}, {"target": "c"}]},
		"b": {"type": "task", "approver": {"user_id": 3}, "edges": [{"target": "end"}]},
		"c": {"type": "task", "approver": {"user_id": 4}, "edges": [{"target": "end"}]},
		"end": {"type": "end"}
	}`))
	require.NoError(t, err)
	inst := pendingInstance(g, t)

	tr, err := Step(g, inst, Action{Type: model.ApprovalActionApprove, ActorID: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "b", tr.CurrentNode)
}

func TestRejectIsTerminal(t *testing.T) {
	g := linearGraph(t)
	inst := pendingInstance(g, t)

	tr, err := Step(g, inst, Action{Type: model.ApprovalActionReject, ActorID: 2, Comment: "over budget"}, nil)
	require.NoError(t, err)
	assert.True(t, tr.Completed)
	assert.Equal(t, model.ApprovalStatusRejected, tr.Status)
	assert.Equal(t, "over budget", tr.History.Comment)
}

func TestTransferKeepsNode(t *testing.T) {
	g := linearGraph(t)
	inst := pendingInstance(g, t)

	tr, err := Step(g, inst, Action{Type: model.ApprovalActionTransfer, ActorID: 2, TransferTo: uintPtr(3)}, nil)
	require.NoError(t, err)
	assert.False(t, tr.Completed)
	assert.Equal(t, "task1", tr.CurrentNode)
	assert.Equal(t, uint(3), *tr.CurrentApproverID)
	assert.Equal(t, uint(2), *tr.History.FromApproverID)
	assert.Equal(t, uint(3), *tr.History.ToApproverID)

	// After transfer the old approver may no longer act.
	inst.CurrentApproverID = tr.CurrentApproverID
	_, err = Step(g, inst, Action{Type: model.ApprovalActionApprove, ActorID: 2}, nil)
	assert.Error(t, err)
}

func TestTransferRequiresTarget(t *testing.T) {
	g := linearGraph(t)
	inst := pendingInstance(g, t)

	_, err := Step(g, inst, Action{Type: model.ApprovalActionTransfer, ActorID: 2}, nil)
	assert.Error(t, err)
}

func TestOnlyCurrentApproverMayAct(t *testing.T) {
	g := linearGraph(t)
	inst := pendingInstance(g, t)

	_, err := Step(g, inst, Action{Type: model.ApprovalActionApprove, ActorID: 99}, nil)
	assert.Error(t, err)
}

func TestSubmitterMayCancel(t *testing.T) {
	g := linearGraph(t)
	inst := pendingInstance(g, t)

	tr, err := Step(g, inst, Action{Type: model.ApprovalActionCancel, ActorID: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalStatusCancelled, tr.Status)

	_, err = Step(g, inst, Action{Type: model.ApprovalActionCancel, ActorID: 99}, nil)
	assert.Error(t, err)
}

func TestCompletedInstanceRejectsActions(t *testing.T) {
	g := linearGraph(t)
	inst := pendingInstance(g, t)
	inst.Status = model.ApprovalStatusApproved

	_, err := Step(g, inst, Action{Type: model.ApprovalActionApprove, ActorID: 2}, nil)
	assert.Error(t, err)
}

type staticResolver struct{ userID uint }

func (r staticResolver) ResolveRole(_, _ uint) (uint, error)       { return r.userID, nil }
func (r staticResolver) ResolveDepartment(_, _ uint) (uint, error) { return r.userID, nil }

func TestApproveResolvesRoleApproverOnAdvance(t *testing.T) {
	g, err := ParseGraph([]byte(`{
		"start": {"type": "start", "edges": [{"target": "task1"}]},
		"task1": {"type": "task", "approver": {"user_id": 2}, "edges": [{"target": "task2"}]},
		"task2": {"type": "task", "approver": {"role_id": 9}, "edges": [{"target": "end"}]},
		"end":   {"type": "end"}
	}`))
	require.NoError(t, err)
	inst := pendingInstance(g, t)

	tr, err := Step(g, inst, Action{Type: model.ApprovalActionApprove, ActorID: 2}, staticResolver{userID: 7})
	require.NoError(t, err)
	assert.Equal(t, "task2", tr.CurrentNode)
	require.NotNil(t, tr.CurrentApproverID)
	assert.Equal(t, uint(7), *tr.CurrentApproverID)
	assert.Equal(t, uint(7), *tr.History.ToApproverID)
}

func TestResolveApproverFallback(t *testing.T) {
	assert.Equal(t, uint(1), ResolveApprover(nil, 1, 1, nil))
	assert.Equal(t, uint(5), ResolveApprover(&Approver{UserID: uintPtr(5)}, 1, 1, nil))
	assert.Equal(t, uint(7), ResolveApprover(&Approver{RoleID: uintPtr(3)}, 1, 1, staticResolver{userID: 7}))
	// Unresolvable role falls back to the submitter.
	assert.Equal(t, uint(1), ResolveApprover(&Approver{RoleID: uintPtr(3)}, 1, 1, nil))
}
