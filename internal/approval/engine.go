package approval

import (
	"time"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/model"
)

// Action is a request to transition a pending instance.
type Action struct {
	Type       string // approve, reject, cancel, transfer
	ActorID    uint
	Comment    string
	TransferTo *uint
}

// Transition is the pure outcome of applying an action: the instance fields
// to write and the history row to append. Persistence happens elsewhere.
type Transition struct {
	Status            string
	CurrentNode       string
	CurrentApproverID *uint
	Completed         bool
	History           model.ApprovalHistory
}

// Begin computes the initial state of a new instance: position on the start
// node, or directly on its first successor when the start node carries no
// approver of its own.
func Begin(g Graph, tenantID, submitterID uint, r Resolver) (*Transition, error) {
	startID, err := g.Start()
	if err != nil {
		return nil, err
	}

	nodeID := startID
	node := g[startID]
	if node.Approver == nil {
		next, ok := g.Successor(startID)
		if !ok || g[next].Type == NodeTypeEnd {
			// Degenerate graph with nothing to approve.
			return nil, apperror.Validation("process has no approvable node")
		}
		nodeID = next
		node = g[next]
	}

	approverID := ResolveApprover(node.Approver, tenantID, submitterID, r)
	return &Transition{
		Status:            model.ApprovalStatusPending,
		CurrentNode:       nodeID,
		CurrentApproverID: &approverID,
		History: model.ApprovalHistory{
			Action:       model.ApprovalActionSubmit,
			ActionBy:     submitterID,
			ActionAt:     time.Now(),
			ToNode:       nodeID,
			ToApproverID: &approverID,
		},
	}, nil
}

// Step applies one action to a pending instance and returns the resulting
// transition. It validates actor and state but touches no storage. r may be
// nil, in which case role and department approvers on the successor node
// fall back to the submitter.
func Step(g Graph, inst *model.ApprovalInstance, act Action, r Resolver) (*Transition, error) {
	if inst.Status != model.ApprovalStatusPending {
		return nil, apperror.Validation("approval is already completed")
	}

	isApprover := inst.CurrentApproverID != nil && *inst.CurrentApproverID == act.ActorID
	if act.Type == model.ApprovalActionCancel {
		if act.ActorID != inst.SubmitterID && !isApprover {
			return nil, apperror.Validation("only the submitter or current approver may cancel")
		}
	} else if !isApprover {
		return nil, apperror.Validation("only the current approver may act on this approval")
	}

	base := model.ApprovalHistory{
		Action:         act.Type,
		ActionBy:       act.ActorID,
		ActionAt:       time.Now(),
		Comment:        act.Comment,
		FromNode:       inst.CurrentNode,
		FromApproverID: inst.CurrentApproverID,
	}

	switch act.Type {
	case model.ApprovalActionApprove:
		next, ok := g.Successor(inst.CurrentNode)
		if !ok || g[next].Type == NodeTypeEnd {
			return &Transition{
				Status:    model.ApprovalStatusApproved,
				Completed: true,
				History:   base,
			}, nil
		}
		approverID := ResolveApprover(g[next].Approver, inst.TenantID, inst.SubmitterID, r)
		base.ToNode = next
		base.ToApproverID = &approverID
		return &Transition{
			Status:            model.ApprovalStatusPending,
			CurrentNode:       next,
			CurrentApproverID: &approverID,
			History:           base,
		}, nil

	case model.ApprovalActionReject:
		return &Transition{
			Status:    model.ApprovalStatusRejected,
			Completed: true,
			History:   base,
		}, nil

	case model.ApprovalActionCancel:
		return &Transition{
			Status:    model.ApprovalStatusCancelled,
			Completed: true,
			History:   base,
		}, nil

	case model.ApprovalActionTransfer:
		if act.TransferTo == nil {
			return nil, apperror.Validation("transfer_to_user_id is required")
		}
		base.ToNode = inst.CurrentNode
		base.ToApproverID = act.TransferTo
		return &Transition{
			Status:            model.ApprovalStatusPending,
			CurrentNode:       inst.CurrentNode,
			CurrentApproverID: act.TransferTo,
			History:           base,
		}, nil

	default:
		return nil, apperror.Validation("unknown approval action: " + act.Type)
	}
}
