/*
approval.go - The approval router

PURPOSE:
  Given a request's status and its policy's ApprovalWorkflow, decides
  which role must act next and whether a given (role, action) pair is
  allowed. The router is pure: it reads the workflow flags and the
  status, touches no storage, and the state machine (request.go) is its
  only caller.

ROUTING RULES:
  - RequiresManagerApproval: the manager decides first from pending.
  - RequiresHRApproval: HR must finalize. With MultiLevel the manager's
    approval moves the request to pending_hr and only then may HR act;
    without MultiLevel HR may finalize straight from pending.
  - HR may always substitute for a missing manager step (a request
    must never be stuck because a manager is absent).
  - Neither flag set: submission auto-approves; the router is not
    consulted.

SEE ALSO:
  - policy.go:  ApprovalWorkflow flags
  - request.go: State machine invoking Authorize before any transition
*/
package leave

import "time"

// =============================================================================
// DECISIONS AND STEPS
// =============================================================================

// Decision is an approver's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionReturn  Decision = "return"
)

// ApprovalStep records one decision taken on a request.
type ApprovalStep struct {
	Role     Role
	ActorID  EmployeeID
	Decision Decision
	Comment  string
	At       time.Time
}

// =============================================================================
// ROUTER
// =============================================================================

// ApprovalRouter evaluates workflow flags against request state.
type ApprovalRouter struct{}

// NextRole returns the role whose decision the request is waiting on,
// or "" when no further approval is needed.
func (ApprovalRouter) NextRole(status RequestStatus, wf ApprovalWorkflow) Role {
	switch status {
	case StatusPending:
		if wf.RequiresManagerApproval {
			return RoleManager
		}
		if wf.RequiresHRApproval {
			return RoleHR
		}
		return ""
	case StatusPendingHR:
		return RoleHR
	default:
		return ""
	}
}

// Authorize reports whether a role may decide a request in its current
// status under the workflow. Decisions other than approve share the
// same authority as approve.
func (ApprovalRouter) Authorize(role Role, status RequestStatus, wf ApprovalWorkflow) bool {
	switch status {
	case StatusPending:
		switch role {
		case RoleManager:
			return wf.RequiresManagerApproval
		case RoleHR:
			// HR substitutes for the manager step, except under strict
			// multi-level ordering where the manager must go first and
			// HR approves only from pending_hr.
			if wf.MultiLevel && wf.RequiresManagerApproval && wf.RequiresHRApproval {
				return false
			}
			return wf.RequiresManagerApproval || wf.RequiresHRApproval
		default:
			return false
		}
	case StatusPendingHR:
		return role == RoleHR
	default:
		return false
	}
}

// AfterApproval returns the status a request enters once the acting
// role approves it.
func (r ApprovalRouter) AfterApproval(role Role, status RequestStatus, wf ApprovalWorkflow) RequestStatus {
	if status == StatusPending && role == RoleManager && wf.RequiresHRApproval {
		return StatusPendingHR
	}
	return StatusApproved
}

// AutoApproves reports whether a submission needs no approval at all.
func (ApprovalRouter) AutoApproves(wf ApprovalWorkflow) bool {
	return !wf.RequiresManagerApproval && !wf.RequiresHRApproval
}
