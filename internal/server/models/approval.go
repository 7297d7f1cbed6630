package models

import "time"

// ApprovalDecision is one party's verdict on a milestone submission.
type ApprovalDecision string

const (
	ApprovalDecisionApproved ApprovalDecision = "approved"
	ApprovalDecisionRejected ApprovalDecision = "rejected"
)

// ApproverRole names the relationship the approver holds to the contract.
type ApproverRole string

const (
	ApproverRolePayer     ApproverRole = "payer"
	ApproverRolePerformer ApproverRole = "performer"
)

// Approval is an immutable audit record of one party's decision on a
// milestone submission. Append-only; never updated or deleted.
type Approval struct {
	ID          string
	MilestoneID string
	ApproverID  string
	Role        ApproverRole
	Decision    ApprovalDecision
	Comment     *string
	CreatedAt   time.Time
}
