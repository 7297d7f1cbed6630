package models

import (
	"time"

	"github.com/ivmelnik/escrowd/internal/moneyx"
)

// MilestoneStatus is the workflow state of one milestone.
//
// The machine is PENDING → IN_PROGRESS → SUBMITTED → {APPROVED → PAID |
// REJECTED → IN_PROGRESS}. APPROVED and REJECTED are pass-through states:
// full approval advances to PAID and a rejection returns to IN_PROGRESS
// within the same transaction, so they are never observable at rest under
// normal operation.
type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusSubmitted  MilestoneStatus = "submitted"
	MilestoneStatusApproved   MilestoneStatus = "approved"
	MilestoneStatusRejected   MilestoneStatus = "rejected"
	MilestoneStatusPaid       MilestoneStatus = "paid"
)

// Milestone is an ordered unit of the contract's total value.
type Milestone struct {
	ID                  string
	ContractID          string
	Title               string
	Amount              moneyx.Money
	SequenceOrder       int
	Status              MilestoneStatus
	ApprovedByPayer     bool
	ApprovedByPerformer bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
