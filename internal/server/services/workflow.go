package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ivmelnik/escrowd/internal/common"
	"github.com/ivmelnik/escrowd/internal/dbx"
	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
	"github.com/ivmelnik/escrowd/internal/server/repositories/repomanager"
)

// WorkflowService is the milestone state machine:
// PENDING → IN_PROGRESS → SUBMITTED → {APPROVED → PAID | REJECTED → IN_PROGRESS}.
// Full approval releases the held escrow and creates the payout request
// within the approval transaction, so no observer can see both approval
// flags set while the escrow is still held.
//
// Whether a contract must be fully funded before a milestone starts is a
// caller policy; the engine does not enforce it.
type WorkflowService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	payouts *PayoutService
	now     func() time.Time
	newID   func() string
}

// NewWorkflowService constructs a WorkflowService over the given store.
func NewWorkflowService(db *sql.DB, repos repomanager.RepositoryManager, payouts *PayoutService) *WorkflowService {
	return &WorkflowService{db: db, repos: repos, payouts: payouts, now: time.Now, newID: uuid.NewString}
}

// Start moves a PENDING milestone to IN_PROGRESS. Performer only.
func (s *WorkflowService) Start(ctx context.Context, milestoneID, performerID string) (*models.Milestone, error) {
	return s.transition(ctx, milestoneID, performerID, models.MilestoneStatusPending, models.MilestoneStatusInProgress)
}

// Submit moves an IN_PROGRESS milestone to SUBMITTED. Performer only.
func (s *WorkflowService) Submit(ctx context.Context, milestoneID, performerID string) (*models.Milestone, error) {
	return s.transition(ctx, milestoneID, performerID, models.MilestoneStatusInProgress, models.MilestoneStatusSubmitted)
}

func (s *WorkflowService) transition(ctx context.Context, milestoneID, performerID string, from, to models.MilestoneStatus) (*models.Milestone, error) {
	var milestone *models.Milestone
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		milestone, err = s.repos.Milestones(tx).GetForUpdate(ctx, milestoneID)
		if err != nil {
			return err
		}
		contract, err := s.repos.Contracts(tx).Get(ctx, milestone.ContractID)
		if err != nil {
			return err
		}
		if contract.PerformerID == nil || *contract.PerformerID != performerID {
			return fmt.Errorf("%w: caller is not this contract's performer", common.ErrForbidden)
		}
		if milestone.Status != from {
			return fmt.Errorf("%w: milestone status is %s, expected %s", common.ErrValidation, milestone.Status, from)
		}
		if err := s.repos.Milestones(tx).UpdateStatus(ctx, milestoneID, to); err != nil {
			return err
		}
		milestone.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	return milestone, nil
}

// Approve records one party's approval of a SUBMITTED milestone. The first
// approval leaves the milestone submitted; the second one — within the same
// transaction — marks it PAID, releases the held escrow under a fresh
// transaction reference, and creates the payout request.
func (s *WorkflowService) Approve(ctx context.Context, milestoneID, approverID string, role models.ApproverRole, comment *string) (*ApproveResult, error) {
	result := &ApproveResult{}
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		// The row lock serializes dual approvals: two near-simultaneous
		// calls cannot both observe the other flag unset.
		milestone, err := s.repos.Milestones(tx).GetForUpdate(ctx, milestoneID)
		if err != nil {
			return err
		}
		contract, err := s.repos.Contracts(tx).Get(ctx, milestone.ContractID)
		if err != nil {
			return err
		}
		if err := checkApproverRole(contract, approverID, role); err != nil {
			return err
		}
		if milestone.Status != models.MilestoneStatusSubmitted {
			return fmt.Errorf("%w: milestone status is %s, expected %s", common.ErrValidation, milestone.Status, models.MilestoneStatusSubmitted)
		}
		alreadyApproved := (role == models.ApproverRolePayer && milestone.ApprovedByPayer) ||
			(role == models.ApproverRolePerformer && milestone.ApprovedByPerformer)
		if alreadyApproved {
			return fmt.Errorf("%w: %s already approved this milestone", common.ErrValidation, role)
		}

		record, err := s.repos.EscrowRecords(tx).GetActiveByMilestone(ctx, milestoneID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("%w: milestone is not funded", common.ErrValidation)
			}
			return err
		}
		if record.Status != models.EscrowStatusHeld {
			return fmt.Errorf("%w: milestone is not funded", common.ErrValidation)
		}

		approval := &models.Approval{
			ID:          s.newID(),
			MilestoneID: milestoneID,
			ApproverID:  approverID,
			Role:        role,
			Decision:    models.ApprovalDecisionApproved,
			Comment:     comment,
			CreatedAt:   s.now(),
		}
		if err := s.repos.Approvals(tx).Create(ctx, approval); err != nil {
			return err
		}

		byPayer := milestone.ApprovedByPayer || role == models.ApproverRolePayer
		byPerformer := milestone.ApprovedByPerformer || role == models.ApproverRolePerformer

		if !(byPayer && byPerformer) {
			if err := s.repos.Milestones(tx).UpdateApproval(ctx, milestoneID, models.MilestoneStatusSubmitted, byPayer, byPerformer); err != nil {
				return err
			}
			milestone.ApprovedByPayer = byPayer
			milestone.ApprovedByPerformer = byPerformer
			result.Milestone = milestone
			result.Approval = approval
			return nil
		}

		// Fully approved: SUBMITTED→APPROVED→PAID, release the escrow, and
		// create the payout, all within this transaction.
		if err := s.repos.Milestones(tx).UpdateApproval(ctx, milestoneID, models.MilestoneStatusPaid, true, true); err != nil {
			return err
		}
		now := s.now()
		releaseRef := moneyx.NewTxRef()
		if err := s.repos.EscrowRecords(tx).Transition(ctx, record.ID, models.EscrowStatusReleased, releaseRef, &now); err != nil {
			return err
		}
		record.Status = models.EscrowStatusReleased
		record.TxRef = releaseRef
		record.ReleasedAt = &now

		milestone.Status = models.MilestoneStatusPaid
		milestone.ApprovedByPayer = true
		milestone.ApprovedByPerformer = true

		payout, err := s.payouts.EnsureForMilestone(ctx, tx, milestone)
		if err != nil {
			return err
		}

		result.Milestone = milestone
		result.Approval = approval
		result.Released = record
		result.Payout = payout
		result.FullyApproved = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reject records the payer's rejection of a SUBMITTED milestone and returns
// it to IN_PROGRESS for resubmission. Rejection is impossible once any
// approval has been recorded. The held escrow is untouched.
func (s *WorkflowService) Reject(ctx context.Context, milestoneID, payerID string, comment *string) (*RejectResult, error) {
	result := &RejectResult{}
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		milestone, err := s.repos.Milestones(tx).GetForUpdate(ctx, milestoneID)
		if err != nil {
			return err
		}
		contract, err := s.repos.Contracts(tx).Get(ctx, milestone.ContractID)
		if err != nil {
			return err
		}
		if contract.PayerID != payerID {
			return fmt.Errorf("%w: caller is not this contract's payer", common.ErrForbidden)
		}
		if milestone.Status != models.MilestoneStatusSubmitted {
			return fmt.Errorf("%w: milestone status is %s, expected %s", common.ErrValidation, milestone.Status, models.MilestoneStatusSubmitted)
		}
		approved, err := s.repos.Approvals(tx).ExistsApproved(ctx, milestoneID)
		if err != nil {
			return err
		}
		if approved {
			return fmt.Errorf("%w: cannot reject after an approval has been recorded", common.ErrValidation)
		}

		approval := &models.Approval{
			ID:          s.newID(),
			MilestoneID: milestoneID,
			ApproverID:  payerID,
			Role:        models.ApproverRolePayer,
			Decision:    models.ApprovalDecisionRejected,
			Comment:     comment,
			CreatedAt:   s.now(),
		}
		if err := s.repos.Approvals(tx).Create(ctx, approval); err != nil {
			return err
		}

		// SUBMITTED→REJECTED→IN_PROGRESS; the observable state is
		// IN_PROGRESS so the milestone is reusable for resubmission.
		if err := s.repos.Milestones(tx).UpdateStatus(ctx, milestoneID, models.MilestoneStatusInProgress); err != nil {
			return err
		}
		milestone.Status = models.MilestoneStatusInProgress

		result.Milestone = milestone
		result.Approval = approval
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkApproverRole(contract *models.Contract, approverID string, role models.ApproverRole) error {
	switch role {
	case models.ApproverRolePayer:
		if contract.PayerID != approverID {
			return fmt.Errorf("%w: caller is not this contract's payer", common.ErrForbidden)
		}
	case models.ApproverRolePerformer:
		if contract.PerformerID == nil || *contract.PerformerID != approverID {
			return fmt.Errorf("%w: caller is not this contract's performer", common.ErrForbidden)
		}
	default:
		return fmt.Errorf("%w: unknown approver role %q", common.ErrValidation, role)
	}
	return nil
}
