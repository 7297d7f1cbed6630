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

// PayoutService converts fully-approved milestones into performer payout
// requests and lets the reviewer mark them settled, debiting the contract's
// escrowed balance.
type PayoutService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	now   func() time.Time
	newID func() string
}

// NewPayoutService constructs a PayoutService over the given store.
func NewPayoutService(db *sql.DB, repos repomanager.RepositoryManager) *PayoutService {
	return &PayoutService{db: db, repos: repos, now: time.Now, newID: uuid.NewString}
}

// EnsureForMilestone creates the milestone's payout request inside the
// caller's transaction, or returns the existing one. This is the only
// creation path and it is idempotent; the workflow engine calls it within
// the full-approval transaction.
func (s *PayoutService) EnsureForMilestone(ctx context.Context, tx dbx.DBTX, milestone *models.Milestone) (*models.PayoutRequest, error) {
	existing, err := s.repos.Payouts(tx).GetByMilestone(ctx, milestone.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	payout := &models.PayoutRequest{
		ID:          s.newID(),
		MilestoneID: milestone.ID,
		ContractID:  milestone.ContractID,
		Amount:      milestone.Amount,
		Status:      models.PayoutStatusPendingSettlement,
		TxRef:       moneyx.NewTxRef(),
		RequestedAt: s.now(),
	}
	if err := s.repos.Payouts(tx).Create(ctx, payout); err != nil {
		return nil, err
	}
	return payout, nil
}

// Settle marks a pending payout as settled by the reviewer and debits the
// contract's escrowed balance, clamped at zero, recomputing the funding
// status — all in one transaction.
func (s *PayoutService) Settle(ctx context.Context, payoutID, reviewerID, ref string) (*SettleResult, error) {
	result := &SettleResult{}
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		pr := s.repos.Payouts(tx)

		payout, err := pr.Get(ctx, payoutID)
		if err != nil {
			return err
		}
		if payout.Status != models.PayoutStatusPendingSettlement {
			return fmt.Errorf("%w: payout status is %s, expected %s", common.ErrValidation, payout.Status, models.PayoutStatusPendingSettlement)
		}

		if ref == "" {
			ref = moneyx.NewTxRef()
		} else if ref != payout.TxRef {
			exists, err := pr.RefExists(ctx, ref)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: transaction reference %q already exists", common.ErrConflict, ref)
			}
		}

		// Same locked update path as funding confirmation: escrowed_amount
		// is shared write contention between confirm and settle.
		contract, err := s.repos.Contracts(tx).GetForUpdate(ctx, payout.ContractID)
		if err != nil {
			return err
		}

		now := s.now()
		n, err := pr.Settle(ctx, payoutID, reviewerID, ref, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: payout is no longer pending settlement", common.ErrValidation)
		}

		escrowed := contract.EscrowedAmount.Sub(payout.Amount).ClampNonNegative()
		status := models.DeriveFundingStatus(escrowed, contract.TotalValue)
		if err := s.repos.Contracts(tx).UpdateEscrow(ctx, contract.ID, escrowed, status); err != nil {
			return err
		}

		payout.Status = models.PayoutStatusSettled
		payout.TxRef = ref
		payout.SettledBy = &reviewerID
		payout.SettledAt = &now
		contract.EscrowedAmount = escrowed
		contract.FundingStatus = status

		result.Payout = payout
		result.Contract = contract
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
