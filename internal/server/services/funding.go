// Package services contains the server-side business logic: the contract
// funding manager, the milestone workflow engine, the escrow release
// controller, the payout settlement manager, and the ledger aggregator.
//
// Every mutating operation runs as one serializable transaction against the
// store; a partial application of a multi-step operation is never an
// observable state.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ivmelnik/escrowd/internal/common"
	"github.com/ivmelnik/escrowd/internal/dbx"
	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
	"github.com/ivmelnik/escrowd/internal/server/repositories/repomanager"
)

// FundingService tracks how much of a contract's total value is escrowed:
// payers submit funding intents, reviewers confirm or reject them, and the
// contract balance moves only on confirmation.
type FundingService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	now   func() time.Time
	newID func() string
}

// NewFundingService constructs a FundingService over the given store.
func NewFundingService(db *sql.DB, repos repomanager.RepositoryManager) *FundingService {
	return &FundingService{db: db, repos: repos, now: time.Now, newID: uuid.NewString}
}

// SubmitFunding records a payer's deposit declaration in pending-review
// state. The amount must not overfund the contract relative to what has
// already been confirmed; pending intents do not count against the limit.
func (s *FundingService) SubmitFunding(ctx context.Context, contractID, payerID string, amount moneyx.Money, ref string) (*models.FundingIntent, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", common.ErrValidation)
	}

	var intent *models.FundingIntent
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		contract, err := s.repos.Contracts(tx).Get(ctx, contractID)
		if err != nil {
			return err
		}
		if contract.PayerID != payerID {
			return fmt.Errorf("%w: caller is not this contract's payer", common.ErrForbidden)
		}

		confirmed, err := s.repos.FundingIntents(tx).SumConfirmedByContract(ctx, contractID)
		if err != nil {
			return err
		}
		remaining := contract.TotalValue.Sub(confirmed)
		if amount.GreaterThan(remaining) {
			return fmt.Errorf("%w: amount %s exceeds remaining unfunded total %s", common.ErrValidation, amount, remaining)
		}

		if ref == "" {
			ref = moneyx.NewTxRef()
		} else {
			exists, err := s.repos.FundingIntents(tx).RefExists(ctx, ref)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: transaction reference %q already exists", common.ErrConflict, ref)
			}
		}

		intent = &models.FundingIntent{
			ID:         s.newID(),
			ContractID: contractID,
			PayerID:    payerID,
			Amount:     amount,
			Direction:  models.FundingDirectionIncoming,
			Status:     models.FundingIntentStatusPendingReview,
			TxRef:      ref,
			CreatedAt:  s.now(),
		}
		return s.repos.FundingIntents(tx).Create(ctx, intent)
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// ConfirmFunding applies a reviewer's confirmation: the intent becomes
// terminal and the contract's escrowed balance grows by its amount, with the
// funding status recomputed, all in one transaction.
func (s *FundingService) ConfirmFunding(ctx context.Context, intentID, reviewerID string, notes *string) (*ConfirmFundingResult, error) {
	result := &ConfirmFundingResult{}
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		intents := s.repos.FundingIntents(tx)

		intent, err := intents.Get(ctx, intentID)
		if err != nil {
			return err
		}
		if intent.Status != models.FundingIntentStatusPendingReview {
			return fmt.Errorf("%w: intent status is %s, expected %s", common.ErrValidation, intent.Status, models.FundingIntentStatusPendingReview)
		}

		// Lock the contract row: escrowed_amount is the write-contention
		// point shared with payout settlement.
		contract, err := s.repos.Contracts(tx).GetForUpdate(ctx, intent.ContractID)
		if err != nil {
			return err
		}

		now := s.now()
		n, err := intents.UpdateReview(ctx, intentID, models.FundingIntentStatusConfirmed, notes, reviewerID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: intent is no longer pending review", common.ErrValidation)
		}

		escrowed := contract.EscrowedAmount.Add(intent.Amount)
		status := models.DeriveFundingStatus(escrowed, contract.TotalValue)
		if err := s.repos.Contracts(tx).UpdateEscrow(ctx, contract.ID, escrowed, status); err != nil {
			return err
		}

		intent.Status = models.FundingIntentStatusConfirmed
		intent.ReviewerNotes = notes
		intent.ConfirmedBy = &reviewerID
		intent.ConfirmedAt = &now
		contract.EscrowedAmount = escrowed
		contract.FundingStatus = status

		result.Intent = intent
		result.Contract = contract
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RejectFunding applies a reviewer's rejection. Notes are mandatory; the
// contract balance is untouched.
func (s *FundingService) RejectFunding(ctx context.Context, intentID, reviewerID, notes string) (*models.FundingIntent, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, fmt.Errorf("%w: rejection notes are mandatory", common.ErrValidation)
	}

	var intent *models.FundingIntent
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		intents := s.repos.FundingIntents(tx)

		var err error
		intent, err = intents.Get(ctx, intentID)
		if err != nil {
			return err
		}
		if intent.Status != models.FundingIntentStatusPendingReview {
			return fmt.Errorf("%w: intent status is %s, expected %s", common.ErrValidation, intent.Status, models.FundingIntentStatusPendingReview)
		}

		now := s.now()
		n, err := intents.UpdateReview(ctx, intentID, models.FundingIntentStatusRejected, &notes, reviewerID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: intent is no longer pending review", common.ErrValidation)
		}

		intent.Status = models.FundingIntentStatusRejected
		intent.ReviewerNotes = &notes
		intent.ConfirmedBy = &reviewerID
		intent.ConfirmedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}
