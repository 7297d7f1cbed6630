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

// EscrowService holds and refunds the monetary record tied to one milestone.
// Release is not exposed here: it happens only inside the workflow engine's
// full-approval transaction.
type EscrowService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	now   func() time.Time
	newID func() string
}

// NewEscrowService constructs an EscrowService over the given store.
func NewEscrowService(db *sql.DB, repos repomanager.RepositoryManager) *EscrowService {
	return &EscrowService{db: db, repos: repos, now: time.Now, newID: uuid.NewString}
}

// Hold escrows a milestone's value. Only the contract's payer may hold; the
// amount defaults to the milestone's amount and, if given explicitly, must
// equal it within 0.01 currency units. At most one record per milestone may
// be active; the check-then-insert is backstopped by a storage-level partial
// unique index against concurrent callers.
func (s *EscrowService) Hold(ctx context.Context, milestoneID, payerID string, amount *moneyx.Money) (*models.EscrowRecord, error) {
	var record *models.EscrowRecord
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

		_, err = s.repos.EscrowRecords(tx).GetActiveByMilestone(ctx, milestoneID)
		if err == nil {
			return fmt.Errorf("%w: milestone already has an active escrow record", common.ErrValidation)
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		if amount != nil && !amount.EqualsApprox(milestone.Amount) {
			return fmt.Errorf("%w: amount %s does not match milestone amount %s", common.ErrValidation, amount, milestone.Amount)
		}

		record = &models.EscrowRecord{
			ID:          s.newID(),
			MilestoneID: milestoneID,
			Amount:      milestone.Amount,
			Status:      models.EscrowStatusHeld,
			TxRef:       moneyx.NewTxRef(),
			HeldAt:      s.now(),
		}
		return s.repos.EscrowRecords(tx).Create(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Refund returns a HELD record to the payer. Refunding is impossible once
// the owning milestone is approved or paid.
func (s *EscrowService) Refund(ctx context.Context, recordID, payerID string) (*models.EscrowRecord, error) {
	var record *models.EscrowRecord
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		record, err = s.repos.EscrowRecords(tx).Get(ctx, recordID)
		if err != nil {
			return err
		}
		milestone, err := s.repos.Milestones(tx).GetForUpdate(ctx, record.MilestoneID)
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

		if record.Status != models.EscrowStatusHeld {
			return fmt.Errorf("%w: escrow record status is %s, expected %s", common.ErrValidation, record.Status, models.EscrowStatusHeld)
		}
		if milestone.Status == models.MilestoneStatusApproved || milestone.Status == models.MilestoneStatusPaid {
			return fmt.Errorf("%w: cannot refund after milestone approval", common.ErrValidation)
		}

		now := s.now()
		ref := moneyx.NewTxRef()
		if err := s.repos.EscrowRecords(tx).Transition(ctx, record.ID, models.EscrowStatusRefunded, ref, &now); err != nil {
			return err
		}

		record.Status = models.EscrowStatusRefunded
		record.TxRef = ref
		record.ReleasedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
