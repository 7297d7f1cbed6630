package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ivmelnik/escrowd/internal/common"
	"github.com/ivmelnik/escrowd/internal/dbx"
	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
	"github.com/ivmelnik/escrowd/internal/server/repositories/repomanager"
)

// ContractService creates and reads contracts. Creation enforces the one
// structural rule the ledger depends on: milestone amounts must sum exactly
// to the contract's total value.
type ContractService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	now   func() time.Time
	newID func() string
}

// NewContractService constructs a ContractService over the given store.
func NewContractService(db *sql.DB, repos repomanager.RepositoryManager) *ContractService {
	return &ContractService{db: db, repos: repos, now: time.Now, newID: uuid.NewString}
}

// Create inserts a contract and its milestones in one transaction. The
// performer may be left unassigned.
func (s *ContractService) Create(ctx context.Context, payerID, title string, total moneyx.Money, performerID *string, milestones []MilestoneInput) (*models.Contract, error) {
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: total value must be positive", common.ErrValidation)
	}
	if len(milestones) == 0 {
		return nil, fmt.Errorf("%w: at least one milestone is required", common.ErrValidation)
	}
	sum := moneyx.Zero()
	for _, m := range milestones {
		if !m.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: milestone amounts must be positive", common.ErrValidation)
		}
		sum = sum.Add(m.Amount)
	}
	if !sum.Equal(total) {
		return nil, fmt.Errorf("%w: milestone amounts sum to %s, expected total value %s", common.ErrValidation, sum, total)
	}

	contract := &models.Contract{
		ID:             s.newID(),
		PayerID:        payerID,
		PerformerID:    performerID,
		Title:          title,
		TotalValue:     total,
		EscrowedAmount: moneyx.Zero(),
		FundingStatus:  models.FundingStatusNotFunded,
		Status:         models.ContractStatusDraft,
		CreatedAt:      s.now(),
		UpdatedAt:      s.now(),
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Contracts(tx).Create(ctx, contract); err != nil {
			return err
		}
		for i, in := range milestones {
			m := &models.Milestone{
				ID:            s.newID(),
				ContractID:    contract.ID,
				Title:         in.Title,
				Amount:        in.Amount,
				SequenceOrder: in.SequenceOrder,
				Status:        models.MilestoneStatusPending,
			}
			if m.SequenceOrder == 0 {
				m.SequenceOrder = i + 1
			}
			if err := s.repos.Milestones(tx).Create(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// Get returns a contract by ID.
func (s *ContractService) Get(ctx context.Context, id string) (*models.Contract, error) {
	return s.repos.Contracts(s.db).Get(ctx, id)
}
