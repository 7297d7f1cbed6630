package contracts

import (
	"context"

	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
)

// Repository is the persistence boundary for contracts.
type Repository interface {
	Create(ctx context.Context, c *models.Contract) error
	Get(ctx context.Context, id string) (*models.Contract, error)

	// GetForUpdate locks the contract row for the duration of the enclosing
	// transaction. Used by funding confirmation and payout settlement, which
	// both contend on escrowed_amount.
	GetForUpdate(ctx context.Context, id string) (*models.Contract, error)

	// UpdateEscrow writes a new escrowed amount and the funding status
	// recomputed from it.
	UpdateEscrow(ctx context.Context, id string, escrowed moneyx.Money, status models.FundingStatus) error

	SumEscrowed(ctx context.Context) (moneyx.Money, error)
	CountByStatus(ctx context.Context) (map[models.ContractStatus]int, error)
}
