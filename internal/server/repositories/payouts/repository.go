package payouts

import (
	"context"
	"time"

	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
)

// MonthlyTotal is the settled amount for one calendar month.
type MonthlyTotal struct {
	Year   int
	Month  time.Month
	Amount moneyx.Money
}

// Repository is the persistence boundary for payout requests.
type Repository interface {
	Create(ctx context.Context, p *models.PayoutRequest) error
	Get(ctx context.Context, id string) (*models.PayoutRequest, error)

	// GetByMilestone returns the payout for a milestone, or ErrNotFound.
	// Milestone-to-payout is at most 1:1.
	GetByMilestone(ctx context.Context, milestoneID string) (*models.PayoutRequest, error)

	// Settle transitions a pending payout to SETTLED; zero rows affected
	// means the payout was not pending. Returns rows affected.
	Settle(ctx context.Context, id, reviewerID, txRef string, at time.Time) (int64, error)

	SumByStatus(ctx context.Context, status models.PayoutStatus) (moneyx.Money, error)

	// MonthlySettledTotals groups settled payouts by calendar month of
	// settlement, chronologically, starting at since.
	MonthlySettledTotals(ctx context.Context, since time.Time) ([]MonthlyTotal, error)

	// PendingByContract sums PENDING_SETTLEMENT payout amounts per contract.
	PendingByContract(ctx context.Context) (map[string]moneyx.Money, error)

	RefExists(ctx context.Context, ref string) (bool, error)
}
