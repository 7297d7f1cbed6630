package milestones

import (
	"context"

	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
)

// Repository is the persistence boundary for milestones.
type Repository interface {
	Create(ctx context.Context, m *models.Milestone) error
	Get(ctx context.Context, id string) (*models.Milestone, error)

	// GetForUpdate locks the milestone row for the duration of the enclosing
	// transaction. The dual-approval race (two near-simultaneous approve
	// calls) is resolved by both callers serializing on this lock.
	GetForUpdate(ctx context.Context, id string) (*models.Milestone, error)

	UpdateStatus(ctx context.Context, id string, status models.MilestoneStatus) error

	// UpdateApproval writes both approval flags and the status in one statement.
	UpdateApproval(ctx context.Context, id string, status models.MilestoneStatus, byPayer, byPerformer bool) error

	CountByStatus(ctx context.Context) (map[models.MilestoneStatus]int, error)

	// SumApprovedWithoutPayout totals APPROVED milestones lacking a payout
	// request. Under coupled approval+payout creation this is always zero;
	// the aggregator keeps it as a defensive term.
	SumApprovedWithoutPayout(ctx context.Context) (moneyx.Money, error)

	// ApprovedWithoutPayoutByContract returns the same defensive figure
	// grouped per contract, for the pending-payout dashboard list.
	ApprovedWithoutPayoutByContract(ctx context.Context) (map[string]moneyx.Money, error)
}
