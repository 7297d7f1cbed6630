package approvals

import (
	"context"

	"github.com/ivmelnik/escrowd/internal/server/models"
)

// Repository is the persistence boundary for the append-only approval log.
type Repository interface {
	Create(ctx context.Context, a *models.Approval) error
	ListByMilestone(ctx context.Context, milestoneID string) ([]*models.Approval, error)

	// ExistsApproved reports whether any APPROVED decision has been recorded
	// for the milestone (a rejection is not allowed after one).
	ExistsApproved(ctx context.Context, milestoneID string) (bool, error)
}
