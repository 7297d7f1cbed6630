package fundingintents

import (
	"context"
	"time"

	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
)

// Repository is the persistence boundary for funding intents.
type Repository interface {
	Create(ctx context.Context, fi *models.FundingIntent) error
	Get(ctx context.Context, id string) (*models.FundingIntent, error)

	// UpdateReview records the reviewer's terminal decision. It only applies
	// while the intent is still pending review; zero rows affected maps to
	// ErrValidation at the caller.
	UpdateReview(ctx context.Context, id string, status models.FundingIntentStatus, notes *string, reviewerID string, at time.Time) (int64, error)

	// SumConfirmedByContract sums all confirmed intent amounts for a contract.
	SumConfirmedByContract(ctx context.Context, contractID string) (moneyx.Money, error)

	RefExists(ctx context.Context, ref string) (bool, error)
}
