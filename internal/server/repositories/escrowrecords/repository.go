package escrowrecords

import (
	"context"
	"time"

	"github.com/ivmelnik/escrowd/internal/server/models"
)

// Repository is the persistence boundary for escrow records.
type Repository interface {
	// Create inserts a new record. A concurrent duplicate active record for
	// the same milestone surfaces as ErrValidation (partial unique index);
	// a duplicate transaction reference surfaces as ErrConflict.
	Create(ctx context.Context, rec *models.EscrowRecord) error

	Get(ctx context.Context, id string) (*models.EscrowRecord, error)

	// GetActiveByMilestone returns the single PENDING or HELD record for a
	// milestone, or ErrNotFound when there is none.
	GetActiveByMilestone(ctx context.Context, milestoneID string) (*models.EscrowRecord, error)

	// Transition moves a record to RELEASED or REFUNDED, stamping the new
	// transaction reference and release time.
	Transition(ctx context.Context, id string, status models.EscrowStatus, txRef string, releasedAt *time.Time) error
}
