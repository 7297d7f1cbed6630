// Package escrowrecords provides the PostgreSQL-backed repository for the
// money held against milestones.
package escrowrecords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ivmelnik/escrowd/internal/common"
	"github.com/ivmelnik/escrowd/internal/dbx"
	"github.com/ivmelnik/escrowd/internal/server/models"
)

// activeEscrowConstraint is the partial unique index guarding "one active
// record per milestone" against concurrent hold calls.
const activeEscrowConstraint = "one_active_escrow_per_milestone"

// PostgresRepository implements escrow record storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const escrowColumns = `id, milestone_id, amount, status, tx_ref, held_at, released_at`

func scanRecord(row *sql.Row) (*models.EscrowRecord, error) {
	rec := &models.EscrowRecord{}
	err := row.Scan(&rec.ID, &rec.MilestoneID, &rec.Amount, &rec.Status, &rec.TxRef, &rec.HeldAt, &rec.ReleasedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: escrow record", common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.EscrowRecord) error {
	query := `
		INSERT INTO escrow_records (id, milestone_id, amount, status, tx_ref, held_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.MilestoneID, rec.Amount, rec.Status, rec.TxRef, rec.HeldAt)
	if err != nil {
		if constraint, ok := dbx.UniqueConstraint(err); ok {
			if constraint == activeEscrowConstraint {
				return fmt.Errorf("%w: milestone already has an active escrow record", common.ErrValidation)
			}
			return fmt.Errorf("%w: transaction reference %q already exists", common.ErrConflict, rec.TxRef)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.EscrowRecord, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_records WHERE id = $1`
	return scanRecord(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetActiveByMilestone(ctx context.Context, milestoneID string) (*models.EscrowRecord, error) {
	query := `
		SELECT ` + escrowColumns + ` FROM escrow_records
		WHERE milestone_id = $1 AND status IN ($2, $3)
	`
	return scanRecord(r.db.QueryRowContext(ctx, query, milestoneID, models.EscrowStatusPending, models.EscrowStatusHeld))
}

func (r *PostgresRepository) Transition(ctx context.Context, id string, status models.EscrowStatus, txRef string, releasedAt *time.Time) error {
	query := `
		UPDATE escrow_records
		SET status = $2, tx_ref = $3, released_at = $4
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, status, txRef, releasedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: transaction reference %q already exists", common.ErrConflict, txRef)
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: escrow record", common.ErrNotFound)
	}
	return nil
}
