// Package fundingintents provides the PostgreSQL-backed repository for
// payer deposit declarations.
package fundingintents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ivmelnik/escrowd/internal/common"
	"github.com/ivmelnik/escrowd/internal/dbx"
	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
)

// PostgresRepository implements funding intent storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const intentColumns = `id, contract_id, payer_id, amount, direction, status, tx_ref, reviewer_notes, confirmed_by, confirmed_at, created_at`

func (r *PostgresRepository) Create(ctx context.Context, fi *models.FundingIntent) error {
	query := `
		INSERT INTO funding_intents (id, contract_id, payer_id, amount, direction, status, tx_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		fi.ID, fi.ContractID, fi.PayerID, fi.Amount, fi.Direction, fi.Status, fi.TxRef)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: transaction reference %q already exists", common.ErrConflict, fi.TxRef)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.FundingIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM funding_intents WHERE id = $1`
	fi := &models.FundingIntent{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&fi.ID, &fi.ContractID, &fi.PayerID, &fi.Amount, &fi.Direction, &fi.Status,
		&fi.TxRef, &fi.ReviewerNotes, &fi.ConfirmedBy, &fi.ConfirmedAt, &fi.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: funding intent", common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return fi, nil
}

// UpdateReview transitions a pending intent to its terminal status. The
// status guard in the WHERE clause makes the transition single-shot even
// under concurrent reviewers; it returns the number of rows affected.
func (r *PostgresRepository) UpdateReview(ctx context.Context, id string, status models.FundingIntentStatus, notes *string, reviewerID string, at time.Time) (int64, error) {
	query := `
		UPDATE funding_intents
		SET status = $2, reviewer_notes = $3, confirmed_by = $4, confirmed_at = $5
		WHERE id = $1 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query, id, status, notes, reviewerID, at, models.FundingIntentStatusPendingReview)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) SumConfirmedByContract(ctx context.Context, contractID string) (moneyx.Money, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0) FROM funding_intents
		WHERE contract_id = $1 AND status = $2
	`
	var total moneyx.Money
	if err := r.db.QueryRowContext(ctx, query, contractID, models.FundingIntentStatusConfirmed).Scan(&total); err != nil {
		return moneyx.Zero(), fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

// RefExists checks transaction references across all reference-bearing
// tables, because references must be unique system-wide.
func (r *PostgresRepository) RefExists(ctx context.Context, ref string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM funding_intents WHERE tx_ref = $1)
		    OR EXISTS (SELECT 1 FROM escrow_records WHERE tx_ref = $1)
		    OR EXISTS (SELECT 1 FROM payout_requests WHERE tx_ref = $1)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ref).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
