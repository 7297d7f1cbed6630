// Package payouts provides the PostgreSQL-backed repository for performer
// payout requests and the settlement aggregation queries.
package payouts

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

// PostgresRepository implements payout storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const payoutColumns = `id, milestone_id, contract_id, amount, status, tx_ref, requested_at, settled_at, settled_by`

func scanPayout(row *sql.Row) (*models.PayoutRequest, error) {
	p := &models.PayoutRequest{}
	err := row.Scan(&p.ID, &p.MilestoneID, &p.ContractID, &p.Amount, &p.Status, &p.TxRef, &p.RequestedAt, &p.SettledAt, &p.SettledBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: payout request", common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.PayoutRequest) error {
	query := `
		INSERT INTO payout_requests (id, milestone_id, contract_id, amount, status, tx_ref, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.MilestoneID, p.ContractID, p.Amount, p.Status, p.TxRef, p.RequestedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: payout already exists", common.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1`
	return scanPayout(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByMilestone(ctx context.Context, milestoneID string) (*models.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE milestone_id = $1`
	return scanPayout(r.db.QueryRowContext(ctx, query, milestoneID))
}

// Settle is guarded on status in the WHERE clause so a payout settles
// exactly once even under concurrent reviewers.
func (r *PostgresRepository) Settle(ctx context.Context, id, reviewerID, txRef string, at time.Time) (int64, error) {
	query := `
		UPDATE payout_requests
		SET status = $2, tx_ref = $3, settled_by = $4, settled_at = $5
		WHERE id = $1 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		id, models.PayoutStatusSettled, txRef, reviewerID, at, models.PayoutStatusPendingSettlement)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: transaction reference %q already exists", common.ErrConflict, txRef)
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) SumByStatus(ctx context.Context, status models.PayoutStatus) (moneyx.Money, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payout_requests WHERE status = $1`
	var total moneyx.Money
	if err := r.db.QueryRowContext(ctx, query, status).Scan(&total); err != nil {
		return moneyx.Zero(), fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

func (r *PostgresRepository) MonthlySettledTotals(ctx context.Context, since time.Time) ([]MonthlyTotal, error) {
	query := `
		SELECT EXTRACT(YEAR FROM settled_at)::int,
		       EXTRACT(MONTH FROM settled_at)::int,
		       COALESCE(SUM(amount), 0)
		FROM payout_requests
		WHERE status = $1 AND settled_at >= $2
		GROUP BY 1, 2
		ORDER BY 1, 2
	`
	rows, err := r.db.QueryContext(ctx, query, models.PayoutStatusSettled, since)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []MonthlyTotal
	for rows.Next() {
		var year, month int
		var amount moneyx.Money
		if err := rows.Scan(&year, &month, &amount); err != nil {
			return nil, err
		}
		result = append(result, MonthlyTotal{Year: year, Month: time.Month(month), Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) PendingByContract(ctx context.Context) (map[string]moneyx.Money, error) {
	query := `
		SELECT contract_id, COALESCE(SUM(amount), 0)
		FROM payout_requests
		WHERE status = $1
		GROUP BY contract_id
	`
	rows, err := r.db.QueryContext(ctx, query, models.PayoutStatusPendingSettlement)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make(map[string]moneyx.Money)
	for rows.Next() {
		var contractID string
		var amount moneyx.Money
		if err := rows.Scan(&contractID, &amount); err != nil {
			return nil, err
		}
		result[contractID] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) RefExists(ctx context.Context, ref string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM payout_requests WHERE tx_ref = $1)
		    OR EXISTS (SELECT 1 FROM funding_intents WHERE tx_ref = $1)
		    OR EXISTS (SELECT 1 FROM escrow_records WHERE tx_ref = $1)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ref).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
