// Package milestones provides the PostgreSQL-backed repository for milestone
// rows and the workflow-state updates issued by the milestone engine.
package milestones

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ivmelnik/escrowd/internal/common"
	"github.com/ivmelnik/escrowd/internal/dbx"
	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
)

// PostgresRepository implements milestone storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const milestoneColumns = `id, contract_id, title, amount, sequence_order, status, approved_by_payer, approved_by_performer, created_at, updated_at`

func scanMilestone(row *sql.Row) (*models.Milestone, error) {
	m := &models.Milestone{}
	err := row.Scan(
		&m.ID, &m.ContractID, &m.Title, &m.Amount, &m.SequenceOrder,
		&m.Status, &m.ApprovedByPayer, &m.ApprovedByPerformer, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: milestone", common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Milestone) error {
	query := `
		INSERT INTO milestones (id, contract_id, title, amount, sequence_order, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.ContractID, m.Title, m.Amount, m.SequenceOrder, m.Status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1`
	return scanMilestone(r.db.QueryRowContext(ctx, query, id))
}

// GetForUpdate reads the milestone under a row lock. Must be called inside a
// transaction.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1 FOR UPDATE`
	return scanMilestone(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.MilestoneStatus) error {
	query := `UPDATE milestones SET status = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, status)
}

func (r *PostgresRepository) UpdateApproval(ctx context.Context, id string, status models.MilestoneStatus, byPayer, byPerformer bool) error {
	query := `
		UPDATE milestones
		SET status = $2, approved_by_payer = $3, approved_by_performer = $4, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, status, byPayer, byPerformer)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: milestone", common.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[models.MilestoneStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM milestones GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make(map[models.MilestoneStatus]int)
	for rows.Next() {
		var status models.MilestoneStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		result[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) SumApprovedWithoutPayout(ctx context.Context) (moneyx.Money, error) {
	query := `
		SELECT COALESCE(SUM(m.amount), 0)
		FROM milestones m
		LEFT JOIN payout_requests p ON p.milestone_id = m.id
		WHERE m.status = $1 AND p.id IS NULL
	`
	var total moneyx.Money
	if err := r.db.QueryRowContext(ctx, query, models.MilestoneStatusApproved).Scan(&total); err != nil {
		return moneyx.Zero(), fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

func (r *PostgresRepository) ApprovedWithoutPayoutByContract(ctx context.Context) (map[string]moneyx.Money, error) {
	query := `
		SELECT m.contract_id, COALESCE(SUM(m.amount), 0)
		FROM milestones m
		LEFT JOIN payout_requests p ON p.milestone_id = m.id
		WHERE m.status = $1 AND p.id IS NULL
		GROUP BY m.contract_id
	`
	rows, err := r.db.QueryContext(ctx, query, models.MilestoneStatusApproved)
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
