// Package approvals provides the PostgreSQL-backed repository for the
// append-only milestone approval audit log.
package approvals

import (
	"context"
	"fmt"

	"github.com/ivmelnik/escrowd/internal/dbx"
	"github.com/ivmelnik/escrowd/internal/server/models"
)

// PostgresRepository implements approval storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Approval) error {
	query := `
		INSERT INTO approvals (id, milestone_id, approver_id, approver_role, decision, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.MilestoneID, a.ApproverID, a.Role, a.Decision, a.Comment)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByMilestone(ctx context.Context, milestoneID string) ([]*models.Approval, error) {
	query := `
		SELECT id, milestone_id, approver_id, approver_role, decision, comment, created_at
		FROM approvals
		WHERE milestone_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Approval
	for rows.Next() {
		a := &models.Approval{}
		if err := rows.Scan(&a.ID, &a.MilestoneID, &a.ApproverID, &a.Role, &a.Decision, &a.Comment, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ExistsApproved(ctx context.Context, milestoneID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM approvals WHERE milestone_id = $1 AND decision = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, milestoneID, models.ApprovalDecisionApproved).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
