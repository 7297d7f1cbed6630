// Package contracts provides the PostgreSQL-backed repository for contract
// rows, including the locked read used by escrow balance updates.
package contracts

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

// PostgresRepository implements contract storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const contractColumns = `id, payer_id, performer_id, title, total_value, escrowed_amount, funding_status, status, created_at, updated_at`

func scanContract(row *sql.Row) (*models.Contract, error) {
	c := &models.Contract{}
	err := row.Scan(
		&c.ID, &c.PayerID, &c.PerformerID, &c.Title, &c.TotalValue,
		&c.EscrowedAmount, &c.FundingStatus, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: contract", common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Contract) error {
	query := `
		INSERT INTO contracts (id, payer_id, performer_id, title, total_value, escrowed_amount, funding_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.PayerID, c.PerformerID, c.Title, c.TotalValue, c.EscrowedAmount, c.FundingStatus, c.Status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	return scanContract(r.db.QueryRowContext(ctx, query, id))
}

// GetForUpdate reads the contract under a row lock. Must be called inside a
// transaction; on a bare *sql.DB the lock is released immediately.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 FOR UPDATE`
	return scanContract(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdateEscrow(ctx context.Context, id string, escrowed moneyx.Money, status models.FundingStatus) error {
	query := `
		UPDATE contracts
		SET escrowed_amount = $2, funding_status = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, escrowed, status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: contract", common.ErrNotFound)
	}
	return nil
}

// SumEscrowed returns the authoritative total of escrowed funds: the sum of
// contract balances, which settlements have already debited.
func (r *PostgresRepository) SumEscrowed(ctx context.Context) (moneyx.Money, error) {
	query := `SELECT COALESCE(SUM(escrowed_amount), 0) FROM contracts`
	var total moneyx.Money
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return moneyx.Zero(), fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[models.ContractStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM contracts GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make(map[models.ContractStatus]int)
	for rows.Next() {
		var status models.ContractStatus
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
