// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/ivmelnik/escrowd/internal/dbx"
	"github.com/ivmelnik/escrowd/internal/server/migrations"
	"github.com/ivmelnik/escrowd/internal/server/repositories/approvals"
	"github.com/ivmelnik/escrowd/internal/server/repositories/contracts"
	"github.com/ivmelnik/escrowd/internal/server/repositories/escrowrecords"
	"github.com/ivmelnik/escrowd/internal/server/repositories/fundingintents"
	"github.com/ivmelnik/escrowd/internal/server/repositories/milestones"
	"github.com/ivmelnik/escrowd/internal/server/repositories/payouts"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// Contracts returns a contracts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Contracts(db dbx.DBTX) contracts.Repository {
	return contracts.NewPostgresRepository(db)
}

// FundingIntents returns a fundingintents.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) FundingIntents(db dbx.DBTX) fundingintents.Repository {
	return fundingintents.NewPostgresRepository(db)
}

// Milestones returns a milestones.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Milestones(db dbx.DBTX) milestones.Repository {
	return milestones.NewPostgresRepository(db)
}

// EscrowRecords returns an escrowrecords.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) EscrowRecords(db dbx.DBTX) escrowrecords.Repository {
	return escrowrecords.NewPostgresRepository(db)
}

// Approvals returns an approvals.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Approvals(db dbx.DBTX) approvals.Repository {
	return approvals.NewPostgresRepository(db)
}

// Payouts returns a payouts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Payouts(db dbx.DBTX) payouts.Repository {
	return payouts.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
