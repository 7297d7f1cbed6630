package repomanager

import (
	"context"
	"database/sql"

	"github.com/ivmelnik/escrowd/internal/dbx"
	"github.com/ivmelnik/escrowd/internal/server/repositories/approvals"
	"github.com/ivmelnik/escrowd/internal/server/repositories/contracts"
	"github.com/ivmelnik/escrowd/internal/server/repositories/escrowrecords"
	"github.com/ivmelnik/escrowd/internal/server/repositories/fundingintents"
	"github.com/ivmelnik/escrowd/internal/server/repositories/milestones"
	"github.com/ivmelnik/escrowd/internal/server/repositories/payouts"
)

// RepositoryManager vends repositories bound to a DBTX, so a service can
// rebind its repositories to a transaction handle inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Contracts(db dbx.DBTX) contracts.Repository
	FundingIntents(db dbx.DBTX) fundingintents.Repository
	Milestones(db dbx.DBTX) milestones.Repository
	EscrowRecords(db dbx.DBTX) escrowrecords.Repository
	Approvals(db dbx.DBTX) approvals.Repository
	Payouts(db dbx.DBTX) payouts.Repository
}
