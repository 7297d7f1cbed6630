package escrowrecords

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ivmelnik/escrowd/internal/common"
	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleRecord() *models.EscrowRecord {
	return &models.EscrowRecord{
		ID:          "e-1",
		MilestoneID: "m-1",
		Amount:      moneyx.FromFloat(500),
		Status:      models.EscrowStatusHeld,
		TxRef:       "TXN-abc",
		HeldAt:      time.Now(),
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+escrow_records\s*\(id,\s*milestone_id,\s*amount,\s*status,\s*tx_ref,\s*held_at\)`).
		WithArgs("e-1", "m-1", "500.00", "held", "TXN-abc", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestCreate_DuplicateActiveRecord(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+escrow_records`).
		WithArgs("e-1", "m-1", "500.00", "held", "TXN-abc", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "one_active_escrow_per_milestone"})

	err := repo.Create(context.Background(), sampleRecord())
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want common.ErrValidation for duplicate active record, got %v", err)
	}
}

func TestCreate_DuplicateTxRef(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+escrow_records`).
		WithArgs("e-1", "m-1", "500.00", "held", "TXN-abc", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "escrow_records_tx_ref_key"})

	err := repo.Create(context.Background(), sampleRecord())
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want common.ErrConflict for duplicate reference, got %v", err)
	}
}

func TestGetActiveByMilestone_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+escrow_records\s+WHERE\s+milestone_id\s*=\s*\$1\s+AND\s+status\s+IN`).
		WithArgs("m-1", "pending", "held").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetActiveByMilestone(context.Background(), "m-1")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestGetActiveByMilestone_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "milestone_id", "amount", "status", "tx_ref", "held_at", "released_at"}).
		AddRow("e-1", "m-1", "500.00", "held", "TXN-abc", time.Now(), nil)
	mock.ExpectQuery(`FROM\s+escrow_records\s+WHERE\s+milestone_id`).
		WithArgs("m-1", "pending", "held").
		WillReturnRows(rows)

	got, err := repo.GetActiveByMilestone(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("GetActiveByMilestone error: %v", err)
	}
	if got.Status != models.EscrowStatusHeld || got.ReleasedAt != nil {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestTransition_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)UPDATE\s+escrow_records\s+SET\s+status\s*=\s*\$2,\s*tx_ref\s*=\s*\$3,\s*released_at\s*=\s*\$4`).
		WithArgs("e-1", "released", "TXN-new", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Transition(context.Background(), "e-1", models.EscrowStatusReleased, "TXN-new", &now)
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
}

func TestTransition_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`UPDATE\s+escrow_records`).
		WithArgs("ghost", "refunded", "TXN-new", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Transition(context.Background(), "ghost", models.EscrowStatusRefunded, "TXN-new", &now)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}
