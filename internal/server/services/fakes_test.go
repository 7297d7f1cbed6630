package services

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ivmelnik/escrowd/internal/common"
	"github.com/ivmelnik/escrowd/internal/dbx"
	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
	"github.com/ivmelnik/escrowd/internal/server/repositories/approvals"
	"github.com/ivmelnik/escrowd/internal/server/repositories/contracts"
	"github.com/ivmelnik/escrowd/internal/server/repositories/escrowrecords"
	"github.com/ivmelnik/escrowd/internal/server/repositories/fundingintents"
	"github.com/ivmelnik/escrowd/internal/server/repositories/milestones"
	"github.com/ivmelnik/escrowd/internal/server/repositories/payouts"
	"github.com/stretchr/testify/require"
)

// -------- in-memory store --------

// fakeStore backs all fake repositories with plain maps, mimicking the
// constraints the real schema enforces (status guards, one active escrow
// record per milestone, unique transaction references).
type fakeStore struct {
	contracts map[string]*models.Contract
	intents   map[string]*models.FundingIntent
	miles     map[string]*models.Milestone
	records   map[string]*models.EscrowRecord
	approvals map[string]*models.Approval
	payouts   map[string]*models.PayoutRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contracts: map[string]*models.Contract{},
		intents:   map[string]*models.FundingIntent{},
		miles:     map[string]*models.Milestone{},
		records:   map[string]*models.EscrowRecord{},
		approvals: map[string]*models.Approval{},
		payouts:   map[string]*models.PayoutRequest{},
	}
}

func (f *fakeStore) refExists(ref string) bool {
	for _, fi := range f.intents {
		if fi.TxRef == ref {
			return true
		}
	}
	for _, rec := range f.records {
		if rec.TxRef == ref {
			return true
		}
	}
	for _, p := range f.payouts {
		if p.TxRef == ref {
			return true
		}
	}
	return false
}

// -------- fake repositories --------

type fakeContractsRepo struct{ s *fakeStore }

func (r *fakeContractsRepo) Create(_ context.Context, c *models.Contract) error {
	cp := *c
	r.s.contracts[c.ID] = &cp
	return nil
}

func (r *fakeContractsRepo) Get(_ context.Context, id string) (*models.Contract, error) {
	c, ok := r.s.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: contract", common.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeContractsRepo) GetForUpdate(ctx context.Context, id string) (*models.Contract, error) {
	return r.Get(ctx, id)
}

func (r *fakeContractsRepo) UpdateEscrow(_ context.Context, id string, escrowed moneyx.Money, status models.FundingStatus) error {
	c, ok := r.s.contracts[id]
	if !ok {
		return fmt.Errorf("%w: contract", common.ErrNotFound)
	}
	c.EscrowedAmount = escrowed
	c.FundingStatus = status
	return nil
}

func (r *fakeContractsRepo) SumEscrowed(context.Context) (moneyx.Money, error) {
	total := moneyx.Zero()
	for _, c := range r.s.contracts {
		total = total.Add(c.EscrowedAmount)
	}
	return total, nil
}

func (r *fakeContractsRepo) CountByStatus(context.Context) (map[models.ContractStatus]int, error) {
	result := map[models.ContractStatus]int{}
	for _, c := range r.s.contracts {
		result[c.Status]++
	}
	return result, nil
}

type fakeIntentsRepo struct{ s *fakeStore }

func (r *fakeIntentsRepo) Create(_ context.Context, fi *models.FundingIntent) error {
	if r.s.refExists(fi.TxRef) {
		return fmt.Errorf("%w: transaction reference %q already exists", common.ErrConflict, fi.TxRef)
	}
	cp := *fi
	r.s.intents[fi.ID] = &cp
	return nil
}

func (r *fakeIntentsRepo) Get(_ context.Context, id string) (*models.FundingIntent, error) {
	fi, ok := r.s.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: funding intent", common.ErrNotFound)
	}
	cp := *fi
	return &cp, nil
}

func (r *fakeIntentsRepo) UpdateReview(_ context.Context, id string, status models.FundingIntentStatus, notes *string, reviewerID string, at time.Time) (int64, error) {
	fi, ok := r.s.intents[id]
	if !ok || fi.Status != models.FundingIntentStatusPendingReview {
		return 0, nil
	}
	fi.Status = status
	fi.ReviewerNotes = notes
	fi.ConfirmedBy = &reviewerID
	fi.ConfirmedAt = &at
	return 1, nil
}

func (r *fakeIntentsRepo) SumConfirmedByContract(_ context.Context, contractID string) (moneyx.Money, error) {
	total := moneyx.Zero()
	for _, fi := range r.s.intents {
		if fi.ContractID == contractID && fi.Status == models.FundingIntentStatusConfirmed {
			total = total.Add(fi.Amount)
		}
	}
	return total, nil
}

func (r *fakeIntentsRepo) RefExists(_ context.Context, ref string) (bool, error) {
	return r.s.refExists(ref), nil
}

type fakeMilestonesRepo struct{ s *fakeStore }

func (r *fakeMilestonesRepo) Create(_ context.Context, m *models.Milestone) error {
	cp := *m
	r.s.miles[m.ID] = &cp
	return nil
}

func (r *fakeMilestonesRepo) Get(_ context.Context, id string) (*models.Milestone, error) {
	m, ok := r.s.miles[id]
	if !ok {
		return nil, fmt.Errorf("%w: milestone", common.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMilestonesRepo) GetForUpdate(ctx context.Context, id string) (*models.Milestone, error) {
	return r.Get(ctx, id)
}

func (r *fakeMilestonesRepo) UpdateStatus(_ context.Context, id string, status models.MilestoneStatus) error {
	m, ok := r.s.miles[id]
	if !ok {
		return fmt.Errorf("%w: milestone", common.ErrNotFound)
	}
	m.Status = status
	return nil
}

func (r *fakeMilestonesRepo) UpdateApproval(_ context.Context, id string, status models.MilestoneStatus, byPayer, byPerformer bool) error {
	m, ok := r.s.miles[id]
	if !ok {
		return fmt.Errorf("%w: milestone", common.ErrNotFound)
	}
	m.Status = status
	m.ApprovedByPayer = byPayer
	m.ApprovedByPerformer = byPerformer
	return nil
}

func (r *fakeMilestonesRepo) CountByStatus(context.Context) (map[models.MilestoneStatus]int, error) {
	result := map[models.MilestoneStatus]int{}
	for _, m := range r.s.miles {
		result[m.Status]++
	}
	return result, nil
}

func (r *fakeMilestonesRepo) SumApprovedWithoutPayout(context.Context) (moneyx.Money, error) {
	total := moneyx.Zero()
	for _, m := range r.s.miles {
		if m.Status == models.MilestoneStatusApproved && !r.hasPayout(m.ID) {
			total = total.Add(m.Amount)
		}
	}
	return total, nil
}

func (r *fakeMilestonesRepo) ApprovedWithoutPayoutByContract(context.Context) (map[string]moneyx.Money, error) {
	result := map[string]moneyx.Money{}
	for _, m := range r.s.miles {
		if m.Status == models.MilestoneStatusApproved && !r.hasPayout(m.ID) {
			result[m.ContractID] = result[m.ContractID].Add(m.Amount)
		}
	}
	return result, nil
}

func (r *fakeMilestonesRepo) hasPayout(milestoneID string) bool {
	for _, p := range r.s.payouts {
		if p.MilestoneID == milestoneID {
			return true
		}
	}
	return false
}

type fakeEscrowRepo struct{ s *fakeStore }

func (r *fakeEscrowRepo) Create(_ context.Context, rec *models.EscrowRecord) error {
	for _, existing := range r.s.records {
		if existing.MilestoneID == rec.MilestoneID &&
			(existing.Status == models.EscrowStatusPending || existing.Status == models.EscrowStatusHeld) {
			return fmt.Errorf("%w: milestone already has an active escrow record", common.ErrValidation)
		}
	}
	if r.s.refExists(rec.TxRef) {
		return fmt.Errorf("%w: transaction reference %q already exists", common.ErrConflict, rec.TxRef)
	}
	cp := *rec
	r.s.records[rec.ID] = &cp
	return nil
}

func (r *fakeEscrowRepo) Get(_ context.Context, id string) (*models.EscrowRecord, error) {
	rec, ok := r.s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: escrow record", common.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeEscrowRepo) GetActiveByMilestone(_ context.Context, milestoneID string) (*models.EscrowRecord, error) {
	for _, rec := range r.s.records {
		if rec.MilestoneID == milestoneID &&
			(rec.Status == models.EscrowStatusPending || rec.Status == models.EscrowStatusHeld) {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: escrow record", common.ErrNotFound)
}

func (r *fakeEscrowRepo) Transition(_ context.Context, id string, status models.EscrowStatus, txRef string, releasedAt *time.Time) error {
	rec, ok := r.s.records[id]
	if !ok {
		return fmt.Errorf("%w: escrow record", common.ErrNotFound)
	}
	rec.Status = status
	rec.TxRef = txRef
	rec.ReleasedAt = releasedAt
	return nil
}

type fakeApprovalsRepo struct{ s *fakeStore }

func (r *fakeApprovalsRepo) Create(_ context.Context, a *models.Approval) error {
	cp := *a
	r.s.approvals[a.ID] = &cp
	return nil
}

func (r *fakeApprovalsRepo) ListByMilestone(_ context.Context, milestoneID string) ([]*models.Approval, error) {
	var result []*models.Approval
	for _, a := range r.s.approvals {
		if a.MilestoneID == milestoneID {
			cp := *a
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *fakeApprovalsRepo) ExistsApproved(_ context.Context, milestoneID string) (bool, error) {
	for _, a := range r.s.approvals {
		if a.MilestoneID == milestoneID && a.Decision == models.ApprovalDecisionApproved {
			return true, nil
		}
	}
	return false, nil
}

type fakePayoutsRepo struct{ s *fakeStore }

func (r *fakePayoutsRepo) Create(_ context.Context, p *models.PayoutRequest) error {
	for _, existing := range r.s.payouts {
		if existing.MilestoneID == p.MilestoneID {
			return fmt.Errorf("%w: payout already exists", common.ErrConflict)
		}
	}
	cp := *p
	r.s.payouts[p.ID] = &cp
	return nil
}

func (r *fakePayoutsRepo) Get(_ context.Context, id string) (*models.PayoutRequest, error) {
	p, ok := r.s.payouts[id]
	if !ok {
		return nil, fmt.Errorf("%w: payout request", common.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r *fakePayoutsRepo) GetByMilestone(_ context.Context, milestoneID string) (*models.PayoutRequest, error) {
	for _, p := range r.s.payouts {
		if p.MilestoneID == milestoneID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: payout request", common.ErrNotFound)
}

func (r *fakePayoutsRepo) Settle(_ context.Context, id, reviewerID, txRef string, at time.Time) (int64, error) {
	p, ok := r.s.payouts[id]
	if !ok || p.Status != models.PayoutStatusPendingSettlement {
		return 0, nil
	}
	p.Status = models.PayoutStatusSettled
	p.TxRef = txRef
	p.SettledBy = &reviewerID
	p.SettledAt = &at
	return 1, nil
}

func (r *fakePayoutsRepo) SumByStatus(_ context.Context, status models.PayoutStatus) (moneyx.Money, error) {
	total := moneyx.Zero()
	for _, p := range r.s.payouts {
		if p.Status == status {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (r *fakePayoutsRepo) MonthlySettledTotals(_ context.Context, since time.Time) ([]payouts.MonthlyTotal, error) {
	byMonth := map[[2]int]moneyx.Money{}
	for _, p := range r.s.payouts {
		if p.Status != models.PayoutStatusSettled || p.SettledAt == nil || p.SettledAt.Before(since) {
			continue
		}
		key := [2]int{p.SettledAt.Year(), int(p.SettledAt.Month())}
		byMonth[key] = byMonth[key].Add(p.Amount)
	}
	var result []payouts.MonthlyTotal
	for key, amount := range byMonth {
		result = append(result, payouts.MonthlyTotal{Year: key[0], Month: time.Month(key[1]), Amount: amount})
	}
	return result, nil
}

func (r *fakePayoutsRepo) PendingByContract(context.Context) (map[string]moneyx.Money, error) {
	result := map[string]moneyx.Money{}
	for _, p := range r.s.payouts {
		if p.Status == models.PayoutStatusPendingSettlement {
			result[p.ContractID] = result[p.ContractID].Add(p.Amount)
		}
	}
	return result, nil
}

func (r *fakePayoutsRepo) RefExists(_ context.Context, ref string) (bool, error) {
	return r.s.refExists(ref), nil
}

// -------- fake manager --------

type fakeRepoManager struct{ s *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Contracts(dbx.DBTX) contracts.Repository     { return &fakeContractsRepo{s: m.s} }
func (m *fakeRepoManager) FundingIntents(dbx.DBTX) fundingintents.Repository {
	return &fakeIntentsRepo{s: m.s}
}
func (m *fakeRepoManager) Milestones(dbx.DBTX) milestones.Repository { return &fakeMilestonesRepo{s: m.s} }
func (m *fakeRepoManager) EscrowRecords(dbx.DBTX) escrowrecords.Repository {
	return &fakeEscrowRepo{s: m.s}
}
func (m *fakeRepoManager) Approvals(dbx.DBTX) approvals.Repository { return &fakeApprovalsRepo{s: m.s} }
func (m *fakeRepoManager) Payouts(dbx.DBTX) payouts.Repository     { return &fakePayoutsRepo{s: m.s} }

// -------- helpers --------

// newTxDB returns a sqlmock DB that accepts any number of transactions, so
// scenario tests spanning many operations don't enumerate Begin/Commit pairs.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 64; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	return db
}

type fixture struct {
	db    *sql.DB
	store *fakeStore
	rm    *fakeRepoManager

	contractsSvc *ContractService
	fundingSvc   *FundingService
	escrowSvc    *EscrowService
	payoutSvc    *PayoutService
	workflowSvc  *WorkflowService
	ledgerSvc    *LedgerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	rm := &fakeRepoManager{s: store}
	db := newTxDB(t)

	payoutSvc := NewPayoutService(db, rm)
	return &fixture{
		db:           db,
		store:        store,
		rm:           rm,
		contractsSvc: NewContractService(db, rm),
		fundingSvc:   NewFundingService(db, rm),
		escrowSvc:    NewEscrowService(db, rm),
		payoutSvc:    payoutSvc,
		workflowSvc:  NewWorkflowService(db, rm, payoutSvc),
		ledgerSvc:    NewLedgerService(db, rm),
	}
}

const (
	payerID     = "6f4a7e7e-2c6d-49a1-9f14-111111111111"
	performerID = "6f4a7e7e-2c6d-49a1-9f14-222222222222"
	reviewerID  = "6f4a7e7e-2c6d-49a1-9f14-333333333333"
)

// seedContract creates a contract with a single milestone carrying the whole
// total value, returning both.
func (f *fixture) seedContract(t *testing.T, total float64) (*models.Contract, *models.Milestone) {
	t.Helper()
	performer := performerID
	contract, err := f.contractsSvc.Create(context.Background(), payerID, "site build", moneyx.FromFloat(total), &performer,
		[]MilestoneInput{{Title: "all of it", Amount: moneyx.FromFloat(total), SequenceOrder: 1}})
	require.NoError(t, err)

	var milestone *models.Milestone
	for _, m := range f.store.miles {
		if m.ContractID == contract.ID {
			milestone = m
		}
	}
	require.NotNil(t, milestone)
	return contract, milestone
}

// fundAndHold walks a contract through confirmed funding and escrow hold.
func (f *fixture) fundAndHold(t *testing.T, contract *models.Contract, milestone *models.Milestone, amount float64) *models.EscrowRecord {
	t.Helper()
	ctx := context.Background()

	intent, err := f.fundingSvc.SubmitFunding(ctx, contract.ID, payerID, moneyx.FromFloat(amount), "")
	require.NoError(t, err)
	_, err = f.fundingSvc.ConfirmFunding(ctx, intent.ID, reviewerID, nil)
	require.NoError(t, err)

	record, err := f.escrowSvc.Hold(ctx, milestone.ID, payerID, nil)
	require.NoError(t, err)
	return record
}
