package services

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
	"github.com/ivmelnik/escrowd/internal/server/repositories/repomanager"
)

// LedgerService recomputes the reviewer's financial dashboard from current
// ledger state. It never mutates anything, and its figures are sums over the
// underlying records, so it cannot diverge from them.
type LedgerService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	now   func() time.Time
}

// NewLedgerService constructs a LedgerService over the given store.
func NewLedgerService(db *sql.DB, repos repomanager.RepositoryManager) *LedgerService {
	return &LedgerService{db: db, repos: repos, now: time.Now}
}

// Overview computes system-wide financial metrics.
//
// Total escrowed sums contract balances — the authoritative figure, since
// settlements already debit them. Pending settlement adds a defensive term
// for APPROVED milestones lacking a payout request; that state is
// unreachable while approval and payout creation stay transactionally
// coupled, but the dashboard counts it anyway rather than silently hiding
// an inconsistent ledger.
func (s *LedgerService) Overview(ctx context.Context) (*LedgerOverview, error) {
	overview := &LedgerOverview{}

	contractRepo := s.repos.Contracts(s.db)
	milestoneRepo := s.repos.Milestones(s.db)
	payoutRepo := s.repos.Payouts(s.db)

	escrowed, err := contractRepo.SumEscrowed(ctx)
	if err != nil {
		return nil, err
	}
	overview.TotalEscrowed = escrowed

	settled, err := payoutRepo.SumByStatus(ctx, models.PayoutStatusSettled)
	if err != nil {
		return nil, err
	}
	overview.TotalSettled = settled

	pending, err := payoutRepo.SumByStatus(ctx, models.PayoutStatusPendingSettlement)
	if err != nil {
		return nil, err
	}
	orphaned, err := milestoneRepo.SumApprovedWithoutPayout(ctx)
	if err != nil {
		return nil, err
	}
	overview.TotalPendingSettlement = pending.Add(orphaned)

	overview.ContractCounts, err = contractRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	overview.MilestoneCounts, err = milestoneRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	// Trailing 12 calendar months, current month included.
	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
	overview.MonthlySettled, err = payoutRepo.MonthlySettledTotals(ctx, since)
	if err != nil {
		return nil, err
	}

	pendingByContract, err := payoutRepo.PendingByContract(ctx)
	if err != nil {
		return nil, err
	}
	orphanedByContract, err := milestoneRepo.ApprovedWithoutPayoutByContract(ctx)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]moneyx.Money, len(pendingByContract))
	for id, amount := range pendingByContract {
		merged[id] = amount
	}
	for id, amount := range orphanedByContract {
		merged[id] = merged[id].Add(amount)
	}
	for id, amount := range merged {
		if amount.IsPositive() {
			overview.ContractsPendingPayout = append(overview.ContractsPendingPayout, ContractPendingPayout{ContractID: id, Amount: amount})
		}
	}
	sort.Slice(overview.ContractsPendingPayout, func(i, j int) bool {
		return overview.ContractsPendingPayout[i].ContractID < overview.ContractsPendingPayout[j].ContractID
	})

	return overview, nil
}
