package services

import (
	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
	"github.com/ivmelnik/escrowd/internal/server/repositories/payouts"
)

// ConfirmFundingResult bundles the confirmed intent with the contract whose
// balance it increased, as updated inside the same transaction.
type ConfirmFundingResult struct {
	Intent   *models.FundingIntent
	Contract *models.Contract
}

// ApproveResult reports one approval call and the side effects it triggered.
// Released and Payout are nil unless FullyApproved is true; when it is, all
// three mutations happened in one transaction.
type ApproveResult struct {
	Milestone     *models.Milestone
	Approval      *models.Approval
	Released      *models.EscrowRecord
	Payout        *models.PayoutRequest
	FullyApproved bool
}

// RejectResult bundles the milestone returned to IN_PROGRESS with the
// rejection record.
type RejectResult struct {
	Milestone *models.Milestone
	Approval  *models.Approval
}

// SettleResult bundles the settled payout with the contract whose balance it
// debited.
type SettleResult struct {
	Payout   *models.PayoutRequest
	Contract *models.Contract
}

// MilestoneInput describes one milestone at contract creation.
type MilestoneInput struct {
	Title         string
	Amount        moneyx.Money
	SequenceOrder int
}

// ContractPendingPayout is one row of the "contracts pending payout"
// dashboard list.
type ContractPendingPayout struct {
	ContractID string
	Amount     moneyx.Money
}

// LedgerOverview is the reviewer's financial dashboard, recomputed from
// current ledger state on every call.
type LedgerOverview struct {
	TotalEscrowed          moneyx.Money
	TotalSettled           moneyx.Money
	TotalPendingSettlement moneyx.Money
	ContractCounts         map[models.ContractStatus]int
	MilestoneCounts        map[models.MilestoneStatus]int
	MonthlySettled         []payouts.MonthlyTotal
	ContractsPendingPayout []ContractPendingPayout
}
