// Package models defines the ledger entities persisted in the database.
package models

import (
	"time"

	"github.com/ivmelnik/escrowd/internal/moneyx"
)

// ContractStatus is the contract lifecycle state.
type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "draft"
	ContractStatusActive     ContractStatus = "active"
	ContractStatusInProgress ContractStatus = "in_progress"
	ContractStatusCompleted  ContractStatus = "completed"
	ContractStatusCancelled  ContractStatus = "cancelled"
	ContractStatusDisputed   ContractStatus = "disputed"
)

// FundingStatus is derived from (escrowedAmount, totalValue), never stored
// independently of a recomputation.
type FundingStatus string

const (
	FundingStatusNotFunded       FundingStatus = "NOT_FUNDED"
	FundingStatusPartiallyFunded FundingStatus = "PARTIALLY_FUNDED"
	FundingStatusFullyFunded     FundingStatus = "FULLY_FUNDED"
)

// Contract is a work agreement between a payer and a performer. The
// performer may be unassigned while the contract is in draft.
//
// EscrowedAmount is the sum of reviewer-confirmed funding intents minus
// settled payouts. It is mutated only on funding confirmation and payout
// settlement, always inside the same transaction that recomputes
// FundingStatus.
type Contract struct {
	ID             string
	PayerID        string
	PerformerID    *string
	Title          string
	TotalValue     moneyx.Money
	EscrowedAmount moneyx.Money
	FundingStatus  FundingStatus
	Status         ContractStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DeriveFundingStatus recomputes the three-tier funding status as a pure
// function, so stored and derived state cannot diverge.
func DeriveFundingStatus(escrowed, total moneyx.Money) FundingStatus {
	switch {
	case !escrowed.IsPositive():
		return FundingStatusNotFunded
	case escrowed.LessThan(total):
		return FundingStatusPartiallyFunded
	default:
		return FundingStatusFullyFunded
	}
}
