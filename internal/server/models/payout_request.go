package models

import (
	"time"

	"github.com/ivmelnik/escrowd/internal/moneyx"
)

// PayoutStatus tracks a performer payment obligation.
type PayoutStatus string

const (
	PayoutStatusPendingSettlement PayoutStatus = "pending_settlement"
	PayoutStatusSettled           PayoutStatus = "settled"
)

// PayoutRequest is one performer payment obligation tied to exactly one
// milestone. It is created automatically when the milestone becomes fully
// approved and settled exactly once by a reviewer.
type PayoutRequest struct {
	ID          string
	MilestoneID string
	ContractID  string
	Amount      moneyx.Money
	Status      PayoutStatus
	TxRef       string
	RequestedAt time.Time
	SettledAt   *time.Time
	SettledBy   *string
}
