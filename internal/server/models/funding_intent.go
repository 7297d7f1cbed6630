package models

import (
	"time"

	"github.com/ivmelnik/escrowd/internal/moneyx"
)

// FundingIntentStatus tracks a payer deposit declaration through review.
type FundingIntentStatus string

const (
	FundingIntentStatusPendingReview FundingIntentStatus = "pending_review"
	FundingIntentStatusConfirmed     FundingIntentStatus = "confirmed"
	FundingIntentStatusRejected      FundingIntentStatus = "rejected"
)

// FundingDirectionIncoming is the only direction currently supported.
const FundingDirectionIncoming = "incoming"

// FundingIntent is one payer-submitted deposit declaration. It is created by
// the payer and terminal-transitioned exactly once by a reviewer; the payer
// never mutates it after creation.
type FundingIntent struct {
	ID            string
	ContractID    string
	PayerID       string
	Amount        moneyx.Money
	Direction     string
	Status        FundingIntentStatus
	TxRef         string
	ReviewerNotes *string
	ConfirmedBy   *string
	ConfirmedAt   *time.Time
	CreatedAt     time.Time
}
