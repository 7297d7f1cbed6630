package models

import (
	"time"

	"github.com/ivmelnik/escrowd/internal/moneyx"
)

// EscrowStatus is the state of the money held against one milestone.
type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "pending"
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// EscrowRecord is the monetary record tied to one milestone. At most one
// record per milestone may be in PENDING or HELD state at a time (enforced
// by a partial unique index at the storage layer).
type EscrowRecord struct {
	ID          string
	MilestoneID string
	Amount      moneyx.Money
	Status      EscrowStatus
	TxRef       string
	HeldAt      time.Time
	ReleasedAt  *time.Time
}
