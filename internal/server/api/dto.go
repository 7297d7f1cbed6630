package api

import (
	"time"

	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
	"github.com/ivmelnik/escrowd/internal/server/services"
)

// Wire shapes. Amounts marshal as plain 2dp numbers (moneyx.Money).

type contractDTO struct {
	ID             string       `json:"id"`
	PayerID        string       `json:"payer_id"`
	PerformerID    *string      `json:"performer_id,omitempty"`
	Title          string       `json:"title"`
	TotalValue     moneyx.Money `json:"total_value"`
	EscrowedAmount moneyx.Money `json:"escrowed_amount"`
	FundingStatus  string       `json:"funding_status"`
	Status         string       `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func toContractDTO(c *models.Contract) contractDTO {
	return contractDTO{
		ID:             c.ID,
		PayerID:        c.PayerID,
		PerformerID:    c.PerformerID,
		Title:          c.Title,
		TotalValue:     c.TotalValue,
		EscrowedAmount: c.EscrowedAmount,
		FundingStatus:  string(c.FundingStatus),
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

type fundingIntentDTO struct {
	ID            string       `json:"id"`
	ContractID    string       `json:"contract_id"`
	PayerID       string       `json:"payer_id"`
	Amount        moneyx.Money `json:"amount"`
	Direction     string       `json:"direction"`
	Status        string       `json:"status"`
	TxRef         string       `json:"tx_ref"`
	ReviewerNotes *string      `json:"reviewer_notes,omitempty"`
	ConfirmedBy   *string      `json:"confirmed_by,omitempty"`
	ConfirmedAt   *time.Time   `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

func toFundingIntentDTO(fi *models.FundingIntent) fundingIntentDTO {
	return fundingIntentDTO{
		ID:            fi.ID,
		ContractID:    fi.ContractID,
		PayerID:       fi.PayerID,
		Amount:        fi.Amount,
		Direction:     fi.Direction,
		Status:        string(fi.Status),
		TxRef:         fi.TxRef,
		ReviewerNotes: fi.ReviewerNotes,
		ConfirmedBy:   fi.ConfirmedBy,
		ConfirmedAt:   fi.ConfirmedAt,
		CreatedAt:     fi.CreatedAt,
	}
}

type milestoneDTO struct {
	ID                  string       `json:"id"`
	ContractID          string       `json:"contract_id"`
	Title               string       `json:"title"`
	Amount              moneyx.Money `json:"amount"`
	SequenceOrder       int          `json:"sequence_order"`
	Status              string       `json:"status"`
	ApprovedByPayer     bool         `json:"approved_by_payer"`
	ApprovedByPerformer bool         `json:"approved_by_performer"`
}

func toMilestoneDTO(m *models.Milestone) milestoneDTO {
	return milestoneDTO{
		ID:                  m.ID,
		ContractID:          m.ContractID,
		Title:               m.Title,
		Amount:              m.Amount,
		SequenceOrder:       m.SequenceOrder,
		Status:              string(m.Status),
		ApprovedByPayer:     m.ApprovedByPayer,
		ApprovedByPerformer: m.ApprovedByPerformer,
	}
}

type escrowRecordDTO struct {
	ID          string       `json:"id"`
	MilestoneID string       `json:"milestone_id"`
	Amount      moneyx.Money `json:"amount"`
	Status      string       `json:"status"`
	TxRef       string       `json:"tx_ref"`
	HeldAt      time.Time    `json:"held_at"`
	ReleasedAt  *time.Time   `json:"released_at,omitempty"`
}

func toEscrowRecordDTO(rec *models.EscrowRecord) escrowRecordDTO {
	return escrowRecordDTO{
		ID:          rec.ID,
		MilestoneID: rec.MilestoneID,
		Amount:      rec.Amount,
		Status:      string(rec.Status),
		TxRef:       rec.TxRef,
		HeldAt:      rec.HeldAt,
		ReleasedAt:  rec.ReleasedAt,
	}
}

type approvalDTO struct {
	ID          string    `json:"id"`
	MilestoneID string    `json:"milestone_id"`
	ApproverID  string    `json:"approver_id"`
	Role        string    `json:"role"`
	Decision    string    `json:"decision"`
	Comment     *string   `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toApprovalDTO(a *models.Approval) approvalDTO {
	return approvalDTO{
		ID:          a.ID,
		MilestoneID: a.MilestoneID,
		ApproverID:  a.ApproverID,
		Role:        string(a.Role),
		Decision:    string(a.Decision),
		Comment:     a.Comment,
		CreatedAt:   a.CreatedAt,
	}
}

type payoutDTO struct {
	ID          string       `json:"id"`
	MilestoneID string       `json:"milestone_id"`
	ContractID  string       `json:"contract_id"`
	Amount      moneyx.Money `json:"amount"`
	Status      string       `json:"status"`
	TxRef       string       `json:"tx_ref"`
	RequestedAt time.Time    `json:"requested_at"`
	SettledAt   *time.Time   `json:"settled_at,omitempty"`
	SettledBy   *string      `json:"settled_by,omitempty"`
}

func toPayoutDTO(p *models.PayoutRequest) payoutDTO {
	return payoutDTO{
		ID:          p.ID,
		MilestoneID: p.MilestoneID,
		ContractID:  p.ContractID,
		Amount:      p.Amount,
		Status:      string(p.Status),
		TxRef:       p.TxRef,
		RequestedAt: p.RequestedAt,
		SettledAt:   p.SettledAt,
		SettledBy:   p.SettledBy,
	}
}

type approveResponse struct {
	Milestone     milestoneDTO     `json:"milestone"`
	Approval      approvalDTO      `json:"approval"`
	FullyApproved bool             `json:"fully_approved"`
	Released      *escrowRecordDTO `json:"released,omitempty"`
	Payout        *payoutDTO       `json:"payout,omitempty"`
}

func toApproveResponse(res *services.ApproveResult) approveResponse {
	out := approveResponse{
		Milestone:     toMilestoneDTO(res.Milestone),
		Approval:      toApprovalDTO(res.Approval),
		FullyApproved: res.FullyApproved,
	}
	if res.Released != nil {
		released := toEscrowRecordDTO(res.Released)
		out.Released = &released
	}
	if res.Payout != nil {
		payout := toPayoutDTO(res.Payout)
		out.Payout = &payout
	}
	return out
}

type settleResponse struct {
	Payout   payoutDTO   `json:"payout"`
	Contract contractDTO `json:"contract"`
}

type confirmFundingResponse struct {
	Intent   fundingIntentDTO `json:"intent"`
	Contract contractDTO      `json:"contract"`
}

type rejectMilestoneResponse struct {
	Milestone milestoneDTO `json:"milestone"`
	Approval  approvalDTO  `json:"approval"`
}

type monthlyTotalDTO struct {
	Year   int          `json:"year"`
	Month  int          `json:"month"`
	Amount moneyx.Money `json:"amount"`
}

type pendingPayoutDTO struct {
	ContractID string       `json:"contract_id"`
	Amount     moneyx.Money `json:"amount"`
}

type overviewDTO struct {
	TotalEscrowed          moneyx.Money       `json:"total_escrowed"`
	TotalSettled           moneyx.Money       `json:"total_settled"`
	TotalPendingSettlement moneyx.Money       `json:"total_pending_settlement"`
	ContractCounts         map[string]int     `json:"contract_counts"`
	MilestoneCounts        map[string]int     `json:"milestone_counts"`
	MonthlySettled         []monthlyTotalDTO  `json:"monthly_settled"`
	ContractsPendingPayout []pendingPayoutDTO `json:"contracts_pending_payout"`
}

func toOverviewDTO(o *services.LedgerOverview) overviewDTO {
	out := overviewDTO{
		TotalEscrowed:          o.TotalEscrowed,
		TotalSettled:           o.TotalSettled,
		TotalPendingSettlement: o.TotalPendingSettlement,
		ContractCounts:         map[string]int{},
		MilestoneCounts:        map[string]int{},
		MonthlySettled:         []monthlyTotalDTO{},
		ContractsPendingPayout: []pendingPayoutDTO{},
	}
	for status, n := range o.ContractCounts {
		out.ContractCounts[string(status)] = n
	}
	for status, n := range o.MilestoneCounts {
		out.MilestoneCounts[string(status)] = n
	}
	for _, mt := range o.MonthlySettled {
		out.MonthlySettled = append(out.MonthlySettled, monthlyTotalDTO{Year: mt.Year, Month: int(mt.Month), Amount: mt.Amount})
	}
	for _, cp := range o.ContractsPendingPayout {
		out.ContractsPendingPayout = append(out.ContractsPendingPayout, pendingPayoutDTO{ContractID: cp.ContractID, Amount: cp.Amount})
	}
	return out
}
