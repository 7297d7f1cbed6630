package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
	"github.com/ivmelnik/escrowd/internal/server/services"
)

type milestoneInputBody struct {
	Title         string       `json:"title"`
	Amount        moneyx.Money `json:"amount"`
	SequenceOrder int          `json:"sequence_order"`
}

type createContractRequest struct {
	Title       string               `json:"title"`
	TotalValue  moneyx.Money         `json:"total_value"`
	PerformerID *string              `json:"performer_id"`
	Milestones  []milestoneInputBody `json:"milestones"`
}

func (s *Server) createContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	inputs := make([]services.MilestoneInput, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		inputs = append(inputs, services.MilestoneInput{Title: m.Title, Amount: m.Amount, SequenceOrder: m.SequenceOrder})
	}
	contract, err := s.contracts.Create(r.Context(), actor.ID, req.Title, req.TotalValue, req.PerformerID, inputs)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(contract))
}

func (s *Server) getContract(w http.ResponseWriter, r *http.Request) {
	contract, err := s.contracts.Get(r.Context(), chi.URLParam(r, "contractID"))
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(contract))
}

type submitFundingRequest struct {
	Amount moneyx.Money `json:"amount"`
	TxRef  string       `json:"tx_ref"`
}

func (s *Server) submitFunding(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req submitFundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	intent, err := s.funding.SubmitFunding(r.Context(), chi.URLParam(r, "contractID"), actor.ID, req.Amount, req.TxRef)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFundingIntentDTO(intent))
}

type reviewFundingRequest struct {
	Notes *string `json:"notes"`
}

func (s *Server) confirmFunding(w http.ResponseWriter, r *http.Request) {
	actor, ok := reviewerOnly(w, r)
	if !ok {
		return
	}
	var req reviewFundingRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := s.funding.ConfirmFunding(r.Context(), chi.URLParam(r, "intentID"), actor.ID, req.Notes)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmFundingResponse{
		Intent:   toFundingIntentDTO(res.Intent),
		Contract: toContractDTO(res.Contract),
	})
}

func (s *Server) rejectFunding(w http.ResponseWriter, r *http.Request) {
	actor, ok := reviewerOnly(w, r)
	if !ok {
		return
	}
	var req reviewFundingRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	var notes string
	if req.Notes != nil {
		notes = *req.Notes
	}
	intent, err := s.funding.RejectFunding(r.Context(), chi.URLParam(r, "intentID"), actor.ID, notes)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFundingIntentDTO(intent))
}

type holdEscrowRequest struct {
	Amount *moneyx.Money `json:"amount"`
}

func (s *Server) holdEscrow(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req holdEscrowRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	record, err := s.escrow.Hold(r.Context(), chi.URLParam(r, "milestoneID"), actor.ID, req.Amount)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEscrowRecordDTO(record))
}

func (s *Server) startMilestone(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	milestone, err := s.workflow.Start(r.Context(), chi.URLParam(r, "milestoneID"), actor.ID)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMilestoneDTO(milestone))
}

func (s *Server) submitMilestone(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	milestone, err := s.workflow.Submit(r.Context(), chi.URLParam(r, "milestoneID"), actor.ID)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMilestoneDTO(milestone))
}

type approveRequest struct {
	Comment *string `json:"comment"`
}

func (s *Server) approveMilestone(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var role models.ApproverRole
	switch actor.Role {
	case RolePayer:
		role = models.ApproverRolePayer
	case RolePerformer:
		role = models.ApproverRolePerformer
	default:
		writeError(w, http.StatusForbidden, "payer or performer role required")
		return
	}
	var req approveRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := s.workflow.Approve(r.Context(), chi.URLParam(r, "milestoneID"), actor.ID, role, req.Comment)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApproveResponse(res))
}

func (s *Server) rejectMilestone(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := s.workflow.Reject(r.Context(), chi.URLParam(r, "milestoneID"), actor.ID, req.Comment)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rejectMilestoneResponse{
		Milestone: toMilestoneDTO(res.Milestone),
		Approval:  toApprovalDTO(res.Approval),
	})
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) refundEscrow(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req refundRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	recordID := chi.URLParam(r, "recordID")
	record, err := s.escrow.Refund(r.Context(), recordID, actor.ID)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	// The reason is audit-logged, not stored on the record.
	if req.Reason != "" {
		s.logger.Info(r.Context(), "escrow refunded", "record_id", recordID, "reason", req.Reason)
	}
	writeJSON(w, http.StatusOK, toEscrowRecordDTO(record))
}

type settleRequest struct {
	TxRef string `json:"tx_ref"`
	Notes string `json:"notes"`
}

func (s *Server) settlePayout(w http.ResponseWriter, r *http.Request) {
	actor, ok := reviewerOnly(w, r)
	if !ok {
		return
	}
	var req settleRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	payoutID := chi.URLParam(r, "payoutID")
	res, err := s.payouts.Settle(r.Context(), payoutID, actor.ID, req.TxRef)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	if req.Notes != "" {
		s.logger.Info(r.Context(), "payout settled", "payout_id", payoutID, "notes", req.Notes)
	}
	writeJSON(w, http.StatusOK, settleResponse{
		Payout:   toPayoutDTO(res.Payout),
		Contract: toContractDTO(res.Contract),
	})
}

func (s *Server) ledgerOverview(w http.ResponseWriter, r *http.Request) {
	if _, ok := reviewerOnly(w, r); !ok {
		return
	}
	overview, err := s.ledger.Overview(r.Context())
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewDTO(overview))
}

// decodeOptionalBody decodes a JSON body into v, treating an empty body as
// the zero value. Several operations take only optional fields.
func decodeOptionalBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
