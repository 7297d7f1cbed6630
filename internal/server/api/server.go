// Package api exposes the escrow ledger over HTTP: a chi router with JWT
// authentication, JSON bodies, and the error-kind to status-code mapping.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ivmelnik/escrowd/internal/logging"
	"github.com/ivmelnik/escrowd/internal/moneyx"
	"github.com/ivmelnik/escrowd/internal/server/models"
	"github.com/ivmelnik/escrowd/internal/server/services"
)

// The handler layer consumes the services through small local interfaces so
// tests can fake them without a store.
type contractService interface {
	Create(ctx context.Context, payerID, title string, total moneyx.Money, performerID *string, milestones []services.MilestoneInput) (*models.Contract, error)
	Get(ctx context.Context, id string) (*models.Contract, error)
}

type fundingService interface {
	SubmitFunding(ctx context.Context, contractID, payerID string, amount moneyx.Money, ref string) (*models.FundingIntent, error)
	ConfirmFunding(ctx context.Context, intentID, reviewerID string, notes *string) (*services.ConfirmFundingResult, error)
	RejectFunding(ctx context.Context, intentID, reviewerID, notes string) (*models.FundingIntent, error)
}

type escrowService interface {
	Hold(ctx context.Context, milestoneID, payerID string, amount *moneyx.Money) (*models.EscrowRecord, error)
	Refund(ctx context.Context, recordID, payerID string) (*models.EscrowRecord, error)
}

type workflowService interface {
	Start(ctx context.Context, milestoneID, performerID string) (*models.Milestone, error)
	Submit(ctx context.Context, milestoneID, performerID string) (*models.Milestone, error)
	Approve(ctx context.Context, milestoneID, approverID string, role models.ApproverRole, comment *string) (*services.ApproveResult, error)
	Reject(ctx context.Context, milestoneID, payerID string, comment *string) (*services.RejectResult, error)
}

type payoutService interface {
	Settle(ctx context.Context, payoutID, reviewerID, ref string) (*services.SettleResult, error)
}

type ledgerService interface {
	Overview(ctx context.Context) (*services.LedgerOverview, error)
}

// Server hosts the HTTP API.
type Server struct {
	address         string
	logger          logging.Logger
	jwtSecret       []byte
	allowedOrigins  []string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration

	contracts contractService
	funding   fundingService
	escrow    escrowService
	workflow  workflowService
	payouts   payoutService
	ledger    ledgerService
}

// Options carries the transport-level settings for NewServer.
type Options struct {
	Address         string
	SecretKey       string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// NewServer wires the handlers to the given services.
func NewServer(opts Options, l logging.Logger,
	cs *services.ContractService, fs *services.FundingService, es *services.EscrowService,
	ws *services.WorkflowService, ps *services.PayoutService, ls *services.LedgerService) *Server {
	return &Server{
		address:         opts.Address,
		logger:          l.With("module", "http_server"),
		jwtSecret:       []byte(opts.SecretKey),
		allowedOrigins:  opts.AllowedOrigins,
		readTimeout:     opts.ReadTimeout,
		writeTimeout:    opts.WriteTimeout,
		shutdownTimeout: opts.ShutdownTimeout,
		contracts:       cs,
		funding:         fs,
		escrow:          es,
		workflow:        ws,
		payouts:         ps,
		ledger:          ls,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.address,
		Handler:      s.routes(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh // drain ListenAndServe's ErrServerClosed
		return nil
	}
}
