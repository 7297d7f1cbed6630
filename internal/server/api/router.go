package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", s.createContract)
			r.Get("/{contractID}", s.getContract)
			r.Post("/{contractID}/funding", s.submitFunding)
		})

		r.Route("/funding", func(r chi.Router) {
			r.Post("/{intentID}/confirm", s.confirmFunding)
			r.Post("/{intentID}/reject", s.rejectFunding)
		})

		r.Route("/milestones", func(r chi.Router) {
			r.Post("/{milestoneID}/escrow", s.holdEscrow)
			r.Post("/{milestoneID}/start", s.startMilestone)
			r.Post("/{milestoneID}/submit", s.submitMilestone)
			r.Post("/{milestoneID}/approve", s.approveMilestone)
			r.Post("/{milestoneID}/reject", s.rejectMilestone)
		})

		r.Post("/escrow/{recordID}/refund", s.refundEscrow)
		r.Post("/payouts/{payoutID}/settle", s.settlePayout)
		r.Get("/ledger/overview", s.ledgerOverview)
	})

	return r
}
