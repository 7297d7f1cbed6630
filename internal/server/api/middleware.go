package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	serverauth "github.com/ivmelnik/escrowd/internal/server/auth"
)

type ctxKey string

const actorKey ctxKey = "actor"

// Party roles carried in the token's role claim.
const (
	RolePayer     = "payer"
	RolePerformer = "performer"
	RoleReviewer  = "reviewer"
)

// Actor is the authenticated caller. The token is trusted for identity and
// role; entity relationships (is this caller the contract's payer?) are
// checked by the services.
type Actor struct {
	ID   string
	Role string
}

func contextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

func actorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			writeError(w, http.StatusUnauthorized, "invalid or missing credentials")
			return
		}
		userID, role, err := serverauth.ParseToken(raw, s.jwtSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing credentials")
			return
		}
		ctx := contextWithActor(r.Context(), Actor{ID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger emits one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// mustActor pulls the actor off the context; the auth middleware guarantees
// it is present on /api routes.
func mustActor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid or missing credentials")
	}
	return actor, ok
}

// reviewerOnly gates the back-office routes on the role claim.
func reviewerOnly(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	actor, ok := mustActor(w, r)
	if !ok {
		return actor, false
	}
	if actor.Role != RoleReviewer {
		writeError(w, http.StatusForbidden, "reviewer role required")
		return actor, false
	}
	return actor, true
}
