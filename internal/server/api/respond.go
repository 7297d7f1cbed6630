package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ivmelnik/escrowd/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// respondError maps a service error to a status code. Business-kind errors
// travel to the caller verbatim; anything else is logged with detail and
// surfaced as a generic 500.
func (s *Server) respondError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, common.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(ctx, "internal error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
