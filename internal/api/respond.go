package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.trai.ch/zerr"

	"github.com/kwlee0220/mdt-workflow-argo/internal/manager"
)

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// statusOf maps a manager error to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, manager.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, manager.ErrResourceAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, manager.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, manager.ErrEngineCommunication), errors.Is(err, manager.ErrStructuralMismatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeManagerError reports a failed manager call. Server-side failures are
// logged with their structured context.
func (s *Server) writeManagerError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		zerr.Log(r.Context(), s.logger, zerr.With(err, "request_id", middleware.GetReqID(r.Context())))
	}
	s.writeError(w, status, err.Error())
}
