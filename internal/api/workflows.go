package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	views, err := s.manager.List(r.Context())
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRemoveAllWorkflows(w http.ResponseWriter, r *http.Request) {
	report, err := s.manager.RemoveAll(r.Context(), r.URL.Query().Get("modelFilter"))
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	view, err := s.manager.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRemoveWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Remove(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Stop(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSuspendWorkflow(w http.ResponseWriter, r *http.Request) {
	view, err := s.manager.Suspend(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleResumeWorkflow(w http.ResponseWriter, r *http.Request) {
	view, err := s.manager.Resume(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// handleGetPodLog returns the main container log of one workflow pod. The
// caller names the pod; no lookup from task to pod is done here.
func (s *Server) handleGetPodLog(w http.ResponseWriter, r *http.Request) {
	out, err := s.manager.FetchLog(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "podName"))
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(out)); err != nil {
		s.logger.Error("write pod log", "error", err)
	}
}
