package api

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kwlee0220/mdt-workflow-argo/internal/model"
)

const maxBodySize = 1 << 20 // 1 MB

// Query parameters of the script endpoint. Both are base64url-encoded since
// endpoints and image references carry characters unsafe in a query.
const (
	queryEndpoint    = "mdt-endpoint"
	queryClientImage = "client-docker-image"
)

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.manager.ListModels(r.Context())
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleAddModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var tgm *model.TaskGraphModel
	if isYAML(r.Header.Get("Content-Type")) {
		tgm, err = model.ParseYAML(data)
	} else {
		tgm, err = model.ParseJSON(data)
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	replace, _ := strconv.ParseBool(r.URL.Query().Get("updateIfExists"))
	if !replace {
		if err := s.manager.AddModel(r.Context(), tgm); err != nil {
			s.writeManagerError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, tgm)
		return
	}

	created, err := s.manager.AddOrReplaceModel(r.Context(), tgm)
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, tgm)
}

func (s *Server) handleRemoveAllModels(w http.ResponseWriter, r *http.Request) {
	if _, err := s.manager.RemoveAllModels(r.Context()); err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	tgm, err := s.manager.GetModel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tgm)
}

func (s *Server) handleRemoveModel(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.RemoveModel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	endpoint, err := decodeQueryParam(r, queryEndpoint)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	image, err := decodeQueryParam(r, queryClientImage)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	script, err := s.manager.Script(r.Context(), chi.URLParam(r, "id"), endpoint, image)
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(script); err != nil {
		s.logger.Error("write script", "error", err)
	}
}

func (s *Server) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	view, err := s.manager.Start(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeManagerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func isYAML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/yaml" || mt == "application/x-yaml" || mt == "text/yaml"
}

// decodeQueryParam returns the decoded value of a base64url query parameter,
// or "" when it is absent. Padding is optional.
func decodeQueryParam(r *http.Request, key string) (string, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return "", nil
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(v, "="))
	if err != nil {
		return "", fmt.Errorf("invalid %s parameter: %w", key, err)
	}
	return string(data), nil
}
