package server

import (
	"net/http"
	"time"

	"github.com/OrlandoBitencourt/bandeira/internal/cache"
	"github.com/OrlandoBitencourt/bandeira/internal/domain"
	"github.com/OrlandoBitencourt/bandeira/internal/storage"
)

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type infoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// statsResponse reports backend counters. A nil section means the backend
// keeps no counters.
type statsResponse struct {
	Cache   *cache.Stats     `json:"cache"`
	Storage *storage.Metrics `json:"storage"`
}

type invalidateRequest struct {
	FlagName string `json:"flag_name"`
}

type statusResponse struct {
	Status string `json:"status"`
	Flag   string `json:"flag,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "UP",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Name:    s.name,
		Version: s.version,
		Uptime:  s.now().Sub(s.started).Truncate(time.Second).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	if st, ok := s.admin.CacheStats(); ok {
		resp.Cache = &st
	}
	if m, ok := s.admin.StorageMetrics(); ok {
		resp.Storage = &m
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.FlagName == "" {
		s.writeError(w, r, domain.NewValidationErrorWithFields("flag_name is required", map[string]string{
			"flag_name": "must not be empty",
		}))
		return
	}

	if err := s.admin.Invalidate(r.Context(), req.FlagName); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Flag: req.FlagName})
}

func (s *Server) handleInvalidateAll(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.InvalidateAll(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.metrics.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
