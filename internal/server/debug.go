package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
	"github.com/lsk7209/0-nkey-sub001/internal/core/store"
	apperrors "github.com/lsk7209/0-nkey-sub001/internal/errors"
)

const maxRunsLimit = 500

// ThrottleListResponse is the body of GET /debug/throttle.
type ThrottleListResponse struct {
	Pools []core.ThrottleSnapshot `json:"pools"`
	Count int                     `json:"count"`
}

// RunListResponse is the body of GET /debug/runs.
type RunListResponse struct {
	Runs  []core.RunSummary `json:"runs"`
	Count int               `json:"count"`
}

func (s *Server) listThrottleHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireState(w, r) {
		return
	}

	q := store.ThrottleQuery{All: true}
	if prefix := strings.TrimSpace(r.URL.Query().Get("prefix")); prefix != "" {
		q = store.ThrottleQuery{Prefix: prefix}
	}

	snapshots, err := s.state.ListThrottleStates(r.Context(), q)
	if err != nil {
		HandleError(w, r, apperrors.WrapDatabase(r.Context(), err, "failed to list throttle state"))
		return
	}
	if snapshots == nil {
		snapshots = []core.ThrottleSnapshot{}
	}
	writeJSON(w, ThrottleListResponse{Pools: snapshots, Count: len(snapshots)})
}

func (s *Server) getThrottleHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireState(w, r) {
		return
	}

	pool := chi.URLParam(r, "pool")
	snapshot, err := s.state.LoadThrottleState(r.Context(), pool)
	if err != nil {
		HandleError(w, r, apperrors.WrapDatabase(r.Context(), err, "failed to load throttle state"))
		return
	}
	if snapshot == nil {
		HandleError(w, r, apperrors.NewNotFoundError("no throttle state for pool "+pool))
		return
	}
	writeJSON(w, snapshot)
}

func (s *Server) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireState(w, r) {
		return
	}

	q := store.RunQuery{Pool: strings.TrimSpace(r.URL.Query().Get("pool"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxRunsLimit {
			HandleError(w, r, apperrors.NewInvalidInputError("limit must be between 1 and "+strconv.Itoa(maxRunsLimit)))
			return
		}
		q.Limit = limit
	}

	runs, err := s.state.ListRuns(r.Context(), q)
	if err != nil {
		HandleError(w, r, apperrors.WrapDatabase(r.Context(), err, "failed to list runs"))
		return
	}
	if runs == nil {
		runs = []core.RunSummary{}
	}
	writeJSON(w, RunListResponse{Runs: runs, Count: len(runs)})
}

func (s *Server) requireState(w http.ResponseWriter, r *http.Request) bool {
	if s.state != nil {
		return true
	}
	HandleError(w, r, apperrors.NewServiceUnavailableError("state store not configured"))
	return false
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
