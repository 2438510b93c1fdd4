// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/medley/internal/app"
	"github.com/okian/medley/internal/domain/model"
)

// RunsHandler handles solo run requests.
type RunsHandler struct {
	deps Dependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps Dependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// runRequest mirrors the OpenAPI schema for POST /runs.
type runRequest struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Seed        string `json:"seed"`
}

func (rr runRequest) validate() error {
	switch {
	case strings.TrimSpace(rr.PlayerID) == "":
		return errors.New("missing player_id")
	case strings.TrimSpace(rr.DisplayName) == "":
		return errors.New("missing display_name")
	case strings.TrimSpace(rr.Seed) == "":
		return errors.New("missing seed")
	}
	return nil
}

// HandleRuns handles POST /runs requests.
func (h *RunsHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_run"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	player := model.Participant{ID: req.PlayerID, DisplayName: req.DisplayName}
	snap, err := h.deps.CreateRun(r.Context(), player, req.Seed)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSeedNotFound):
			writeError(w, http.StatusUnprocessableEntity, "seed_not_found", err)
		case errors.Is(err, service.ErrSeedLookup):
			writeError(w, http.StatusBadGateway, "seed_lookup_failed", err)
		default:
			writeDomainError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// HandleRun handles GET /runs/{id} and the POST subresources
// /runs/{id}/start and /runs/{id}/moves.
func (h *RunsHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.run"
	id, action, ok := splitEntityPath(r.URL.Path, "/runs/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		snap, err := h.deps.GetState(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	case "start":
		handleStart(w, r, h.deps, id)
	case "moves":
		handleMove(w, r, h.deps, id)
	default:
		http.NotFound(w, r)
	}
}
