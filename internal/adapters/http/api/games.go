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

// GamesHandler handles multiplayer game requests.
type GamesHandler struct {
	deps Dependencies
}

// NewGamesHandler creates a new games handler.
func NewGamesHandler(deps Dependencies) *GamesHandler {
	return &GamesHandler{deps: deps}
}

// joinRequest mirrors the OpenAPI schema for POST /games/join.
type joinRequest struct {
	Code        string `json:"code"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
}

func (j joinRequest) validate() error {
	switch {
	case strings.TrimSpace(j.Code) == "":
		return errors.New("missing code")
	case strings.TrimSpace(j.PlayerID) == "":
		return errors.New("missing player_id")
	case strings.TrimSpace(j.DisplayName) == "":
		return errors.New("missing display_name")
	}
	return nil
}

// moveRequest mirrors the OpenAPI schema for POST .../moves.
type moveRequest struct {
	PlayerID string `json:"player_id"`
	Artist   string `json:"artist"`
}

func (m moveRequest) validate() error {
	switch {
	case strings.TrimSpace(m.PlayerID) == "":
		return errors.New("missing player_id")
	case strings.TrimSpace(m.Artist) == "":
		return errors.New("missing artist")
	}
	return nil
}

// HandleGames handles POST /games requests.
func (h *GamesHandler) HandleGames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.CreateGame(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// HandleGame handles GET /games/{id} and the POST subresources
// /games/join, /games/{id}/start, /games/{id}/moves, /games/{id}/reset.
func (h *GamesHandler) HandleGame(w http.ResponseWriter, r *http.Request) {
	const op = "api.game"
	id, action, ok := splitEntityPath(r.URL.Path, "/games/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	// "join" is a reserved path segment; players only know the code.
	if id == "join" && action == "" {
		h.handleJoin(w, r)
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
	case "reset":
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		snap, err := h.deps.Reset(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	default:
		http.NotFound(w, r)
	}
}

func (h *GamesHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join_game"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	player := model.Participant{ID: req.PlayerID, DisplayName: req.DisplayName}
	snap, err := h.deps.JoinGame(r.Context(), req.Code, player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleStart opens the first turn; shared by games and runs.
func handleStart(w http.ResponseWriter, r *http.Request, deps Dependencies, id string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	res, err := deps.StartEntity(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMoveResponse(res))
}

// handleMove submits an artist proposal; shared by games and runs.
func handleMove(w http.ResponseWriter, r *http.Request, deps Dependencies, id string) {
	const op = "api.post_move"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := deps.Submit(r.Context(), id, req.PlayerID, req.Artist)
	if err != nil {
		if errors.Is(err, service.ErrSubmitInFlight) {
			writeError(w, http.StatusConflict, "submit_in_flight", err)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMoveResponse(res))
}
