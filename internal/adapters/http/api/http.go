// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/medley/internal/adapters/repository"
	"github.com/okian/medley/internal/domain/game"
	"github.com/okian/medley/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Game lifecycle.
	CreateGame(ctx context.Context) (game.Snapshot, error)
	JoinGame(ctx context.Context, code string, player model.Participant) (game.Snapshot, error)
	Reset(ctx context.Context, id string) (game.Snapshot, error)

	// Run lifecycle.
	CreateRun(ctx context.Context, player model.Participant, seedName string) (game.Snapshot, error)

	// Shared turn operations.
	StartEntity(ctx context.Context, id string) (*game.Result, error)
	Submit(ctx context.Context, id, playerID, proposedName string) (*game.Result, error)
	GetState(ctx context.Context, id string) (game.Snapshot, error)

	// High-score board reads.
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, playerID string) (Entry, error)
}

// Entry mirrors the read shape returned by board queries.
type Entry = repository.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	gamesHandler       *GamesHandler
	runsHandler        *RunsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxBoardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		gamesHandler:       NewGamesHandler(deps),
		runsHandler:        NewRunsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxBoardLimit),
		rankHandler:        NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/games", MetricsMiddleware(s.gamesHandler.HandleGames, "games"))
	mux.HandleFunc("/games/", MetricsMiddleware(s.gamesHandler.HandleGame, "games"))
	mux.HandleFunc("/runs", MetricsMiddleware(s.runsHandler.HandleRuns, "runs"))
	mux.HandleFunc("/runs/", MetricsMiddleware(s.runsHandler.HandleRun, "runs"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
}

// moveResponse mirrors the OpenAPI schema for turn transitions.
type moveResponse struct {
	Outcome      string                   `json:"outcome"`
	Reason       string                   `json:"reason,omitempty"`
	Message      string                   `json:"message,omitempty"`
	Move         *model.MoveRecord        `json:"move,omitempty"`
	Validation   *model.ValidationOutcome `json:"validation,omitempty"`
	Score        *model.ScoreBreakdown    `json:"score,omitempty"`
	HolderID     string                   `json:"holder_id,omitempty"`
	Deadline     *time.Time               `json:"deadline,omitempty"`
	AttemptsLeft int                      `json:"attempts_left"`
	Finished     bool                     `json:"finished"`
	WinnerID     string                   `json:"winner_id,omitempty"`
}

func toMoveResponse(res *game.Result) moveResponse {
	out := moveResponse{
		Outcome:      string(res.Outcome),
		Reason:       string(res.Reason),
		Message:      res.Message,
		Move:         res.Move,
		Validation:   res.Validation,
		Score:        res.Score,
		HolderID:     res.HolderID,
		AttemptsLeft: res.AttemptsLeft,
		Finished:     res.Finished,
		WinnerID:     res.WinnerID,
	}
	if res.TurnOpened {
		d := res.Deadline
		out.Deadline = &d
	}
	return out
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates sentinel errors from lower layers into
// HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrEntityNotFound),
		errors.Is(err, repository.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, game.ErrNotJoinable),
		errors.Is(err, game.ErrTooFewParticipants),
		errors.Is(err, game.ErrAlreadyStarted),
		errors.Is(err, game.ErrNotFinished),
		errors.Is(err, game.ErrNotResettable):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, game.ErrDuplicateParticipant):
		writeError(w, http.StatusConflict, "duplicate_participant", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// splitEntityPath parses "/{prefix}/{id}" or "/{prefix}/{id}/{action}".
func splitEntityPath(path, prefix string) (id, action string, ok bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return "", "", false
		}
		return parts[0], "", true
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", "", false
		}
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}
