package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/medley/internal/adapters/http/api"
	"github.com/okian/medley/internal/adapters/repository"
	service "github.com/okian/medley/internal/app"
	"github.com/okian/medley/internal/domain/game"
	"github.com/okian/medley/internal/domain/model"
	"github.com/okian/medley/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() { _ = logger.Init() }

// stubDeps fakes the service behind the handlers. Unset error fields
// make the happy path; set ones override it.
type stubDeps struct {
	snapshots map[string]game.Snapshot
	result    *game.Result
	entries   []api.Entry
	ranks     map[string]api.Entry

	createGameErr error
	joinErr       error
	resetErr      error
	createRunErr  error
	startErr      error
	submitErr     error
	stateErr      error
	topNErr       error
	rankErr       error

	lastJoinCode string
	lastSeed     string
	lastSubmit   [3]string
}

func newStubDeps() *stubDeps {
	deadline := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	return &stubDeps{
		snapshots: map[string]game.Snapshot{
			"g1": {ID: "g1", Code: "ABCD23", Mode: game.ModeGame, Status: game.StatusWaiting},
			"r1": {ID: "r1", Mode: game.ModeRun, Status: game.StatusInProgress},
		},
		result: &game.Result{
			Outcome:    game.OutcomeAccepted,
			HolderID:   "p2",
			TurnOpened: true,
			Deadline:   deadline,
			Epoch:      3,
		},
		ranks: map[string]api.Entry{
			"alice": {Rank: 1, PlayerID: "alice", Score: 500, RunID: "r1", Turns: 7},
		},
		entries: []api.Entry{
			{Rank: 1, PlayerID: "alice", Score: 500},
			{Rank: 2, PlayerID: "bob", Score: 300},
		},
	}
}

func (d *stubDeps) CreateGame(context.Context) (game.Snapshot, error) {
	if d.createGameErr != nil {
		return game.Snapshot{}, d.createGameErr
	}
	return d.snapshots["g1"], nil
}

func (d *stubDeps) JoinGame(_ context.Context, code string, _ model.Participant) (game.Snapshot, error) {
	d.lastJoinCode = code
	if d.joinErr != nil {
		return game.Snapshot{}, d.joinErr
	}
	return d.snapshots["g1"], nil
}

func (d *stubDeps) Reset(_ context.Context, id string) (game.Snapshot, error) {
	if d.resetErr != nil {
		return game.Snapshot{}, d.resetErr
	}
	return d.snapshots[id], nil
}

func (d *stubDeps) CreateRun(_ context.Context, _ model.Participant, seed string) (game.Snapshot, error) {
	d.lastSeed = seed
	if d.createRunErr != nil {
		return game.Snapshot{}, d.createRunErr
	}
	return d.snapshots["r1"], nil
}

func (d *stubDeps) StartEntity(_ context.Context, id string) (*game.Result, error) {
	if d.startErr != nil {
		return nil, d.startErr
	}
	return d.result, nil
}

func (d *stubDeps) Submit(_ context.Context, id, playerID, name string) (*game.Result, error) {
	d.lastSubmit = [3]string{id, playerID, name}
	if d.submitErr != nil {
		return nil, d.submitErr
	}
	return d.result, nil
}

func (d *stubDeps) GetState(_ context.Context, id string) (game.Snapshot, error) {
	if d.stateErr != nil {
		return game.Snapshot{}, d.stateErr
	}
	snap, ok := d.snapshots[id]
	if !ok {
		return game.Snapshot{}, repository.ErrEntityNotFound
	}
	return snap, nil
}

func (d *stubDeps) TopN(_ context.Context, n int) ([]api.Entry, error) {
	if d.topNErr != nil {
		return nil, d.topNErr
	}
	if n < len(d.entries) {
		return d.entries[:n], nil
	}
	return d.entries, nil
}

func (d *stubDeps) Rank(_ context.Context, playerID string) (api.Entry, error) {
	if d.rankErr != nil {
		return api.Entry{}, d.rankErr
	}
	entry, ok := d.ranks[playerID]
	if !ok {
		return api.Entry{}, repository.ErrPlayerNotFound
	}
	return entry, nil
}

type stubStats struct{}

func (stubStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestMux(deps *stubDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, stubStats{}, 100).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func errCode(rec *httptest.ResponseRecorder) string {
	var resp struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return resp.Code
}

func TestGameRoutes(t *testing.T) {
	Convey("Given the API wired to a stub service", t, func() {
		deps := newStubDeps()
		mux := newTestMux(deps)

		Convey("When a game is created", func() {
			rec := do(mux, http.MethodPost, "/games", "")

			Convey("Then 201 with the snapshot is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				var snap game.Snapshot
				So(json.Unmarshal(rec.Body.Bytes(), &snap), ShouldBeNil)
				So(snap.Code, ShouldEqual, "ABCD23")
			})
		})

		Convey("When joining by code", func() {
			rec := do(mux, http.MethodPost, "/games/join",
				`{"code":"ABCD23","player_id":"p1","display_name":"One"}`)

			Convey("Then the join lands with the code forwarded", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastJoinCode, ShouldEqual, "ABCD23")
			})

			Convey("And missing fields are rejected", func() {
				rec := do(mux, http.MethodPost, "/games/join", `{"code":"ABCD23"}`)
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(errCode(rec), ShouldEqual, "bad_request")
			})

			Convey("And a duplicate player conflicts", func() {
				deps.joinErr = game.ErrDuplicateParticipant
				rec := do(mux, http.MethodPost, "/games/join",
					`{"code":"ABCD23","player_id":"p1","display_name":"One"}`)
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(errCode(rec), ShouldEqual, "duplicate_participant")
			})
		})

		Convey("When starting a game", func() {
			rec := do(mux, http.MethodPost, "/games/g1/start", "")

			Convey("Then the move response carries the deadline", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Outcome  string     `json:"outcome"`
					HolderID string     `json:"holder_id"`
					Deadline *time.Time `json:"deadline"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Outcome, ShouldEqual, string(game.OutcomeAccepted))
				So(resp.Deadline, ShouldNotBeNil)
			})

			Convey("And starting twice conflicts", func() {
				deps.startErr = game.ErrAlreadyStarted
				rec := do(mux, http.MethodPost, "/games/g1/start", "")
				So(rec.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When submitting a move", func() {
			rec := do(mux, http.MethodPost, "/games/g1/moves",
				`{"player_id":"p1","artist":"Daft Punk"}`)

			Convey("Then the proposal reaches the service", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastSubmit, ShouldEqual, [3]string{"g1", "p1", "Daft Punk"})
			})

			Convey("And a concurrent submit is told to retry", func() {
				deps.submitErr = service.ErrSubmitInFlight
				rec := do(mux, http.MethodPost, "/games/g1/moves",
					`{"player_id":"p1","artist":"Daft Punk"}`)
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(errCode(rec), ShouldEqual, "submit_in_flight")
			})

			Convey("And malformed JSON is a bad request", func() {
				rec := do(mux, http.MethodPost, "/games/g1/moves", `{not json`)
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When reading game state", func() {
			Convey("Then a known id returns its snapshot", func() {
				rec := do(mux, http.MethodGet, "/games/g1", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
			})

			Convey("And an unknown id is not found", func() {
				rec := do(mux, http.MethodGet, "/games/nope", "")
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(errCode(rec), ShouldEqual, "not_found")
			})
		})

		Convey("When resetting a game that is not finished", func() {
			deps.resetErr = game.ErrNotFinished
			rec := do(mux, http.MethodPost, "/games/g1/reset", "")

			Convey("Then the reset conflicts", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When using the wrong method", func() {
			Convey("Then unknown verbs 404", func() {
				So(do(mux, http.MethodGet, "/games", "").Code, ShouldEqual, http.StatusNotFound)
				So(do(mux, http.MethodDelete, "/games/g1", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestRunRoutes(t *testing.T) {
	Convey("Given the API wired to a stub service", t, func() {
		deps := newStubDeps()
		mux := newTestMux(deps)

		Convey("When a run is created", func() {
			rec := do(mux, http.MethodPost, "/runs",
				`{"player_id":"solo","display_name":"Solo","seed":"Daft Punk"}`)

			Convey("Then 201 with the seed forwarded", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				So(deps.lastSeed, ShouldEqual, "Daft Punk")
			})
		})

		Convey("When the seed is unknown", func() {
			deps.createRunErr = service.ErrSeedNotFound
			rec := do(mux, http.MethodPost, "/runs",
				`{"player_id":"solo","display_name":"Solo","seed":"Nobody"}`)

			Convey("Then 422 names the seed", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(errCode(rec), ShouldEqual, "seed_not_found")
			})
		})

		Convey("When the seed lookup fails upstream", func() {
			deps.createRunErr = service.ErrSeedLookup
			rec := do(mux, http.MethodPost, "/runs",
				`{"player_id":"solo","display_name":"Solo","seed":"Daft Punk"}`)

			Convey("Then the gateway error is surfaced", func() {
				So(rec.Code, ShouldEqual, http.StatusBadGateway)
				So(errCode(rec), ShouldEqual, "seed_lookup_failed")
			})
		})

		Convey("When run subresources are hit", func() {
			Convey("Then start and moves are routed like games", func() {
				So(do(mux, http.MethodPost, "/runs/r1/start", "").Code, ShouldEqual, http.StatusOK)
				rec := do(mux, http.MethodPost, "/runs/r1/moves",
					`{"player_id":"solo","artist":"Pharrell Williams"}`)
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastSubmit[0], ShouldEqual, "r1")
			})

			Convey("And a nested path beyond the action is rejected", func() {
				rec := do(mux, http.MethodGet, "/runs/r1/moves/extra", "")
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestBoardRoutes(t *testing.T) {
	Convey("Given the API wired to a stub service", t, func() {
		deps := newStubDeps()
		mux := newTestMux(deps)

		Convey("When the leaderboard is queried", func() {
			rec := do(mux, http.MethodGet, "/leaderboard?limit=2", "")

			Convey("Then entries are returned in order", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var entries []api.Entry
				So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].PlayerID, ShouldEqual, "alice")
			})
		})

		Convey("When the limit is missing or invalid", func() {
			Convey("Then the request is rejected", func() {
				So(do(mux, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodGet, "/leaderboard?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the limit exceeds the cap", func() {
			rec := do(mux, http.MethodGet, "/leaderboard?limit=500", "")

			Convey("Then the cap is enforced", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(errCode(rec), ShouldEqual, "limit_exceeded")
			})
		})

		Convey("When a player's rank is requested", func() {
			rec := do(mux, http.MethodGet, "/rank/alice", "")

			Convey("Then the entry is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var entry api.Entry
				So(json.Unmarshal(rec.Body.Bytes(), &entry), ShouldBeNil)
				So(entry.Rank, ShouldEqual, 1)
				So(entry.Score, ShouldEqual, 500)
			})

			Convey("And an unknown player is not found", func() {
				rec := do(mux, http.MethodGet, "/rank/ghost", "")
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("And a nested path is rejected", func() {
				rec := do(mux, http.MethodGet, "/rank/alice/extra", "")
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the API wired to a stub service", t, func() {
		mux := newTestMux(newStubDeps())

		Convey("When health is probed", func() {
			rec := do(mux, http.MethodGet, "/healthz", "")

			Convey("Then metrics exposition is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When stats are requested", func() {
			rec := do(mux, http.MethodGet, "/stats", "")

			Convey("Then the provider's view is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var stats map[string]interface{}
				So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
				So(stats["started"], ShouldEqual, true)
			})
		})
	})
}
