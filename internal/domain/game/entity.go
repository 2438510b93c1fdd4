// Package game owns the turn-resolution engine: entity lifecycle, the
// ordered submission guards, soft and hard outcomes, eliminations, and
// round-robin turn advancement shared by multiplayer games and solo runs.
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/medley/internal/domain/model"
)

// Mode selects the entity variant.
type Mode string

const (
	ModeGame Mode = "game"
	ModeRun  Mode = "run"
)

// Status is an entity's lifecycle state. FINISHED is terminal except
// for an explicit reset.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
)

// Entity is one game or run. All mutable state is owned here and only
// the engine mutates it; callers read through Snapshot.
type Entity struct {
	mu       sync.Mutex
	submitMu sync.Mutex

	ID           string
	Code         string // join code, games only
	Mode         Mode
	Status       Status
	Participants []*model.Participant
	History      []model.MoveRecord

	HolderIndex   int
	LastAccepted  *model.CanonicalIdentity
	UsedKeys      map[string]struct{}
	TurnDeadline  time.Time
	TurnStartedAt time.Time
	TurnEpoch     uint64
	AttemptsUsed  int
	AcceptedCount int

	// Run-only fields. Seed feeds repeat detection and first-move
	// scoring but not the first relation check.
	Seed       *model.CanonicalIdentity
	TotalScore int

	WinnerID  string
	CreatedAt time.Time
}

// NewGame creates a multiplayer entity waiting for players.
func NewGame(code string, now time.Time) *Entity {
	return &Entity{
		ID:        uuid.NewString(),
		Code:      code,
		Mode:      ModeGame,
		Status:    StatusWaiting,
		UsedKeys:  make(map[string]struct{}),
		CreatedAt: now,
	}
}

// NewRun creates a solo entity seeded with a starting artist. The seed's
// dedup key is used immediately so re-proposing the seed is a repeat.
func NewRun(player model.Participant, seed model.CanonicalIdentity, now time.Time) *Entity {
	e := &Entity{
		ID:        uuid.NewString(),
		Mode:      ModeRun,
		Status:    StatusWaiting,
		UsedKeys:  make(map[string]struct{}),
		Seed:      &seed,
		CreatedAt: now,
	}
	e.Participants = []*model.Participant{{ID: player.ID, DisplayName: player.DisplayName}}
	e.UsedKeys[seed.DedupKey()] = struct{}{}
	return e
}

// Lock serializes access to entity state. The engine takes it for every
// mutation; snapshot reads take it too.
func (e *Entity) Lock()   { e.mu.Lock() }
func (e *Entity) Unlock() { e.mu.Unlock() }

// TryBeginSubmit acquires the per-entity single-flight submission slot.
// It returns false when another submit is already in flight, in which
// case the caller must reject rather than queue.
func (e *Entity) TryBeginSubmit() bool { return e.submitMu.TryLock() }

// EndSubmit releases the single-flight slot.
func (e *Entity) EndSubmit() { e.submitMu.Unlock() }

// holder returns the current turn holder, or nil outside IN_PROGRESS.
func (e *Entity) holder() *model.Participant {
	if e.HolderIndex < 0 || e.HolderIndex >= len(e.Participants) {
		return nil
	}
	return e.Participants[e.HolderIndex]
}

// survivors counts non-eliminated participants.
func (e *Entity) survivors() int {
	n := 0
	for _, p := range e.Participants {
		if !p.IsEliminated {
			n++
		}
	}
	return n
}

// nextHolderIndex walks the round-robin order from the slot after start
// to the next non-eliminated participant. Returns -1 when nobody is left.
func (e *Entity) nextHolderIndex(start int) int {
	n := len(e.Participants)
	for i := 1; i <= n; i++ {
		idx := (start + i) % n
		if !e.Participants[idx].IsEliminated {
			return idx
		}
	}
	return -1
}

// Snapshot is the read view handed to the transport layer.
type Snapshot struct {
	ID            string                   `json:"id"`
	Code          string                   `json:"code,omitempty"`
	Mode          Mode                     `json:"mode"`
	Status        Status                   `json:"status"`
	Participants  []model.Participant      `json:"participants"`
	History       []model.MoveRecord       `json:"history"`
	HolderID      string                   `json:"holder_id,omitempty"`
	LastAccepted  *model.CanonicalIdentity `json:"last_accepted,omitempty"`
	Seed          *model.CanonicalIdentity `json:"seed,omitempty"`
	TurnDeadline  *time.Time               `json:"turn_deadline,omitempty"`
	AttemptsUsed  int                      `json:"attempts_used"`
	AcceptedCount int                      `json:"accepted_count"`
	TotalScore    int                      `json:"total_score,omitempty"`
	WinnerID      string                   `json:"winner_id,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
}

// Snapshot copies the entity state under its lock.
func (e *Entity) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Entity) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:            e.ID,
		Code:          e.Code,
		Mode:          e.Mode,
		Status:        e.Status,
		Participants:  make([]model.Participant, len(e.Participants)),
		History:       append([]model.MoveRecord(nil), e.History...),
		LastAccepted:  e.LastAccepted,
		Seed:          e.Seed,
		AttemptsUsed:  e.AttemptsUsed,
		AcceptedCount: e.AcceptedCount,
		TotalScore:    e.TotalScore,
		WinnerID:      e.WinnerID,
		CreatedAt:     e.CreatedAt,
	}
	for i, p := range e.Participants {
		s.Participants[i] = *p
	}
	if e.Status == StatusInProgress {
		if h := e.holder(); h != nil {
			s.HolderID = h.ID
		}
		if !e.TurnDeadline.IsZero() {
			deadline := e.TurnDeadline
			s.TurnDeadline = &deadline
		}
	}
	return s
}
