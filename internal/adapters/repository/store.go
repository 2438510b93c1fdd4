// Package repository holds the in-memory state the service owns: the
// entity registry for live games and runs, and the high-score board for
// finished solo runs.
package repository

import (
	"context"
	"sync"

	"github.com/okian/medley/internal/domain/game"
)

// Entry is one high-score board row.
type Entry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Score    int    `json:"score"`
	RunID    string `json:"run_id,omitempty"`
	Turns    int    `json:"turns,omitempty"`
}

// Board provides read/write access to solo high scores.
type Board interface {
	// UpdateBest records a run score if it beats the player's current
	// best. Returns true when the board changed.
	UpdateBest(ctx context.Context, playerID string, score int, runID string, turns int) (bool, error)

	// Rank returns the current rank and best score for a player.
	// Returns ErrPlayerNotFound for unknown players.
	Rank(ctx context.Context, playerID string) (Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of players on the board.
	Count(ctx context.Context) int
}

// EntityStore is the registry of live entities, addressable by id and,
// for games, by join code.
type EntityStore struct {
	mu     sync.RWMutex
	byID   map[string]*game.Entity
	byCode map[string]*game.Entity
}

// NewEntityStore creates an empty registry.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		byID:   make(map[string]*game.Entity),
		byCode: make(map[string]*game.Entity),
	}
}

// Put registers an entity.
func (s *EntityStore) Put(ent *game.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[ent.ID] = ent
	if ent.Code != "" {
		s.byCode[ent.Code] = ent
	}
}

// Get returns the entity for an id, or ErrEntityNotFound.
func (s *EntityStore) Get(id string) (*game.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.byID[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return ent, nil
}

// GetByCode returns the game registered under a join code.
func (s *EntityStore) GetByCode(code string) (*game.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.byCode[code]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return ent, nil
}

// Delete removes an entity and frees its join code.
func (s *EntityStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.byID[id]; ok {
		delete(s.byID, id)
		if ent.Code != "" {
			delete(s.byCode, ent.Code)
		}
	}
}

// CodeInUse reports whether a join code is taken.
func (s *EntityStore) CodeInUse(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byCode[code]
	return ok
}

// Counts returns the number of live entities per mode.
func (s *EntityStore) Counts() (games, runs int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ent := range s.byID {
		if ent.Mode == game.ModeGame {
			games++
		} else {
			runs++
		}
	}
	return games, runs
}
