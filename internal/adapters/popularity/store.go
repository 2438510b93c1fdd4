// Package popularity serves the read contract against the offline
// popularity pipeline's output: pair-family counts, collaboration
// degrees, and popularity tiers. The snapshot is loaded once and read
// concurrently without locking.
package popularity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/okian/medley/internal/domain/model"
)

// Snapshot is the JSON layout the offline pipeline writes.
//
// Pair keys are unordered "idA|idB" with the two ids sorted
// lexicographically; artist entries carry degree and tier.
type Snapshot struct {
	Pairs   map[string]int          `json:"pairs"`
	Artists map[string]ArtistRecord `json:"artists"`
}

// ArtistRecord is one artist's popularity data.
type ArtistRecord struct {
	Degree   int            `json:"degree"`
	Category model.Category `json:"category"`
}

// Store implements the three scoring providers over a loaded snapshot.
// Lookups on ids the pipeline has no data for return the documented
// defaults: pair count 0, degree 0, category niche.
type Store struct {
	pairs   map[string]int
	artists map[string]ArtistRecord
}

// NewStore creates an empty store; Load or FromSnapshot fills it.
func NewStore() *Store {
	return &Store{
		pairs:   make(map[string]int),
		artists: make(map[string]ArtistRecord),
	}
}

// Load reads a snapshot file produced by the offline pipeline.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadSnapshot, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	return FromSnapshot(snapshot), nil
}

// FromSnapshot builds a store from an in-memory snapshot.
func FromSnapshot(snapshot Snapshot) *Store {
	s := NewStore()
	for key, count := range snapshot.Pairs {
		s.pairs[normalizePairKey(key)] = count
	}
	for id, record := range snapshot.Artists {
		s.artists[id] = record
	}
	return s
}

// PairFamilyCount returns how many distinct title-families two artists
// share, 0 when unknown.
func (s *Store) PairFamilyCount(_ context.Context, idA, idB string) int {
	return s.pairs[PairKey(idA, idB)]
}

// Degree returns an artist's total known-collaboration count, 0 when
// unknown.
func (s *Store) Degree(_ context.Context, id string) int {
	return s.artists[id].Degree
}

// Category returns an artist's popularity tier, niche when unknown.
func (s *Store) Category(_ context.Context, id string) model.Category {
	record, ok := s.artists[id]
	if !ok || record.Category == "" {
		return model.CategoryNiche
	}
	return record.Category
}

// Len reports how many artists the snapshot covers.
func (s *Store) Len() int { return len(s.artists) }

// PairKey builds the unordered snapshot key for two artist ids.
func PairKey(idA, idB string) string {
	pair := []string{idA, idB}
	sort.Strings(pair)
	return strings.Join(pair, "|")
}

func normalizePairKey(key string) string {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return key
	}
	return PairKey(parts[0], parts[1])
}

// Variant suffix markers stripped by FamilyKey, in parentheses or after
// a dash: "Song (Remix)", "Song - Live" and the like collapse to "song".
var variantMarker = regexp.MustCompile(`(?i)\s*[(\[-][^)\]]*(remix|edit|live|acoustic|instrumental|demo|version|mix)[^)\]]*[)\]]?\s*$`)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

var whitespace = regexp.MustCompile(`\s+`)

// FamilyKey normalizes a recording title to its title-family key, the
// grouping the pipeline's pair counts are computed over. Kept here so
// snapshot producers and tests agree on the format.
func FamilyKey(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = variantMarker.ReplaceAllString(t, "")
	t = punctuation.ReplaceAllString(t, "")
	t = whitespace.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
