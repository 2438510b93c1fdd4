// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// CanonicalIdentity is the resolved form of a free-text artist name.
// PrimaryID carries the primary source's stable identifier (MBID);
// SecondaryID the fallback source's numeric id rendered as a string.
type CanonicalIdentity struct {
	DisplayName string `json:"display_name"`
	PrimaryID   string `json:"primary_id,omitempty"`
	SecondaryID string `json:"secondary_id,omitempty"`
}

// DedupKey returns the key used for repeat detection: primary id,
// else secondary id, else the lower-cased trimmed display name.
func (c CanonicalIdentity) DedupKey() string {
	if c.PrimaryID != "" {
		return c.PrimaryID
	}
	if c.SecondaryID != "" {
		return c.SecondaryID
	}
	return NormalizeName(c.DisplayName)
}

// Same reports whether two identities refer to the same artist.
func (c CanonicalIdentity) Same(other CanonicalIdentity) bool {
	return c.DedupKey() == other.DedupKey()
}

// NormalizeName lower-cases and trims a free-text name. All caches and
// dedup fallbacks key on this form.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Participant is a player inside a game or run. IsEliminated flips at
// most once; only an explicit reset rebuilds participants un-eliminated.
type Participant struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	IsEliminated bool   `json:"is_eliminated"`
}

// RejectReason classifies why a proposal was not accepted.
type RejectReason string

const (
	ReasonNone           RejectReason = ""
	ReasonTimeout        RejectReason = "TIMEOUT"
	ReasonRepeat         RejectReason = "REPEAT"
	ReasonNotFound       RejectReason = "NOT_FOUND"
	ReasonNoRelation     RejectReason = "NO_RELATION"
	ReasonSingleCircular RejectReason = "SINGLE_CIRCULAR"
	ReasonOther          RejectReason = "OTHER"
)

// Source names which lookup service confirmed a collaboration.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// MoveRecord is an append-only log entry for one submission attempt.
type MoveRecord struct {
	HolderID         string       `json:"holder_id"`
	ProposedName     string       `json:"proposed_name"`
	Accepted         bool         `json:"accepted"`
	AttemptNumber    int          `json:"attempt_number"`
	ValidationSource Source       `json:"validation_source,omitempty"`
	RejectionReason  RejectReason `json:"rejection_reason,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
}

// ValidationOutcome is the verdict of the validation chain for one
// proposed name against the previously accepted artist.
type ValidationOutcome struct {
	Resolved           bool              `json:"resolved"`
	Canonical          CanonicalIdentity `json:"canonical"`
	RelationHolds      bool              `json:"relation_holds"`
	Source             Source            `json:"source,omitempty"`
	DegenerateRelation bool              `json:"degenerate_relation"`
}

// Category is an artist's popularity tier as produced by the offline
// popularity pipeline. CategoryNiche is the documented default for
// artists the pipeline has no data on.
type Category string

const (
	CategoryUltraMainstream Category = "ultra_mainstream"
	CategoryMainstream      Category = "mainstream"
	CategoryConnu           Category = "connu"
	CategoryNiche           Category = "niche"
	CategoryUnderground     Category = "underground"
)

// ScoreBreakdown details the multiplicative factors behind an accepted
// solo move's score. Final is capped.
type ScoreBreakdown struct {
	Base          float64 `json:"base"`
	PairBonus     float64 `json:"pair_bonus"`
	DegreeBonus   float64 `json:"degree_bonus"`
	CategoryBonus float64 `json:"category_bonus"`
	TimeBonus     float64 `json:"time_bonus"`
	ChainBonus    float64 `json:"chain_bonus"`
	Raw           float64 `json:"raw"`
	Final         int     `json:"final"`
}

// RunResult is what a finished solo run posts to the high-score board.
type RunResult struct {
	EventID  string    // unique id for idempotency
	PlayerID string    // participant identifier
	RunID    string    // finished run entity id
	Score    int       // the run's total score
	Turns    int       // accepted moves in the run
	TS       time.Time // completion timestamp
}
