// Package scoring computes the solo-mode score for an accepted move.
//
// The score is a capped product of bucketed bonuses over read-only
// popularity lookups produced by the offline pipeline. The computation
// is pure and deterministic: same inputs, same breakdown.
package scoring

import (
	"context"
	"math"

	"github.com/okian/medley/internal/domain/model"
)

// Scoring constants.
const (
	baseScore       = 100.0
	defaultScoreCap = 280
)

// PairCounter reports how many distinct title-families two artists
// share. Unknown pairs return 0.
type PairCounter interface {
	PairFamilyCount(ctx context.Context, idA, idB string) int
}

// DegreeProvider reports an artist's total known-collaboration count.
// Unknown artists return 0.
type DegreeProvider interface {
	Degree(ctx context.Context, id string) int
}

// CategoryProvider reports an artist's popularity tier. Unknown artists
// return model.CategoryNiche.
type CategoryProvider interface {
	Category(ctx context.Context, id string) model.Category
}

// Input abstracts the accepted move fields needed for scoring.
type Input struct {
	PreviousID            string
	CandidateID           string
	TurnNumber            int
	SecondsSinceTurnStart float64
}

// Scorer computes a score breakdown for an accepted solo move.
type Scorer interface {
	Score(ctx context.Context, in Input) model.ScoreBreakdown
}

// Engine implements Scorer over injected popularity providers.
type Engine struct {
	pairs      PairCounter
	degrees    DegreeProvider
	categories CategoryProvider
	cap        int
}

// NewEngine creates a scoring engine with configuration options.
func NewEngine(pairs PairCounter, degrees DegreeProvider, categories CategoryProvider, opts ...Option) *Engine {
	e := &Engine{
		pairs:      pairs,
		degrees:    degrees,
		categories: categories,
		cap:        defaultScoreCap,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Score computes the capped composite score for one accepted move.
func (e *Engine) Score(ctx context.Context, in Input) model.ScoreBreakdown {
	b := model.ScoreBreakdown{
		Base:          baseScore,
		PairBonus:     pairBonus(e.pairs.PairFamilyCount(ctx, in.PreviousID, in.CandidateID)),
		DegreeBonus:   degreeBonus(e.degrees.Degree(ctx, in.CandidateID)),
		CategoryBonus: categoryBonus(e.categories.Category(ctx, in.CandidateID)),
		TimeBonus:     timeBonus(in.SecondsSinceTurnStart),
		ChainBonus:    chainBonus(in.TurnNumber),
	}

	b.Raw = b.Base * b.PairBonus * b.DegreeBonus * b.CategoryBonus * b.TimeBonus * b.ChainBonus
	b.Final = int(math.Round(b.Raw))
	if b.Final > e.cap {
		b.Final = e.cap
	}
	return b
}

// pairBonus rewards rare pairings: a single shared title-family is the
// sweet spot, ubiquitous pairings earn nothing.
func pairBonus(count int) float64 {
	switch {
	case count == 0:
		return 1.00
	case count == 1:
		return 1.30
	case count <= 3:
		return 1.18
	case count <= 7:
		return 1.08
	case count <= 15:
		return 1.03
	default:
		return 1.00
	}
}

func degreeBonus(degree int) float64 {
	switch {
	case degree <= 10:
		return 1.05
	case degree <= 25:
		return 1.03
	case degree <= 60:
		return 1.01
	default:
		return 1.00
	}
}

func categoryBonus(category model.Category) float64 {
	switch category {
	case model.CategoryUltraMainstream:
		return 1.00
	case model.CategoryMainstream:
		return 1.02
	case model.CategoryConnu:
		return 1.04
	case model.CategoryUnderground:
		return 1.12
	case model.CategoryNiche:
		return 1.08
	default:
		// Unknown tiers score like niche, matching the provider default.
		return 1.08
	}
}

func timeBonus(seconds float64) float64 {
	switch {
	case seconds <= 5:
		return 1.20
	case seconds <= 10:
		return 1.12
	case seconds <= 20:
		return 1.06
	case seconds <= 35:
		return 1.02
	default:
		return 1.00
	}
}

// chainBonus grows 5% every five turns and caps at +20%.
func chainBonus(turnNumber int) float64 {
	if turnNumber < 1 {
		turnNumber = 1
	}
	bonus := 0.05 * math.Floor(float64(turnNumber-1)/5)
	return 1 + math.Min(0.20, bonus)
}
