package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/medley/internal/domain/model"
	"github.com/okian/medley/internal/domain/scoring"
	"github.com/okian/medley/internal/domain/validate"
	"github.com/okian/medley/pkg/logger"
	"github.com/okian/medley/pkg/metrics"
)

// Default turn configuration constants.
const (
	defaultTurnDuration  = 30 * time.Second
	defaultAttemptBudget = 2
	minGameParticipants  = 2
)

// Outcome classifies the result of an operation on an entity.
type Outcome string

const (
	// OutcomeAccepted: the proposal was validated and applied.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRetry: soft rejection with attempts remaining.
	OutcomeRetry Outcome = "retry"
	// OutcomeEliminated: hard elimination of the holder.
	OutcomeEliminated Outcome = "eliminated"
	// OutcomeRejected: caller error, no state change.
	OutcomeRejected Outcome = "rejected"
)

// Result is the structured outcome of Start, Submit, or Timeout.
type Result struct {
	Outcome    Outcome
	Reason     model.RejectReason
	Move       *model.MoveRecord
	Validation *model.ValidationOutcome
	Score      *model.ScoreBreakdown
	Message    string

	// Turn bookkeeping for the timer coordinator.
	TurnOpened   bool
	Deadline     time.Time
	Epoch        uint64
	HolderID     string
	AttemptsLeft int

	Finished bool
	WinnerID string
}

// Engine drives entity state transitions. It is stateless across
// entities; per-entity serialization is the caller's contract via
// Entity.Lock and the single-flight submit slot.
type Engine struct {
	validator validate.Validator
	scorer    scoring.Scorer

	now           func() time.Time
	turnDuration  time.Duration
	attemptBudget int

	logger logger.Logger
}

// NewEngine creates a turn engine with configuration options.
func NewEngine(validator validate.Validator, scorer scoring.Scorer, opts ...Option) *Engine {
	e := &Engine{
		validator:     validator,
		scorer:        scorer,
		now:           time.Now,
		turnDuration:  defaultTurnDuration,
		attemptBudget: defaultAttemptBudget,
		logger:        logger.Get().Named("engine"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// TurnDuration exposes the configured per-turn deadline window.
func (e *Engine) TurnDuration() time.Duration { return e.turnDuration }

// Join adds a participant to a waiting game.
func (e *Engine) Join(ent *Entity, p model.Participant) error {
	ent.Lock()
	defer ent.Unlock()

	if ent.Mode != ModeGame || ent.Status != StatusWaiting {
		return ErrNotJoinable
	}
	for _, existing := range ent.Participants {
		if existing.ID == p.ID {
			return ErrDuplicateParticipant
		}
	}
	ent.Participants = append(ent.Participants, &model.Participant{ID: p.ID, DisplayName: p.DisplayName})
	return nil
}

// Start opens the first turn. A game needs at least two participants, a
// run exactly one.
func (e *Engine) Start(ctx context.Context, ent *Entity) (*Result, error) {
	ent.Lock()
	defer ent.Unlock()

	if ent.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	switch ent.Mode {
	case ModeGame:
		if len(ent.Participants) < minGameParticipants {
			return nil, ErrTooFewParticipants
		}
	case ModeRun:
		if len(ent.Participants) != 1 {
			return nil, ErrTooFewParticipants
		}
	}

	ent.Status = StatusInProgress
	ent.HolderIndex = 0
	e.startTurn(ent)

	res := &Result{
		Outcome: OutcomeAccepted,
		Message: fmt.Sprintf("%s starts, name any artist", ent.holder().DisplayName),
	}
	e.stampTurn(ent, res)
	return res, nil
}

// Submit runs the ordered guard chain for one proposal. It never
// returns an error for expected game conditions.
func (e *Engine) Submit(ctx context.Context, ent *Entity, holderID, proposedName string) *Result {
	ent.Lock()
	defer ent.Unlock()

	// Guard 1: lifecycle.
	if ent.Status != StatusInProgress {
		return &Result{
			Outcome: OutcomeRejected,
			Reason:  model.ReasonOther,
			Message: "no turn is open",
		}
	}

	// Guard 2: turn ownership.
	holder := ent.holder()
	if holder == nil || holder.ID != holderID || holder.IsEliminated {
		return &Result{
			Outcome: OutcomeRejected,
			Reason:  model.ReasonOther,
			Message: "it is not your turn",
		}
	}

	now := e.now()

	// Guard 3: deadline. A timed-out submission consumes no attempt and
	// never reaches the validation chain.
	if !now.Before(ent.TurnDeadline) {
		e.appendMove(ent, model.MoveRecord{
			HolderID:        holder.ID,
			ProposedName:    strings.TrimSpace(proposedName),
			AttemptNumber:   ent.AttemptsUsed,
			RejectionReason: model.ReasonTimeout,
			Timestamp:       now,
		})
		return e.eliminate(ctx, ent, holder, model.ReasonTimeout)
	}

	// Guard 4: attempt budget. Unreachable when submissions are
	// serialized; a trip here means a caller bypassed the lock.
	attemptNumber := ent.AttemptsUsed + 1
	if attemptNumber > e.attemptBudget {
		e.logger.Error(ctx, "attempt budget exceeded before submission",
			logger.String("entity", ent.ID),
			logger.String("holder", holder.ID),
			logger.Int("attempts_used", ent.AttemptsUsed),
		)
		e.appendMove(ent, model.MoveRecord{
			HolderID:        holder.ID,
			ProposedName:    strings.TrimSpace(proposedName),
			AttemptNumber:   attemptNumber,
			RejectionReason: model.ReasonOther,
			Timestamp:       now,
		})
		return e.eliminate(ctx, ent, holder, model.ReasonOther)
	}

	name := strings.TrimSpace(proposedName)
	outcome := e.validator.Validate(ctx, ent.LastAccepted, name)

	move := model.MoveRecord{
		HolderID:      holder.ID,
		ProposedName:  name,
		AttemptNumber: attemptNumber,
		Timestamp:     now,
	}

	// Guard 5: repeats eliminate regardless of remaining attempts, and
	// before the relation verdict is considered.
	if outcome.Resolved {
		if _, used := ent.UsedKeys[outcome.Canonical.DedupKey()]; used {
			move.RejectionReason = model.ReasonRepeat
			e.appendMove(ent, move)
			res := e.eliminate(ctx, ent, holder, model.ReasonRepeat)
			res.Validation = &outcome
			return res
		}
	}

	switch {
	case !outcome.Resolved:
		return e.softReject(ctx, ent, holder, move, outcome, model.ReasonNotFound)
	case !outcome.RelationHolds:
		return e.softReject(ctx, ent, holder, move, outcome, model.ReasonNoRelation)
	case outcome.DegenerateRelation:
		// A relation nominally exists, but the candidate's only known
		// collaborator is the previous artist. State stays untouched.
		return e.softReject(ctx, ent, holder, move, outcome, model.ReasonSingleCircular)
	}

	return e.accept(ctx, ent, holder, move, outcome, now)
}

// Timeout is the timer coordinator's entry point. The epoch guard makes
// it a no-op when a racing submit already closed the turn it targeted.
func (e *Engine) Timeout(ctx context.Context, ent *Entity, epoch uint64) (*Result, bool) {
	ent.Lock()
	defer ent.Unlock()

	if ent.Status != StatusInProgress || ent.TurnEpoch != epoch {
		metrics.RecordTimerStaleFire()
		return nil, false
	}
	now := e.now()
	if now.Before(ent.TurnDeadline) {
		metrics.RecordTimerStaleFire()
		return nil, false
	}

	holder := ent.holder()
	if holder == nil {
		return nil, false
	}

	metrics.RecordTimerFire()
	e.appendMove(ent, model.MoveRecord{
		HolderID:        holder.ID,
		AttemptNumber:   ent.AttemptsUsed,
		RejectionReason: model.ReasonTimeout,
		Timestamp:       now,
	})
	return e.eliminate(ctx, ent, holder, model.ReasonTimeout), true
}

// Reset rebuilds a finished game into a fresh waiting one, preserving
// participant identities.
func (e *Engine) Reset(ent *Entity) error {
	ent.Lock()
	defer ent.Unlock()

	if ent.Mode != ModeGame {
		return ErrNotResettable
	}
	if ent.Status != StatusFinished {
		return ErrNotFinished
	}

	ent.Status = StatusWaiting
	ent.History = nil
	ent.UsedKeys = make(map[string]struct{})
	ent.LastAccepted = nil
	ent.HolderIndex = 0
	ent.TurnDeadline = time.Time{}
	ent.TurnStartedAt = time.Time{}
	ent.TurnEpoch++
	ent.AttemptsUsed = 0
	ent.AcceptedCount = 0
	ent.WinnerID = ""
	for _, p := range ent.Participants {
		p.IsEliminated = false
	}
	return nil
}

// startTurn opens a turn for the designated holder, skipping eliminated
// holders defensively.
func (e *Engine) startTurn(ent *Entity) {
	if h := ent.holder(); h != nil && h.IsEliminated {
		if next := ent.nextHolderIndex(ent.HolderIndex); next >= 0 {
			ent.HolderIndex = next
		}
	}
	now := e.now()
	ent.TurnDeadline = now.Add(e.turnDuration)
	ent.TurnStartedAt = now
	ent.AttemptsUsed = 0
	ent.TurnEpoch++
}

// accept applies a validated move: dedup bookkeeping, scoring for runs,
// and a fresh turn.
func (e *Engine) accept(ctx context.Context, ent *Entity, holder *model.Participant, move model.MoveRecord, outcome model.ValidationOutcome, now time.Time) *Result {
	canonical := outcome.Canonical

	// The chain predecessor: the last accepted artist, or the seed on a
	// run's first move. Captured before LastAccepted is replaced.
	previousID := ""
	if ent.LastAccepted != nil {
		previousID = ent.LastAccepted.DedupKey()
	} else if ent.Seed != nil {
		previousID = ent.Seed.DedupKey()
	}

	ent.LastAccepted = &canonical
	ent.UsedKeys[canonical.DedupKey()] = struct{}{}
	ent.AcceptedCount++

	move.Accepted = true
	move.ValidationSource = outcome.Source
	e.appendMove(ent, move)
	metrics.RecordMoveAccepted()

	res := &Result{
		Outcome:    OutcomeAccepted,
		Move:       &move,
		Validation: &outcome,
		Message:    fmt.Sprintf("%s accepted", canonical.DisplayName),
	}

	if ent.Mode == ModeRun && e.scorer != nil {
		breakdown := e.scorer.Score(ctx, scoring.Input{
			PreviousID:            previousID,
			CandidateID:           canonical.DedupKey(),
			TurnNumber:            ent.AcceptedCount,
			SecondsSinceTurnStart: now.Sub(ent.TurnStartedAt).Seconds(),
		})
		ent.TotalScore += breakdown.Final
		res.Score = &breakdown
		res.Message = fmt.Sprintf("%s accepted, +%d points", canonical.DisplayName, breakdown.Final)
	}

	// Next turn: same holder in a run, next survivor in a game.
	if ent.Mode == ModeGame {
		if next := ent.nextHolderIndex(ent.HolderIndex); next >= 0 {
			ent.HolderIndex = next
		}
	}
	e.startTurn(ent)
	e.stampTurn(ent, res)
	return res
}

// softReject consumes an attempt, and escalates to elimination when the
// budget is spent.
func (e *Engine) softReject(ctx context.Context, ent *Entity, holder *model.Participant, move model.MoveRecord, outcome model.ValidationOutcome, reason model.RejectReason) *Result {
	ent.AttemptsUsed = move.AttemptNumber
	move.RejectionReason = reason
	e.appendMove(ent, move)
	metrics.RecordMoveRejected(string(reason))

	if move.AttemptNumber >= e.attemptBudget {
		res := e.eliminate(ctx, ent, holder, reason)
		res.Move = &move
		res.Validation = &outcome
		return res
	}

	res := &Result{
		Outcome:      OutcomeRetry,
		Reason:       reason,
		Move:         &move,
		Validation:   &outcome,
		AttemptsLeft: e.attemptBudget - move.AttemptNumber,
		Deadline:     ent.TurnDeadline,
		Epoch:        ent.TurnEpoch,
		HolderID:     holder.ID,
		Message:      retryMessage(reason, e.attemptBudget-move.AttemptNumber),
	}
	return res
}

// eliminate flips the holder out of play and either finishes the entity
// or advances the turn.
func (e *Engine) eliminate(ctx context.Context, ent *Entity, holder *model.Participant, reason model.RejectReason) *Result {
	holder.IsEliminated = true
	metrics.RecordElimination(string(reason))

	res := &Result{
		Outcome:  OutcomeEliminated,
		Reason:   reason,
		Message:  fmt.Sprintf("%s is eliminated (%s)", holder.DisplayName, reason),
		HolderID: holder.ID,
	}

	if ent.survivors() <= 1 {
		ent.Status = StatusFinished
		ent.TurnDeadline = time.Time{}
		ent.TurnEpoch++
		res.Finished = true
		for _, p := range ent.Participants {
			if !p.IsEliminated {
				ent.WinnerID = p.ID
				res.Message = fmt.Sprintf("%s is eliminated (%s), %s wins", holder.DisplayName, reason, p.DisplayName)
				break
			}
		}
		res.WinnerID = ent.WinnerID
		return res
	}

	if next := ent.nextHolderIndex(ent.HolderIndex); next >= 0 {
		ent.HolderIndex = next
	}
	e.startTurn(ent)
	e.stampTurn(ent, res)
	return res
}

// stampTurn marks res with the freshly opened turn so the coordinator
// can schedule its deadline.
func (e *Engine) stampTurn(ent *Entity, res *Result) {
	res.TurnOpened = true
	res.Deadline = ent.TurnDeadline
	res.Epoch = ent.TurnEpoch
	res.AttemptsLeft = e.attemptBudget
	if h := ent.holder(); h != nil {
		res.HolderID = h.ID
	}
}

func (e *Engine) appendMove(ent *Entity, move model.MoveRecord) {
	ent.History = append(ent.History, move)
	metrics.RecordMoveProcessed()
}

// retryMessage phrases a soft rejection for the holder.
func retryMessage(reason model.RejectReason, attemptsLeft int) string {
	var what string
	switch reason {
	case model.ReasonNotFound:
		what = "artist not found"
	case model.ReasonNoRelation:
		what = "no collaboration found"
	case model.ReasonSingleCircular:
		what = "that collaboration only points back"
	default:
		what = "rejected"
	}
	return fmt.Sprintf("%s, %d attempt(s) left", what, attemptsLeft)
}
