// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/medley/internal/adapters/deezer"
	"github.com/okian/medley/internal/adapters/mq/queue"
	"github.com/okian/medley/internal/adapters/mq/worker"
	"github.com/okian/medley/internal/adapters/musicbrainz"
	"github.com/okian/medley/internal/adapters/popularity"
	"github.com/okian/medley/internal/adapters/repository"
	"github.com/okian/medley/internal/adapters/timer"
	"github.com/okian/medley/internal/domain/dedupe"
	"github.com/okian/medley/internal/domain/game"
	"github.com/okian/medley/internal/domain/model"
	"github.com/okian/medley/internal/domain/scoring"
	"github.com/okian/medley/internal/domain/validate"
	"github.com/okian/medley/pkg/logger"
	"github.com/okian/medley/pkg/metrics"
)

const (
	joinCodeLength   = 6
	joinCodeAttempts = 10
	// Unambiguous uppercase alphabet for join codes.
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Service wires the turn engine, validation chain, timer coordinator,
// and result pipeline behind the operations the HTTP API needs.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     *repository.EntityStore
	board     repository.Board
	deduper   dedupe.Deduper
	queue     queue.Queue
	pool      *worker.Pool
	engine    *game.Engine
	scheduler *timer.Scheduler
	primary   validate.PrimarySource
	fallback  validate.FallbackSource

	// Configuration
	turnDuration    time.Duration
	attemptBudget   int
	primaryBaseURL  string
	fallbackBaseURL string
	sourceTimeout   time.Duration
	userAgent       string
	retryAttempts   int
	retryDelay      time.Duration
	cacheSize       int
	queueSize       int
	workerCount     int
	dedupeSize      int
	maxBoardLimit   int
	snapshotPath    string
	afterFunc       timer.AfterFunc
	clock           func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithTurnDuration sets the per-turn deadline window.
func WithTurnDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.turnDuration = d
		}
	}
}

// WithAttemptBudget sets the soft-rejection budget per turn.
func WithAttemptBudget(budget int) Option {
	return func(s *Service) {
		if budget > 0 {
			s.attemptBudget = budget
		}
	}
}

// WithSourceURLs sets the lookup source base URLs.
func WithSourceURLs(primary, fallback string) Option {
	return func(s *Service) {
		if primary != "" {
			s.primaryBaseURL = primary
		}
		if fallback != "" {
			s.fallbackBaseURL = fallback
		}
	}
}

// WithSourceTimeout bounds a single lookup source call.
func WithSourceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sourceTimeout = d
		}
	}
}

// WithUserAgent sets the outbound lookup user agent.
func WithUserAgent(ua string) Option {
	return func(s *Service) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithRetry sets the lookup retry policy.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.retryAttempts = attempts
		}
		if delay >= 0 {
			s.retryDelay = delay
		}
	}
}

// WithCacheSize bounds the validation caches.
func WithCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.cacheSize = size
		}
	}
}

// WithQueueSize sets the maximum size of the result queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of board update workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithDedupeSize sets the size of the result deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxBoardLimit caps leaderboard query sizes.
func WithMaxBoardLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxBoardLimit = limit
		}
	}
}

// WithPopularitySnapshot points the scoring engine at a JSON snapshot.
func WithPopularitySnapshot(path string) Option {
	return func(s *Service) {
		s.snapshotPath = path
	}
}

// WithAfterFunc injects the timer primitive. Tests use this to fire
// deadlines by hand.
func WithAfterFunc(after timer.AfterFunc) Option {
	return func(s *Service) {
		if after != nil {
			s.afterFunc = after
		}
	}
}

// WithClock injects the time source used by the turn engine.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPrimarySource overrides the primary lookup source. Tests use this
// to avoid real network calls.
func WithPrimarySource(src validate.PrimarySource) Option {
	return func(s *Service) {
		if src != nil {
			s.primary = src
		}
	}
}

// WithFallbackSource overrides the fallback lookup source.
func WithFallbackSource(src validate.FallbackSource) Option {
	return func(s *Service) {
		if src != nil {
			s.fallback = src
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		turnDuration:    30 * time.Second,
		attemptBudget:   2,
		fallbackBaseURL: "",
		sourceTimeout:   5 * time.Second,
		retryAttempts:   3,
		retryDelay:      300 * time.Millisecond,
		cacheSize:       10_000,
		queueSize:       10_000,
		workerCount:     2,
		dedupeSize:      50_000,
		maxBoardLimit:   100,
		clock:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting medley service...")

	if s.primary == nil {
		mbOpts := []musicbrainz.Option{
			musicbrainz.WithTimeout(s.sourceTimeout),
			musicbrainz.WithUserAgent(s.userAgent),
		}
		if s.primaryBaseURL != "" {
			mbOpts = append(mbOpts, musicbrainz.WithBaseURL(s.primaryBaseURL))
		}
		s.primary = musicbrainz.NewClient(mbOpts...)
	}
	if s.fallback == nil {
		dzOpts := []deezer.Option{deezer.WithTimeout(s.sourceTimeout)}
		if s.fallbackBaseURL != "" {
			dzOpts = append(dzOpts, deezer.WithBaseURL(s.fallbackBaseURL))
		}
		s.fallback = deezer.NewClient(dzOpts...)
	}

	validator := validate.NewChain(s.primary, s.fallback,
		validate.WithRetry(s.retryAttempts, s.retryDelay),
		validate.WithCacheSize(s.cacheSize),
	)

	pop, err := s.loadPopularity(ctx)
	if err != nil {
		return err
	}
	scorer := scoring.NewEngine(pop, pop, pop)

	s.engine = game.NewEngine(validator, scorer,
		game.WithClock(s.clock),
		game.WithTurnDuration(s.turnDuration),
		game.WithAttemptBudget(s.attemptBudget),
	)

	timerOpts := []timer.Option{}
	if s.afterFunc != nil {
		timerOpts = append(timerOpts, timer.WithAfterFunc(s.afterFunc))
	}
	s.scheduler = timer.NewScheduler(s.handleTimeout, timerOpts...)

	s.store = repository.NewEntityStore()
	s.board = repository.NewTreapBoard()
	s.logger.Info(ctx, "using treap board")
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
	)

	s.pool = worker.NewPool(s.workerCount, s.queue, s.board)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "medley service started",
		logger.Duration("turnDuration", s.turnDuration),
		logger.Int("attemptBudget", s.attemptBudget),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)

	return nil
}

func (s *Service) loadPopularity(ctx context.Context) (*popularity.Store, error) {
	if s.snapshotPath == "" {
		return popularity.NewStore(), nil
	}
	pop, err := popularity.Load(s.snapshotPath)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "loaded popularity snapshot",
		logger.String("path", s.snapshotPath),
		logger.Int("artists", pop.Len()),
	)
	return pop, nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping medley service...")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	if q, ok := s.queue.(*queue.InMemoryQueue); ok {
		_ = q.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "medley service stopped")
}

// CreateGame creates a waiting multiplayer game with a fresh join code.
func (s *Service) CreateGame(ctx context.Context) (game.Snapshot, error) {
	code, err := s.newJoinCode()
	if err != nil {
		return game.Snapshot{}, err
	}

	ent := game.NewGame(code, s.clock())
	s.store.Put(ent)
	s.updateEntityGauges()

	s.logger.Info(ctx, "game created",
		logger.String("gameID", ent.ID),
		logger.String("code", code),
	)
	return ent.Snapshot(), nil
}

// JoinGame adds a player to a waiting game looked up by join code.
func (s *Service) JoinGame(ctx context.Context, code string, player model.Participant) (game.Snapshot, error) {
	ent, err := s.store.GetByCode(code)
	if err != nil {
		return game.Snapshot{}, err
	}
	if err := s.engine.Join(ent, player); err != nil {
		return game.Snapshot{}, err
	}
	s.logger.Info(ctx, "player joined",
		logger.String("gameID", ent.ID),
		logger.String("playerID", player.ID),
	)
	return ent.Snapshot(), nil
}

// CreateRun creates a solo run seeded with a starting artist resolved
// through the primary lookup source.
func (s *Service) CreateRun(ctx context.Context, player model.Participant, seedName string) (game.Snapshot, error) {
	seed, err := s.primary.Resolve(ctx, seedName)
	if err != nil {
		s.logger.Warn(ctx, "seed resolution failed",
			logger.String("seed", seedName),
			logger.Error(err),
		)
		return game.Snapshot{}, ErrSeedLookup
	}
	if seed == nil {
		return game.Snapshot{}, ErrSeedNotFound
	}

	ent := game.NewRun(player, *seed, s.clock())
	s.store.Put(ent)
	s.updateEntityGauges()

	s.logger.Info(ctx, "run created",
		logger.String("runID", ent.ID),
		logger.String("playerID", player.ID),
		logger.String("seed", seed.DisplayName),
	)
	return ent.Snapshot(), nil
}

// StartEntity opens the first turn of a game or run and arms its
// deadline.
func (s *Service) StartEntity(ctx context.Context, id string) (*game.Result, error) {
	ent, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Start(ctx, ent)
	if err != nil {
		return nil, err
	}
	s.armTimer(ctx, ent.ID, res)
	return res, nil
}

// Submit proposes an artist for the current turn. Concurrent submits on
// the same entity are rejected, not queued.
func (s *Service) Submit(ctx context.Context, id, playerID, proposedName string) (*game.Result, error) {
	ent, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	if !ent.TryBeginSubmit() {
		return nil, ErrSubmitInFlight
	}
	defer ent.EndSubmit()

	res := s.engine.Submit(ctx, ent, playerID, proposedName)
	s.settle(ctx, ent, res)
	return res, nil
}

// Reset returns a finished game to the waiting state.
func (s *Service) Reset(ctx context.Context, id string) (game.Snapshot, error) {
	ent, err := s.store.Get(id)
	if err != nil {
		return game.Snapshot{}, err
	}
	if err := s.engine.Reset(ent); err != nil {
		return game.Snapshot{}, err
	}
	s.scheduler.Cancel(ent.ID)
	s.logger.Info(ctx, "game reset", logger.String("gameID", ent.ID))
	return ent.Snapshot(), nil
}

// GetState returns a point-in-time snapshot of an entity.
func (s *Service) GetState(_ context.Context, id string) (game.Snapshot, error) {
	ent, err := s.store.Get(id)
	if err != nil {
		return game.Snapshot{}, err
	}
	return ent.Snapshot(), nil
}

// TopN returns the top N high-score board entries.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	if n <= 0 {
		n = 10
	}
	if n > s.maxBoardLimit {
		n = s.maxBoardLimit
	}
	return s.board.TopN(ctx, n)
}

// Rank returns the board entry for a given player id.
func (s *Service) Rank(ctx context.Context, playerID string) (repository.Entry, error) {
	return s.board.Rank(ctx, playerID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"turnSeconds":   int(s.turnDuration / time.Second),
		"attemptBudget": s.attemptBudget,
	}

	if s.started {
		games, runs := s.store.Counts()
		queueLen := s.queue.Len(ctx)
		stats["activeGames"] = games
		stats["activeRuns"] = runs
		stats["queueLength"] = queueLen
		stats["pendingTimers"] = s.scheduler.Pending()
		stats["boardPlayers"] = s.board.Count(ctx)

		metrics.UpdateResultQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
		metrics.UpdateActiveGames(games)
		metrics.UpdateActiveRuns(runs)
	}

	return stats
}

// handleTimeout is the scheduler fire callback. Stale epochs no-op
// inside the engine.
func (s *Service) handleTimeout(ctx context.Context, entityID string, epoch uint64) {
	ent, err := s.store.Get(entityID)
	if err != nil {
		return
	}

	res, fired := s.engine.Timeout(ctx, ent, epoch)
	if !fired {
		return
	}
	s.settle(ctx, ent, res)
}

// settle does the post-transition bookkeeping shared by Submit and the
// timeout path: re-arm or cancel the deadline and ship finished runs to
// the result pipeline.
func (s *Service) settle(ctx context.Context, ent *game.Entity, res *game.Result) {
	if res == nil {
		return
	}
	if res.Finished {
		s.scheduler.Cancel(ent.ID)
		s.finalizeRun(ctx, ent)
		return
	}
	s.armTimer(ctx, ent.ID, res)
}

func (s *Service) armTimer(ctx context.Context, entityID string, res *game.Result) {
	if res == nil || !res.TurnOpened {
		return
	}
	s.scheduler.Schedule(ctx, entityID, res.Epoch, res.Deadline.Sub(s.clock()))
}

// finalizeRun enqueues a finished solo run for board processing exactly
// once per run id.
func (s *Service) finalizeRun(ctx context.Context, ent *game.Entity) {
	snap := ent.Snapshot()
	if snap.Mode != game.ModeRun || len(snap.Participants) == 0 {
		return
	}

	playerID := snap.Participants[0].ID
	if s.deduper.SeenAndRecord(ctx, "run:"+snap.ID) {
		metrics.RecordResultDuplicate()
		return
	}

	result := model.RunResult{
		EventID:  uuid.NewString(),
		PlayerID: playerID,
		RunID:    snap.ID,
		Score:    snap.TotalScore,
		Turns:    snap.AcceptedCount,
		TS:       s.clock(),
	}
	if !s.queue.Enqueue(ctx, result) {
		// Allow a later retry if the queue refused it.
		s.deduper.Unrecord(ctx, "run:"+snap.ID)
		return
	}
	metrics.RecordRunScore(float64(snap.TotalScore))

	s.logger.Info(ctx, "run finished",
		logger.String("runID", snap.ID),
		logger.String("playerID", playerID),
		logger.Int("score", snap.TotalScore),
		logger.Int("turns", snap.AcceptedCount),
	)
}

func (s *Service) newJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	for range joinCodeAttempts {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for i, b := range buf {
			buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
		}
		code := string(buf)
		if !s.store.CodeInUse(code) {
			return code, nil
		}
	}
	return "", ErrJoinCodeExhausted
}

func (s *Service) updateEntityGauges() {
	games, runs := s.store.Counts()
	metrics.UpdateActiveGames(games)
	metrics.UpdateActiveRuns(runs)
}
