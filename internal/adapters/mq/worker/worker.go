// Package worker consumes finished-run results off the queue and folds
// them into the high-score board.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/medley/internal/domain/model"
	"github.com/okian/medley/pkg/logger"
	"github.com/okian/medley/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	workerShutdownTimeout = 5 * time.Second
)

// Updater is the board write contract workers drive.
type Updater interface {
	UpdateBest(ctx context.Context, playerID string, score int, runID string, turns int) (bool, error)
}

// Queue defines how workers receive results.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.RunResult
}

// Worker drains run results until its context ends or the queue closes.
type Worker struct {
	queue   Queue
	updater Updater
	name    string

	done chan struct{}

	logger logger.Logger
}

// NewWorker creates one worker with configuration options.
func NewWorker(queue Queue, updater Updater, opts ...Option) *Worker {
	w := &Worker{
		queue:   queue,
		updater: updater,
		name:    "worker",
		done:    make(chan struct{}),
		logger:  logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	results := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-results:
			if !ok {
				return
			}
			if err := w.process(ctx, result); err != nil {
				w.logger.Error(ctx, "posting run result failed", logger.Error(err))
			}
		}
	}
}

// process applies one run result to the board.
func (w *Worker) process(ctx context.Context, result model.RunResult) error {
	updated, err := w.updater.UpdateBest(ctx, result.PlayerID, result.Score, result.RunID, result.Turns)
	if err != nil {
		metrics.RecordBoardError()
		return fmt.Errorf("board update for run %s: %w", result.RunID, err)
	}
	if updated {
		metrics.RecordBoardUpdate()
		w.logger.Debug(ctx, "new personal best",
			logger.String("player", result.PlayerID),
			logger.Int("score", result.Score),
		)
	}
	return nil
}

// Pool manages a fixed set of workers over one queue.
type Pool struct {
	workers []*Worker

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers.
func NewPool(workerCount int, queue Queue, updater Updater) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewWorker(queue, updater, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop waits for the workers to drain, bounded per worker.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}
