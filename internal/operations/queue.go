package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"datapulse/internal/infrastructure"
)

// job is one unit of queued work.
type job struct {
	fileID     string
	traceID    string
	enqueuedAt time.Time
}

// Runner executes an analysis run for one file. Satisfied by
// *Orchestrator; narrowed to an interface so queue tests can stub it.
type Runner interface {
	Run(ctx context.Context, fileID string)
}

// Queue is a bounded worker pool executing analysis runs. A file id
// can hold at most one slot, queued or running, at a time.
type Queue struct {
	mu       sync.Mutex
	inflight map[string]bool
	jobs     chan job
	workers  int
	runner   Runner
	logger   *slog.Logger
	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   bool
}

// NewQueue creates a queue with the given worker count and buffer size
func NewQueue(workers, size int, runner Runner, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 4
	}
	if size <= 0 {
		size = workers * 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		inflight: make(map[string]bool),
		jobs:     make(chan job, size),
		workers:  workers,
		runner:   runner,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
	}
}

// Start launches the worker goroutines
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("starting processing queue", slog.Int("workers", q.workers))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop drains the workers, waiting up to timeout for in-progress runs
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.shutdown)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("processing queue stopped")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("processing queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue schedules an analysis run for a file. It returns immediately:
// ErrAlreadyProcessing if the file already holds a slot, ErrQueueFull
// if the buffer is saturated, ErrQueueClosed after Stop.
func (q *Queue) Enqueue(ctx context.Context, fileID string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		metrics().enqueueRejections.WithLabelValues("closed").Inc()
		return ErrQueueClosed
	}
	if q.inflight[fileID] {
		q.mu.Unlock()
		metrics().enqueueRejections.WithLabelValues("duplicate").Inc()
		return ErrAlreadyProcessing
	}
	// Claim the slot before releasing the lock so concurrent enqueues
	// for the same file cannot both pass the guard
	q.inflight[fileID] = true
	q.mu.Unlock()

	j := job{
		fileID:     fileID,
		traceID:    infrastructure.GetTraceID(ctx),
		enqueuedAt: time.Now(),
	}

	select {
	case q.jobs <- j:
		metrics().queueDepth.Inc()
		q.logger.Info("run enqueued", slog.String("file_id", fileID))
		return nil
	default:
		q.release(fileID)
		metrics().enqueueRejections.WithLabelValues("full").Inc()
		return ErrQueueFull
	}
}

// InFlight reports whether a file currently holds a processing slot
func (q *Queue) InFlight(fileID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight[fileID]
}

func (q *Queue) release(fileID string) {
	q.mu.Lock()
	delete(q.inflight, fileID)
	q.mu.Unlock()
}

// worker pulls jobs until shutdown or context cancellation
func (q *Queue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case j := <-q.jobs:
			metrics().queueDepth.Dec()
			q.process(ctx, j, logger)
		}
	}
}

// process runs one job and releases its slot when done
func (q *Queue) process(ctx context.Context, j job, logger *slog.Logger) {
	defer q.release(j.fileID)

	runCtx := ctx
	if j.traceID != "" {
		runCtx = infrastructure.WithTraceID(ctx, j.traceID)
	}

	logger.Info("run started",
		slog.String("file_id", j.fileID),
		slog.Duration("queue_wait", time.Since(j.enqueuedAt)))

	q.runner.Run(runCtx, j.fileID)
}
