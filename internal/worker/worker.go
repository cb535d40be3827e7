package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
	"github.com/custodia-labs/cloudrelay/internal/core/services"
)

// errBackoff is how long a processor pauses after the queue itself fails
const errBackoff = time.Second

// Worker processes tasks from the task queue.
// Each task is a file relay or a connection health check.
type Worker struct {
	taskQueue driven.TaskQueue
	relay     driving.RelayService
	health    driving.HealthService
	scheduler *services.Scheduler
	logger    *slog.Logger

	concurrency    int
	dequeueTimeout time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Relay          driving.RelayService
	Health         driving.HealthService
	Scheduler      *services.Scheduler // optional
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout time.Duration // How long to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		relay:          cfg.Relay,
		health:         cfg.Health,
		scheduler:      cfg.Scheduler,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start launches the processors and the scheduler. It returns immediately;
// the worker runs until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker and waits for in-flight tasks.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-ctx.Done():
			case <-w.stopCh:
			case <-time.After(errBackoff):
			}
			continue
		}
		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask runs one task. Retryable failures go back to the queue with
// backoff; anything else is acknowledged and logged as permanent, since the
// file record or health status already holds the outcome.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "attempt", task.Attempts)
	logger.Info("processing task")

	start := time.Now()
	err := w.dispatch(ctx, task)
	duration := time.Since(start)

	switch {
	case err == nil:
		logger.Info("task completed", "duration", duration)
	case !errors.Is(err, errInvalidTask) && domain.IsRetryable(err):
		logger.Warn("task failed, will retry", "duration", duration, "error", err)
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	default:
		logger.Error("task failed permanently", "duration", duration, "error", err)
	}

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// errInvalidTask marks tasks that can never succeed
var errInvalidTask = errors.New("invalid task")

func (w *Worker) dispatch(ctx context.Context, task *domain.Task) error {
	switch task.Type {
	case domain.TaskTypeRelayFile:
		return w.handleRelayFile(ctx, task)
	case domain.TaskTypeHealthCheck:
		return w.handleHealthCheck(ctx, task)
	default:
		return fmt.Errorf("%w: unknown task type %q", errInvalidTask, task.Type)
	}
}

func (w *Worker) handleRelayFile(ctx context.Context, task *domain.Task) error {
	fileID := task.FileID()
	if fileID == "" {
		return fmt.Errorf("%w: file_id not found in task payload", errInvalidTask)
	}
	err := w.relay.RelayFile(ctx, fileID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: file %s no longer exists", errInvalidTask, fileID)
	}
	return err
}

// handleHealthCheck never asks for a retry; the next sweep covers a missed check.
func (w *Worker) handleHealthCheck(ctx context.Context, task *domain.Task) error {
	userID, provider := task.UserID(), task.Provider()
	if userID == "" || provider == "" {
		return fmt.Errorf("%w: user_id and provider are required", errInvalidTask)
	}

	status, err := w.health.CheckConnectionHealth(ctx, userID, provider)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidTask, err)
	}
	w.logger.Debug("connection checked",
		"user_id", userID,
		"provider", provider,
		"status", status.ConsolidatedStatus(),
	)
	return nil
}

// Health reports whether the worker is running and its queue is reachable.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running}
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}
	return health
}
