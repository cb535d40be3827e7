package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

const (
	// DefaultHealthCheckSchedule sweeps every stored connection twice an hour
	DefaultHealthCheckSchedule = "@every 30m"

	// DefaultMaintenanceSchedule purges finished tasks and expired OAuth states
	DefaultMaintenanceSchedule = "@every 1h"

	healthSweepLock = "health-sweep"
	maintenanceLock = "maintenance"
)

// Scheduler enqueues periodic health checks and runs housekeeping.
// It runs on worker nodes.
//
// For multi-worker deployments, configure a DistributedLock to prevent
// duplicate sweeps across instances.
type Scheduler struct {
	credentials driven.CredentialStore
	taskQueue   driven.TaskQueue
	states      driven.OAuthStateStore
	lock        driven.DistributedLock
	logger      *slog.Logger

	healthSchedule      string
	maintenanceSchedule string
	lockTTL             time.Duration
	purgeAfter          time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	stopCh  chan struct{}
	running bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Credentials driven.CredentialStore
	TaskQueue   driven.TaskQueue
	States      driven.OAuthStateStore // Optional: state cleanup is skipped when nil
	Lock        driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger      *slog.Logger

	HealthCheckSchedule string        // cron spec (default: @every 30m)
	MaintenanceSchedule string        // cron spec (default: @every 1h)
	LockTTL             time.Duration // TTL for the distributed lock (default: 5m)
	PurgeAfter          time.Duration // Age of finished tasks to purge (default: 7 days)
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	healthSchedule := cfg.HealthCheckSchedule
	if healthSchedule == "" {
		healthSchedule = DefaultHealthCheckSchedule
	}
	maintenanceSchedule := cfg.MaintenanceSchedule
	if maintenanceSchedule == "" {
		maintenanceSchedule = DefaultMaintenanceSchedule
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 5 * time.Minute
	}
	purgeAfter := cfg.PurgeAfter
	if purgeAfter == 0 {
		purgeAfter = 7 * 24 * time.Hour
	}

	return &Scheduler{
		credentials:         cfg.Credentials,
		taskQueue:           cfg.TaskQueue,
		states:              cfg.States,
		lock:                cfg.Lock,
		logger:              logger,
		healthSchedule:      healthSchedule,
		maintenanceSchedule: maintenanceSchedule,
		lockTTL:             lockTTL,
		purgeAfter:          purgeAfter,
	}
}

// Start registers the cron jobs and starts them.
// Jobs run until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.healthSchedule, func() { s.runLocked(ctx, healthSweepLock, s.sweep) }); err != nil {
		return fmt.Errorf("invalid health check schedule %q: %w", s.healthSchedule, err)
	}
	if _, err := c.AddFunc(s.maintenanceSchedule, func() { s.runLocked(ctx, maintenanceLock, s.maintain) }); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.maintenanceSchedule, err)
	}

	s.cron = c
	s.stopCh = make(chan struct{})
	s.running = true
	c.Start()

	go func(stopCh chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
		}
	}(s.stopCh)

	s.logger.Info("scheduler starting",
		"health_check_schedule", s.healthSchedule,
		"maintenance_schedule", s.maintenanceSchedule,
	)
	return nil
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.cron
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// runLocked runs job while holding the named distributed lock, if one is configured.
// A lock held by another instance skips the cycle.
func (s *Scheduler) runLocked(ctx context.Context, name string, job func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire scheduler lock", "lock", name, "error", err)
			return
		}
		if !acquired {
			s.logger.Debug("scheduler lock held by another instance, skipping cycle", "lock", name)
			return
		}
		defer func() {
			if err := s.lock.Release(ctx, name); err != nil {
				s.logger.Warn("failed to release scheduler lock", "lock", name, "error", err)
			}
		}()
	}

	if err := job(ctx); err != nil {
		s.logger.Error("scheduled job failed", "job", name, "error", err)
	}
}

// RunHealthSweep enqueues a health check for every stored connection now.
func (s *Scheduler) RunHealthSweep(ctx context.Context) error {
	return s.sweep(ctx)
}

func (s *Scheduler) sweep(ctx context.Context) error {
	creds, err := s.credentials.List(ctx)
	if err != nil {
		return fmt.Errorf("list credentials: %w", err)
	}
	if len(creds) == 0 {
		return nil
	}

	tasks := make([]*domain.Task, 0, len(creds))
	for _, cred := range creds {
		tasks = append(tasks, domain.NewHealthCheckTask(cred.UserID, cred.Provider))
	}
	if err := s.taskQueue.EnqueueBatch(ctx, tasks); err != nil {
		return fmt.Errorf("enqueue health checks: %w", err)
	}

	s.logger.Info("enqueued health checks", "count", len(tasks))
	return nil
}

// RunMaintenance purges old tasks and expired OAuth states now.
func (s *Scheduler) RunMaintenance(ctx context.Context) error {
	return s.maintain(ctx)
}

func (s *Scheduler) maintain(ctx context.Context) error {
	purged, err := s.taskQueue.PurgeTasks(ctx, s.purgeAfter)
	if err != nil {
		return fmt.Errorf("purge tasks: %w", err)
	}

	var expired int64
	if s.states != nil {
		expired, err = s.states.Cleanup(ctx)
		if err != nil {
			return fmt.Errorf("cleanup oauth states: %w", err)
		}
	}

	s.logger.Info("maintenance complete", "tasks_purged", purged, "states_expired", expired)
	return nil
}
