package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// Ensure healthService implements HealthService
var _ driving.HealthService = (*healthService)(nil)

// componentTimeout bounds each infrastructure ping.
const componentTimeout = 3 * time.Second

// HealthServiceConfig holds the dependencies of the health service.
type HealthServiceConfig struct {
	Storage driving.StorageManager
	Tokens  driving.TokenService
	Store   driven.HealthStatusStore

	// Optional, reported by detailed system health
	Queue driven.TaskQueue
	Files driven.FileUploadStore

	// Components are pinged by SystemHealth, keyed by display name
	Components map[string]driven.HealthChecker

	Logger *slog.Logger
}

// healthService runs connection checks and reports stored health.
type healthService struct {
	storage    driving.StorageManager
	tokens     driving.TokenService
	store      driven.HealthStatusStore
	queue      driven.TaskQueue
	files      driven.FileUploadStore
	components map[string]driven.HealthChecker
	logger     *slog.Logger
	now        func() time.Time
}

// NewHealthService creates a new HealthService.
func NewHealthService(cfg HealthServiceConfig) driving.HealthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	components := maps.Clone(cfg.Components)
	if components == nil {
		components = make(map[string]driven.HealthChecker)
	}
	return &healthService{
		storage:    cfg.Storage,
		tokens:     cfg.Tokens,
		store:      cfg.Store,
		queue:      cfg.Queue,
		files:      cfg.Files,
		components: components,
		logger:     logger,
		now:        time.Now,
	}
}

// CheckConnectionHealth runs a live check and persists the result.
func (s *healthService) CheckConnectionHealth(ctx context.Context, userID string, name domain.ProviderName) (*domain.HealthStatus, error) {
	desc, err := s.storage.Describe(name)
	if err != nil {
		return nil, err
	}
	status := s.load(ctx, userID, name)

	provider, err := s.storage.GetProvider(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrProviderNotFound) {
			return nil, err
		}
		status.MarkConnectionIssue(domain.ErrorTypeProviderNotConfigured, s.message(err, domain.ErrorTypeProviderNotConfigured, desc), s.now())
		return s.persist(ctx, status), nil
	}

	var cred *domain.ConnectionCredential
	if provider.AuthType() == domain.AuthTypeOAuth {
		cred, err = s.tokens.EnsureValidCredential(ctx, userID, name)
		if err != nil {
			errType := domain.ErrorTypeOf(err)
			if errors.Is(err, domain.ErrNoCredential) {
				status.TokenExpiresAt = nil
			}
			if isAuthClass(err, errType) {
				status.MarkAuthenticationRequired(errType, s.message(err, errType, desc), s.now())
			} else {
				status.MarkConnectionIssue(errType, s.message(err, errType, desc), s.now())
			}
			s.logger.Info("connection check failed before probe",
				"user_id", userID, "provider", name, "error_type", errType, "error", err)
			return s.persist(ctx, status), nil
		}
		status.TokenExpiresAt = cred.ExpiresAt
	}

	// A single probe; the next scheduled check retries naturally
	if err := provider.TestConnection(ctx, cred); err != nil {
		errType := domain.ErrorTypeOf(err)
		status.MarkConnectionIssue(errType, s.message(err, errType, desc), s.now())
		s.logger.Info("connectivity probe failed",
			"user_id", userID, "provider", name, "error_type", errType, "error", err)
	} else {
		status.MarkHealthy(s.now())
	}

	return s.persist(ctx, status), nil
}

// GetHealthSummary builds a summary from the stored row without network calls.
func (s *healthService) GetHealthSummary(ctx context.Context, userID string, name domain.ProviderName) (*domain.HealthSummary, error) {
	desc, err := s.storage.Describe(name)
	if err != nil {
		return nil, err
	}

	status, err := s.store.Get(ctx, userID, name)
	if errors.Is(err, domain.ErrNotFound) {
		status = domain.NewHealthStatus(userID, name)
	} else if err != nil {
		return nil, fmt.Errorf("load health status: %w", err)
	}

	return status.Summary(desc.DisplayName, s.now()), nil
}

// GetAllProvidersHealth returns one summary per available provider.
func (s *healthService) GetAllProvidersHealth(ctx context.Context, userID string) []*domain.HealthSummary {
	names := s.storage.GetAvailableProviders(ctx)
	out := make([]*domain.HealthSummary, 0, len(names))
	for _, name := range names {
		summary, err := s.GetHealthSummary(ctx, userID, name)
		if err != nil {
			s.logger.Warn("failed to build health summary", "user_id", userID, "provider", name, "error", err)
			summary = domain.ErrorSummary(name, err)
		}
		out = append(out, summary)
	}
	return out
}

// RecordOperationSuccess marks the connection healthy after a real operation.
func (s *healthService) RecordOperationSuccess(ctx context.Context, userID string, name domain.ProviderName, cred *domain.ConnectionCredential) {
	status := s.load(ctx, userID, name)
	status.TokenExpiresAt = nil
	if cred != nil {
		status.TokenExpiresAt = cred.ExpiresAt
	}
	status.MarkHealthy(s.now())
	s.persist(ctx, status)
}

// RecordOperationFailure records a failed real operation.
func (s *healthService) RecordOperationFailure(ctx context.Context, userID string, name domain.ProviderName, err error) {
	if err == nil {
		return
	}
	var displayName string
	if desc, descErr := s.storage.Describe(name); descErr == nil {
		displayName = desc.DisplayName
	}

	errType := domain.ErrorTypeOf(err)
	message := domain.DescribeErrorType(errType, err, displayName, false).Message
	status := s.load(ctx, userID, name)
	if errors.Is(err, domain.ErrNoCredential) {
		status.TokenExpiresAt = nil
	}
	if isAuthClass(err, errType) {
		status.MarkAuthenticationRequired(errType, message, s.now())
	} else {
		status.MarkConnectionIssue(errType, message, s.now())
	}
	s.persist(ctx, status)
}

// SystemHealth pings every registered component.
func (s *healthService) SystemHealth(ctx context.Context, detailed bool) *driving.SystemHealthReport {
	report := &driving.SystemHealthReport{
		Healthy:   true,
		CheckedAt: s.now().UTC(),
		Checks:    make(map[string]driving.ComponentCheck, len(s.components)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range slices.Sorted(maps.Keys(s.components)) {
		checker := s.components[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			check := ping(ctx, checker)
			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = check
			if check.Status != "ok" {
				report.Healthy = false
			}
		}()
	}
	wg.Wait()

	if !detailed {
		return report
	}

	if s.queue != nil {
		stats, err := s.queue.Stats(ctx)
		if err != nil {
			s.logger.Warn("failed to read queue stats", "error", err)
		} else {
			report.Queue = stats
		}
	}
	if s.files != nil {
		counts, err := s.files.CountByStatus(ctx)
		if err != nil {
			s.logger.Warn("failed to count files", "error", err)
		} else {
			report.Files = counts
		}
	}
	return report
}

func ping(ctx context.Context, checker driven.HealthChecker) driving.ComponentCheck {
	ctx, cancel := context.WithTimeout(ctx, componentTimeout)
	defer cancel()

	start := time.Now()
	err := checker.Ping(ctx)
	check := driving.ComponentCheck{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = "error"
		check.Error = err.Error()
	}
	return check
}

// load returns the stored row, or the default for a first check.
func (s *healthService) load(ctx context.Context, userID string, name domain.ProviderName) *domain.HealthStatus {
	status, err := s.store.Get(ctx, userID, name)
	if err == nil {
		return status
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("failed to load health status", "user_id", userID, "provider", name, "error", err)
	}
	return domain.NewHealthStatus(userID, name)
}

// persist saves the row. A failed write is logged; the caller still gets the result.
func (s *healthService) persist(ctx context.Context, status *domain.HealthStatus) *domain.HealthStatus {
	if err := s.store.Save(ctx, status); err != nil {
		s.logger.Error("failed to save health status",
			"user_id", status.UserID, "provider", status.Provider, "error", err)
	}
	return status
}

func (s *healthService) message(err error, errType domain.CloudStorageErrorType, desc *domain.ProviderDescriptor) string {
	return domain.DescribeErrorType(errType, err, desc.DisplayName, false).Message
}

// isAuthClass reports failures only a reconnect can fix.
func isAuthClass(err error, errType domain.CloudStorageErrorType) bool {
	return domain.IsAuthFailure(err) ||
		errType == domain.ErrorTypeTokenExpired ||
		errType == domain.ErrorTypeInvalidCredentials
}
