package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/cloudrelay/internal/adapters/driven/auth"
	"github.com/custodia-labs/cloudrelay/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/cloudrelay/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/cloudrelay/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/cloudrelay/internal/adapters/driven/redis"
	"github.com/custodia-labs/cloudrelay/internal/adapters/driven/storage"
	"github.com/custodia-labs/cloudrelay/internal/adapters/driven/storage/builtin"
	"github.com/custodia-labs/cloudrelay/internal/config"
	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
	"github.com/custodia-labs/cloudrelay/internal/core/services"
)

// app is the wired service graph shared by every subcommand
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *postgres.DB
	redisClient *redis.Client

	credentials driven.CredentialStore
	states      driven.OAuthStateStore
	queue       driven.TaskQueue
	lock        driven.DistributedLock

	auth          driving.AuthService
	users         driving.UserService
	configuration driving.ConfigurationService
	storage       driving.StorageManager
	tokens        driving.TokenService
	health        driving.HealthService
	connections   driving.ConnectionService
	relay         driving.RelayService
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// ===== PostgreSQL =====
	var err error
	a.db, err = postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("postgres connected")

	// ===== Redis (optional) =====
	if cfg.Redis.Enabled() {
		a.redisClient, err = redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("redis connected")
	}

	encryptor, err := postgres.NewSecretEncryptorFromAppKey(cfg.Auth.AppKey)
	if err != nil {
		return err
	}
	authAdapter, err := auth.NewAdapter(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	// ===== Stores =====
	userStore := postgres.NewUserStore(a.db)
	healthStore := postgres.NewHealthStore(a.db)
	fileStore := postgres.NewFileUploadStore(a.db)
	prefStore := postgres.NewPreferenceStore(a.db)
	settingsStore := postgres.NewProviderSettingsStore(a.db, encryptor)
	a.credentials = postgres.NewCredentialStore(a.db, encryptor)
	a.states = postgres.NewOAuthStateStore(a.db)

	// Queue, lock and validation cache use Redis when available
	var validationCache driven.ValidationCache
	if a.redisClient != nil {
		q, err := redisqueue.NewQueue(ctx, a.redisClient, fmt.Sprintf("worker-%d", os.Getpid()), logger)
		if err != nil {
			return fmt.Errorf("create task queue: %w", err)
		}
		a.queue = q
		a.lock = redisadapter.NewLock(a.redisClient)
		validationCache = redisadapter.NewValidationCache(a.redisClient)
		logger.Info("using redis task queue and lock")
	} else {
		a.queue = postgresqueue.NewQueue(a.db.DB)
		a.lock = postgres.NewAdvisoryLock(a.db)
		logger.Info("using postgres task queue and advisory lock")
	}

	// ===== Provider registry =====
	registry := storage.NewRegistry(logger)
	registered := registry.DiscoverProviders(ctx, builtin.Source{})
	logger.Info("storage providers registered", "providers", registered)

	// ===== Services =====
	a.configuration = services.NewConfigurationService(registry, settingsStore, validationCache, services.ConfigurationOptions{
		Providers:       providerFileSettings(cfg.Storage.Providers),
		DefaultProvider: domain.ProviderName(cfg.Storage.DefaultProvider),
		ValidationTTL:   cfg.Storage.ValidationTTL,
		Logger:          logger,
	})
	a.storage = services.NewStorageManager(registry, a.configuration, prefStore, logger)
	a.tokens = services.NewTokenService(a.credentials, a.storage, logger)

	components := map[string]driven.HealthChecker{
		"database": a.db,
		"queue":    a.queue,
	}
	if a.redisClient != nil {
		components["redis"] = a.lock
	}
	a.health = services.NewHealthService(services.HealthServiceConfig{
		Storage:    a.storage,
		Tokens:     a.tokens,
		Store:      healthStore,
		Queue:      a.queue,
		Files:      fileStore,
		Components: components,
		Logger:     logger,
	})
	a.connections = services.NewConnectionService(services.ConnectionServiceConfig{
		Storage:     a.storage,
		Health:      a.health,
		Credentials: a.credentials,
		States:      a.states,
		StateTTL:    cfg.Auth.OAuthStateTTL,
		Logger:      logger,
	})
	a.relay = services.NewRelayService(services.RelayServiceConfig{
		Files:             fileStore,
		Queue:             a.queue,
		Storage:           a.storage,
		Tokens:            a.tokens,
		Health:            a.health,
		LocalPath:         cfg.Storage.LocalPath,
		MaxFileSize:       cfg.Storage.MaxFileSize,
		DeleteAfterUpload: cfg.Storage.DeleteAfterUpload,
		Logger:            logger,
	})
	a.auth = services.NewAuthService(userStore, authAdapter, cfg.Auth.TokenTTL)
	a.users = services.NewUserService(userStore, authAdapter)

	return nil
}

// newScheduler returns nil when the scheduler is disabled.
func (a *app) newScheduler() *services.Scheduler {
	if !a.cfg.Scheduler.Enabled {
		a.logger.Info("scheduler disabled")
		return nil
	}
	cfg := services.SchedulerConfig{
		Credentials:         a.credentials,
		TaskQueue:           a.queue,
		States:              a.states,
		Logger:              a.logger,
		HealthCheckSchedule: a.cfg.Scheduler.HealthCheckSchedule,
		MaintenanceSchedule: a.cfg.Scheduler.MaintenanceSchedule,
		PurgeAfter:          a.cfg.Scheduler.PurgeAfter,
	}
	if a.cfg.Scheduler.LockRequired {
		cfg.Lock = a.lock
	}
	return services.NewScheduler(cfg)
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("close storage providers", "error", err)
		}
	}
	if a.queue != nil {
		_ = a.queue.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func providerFileSettings(in map[string]config.ProviderSettings) map[domain.ProviderName]services.ProviderFileSettings {
	out := make(map[domain.ProviderName]services.ProviderFileSettings, len(in))
	for name, p := range in {
		out[domain.ProviderName(name)] = services.ProviderFileSettings{
			Availability: p.Availability,
			Settings:     p.Settings,
		}
	}
	return out
}
