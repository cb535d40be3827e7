package http

import (
	"errors"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
	healthStatusDegraded  = "degraded"
)

// ProviderConfigurationHealth describes one provider in the configuration report
type ProviderConfigurationHealth struct {
	Availability domain.ProviderAvailability `json:"availability"`
	Configured   bool                        `json:"configured"`
	Validation   *domain.ValidationResult    `json:"validation,omitempty"`
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func statusCode(healthy bool) int {
	if healthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func healthWord(healthy bool) string {
	if healthy {
		return healthStatusHealthy
	}
	return healthStatusUnhealthy
}

// writeHealthError is the failure body shared by every health endpoint
func (s *Server) writeHealthError(w http.ResponseWriter, err error) {
	s.logger.Error("health check failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"status":    "error",
		"timestamp": s.timestamp(),
		"error":     "health check failed",
	})
}

// handleHealthBasic godoc
// @Summary      Basic health check
// @Description  Pings the database, cache and queue
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      503  {object}  map[string]any
// @Router       /health/cloud-storage/basic [get]
func (s *Server) handleHealthBasic(w http.ResponseWriter, r *http.Request) {
	report := s.healthService.SystemHealth(r.Context(), false)
	writeJSON(w, statusCode(report.Healthy), map[string]any{
		"status":    healthWord(report.Healthy),
		"timestamp": s.timestamp(),
		"checks":    report.Checks,
	})
}

// handleHealthComprehensive godoc
// @Summary      Comprehensive health check
// @Description  Infrastructure checks plus provider validation and queue statistics
// @Tags         Health
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]any
// @Failure      503  {object}  map[string]any
// @Router       /health/cloud-storage/comprehensive [get]
func (s *Server) handleHealthComprehensive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report := s.healthService.SystemHealth(ctx, true)

	configs := s.configService.GetAllProviderConfigs(ctx)
	providers := make(map[domain.ProviderName]*domain.ValidationResult, len(configs))
	for _, name := range slices.Sorted(maps.Keys(configs)) {
		result, err := s.configService.ValidateProviderConfig(ctx, name)
		if err != nil {
			s.writeHealthError(w, err)
			return
		}
		providers[name] = result
	}

	status := healthWord(report.Healthy)
	if def, ok := providers[s.configService.DefaultProviderName()]; report.Healthy && (!ok || !def.IsValid) {
		status = healthStatusDegraded
	}

	writeJSON(w, statusCode(report.Healthy), map[string]any{
		"status":    status,
		"timestamp": s.timestamp(),
		"checks":    report.Checks,
		"providers": providers,
		"queue":     report.Queue,
		"files":     report.Files,
	})
}

// handleHealthProvider runs a live check of the caller's connection to one provider.
func (s *Server) handleHealthProvider(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	name := domain.ProviderName(r.PathValue("name"))

	if _, err := s.healthService.CheckConnectionHealth(r.Context(), authCtx.UserID, name); err != nil {
		if errors.Is(err, domain.ErrProviderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"status":    "error",
				"timestamp": s.timestamp(),
				"error":     "provider not found",
			})
			return
		}
		s.writeHealthError(w, err)
		return
	}

	summary, err := s.healthService.GetHealthSummary(r.Context(), authCtx.UserID, name)
	if err != nil {
		s.writeHealthError(w, err)
		return
	}

	writeJSON(w, statusCode(summary.IsHealthy), map[string]any{
		"status":    summary.Status,
		"timestamp": s.timestamp(),
		"provider":  name,
		"health":    summary,
	})
}

// handleHealthUser reports stored health for every available provider.
func (s *Server) handleHealthUser(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	summaries := s.healthService.GetAllProvidersHealth(r.Context(), authCtx.UserID)
	if summaries == nil {
		summaries = []*domain.HealthSummary{}
	}

	status := healthStatusHealthy
	for _, summary := range summaries {
		if !summary.IsHealthy {
			status = healthStatusDegraded
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": s.timestamp(),
		"providers": summaries,
	})
}

// handleHealthConfiguration godoc
// @Summary      Provider configuration health
// @Description  Availability, configuration and validation of every registered provider
// @Tags         Health
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]any
// @Failure      503  {object}  map[string]any
// @Router       /health/cloud-storage/configuration [get]
func (s *Server) handleHealthConfiguration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defaultProvider := s.configService.DefaultProviderName()

	configs := s.configService.GetAllProviderConfigs(ctx)
	providers := make(map[domain.ProviderName]ProviderConfigurationHealth, len(configs))
	for name, cfg := range configs {
		result, err := s.configService.ValidateProviderConfig(ctx, name)
		if err != nil {
			s.writeHealthError(w, err)
			return
		}
		providers[name] = ProviderConfigurationHealth{
			Availability: cfg.Availability,
			Configured:   s.configService.IsProviderConfigured(ctx, name),
			Validation:   result,
		}
	}

	healthy := providers[defaultProvider].Configured
	writeJSON(w, statusCode(healthy), map[string]any{
		"status":           healthWord(healthy),
		"timestamp":        s.timestamp(),
		"default_provider": defaultProvider,
		"providers":        providers,
	})
}

// handleHealthReadiness reports whether the service can take traffic.
func (s *Server) handleHealthReadiness(w http.ResponseWriter, r *http.Request) {
	report := s.healthService.SystemHealth(r.Context(), false)
	status := "ready"
	if !report.Healthy {
		status = "not_ready"
	}
	writeJSON(w, statusCode(report.Healthy), map[string]any{
		"status":    status,
		"timestamp": s.timestamp(),
		"checks":    report.Checks,
	})
}

func (s *Server) handleHealthLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": s.timestamp(),
	})
}
