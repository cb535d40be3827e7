package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// ProviderRequest names a storage provider
type ProviderRequest struct {
	Provider domain.ProviderName `json:"provider"`
}

// ProvidersResponse lists the providers a user can select
// @Description Available storage providers
type ProvidersResponse struct {
	Success         bool                         `json:"success"`
	Providers       []*domain.ProviderDescriptor `json:"providers"`
	DefaultProvider domain.ProviderName          `json:"default_provider"`
	CurrentProvider domain.ProviderName          `json:"current_provider,omitempty"`
}

// ConnectionTestResponse is the result of a live connection test
// @Description Connection test result
type ConnectionTestResponse struct {
	Success              bool                      `json:"success"`
	Provider             domain.ProviderName       `json:"provider"`
	ConsolidatedStatus   domain.ConsolidatedStatus `json:"consolidated_status"`
	RequiresReconnection bool                      `json:"requires_reconnection"`
	StatusMessage        string                    `json:"status_message"`
	Health               *domain.HealthSummary     `json:"health"`
	Error                *domain.ErrorMessage      `json:"error,omitempty"`
}

// handleListProviders godoc
// @Summary      List storage providers
// @Tags         Cloud Storage
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ProvidersResponse
// @Router       /cloud-storage/providers [get]
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	providers := s.storageManager.DescribeAvailable(r.Context())
	if providers == nil {
		providers = []*domain.ProviderDescriptor{}
	}
	writeJSON(w, http.StatusOK, ProvidersResponse{
		Success:         true,
		Providers:       providers,
		DefaultProvider: s.storageManager.DefaultProviderName(),
		CurrentProvider: s.storageManager.UserProviderName(r.Context(), authCtx.UserID),
	})
}

// handleSetProvider godoc
// @Summary      Select a storage provider
// @Tags         Cloud Storage
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ProviderRequest  true  "Provider"
// @Success      200      {object}  map[string]any
// @Failure      400      {object}  map[string]any
// @Router       /cloud-storage/set-provider [post]
func (s *Server) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	var req ProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Provider == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "provider is required"})
		return
	}

	authCtx := GetAuthContext(r.Context())
	err := s.storageManager.SwitchUserProvider(r.Context(), authCtx.UserID, req.Provider)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSelection) || errors.Is(err, domain.ErrProviderNotFound) ||
			errors.Is(err, domain.ErrProviderUnavailable) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Provider not available"})
			return
		}
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "provider": req.Provider})
}

// handleTestConnection godoc
// @Summary      Test a provider connection
// @Description  Runs a live health check of the caller's connection. Rate limited per user.
// @Tags         Cloud Storage
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ProviderRequest  false  "Provider, defaults to the user's provider"
// @Success      200      {object}  ConnectionTestResponse
// @Failure      503      {object}  ConnectionTestResponse
// @Failure      429      {object}  map[string]any
// @Router       /cloud-storage/test [post]
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	var req ProviderRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Provider == "" {
		req.Provider = s.storageManager.UserProviderName(r.Context(), authCtx.UserID)
	}

	status, err := s.healthService.CheckConnectionHealth(r.Context(), authCtx.UserID, req.Provider)
	if err != nil {
		if errors.Is(err, domain.ErrProviderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Provider not found"})
			return
		}
		s.writeServiceError(w, err)
		return
	}

	display := string(req.Provider)
	if desc, err := s.storageManager.Describe(req.Provider); err == nil {
		display = desc.DisplayName
	}
	summary := status.Summary(display, s.now())

	resp := ConnectionTestResponse{
		Success:              summary.IsHealthy,
		Provider:             req.Provider,
		ConsolidatedStatus:   summary.Status,
		RequiresReconnection: status.RequiresReconnection,
		StatusMessage:        summary.StatusMessage,
		Health:               summary,
	}
	if !summary.IsHealthy {
		var cause error
		if status.LastErrorMessage != "" {
			cause = errors.New(status.LastErrorMessage)
		}
		errType := status.LastErrorType
		if errType == "" {
			errType = domain.ErrorTypeUnknown
		}
		msg := domain.DescribeErrorType(errType, cause, display, authCtx.IsAdmin())
		resp.Error = &msg
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleConnect godoc
// @Summary      Start an OAuth connection
// @Tags         Cloud Storage
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path      string  true  "Provider"
// @Success      200       {object}  driving.ConnectResponse
// @Router       /cloud-storage/{provider}/connect [get]
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	resp, err := s.connService.Connect(r.Context(), authCtx.UserID, domain.ProviderName(r.PathValue("provider")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCallback godoc
// @Summary      Complete an OAuth connection
// @Description  Receives the provider redirect. The state parameter identifies the user.
// @Tags         Cloud Storage
// @Produce      json
// @Param        provider  path      string  true   "Provider"
// @Param        code      query     string  false  "Authorization code"
// @Param        state     query     string  true   "State"
// @Success      200       {object}  driving.CallbackResponse
// @Failure      400       {object}  driving.OAuthError
// @Router       /cloud-storage/{provider}/callback [get]
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := driving.CallbackRequest{
		Provider:         domain.ProviderName(r.PathValue("provider")),
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
	if req.Error == "" && (req.Code == "" || req.State == "") {
		writeJSON(w, http.StatusBadRequest, driving.ErrOAuthInvalidState)
		return
	}

	resp, err := s.connService.Callback(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDisconnect removes the caller's stored credential.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	name := domain.ProviderName(r.PathValue("provider"))
	if err := s.connService.Disconnect(r.Context(), authCtx.UserID, name); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "provider": name})
}

// ProviderConfigResponse is the admin view of a provider's configuration
type ProviderConfigResponse struct {
	Provider   domain.ProviderName      `json:"provider"`
	Configured bool                     `json:"configured"`
	Config     *domain.ProviderConfig   `json:"config"`
	Validation *domain.ValidationResult `json:"validation,omitempty"`
}

// handleGetProviderConfig returns the merged configuration with secrets masked.
func (s *Server) handleGetProviderConfig(w http.ResponseWriter, r *http.Request) {
	name := domain.ProviderName(r.PathValue("provider"))
	cfg, err := s.configService.GetProviderConfig(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	validation, err := s.configService.ValidateProviderConfig(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProviderConfigResponse{
		Provider:   name,
		Configured: s.configService.IsProviderConfigured(r.Context(), name),
		Config:     cfg.Redacted(),
		Validation: validation,
	})
}

// handleSaveProviderConfig godoc
// @Summary      Save provider settings
// @Description  Merges the submitted settings into the stored ones and reloads the provider
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path      string             true  "Provider"
// @Param        request   body      map[string]string  true  "Settings"
// @Success      200       {object}  ProviderConfigResponse
// @Failure      422       {object}  ProviderConfigResponse
// @Router       /admin/cloud-storage/providers/{provider}/config [put]
func (s *Server) handleSaveProviderConfig(w http.ResponseWriter, r *http.Request) {
	name := domain.ProviderName(r.PathValue("provider"))

	var settings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	validation, err := s.configService.SaveProviderSettings(r.Context(), name, settings)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.storageManager.Reload(name)

	authCtx := GetAuthContext(r.Context())
	s.logger.Info("provider settings updated", "provider", name, "admin_id", authCtx.UserID, "valid", validation.IsValid)

	resp := ProviderConfigResponse{
		Provider:   name,
		Configured: s.configService.IsProviderConfigured(r.Context(), name),
		Validation: validation,
	}
	if cfg, err := s.configService.GetProviderConfig(r.Context(), name); err == nil {
		resp.Config = cfg.Redacted()
	}

	status := http.StatusOK
	if !validation.IsValid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}
