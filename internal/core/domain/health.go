package domain

import "time"

// RawStatus is the last observed operational state of a connection
type RawStatus string

const (
	RawStatusHealthy      RawStatus = "healthy"
	RawStatusDegraded     RawStatus = "degraded"
	RawStatusUnhealthy    RawStatus = "unhealthy"
	RawStatusDisconnected RawStatus = "disconnected"
)

// ConsolidatedStatus is the single status shown to users
type ConsolidatedStatus string

const (
	StatusHealthy                ConsolidatedStatus = "healthy"
	StatusAuthenticationRequired ConsolidatedStatus = "authentication_required"
	StatusConnectionIssues       ConsolidatedStatus = "connection_issues"
)

// UnhealthyFailureThreshold is the failure count at which a degraded connection turns unhealthy.
const UnhealthyFailureThreshold = 3

// HealthStatus holds the raw health signals of one user+provider connection.
// The consolidated status is computed from these signals and never stored.
type HealthStatus struct {
	UserID   string       `json:"user_id"`
	Provider ProviderName `json:"provider"`

	Status               RawStatus `json:"status"`
	RequiresReconnection bool      `json:"requires_reconnection"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`

	LastErrorType    CloudStorageErrorType `json:"last_error_type,omitempty"`
	LastErrorMessage string                `json:"last_error_message,omitempty"`

	LastSuccessfulOperationAt *time.Time `json:"last_successful_operation_at,omitempty"`
	LastCheckedAt             *time.Time `json:"last_checked_at,omitempty"`

	// TokenExpiresAt is the credential expiry seen by the last check
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewHealthStatus returns the record used before any check has run:
// nothing is known to work, so the user has to connect.
func NewHealthStatus(userID string, provider ProviderName) *HealthStatus {
	return &HealthStatus{
		UserID:               userID,
		Provider:             provider,
		Status:               RawStatusDisconnected,
		RequiresReconnection: true,
	}
}

// ConsolidateStatus maps raw signals to the displayed status.
func ConsolidateStatus(raw RawStatus, requiresReconnection bool, consecutiveFailures int) ConsolidatedStatus {
	if requiresReconnection {
		return StatusAuthenticationRequired
	}
	if raw == RawStatusHealthy && consecutiveFailures == 0 {
		return StatusHealthy
	}
	return StatusConnectionIssues
}

// ConsolidatedStatus returns the displayed status of the connection.
func (h *HealthStatus) ConsolidatedStatus() ConsolidatedStatus {
	return ConsolidateStatus(h.Status, h.RequiresReconnection, h.ConsecutiveFailures)
}

// IsHealthy returns true if the consolidated status is healthy.
func (h *HealthStatus) IsHealthy() bool {
	return h.ConsolidatedStatus() == StatusHealthy
}

// MarkHealthy records a successful operation.
func (h *HealthStatus) MarkHealthy(now time.Time) {
	h.Status = RawStatusHealthy
	h.RequiresReconnection = false
	h.ConsecutiveFailures = 0
	h.LastErrorType = ""
	h.LastErrorMessage = ""
	h.LastSuccessfulOperationAt = &now
	h.touch(now)
}

// MarkAuthenticationRequired records a failure only the user can fix by reconnecting.
func (h *HealthStatus) MarkAuthenticationRequired(errType CloudStorageErrorType, message string, now time.Time) {
	h.Status = RawStatusDisconnected
	h.RequiresReconnection = true
	h.ConsecutiveFailures++
	h.LastErrorType = errType
	h.LastErrorMessage = message
	h.touch(now)
}

// MarkConnectionIssue records a recoverable failure.
func (h *HealthStatus) MarkConnectionIssue(errType CloudStorageErrorType, message string, now time.Time) {
	h.RequiresReconnection = false
	h.ConsecutiveFailures++
	if h.ConsecutiveFailures >= UnhealthyFailureThreshold {
		h.Status = RawStatusUnhealthy
	} else {
		h.Status = RawStatusDegraded
	}
	h.LastErrorType = errType
	h.LastErrorMessage = message
	h.touch(now)
}

func (h *HealthStatus) touch(now time.Time) {
	h.LastCheckedAt = &now
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now
}

// HealthSummary is the presentation-ready view of a HealthStatus.
type HealthSummary struct {
	Provider                 ProviderName       `json:"provider"`
	ProviderDisplayName      string             `json:"provider_display_name"`
	Status                   ConsolidatedStatus `json:"status"`
	StatusMessage            string             `json:"status_message"`
	IsHealthy                bool               `json:"is_healthy"`
	RequiresUserIntervention bool               `json:"requires_user_intervention"`
	TokenExpiringSoon        bool               `json:"token_expiring_soon"`
	TokenExpired             bool               `json:"token_expired"`
	ConsecutiveFailures      int                `json:"consecutive_failures"`

	LastSuccessfulOperationAt *time.Time            `json:"last_successful_operation_at,omitempty"`
	LastCheckedAt             *time.Time            `json:"last_checked_at,omitempty"`
	LastErrorType             CloudStorageErrorType `json:"last_error_type,omitempty"`
	LastErrorMessage          string                `json:"last_error_message,omitempty"`

	// Error is set when the summary could not be built for this provider
	Error string `json:"error,omitempty"`
}

// Summary derives the presentation view. It reads only stored fields.
func (h *HealthStatus) Summary(displayName string, now time.Time) *HealthSummary {
	status := h.ConsolidatedStatus()

	s := &HealthSummary{
		Provider:                  h.Provider,
		ProviderDisplayName:       displayName,
		Status:                    status,
		StatusMessage:             StatusMessage(status, h.ConsecutiveFailures),
		IsHealthy:                 status == StatusHealthy,
		RequiresUserIntervention:  status == StatusAuthenticationRequired,
		ConsecutiveFailures:       h.ConsecutiveFailures,
		LastSuccessfulOperationAt: h.LastSuccessfulOperationAt,
		LastCheckedAt:             h.LastCheckedAt,
		LastErrorType:             h.LastErrorType,
		LastErrorMessage:          h.LastErrorMessage,
	}

	if h.TokenExpiresAt != nil {
		s.TokenExpired = !now.Before(*h.TokenExpiresAt)
		s.TokenExpiringSoon = !s.TokenExpired && h.TokenExpiresAt.Sub(now) < TokenExpiringSoonWindow
	}

	return s
}

// StatusMessage returns the human-readable text for a consolidated status.
func StatusMessage(status ConsolidatedStatus, consecutiveFailures int) string {
	switch status {
	case StatusHealthy:
		return "Connected and working properly"
	case StatusAuthenticationRequired:
		return "Authentication required. Please reconnect your account"
	default:
		if consecutiveFailures >= UnhealthyFailureThreshold {
			return "Persistent connection issues. Check the provider status or contact support"
		}
		return "Connection issues detected. Retrying automatically"
	}
}

// ErrorSummary is returned for a provider whose summary could not be built.
func ErrorSummary(provider ProviderName, err error) *HealthSummary {
	return &HealthSummary{
		Provider:      provider,
		Status:        StatusConnectionIssues,
		StatusMessage: "Unable to determine connection status",
		IsHealthy:     false,
		Error:         err.Error(),
	}
}
