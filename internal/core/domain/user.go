package domain

import "time"

// Role defines user permission level
type Role string

const (
	RoleAdmin    Role = "admin"    // Manage providers, users, system health
	RoleEmployee Role = "employee" // Receive uploads, choose own provider
	RoleClient   Role = "client"   // External uploader
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleClient:
		return true
	}
	return false
}

// User is an account that can receive uploads or administer the system
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never serialize
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	UploadSlug   string     `json:"upload_slug,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// UserSummary provides a safe view of user data (no password hash)
type UserSummary struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	UploadSlug string `json:"upload_slug,omitempty"`
}

// ToSummary converts a User to UserSummary
func (u *User) ToSummary() *UserSummary {
	return &UserSummary{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role,
		UploadSlug: u.UploadSlug,
	}
}

// IsAdmin checks if the user has admin privileges
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanReceiveUploads checks if the user has a personal upload URL
func (u *User) CanReceiveUploads() bool {
	return u.Active && (u.Role == RoleAdmin || u.Role == RoleEmployee)
}
