package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// Ensure userService implements UserService
var _ driving.UserService = (*userService)(nil)

// userService implements the UserService interface
type userService struct {
	userStore driven.UserStore
	hasher    driven.PasswordHasher
}

// NewUserService creates a new UserService
func NewUserService(userStore driven.UserStore, hasher driven.PasswordHasher) driving.UserService {
	return &userService{
		userStore: userStore,
		hasher:    hasher,
	}
}

// Create creates a new user
func (s *userService) Create(ctx context.Context, req driving.CreateUserRequest) (*domain.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	// Check if email already exists
	existing, _ := s.userStore.GetByEmail(ctx, req.Email)
	if existing != nil {
		return nil, domain.ErrAlreadyExists
	}

	passwordHash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           domain.GenerateID(),
		Email:        req.Email,
		PasswordHash: passwordHash,
		Name:         req.Name,
		Role:         req.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if user.CanReceiveUploads() {
		slug, err := s.uniqueSlug(ctx, req.Email)
		if err != nil {
			return nil, err
		}
		user.UploadSlug = slug
	}

	if err := s.userStore.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Get retrieves a user by ID
func (s *userService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.userStore.Get(ctx, id)
}

// GetBySlug retrieves the active user owning a personal upload URL
func (s *userService) GetBySlug(ctx context.Context, slug string) (*domain.User, error) {
	user, err := s.userStore.GetBySlug(ctx, strings.ToLower(slug))
	if err != nil {
		return nil, err
	}
	if !user.CanReceiveUploads() {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

// List retrieves all users
func (s *userService) List(ctx context.Context) ([]*domain.User, error) {
	return s.userStore.List(ctx)
}

// uniqueSlug derives a slug from the email local part plus a random suffix.
func (s *userService) uniqueSlug(ctx context.Context, email string) (string, error) {
	base := slugify(strings.SplitN(email, "@", 2)[0])
	for range 5 {
		suffix, err := randomHex(3)
		if err != nil {
			return "", err
		}
		slug := base + "-" + suffix
		_, err = s.userStore.GetBySlug(ctx, slug)
		if errors.Is(err, domain.ErrNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", fmt.Errorf("check upload slug: %w", err)
		}
	}
	return "", fmt.Errorf("%w: could not allocate upload slug", domain.ErrAlreadyExists)
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "upload"
	}
	return slug
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
