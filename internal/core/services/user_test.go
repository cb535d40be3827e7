package services

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

func newTestUserService() (*mocks.MockUserStore, *userService) {
	userStore := mocks.NewMockUserStore()
	svc := NewUserService(userStore, mocks.NewMockAuthAdapter()).(*userService)
	return userStore, svc
}

func TestUserService_Create(t *testing.T) {
	_, svc := newTestUserService()

	user, err := svc.Create(context.Background(), driving.CreateUserRequest{
		Email:    "  Jane.Doe@Example.com ",
		Password: "password123",
		Name:     "Jane Doe",
		Role:     domain.RoleEmployee,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.Email != "jane.doe@example.com" {
		t.Errorf("expected normalised email, got %s", user.Email)
	}
	if !user.Active {
		t.Error("expected user to be active")
	}
	if !regexp.MustCompile(`^jane-doe-[0-9a-f]{6}$`).MatchString(user.UploadSlug) {
		t.Errorf("unexpected upload slug %q", user.UploadSlug)
	}
	if user.PasswordHash != "password123" {
		t.Error("expected password to be hashed through the adapter")
	}
}

func TestUserService_Create_ClientHasNoSlug(t *testing.T) {
	_, svc := newTestUserService()

	user, err := svc.Create(context.Background(), driving.CreateUserRequest{
		Email:    "client@example.com",
		Password: "password123",
		Name:     "Client",
		Role:     domain.RoleClient,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.UploadSlug != "" {
		t.Errorf("clients should not get an upload slug, got %q", user.UploadSlug)
	}
}

func TestUserService_Create_Validation(t *testing.T) {
	_, svc := newTestUserService()

	tests := []struct {
		name string
		req  driving.CreateUserRequest
	}{
		{"missing email", driving.CreateUserRequest{Password: "password123", Name: "A", Role: domain.RoleAdmin}},
		{"bad email", driving.CreateUserRequest{Email: "nope", Password: "password123", Name: "A", Role: domain.RoleAdmin}},
		{"short password", driving.CreateUserRequest{Email: "a@example.com", Password: "short", Name: "A", Role: domain.RoleAdmin}},
		{"missing name", driving.CreateUserRequest{Email: "a@example.com", Password: "password123", Name: "  ", Role: domain.RoleAdmin}},
		{"unknown role", driving.CreateUserRequest{Email: "a@example.com", Password: "password123", Name: "A", Role: "owner"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUserService_Create_Duplicate(t *testing.T) {
	_, svc := newTestUserService()
	req := driving.CreateUserRequest{Email: "a@example.com", Password: "password123", Name: "A", Role: domain.RoleAdmin}

	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Create(context.Background(), req); err != domain.ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUserService_GetBySlug(t *testing.T) {
	userStore, svc := newTestUserService()
	ctx := context.Background()

	user, _ := svc.Create(ctx, driving.CreateUserRequest{
		Email: "owner@example.com", Password: "password123", Name: "Owner", Role: domain.RoleEmployee,
	})

	got, err := svc.GetBySlug(ctx, user.UploadSlug)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected %s, got %s", user.ID, got.ID)
	}

	user.Active = false
	_ = userStore.Save(ctx, user)
	if _, err := svc.GetBySlug(ctx, user.UploadSlug); err != domain.ErrNotFound {
		t.Errorf("expected inactive owner to be hidden, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"jane.doe":   "jane-doe",
		"Bob__Smith": "bob-smith",
		"...":        "upload",
		"x1+tag":     "x1-tag",
	}
	for in, want := range tests {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
