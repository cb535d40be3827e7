package mocks

import (
	"encoding/base64"
	"encoding/json"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.AuthAdapter = (*MockAuthAdapter)(nil)

// MockAuthAdapter stores passwords as given and encodes claims as
// unsigned base64 JSON.
type MockAuthAdapter struct{}

func NewMockAuthAdapter() *MockAuthAdapter { return &MockAuthAdapter{} }

func (*MockAuthAdapter) HashPassword(password string) (string, error) { return password, nil }

func (*MockAuthAdapter) VerifyPassword(password, hash string) bool { return password == hash }

func (*MockAuthAdapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func (*MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	var claims domain.TokenClaims
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || json.Unmarshal(data, &claims) != nil {
		return nil, domain.ErrTokenInvalid
	}
	return &claims, nil
}
