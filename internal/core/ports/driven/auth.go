package driven

import "github.com/custodia-labs/cloudrelay/internal/core/domain"

// PasswordHasher hashes and checks user passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool
}

// TokenIssuer signs and parses API bearer tokens. Tokens hold no server
// state: deactivating the user is what revokes them.
type TokenIssuer interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)

	// ParseToken returns domain.ErrTokenInvalid or domain.ErrTokenExpired
	ParseToken(token string) (*domain.TokenClaims, error)
}

// AuthAdapter is the crypto behind login and user creation.
type AuthAdapter interface {
	PasswordHasher
	TokenIssuer
}
