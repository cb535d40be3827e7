package googledrive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// AuthCodeURL builds the Google consent URL. Offline access and forced
// consent make Google return a refresh token on every connect.
func (p *Provider) AuthCodeURL(state, codeVerifier string) string {
	p.mu.RLock()
	cfg := p.oauth
	p.mu.RUnlock()
	if cfg == nil {
		return ""
	}
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(codeVerifier),
	)
}

// Exchange trades an authorization code for tokens and looks up the account email.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier string) (*domain.ConnectionCredential, error) {
	p.mu.RLock()
	cfg := p.oauth
	endpoint := p.endpoint
	p.mu.RUnlock()
	if cfg == nil {
		return nil, domain.NewCloudStorageError(domain.ErrorTypeProviderNotConfigured, domain.ProviderGoogleDrive,
			domain.ErrProviderNotConfigured)
	}

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, translate(fmt.Errorf("exchange code: %w", err))
	}

	now := time.Now()
	cred := credential(tok, now)
	cred.Scopes = scopes(tok)

	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(tok))}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if svc, err := drive.NewService(ctx, opts...); err == nil {
		about, err := svc.About.Get().Fields("user").Context(ctx).Do()
		if err != nil {
			p.logger.Warn("failed to read drive account email", "error", err)
		} else if about.User != nil {
			cred.AccountEmail = about.User.EmailAddress
		}
	}

	return cred, nil
}

// RefreshToken exchanges the stored refresh token for a new access token.
func (p *Provider) RefreshToken(ctx context.Context, cred *domain.ConnectionCredential) (*domain.ConnectionCredential, error) {
	if cred == nil || !cred.HasRefreshToken() {
		return nil, domain.ErrNoRefreshToken
	}

	p.mu.RLock()
	cfg := p.oauth
	p.mu.RUnlock()
	if cfg == nil {
		return nil, domain.NewCloudStorageError(domain.ErrorTypeProviderNotConfigured, domain.ProviderGoogleDrive,
			domain.ErrProviderNotConfigured)
	}

	// An empty access token forces the token source to refresh
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return nil, refreshError(err)
	}

	refreshed := credential(tok, time.Now())
	refreshed.UserID = cred.UserID
	if s := scopes(tok); len(s) > 0 {
		refreshed.Scopes = s
	}
	return refreshed, nil
}

func token(cred *domain.ConnectionCredential) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
	}
	if cred.ExpiresAt != nil {
		tok.Expiry = *cred.ExpiresAt
	}
	return tok
}

func credential(tok *oauth2.Token, now time.Time) *domain.ConnectionCredential {
	cred := &domain.ConnectionCredential{
		Provider:     domain.ProviderGoogleDrive,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		cred.ExpiresAt = &expiry
	}
	return cred
}

func scopes(tok *oauth2.Token) []string {
	raw, _ := tok.Extra("scope").(string)
	return strings.Fields(raw)
}
