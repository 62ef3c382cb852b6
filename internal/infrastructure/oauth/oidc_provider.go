// Package oauth implements the OAuth/OIDC sign-in handshake.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/service"
)

var _ service.IdentityProvider = (*OIDCProvider)(nil)

// OIDCProvider runs the authorization-code flow against an OIDC issuer and
// verifies the returned ID token.
type OIDCProvider struct {
	name     string
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// NewOIDCProvider discovers the issuer and builds the provider.
func NewOIDCProvider(ctx context.Context, cfg *config.OAuthConfig) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, errors.New("oauth issuer_url and client_id are required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	scopes := []string{oidc.ScopeOpenID, "email", "profile"}
	if len(cfg.Scopes) > 0 {
		scopes = cfg.Scopes
	}

	name := cfg.Provider
	if name == "" {
		name = "google"
	}

	return &OIDCProvider{
		name: name,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// Name returns the provider id used in routes and account rows.
func (p *OIDCProvider) Name() string {
	return p.name
}

// AuthCodeURL returns the consent URL. Offline access is requested so the
// provider returns a refresh token for the integration token store.
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades the authorization code for tokens and the verified identity.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*models.ProviderIdentity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response carried no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("id_token verification failed: %w", err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id_token claims: %w", err)
	}

	scope, _ := token.Extra("scope").(string)

	return &models.ProviderIdentity{
		Provider:          p.name,
		ProviderAccountID: idToken.Subject,
		Email:             strings.ToLower(claims.Email),
		EmailVerified:     claims.EmailVerified,
		Name:              claims.Name,
		Picture:           claims.Picture,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		Expiry:            token.Expiry,
		Scope:             scope,
	}, nil
}

// NewState returns a random, URL-safe OAuth state value.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
