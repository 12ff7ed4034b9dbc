// Package provider integrates with the external identity provider that
// authenticates riders (social login). The core never inspects provider
// tokens itself; it hands them to the provider and consumes the resulting
// profile.
package provider

import (
	"context"
	"errors"
)

// ErrInvalidIdentityToken is returned when the provider rejects an identity
// token (bad signature, issuer, audience, or expiry).
var ErrInvalidIdentityToken = errors.New("invalid identity token")

// Profile is the identity claims the provider vouches for.
type Profile struct {
	Subject       string // provider's stable subject id
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	// Name is the combined display name; used only when given/family
	// names are absent.
	Name      string
	AvatarURL string
}

// TokenExchange is the result of redeeming an authorization code.
type TokenExchange struct {
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Provider is the external identity provider collaborator.
type Provider interface {
	// ValidateIdentityToken verifies the token with the provider and
	// returns the profile it asserts. Returns ErrInvalidIdentityToken
	// when the token does not check out.
	ValidateIdentityToken(ctx context.Context, identityToken string) (*Profile, error)
	// ExchangeAuthorizationCode redeems an authorization code for tokens.
	ExchangeAuthorizationCode(ctx context.Context, code string) (*TokenExchange, error)
	// NotifyLogout tells the provider the user's local session ended.
	// Best-effort; callers ignore the error beyond logging.
	NotifyLogout(ctx context.Context, userID string) error
}
