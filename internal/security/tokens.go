package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered with, or expired.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret is returned by NewTokenCodec when a signing secret is unset.
	// Secrets are required; there is no fallback default.
	ErrMissingSecret = errors.New("token signing secret is not configured")
)

// Claims holds the JWT claims carried by both token classes: subject user id,
// role, and session id. Access tokens additionally carry the user's email for
// downstream convenience; refresh tokens leave it empty.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	Email     string `json:"email,omitempty"`
}

// TokenCodec issues and verifies HS256 JWTs with independent secrets and
// lifetimes per token class (access, refresh).
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenCodec returns a TokenCodec signing with the given secrets.
// Fails with ErrMissingSecret when either secret is empty, and rejects equal
// secrets so a refresh token can never verify as an access token.
func NewTokenCodec(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, ErrMissingSecret
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrMissingSecret)
	}
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// IssueAccess issues a short-lived access JWT for the given user, role, and session.
// email is embedded as a convenience claim; no uniqueness is implied.
func (c *TokenCodec) IssueAccess(userID, role, sessionID, email string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(c.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:      role,
		SessionID: sessionID,
		Email:     email,
	}
	token, err = c.sign(claims, c.accessSecret)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT for the given user, role, and session.
// Returns the token, its jti (stored on the session for rotation binding), and expiry.
func (c *TokenCodec) IssueRefresh(userID, role, sessionID string) (token, jti string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(c.refreshTTL)
	jti = uuid.NewString()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:      role,
		SessionID: sessionID,
	}
	token, err = c.sign(claims, c.refreshSecret)
	return token, jti, expiresAt, err
}

func (c *TokenCodec) sign(claims Claims, secret []byte) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// VerifyAccess parses and validates an access token (signature, exp, iss).
// Any failure is reported uniformly as ErrInvalidToken.
func (c *TokenCodec) VerifyAccess(tokenString string) (*Claims, error) {
	return c.verify(tokenString, c.accessSecret)
}

// VerifyRefresh parses and validates a refresh token (signature, exp, iss).
// Any failure is reported uniformly as ErrInvalidToken.
func (c *TokenCodec) VerifyRefresh(tokenString string) (*Claims, error) {
	return c.verify(tokenString, c.refreshSecret)
}

func (c *TokenCodec) verify(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DecodeUnverified decodes claims without checking the signature or expiry.
// Used only to read exp for refresh-hint calculations; never for authorization.
func DecodeUnverified(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }
