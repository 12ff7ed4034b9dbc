package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	auditdomain "resqride/backend/internal/audit/domain"
	"resqride/backend/internal/security"
	sessiondomain "resqride/backend/internal/session/domain"
	userdomain "resqride/backend/internal/user/domain"
)

// login is a shorthand that runs the external flow and returns its result.
func login(t *testing.T, env *testEnv) *AuthResult {
	t.Helper()
	res, err := env.auth.LoginWithExternalIdentity(context.Background(), ExternalLoginInput{IdentityToken: "idtok"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}

func TestValidateTokenLifecycleValid(t *testing.T) {
	env := newTestEnv(t)
	res := login(t, env)

	v := env.tokens.ValidateTokenLifecycle(context.Background(), res.AccessToken)
	if !v.Valid {
		t.Fatalf("fresh token invalid: %+v", v)
	}
	if v.User.ID != res.User.ID || v.Session.ID != res.SessionID {
		t.Fatalf("resolved user/session = %s/%s, want %s/%s", v.User.ID, v.Session.ID, res.User.ID, res.SessionID)
	}
	// An hour of lifetime remains, so no refresh hint.
	if v.ShouldRefresh {
		t.Fatal("shouldRefresh = true for a token with 1h left")
	}
}

func TestValidateRefreshHintNearExpiry(t *testing.T) {
	env := newTestEnv(t)
	res := login(t, env)

	// Move the manager's clock to 200 seconds before the token expires.
	claims, err := env.codec.VerifyAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	exp := claims.ExpiresAt.Time
	env.tokens.now = func() time.Time { return exp.Add(-200 * time.Second) }

	v := env.tokens.ValidateTokenLifecycle(context.Background(), res.AccessToken)
	if !v.Valid {
		t.Fatalf("token invalid near expiry: %+v", v)
	}
	if !v.ShouldRefresh {
		t.Fatal("shouldRefresh = false with 200s left, want true")
	}

	env.tokens.now = func() time.Time { return exp.Add(-3600 * time.Second) }
	if v := env.tokens.ValidateTokenLifecycle(context.Background(), res.AccessToken); v.ShouldRefresh {
		t.Fatal("shouldRefresh = true with 3600s left, want false")
	}
}

func TestValidateMissingExpiry(t *testing.T) {
	env := newTestEnv(t)
	// A structurally valid token with no exp claim at all.
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, security.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString([]byte("test-access-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	v := env.tokens.ValidateTokenLifecycle(context.Background(), tok)
	if v.Valid || v.Reason != ReasonInvalidToken {
		t.Fatalf("result = %+v, want invalid_token", v)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	env := newTestEnv(t)
	v := env.tokens.ValidateTokenLifecycle(context.Background(), "not-a-jwt")
	if v.Valid || v.Reason != ReasonInvalidToken {
		t.Fatalf("result = %+v, want invalid_token", v)
	}
}

func TestValidateExpiredShortCircuitsBeforeSignature(t *testing.T) {
	env := newTestEnv(t)
	// Forged (wrong secret) AND expired: expiry must win, so a forger
	// learns nothing beyond what an expired genuine token reveals.
	now := time.Now()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, security.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
	}).SignedString([]byte("attacker-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	v := env.tokens.ValidateTokenLifecycle(context.Background(), tok)
	if v.Valid || v.Reason != ReasonTokenExpired {
		t.Fatalf("result = %+v, want token_expired", v)
	}
	if !v.ShouldRefresh {
		t.Fatal("expired token must carry the refresh hint")
	}
	ev := env.audit.lastOf(auditdomain.EventTokenExpired)
	if ev == nil {
		t.Fatal("expired token validation must record a token_expired event")
	}
	if ev.Details["reason"] != ReasonTokenExpired || ev.UserID != "u1" {
		t.Fatalf("event = %+v, want reason token_expired for u1", ev)
	}
}

func TestValidateInvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, security.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("attacker-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	v := env.tokens.ValidateTokenLifecycle(context.Background(), tok)
	if v.Valid || v.Reason != ReasonInvalidSignature {
		t.Fatalf("result = %+v, want invalid_signature", v)
	}
	if env.audit.countOf(auditdomain.EventInvalidToken) != 1 {
		t.Fatalf("invalid_token events = %d, want 1", env.audit.countOf(auditdomain.EventInvalidToken))
	}
}

func TestValidateBlacklistedToken(t *testing.T) {
	env := newTestEnv(t)
	res := login(t, env)
	env.revoked.Add(res.AccessToken, res.User.ID, res.SessionID, "user_requested_invalidation")

	v := env.tokens.ValidateTokenLifecycle(context.Background(), res.AccessToken)
	if v.Valid || v.Reason != ReasonTokenBlacklisted {
		t.Fatalf("result = %+v, want token_blacklisted", v)
	}
}

func TestValidateUserGone(t *testing.T) {
	env := newTestEnv(t)
	res := login(t, env)
	res.User.Deleted = true

	v := env.tokens.ValidateTokenLifecycle(context.Background(), res.AccessToken)
	if v.Valid || v.Reason != ReasonUserNotFound {
		t.Fatalf("result = %+v, want user_not_found", v)
	}
	ev := env.audit.lastOf(auditdomain.EventInvalidToken)
	if ev == nil || ev.Details["reason"] != ReasonUserNotFound {
		t.Fatalf("event = %+v, want invalid_token with reason user_not_found", ev)
	}
	if ev.UserID != res.User.ID {
		t.Fatalf("event user = %q, want %q", ev.UserID, res.User.ID)
	}
}

func TestValidateSessionGone(t *testing.T) {
	env := newTestEnv(t)
	res := login(t, env)
	env.sessions.DeleteByID(context.Background(), res.SessionID)

	v := env.tokens.ValidateTokenLifecycle(context.Background(), res.AccessToken)
	if v.Valid || v.Reason != ReasonSessionNotFound {
		t.Fatalf("result = %+v, want session_not_found", v)
	}
	ev := env.audit.lastOf(auditdomain.EventInvalidToken)
	if ev == nil || ev.Details["reason"] != ReasonSessionNotFound {
		t.Fatalf("event = %+v, want invalid_token with reason session_not_found", ev)
	}
	if ev.SessionID != res.SessionID {
		t.Fatalf("event session = %q, want %q", ev.SessionID, res.SessionID)
	}
}

func TestRefreshRotatesSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := login(t, env)

	pair, err := env.tokens.RefreshAccessToken(ctx, res.RefreshToken, ClientInfo{})
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete pair: %+v", pair)
	}
	if pair.ExpiresIn != 3600 {
		t.Fatalf("ExpiresIn = %d, want 3600", pair.ExpiresIn)
	}
	if !env.revoked.Contains(res.RefreshToken) {
		t.Fatal("old refresh token not blacklisted after rotation")
	}

	// The rotated-away token is rejected.
	if _, err := env.tokens.RefreshAccessToken(ctx, res.RefreshToken, ClientInfo{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("replayed old token: err = %v, want ErrInvalidRefreshToken", err)
	}
	// The new token works exactly once before its own rotation.
	if _, err := env.tokens.RefreshAccessToken(ctx, pair.RefreshToken, ClientInfo{}); err != nil {
		t.Fatalf("refresh with rotated token: %v", err)
	}
	if _, err := env.tokens.RefreshAccessToken(ctx, pair.RefreshToken, ClientInfo{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("second use of rotated token: err = %v, want ErrInvalidRefreshToken", err)
	}
	if env.audit.countOf(auditdomain.EventTokenRefresh) != 2 {
		t.Fatalf("token_refresh events = %d, want 2", env.audit.countOf(auditdomain.EventTokenRefresh))
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	res := login(t, env)
	if _, err := env.tokens.RefreshAccessToken(context.Background(), res.AccessToken, ClientInfo{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("access token accepted as refresh: err = %v", err)
	}
}

func TestRefreshRejectsDeletedUser(t *testing.T) {
	env := newTestEnv(t)
	res := login(t, env)
	res.User.Deleted = true
	if _, err := env.tokens.RefreshAccessToken(context.Background(), res.RefreshToken, ClientInfo{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRefreshReplayLogsSuspiciousActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := login(t, env)
	if _, err := env.tokens.RefreshAccessToken(ctx, res.RefreshToken, ClientInfo{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := env.tokens.RefreshAccessToken(ctx, res.RefreshToken, ClientInfo{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("replay: err = %v", err)
	}
	if env.audit.countOf(auditdomain.EventSuspiciousActivity) != 1 {
		t.Fatalf("suspicious_activity events = %d, want 1", env.audit.countOf(auditdomain.EventSuspiciousActivity))
	}
}

func TestRevokeAllUserTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	var userID string
	for i := 0; i < 2; i++ {
		res := login(t, env)
		userID = res.User.ID
	}

	count, err := env.tokens.RevokeAllUserTokens(ctx, userID, "user_requested_invalidation")
	if err != nil {
		t.Fatalf("RevokeAllUserTokens: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if env.sessions.count() != 0 {
		t.Fatalf("sessions remaining = %d, want 0", env.sessions.count())
	}
	if env.revoked.Count() != 2 {
		t.Fatalf("blacklist entries = %d, want 2", env.revoked.Count())
	}
	if env.audit.countOf(auditdomain.EventMassTokenRevocation) != 1 {
		t.Fatalf("mass_token_revocation events = %d, want 1", env.audit.countOf(auditdomain.EventMassTokenRevocation))
	}
}

func TestRevokeAllUserTokensPropagatesErrors(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.listErr = errors.New("store down")
	if _, err := env.tokens.RevokeAllUserTokens(context.Background(), "u1", "x"); err == nil {
		t.Fatal("expected the store error to propagate")
	}
}

func TestCleanupExpiredTokensSweepsSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.sessions.Create(ctx, &sessiondomain.Session{ID: "old", UpdatedAt: time.Now().UTC().Add(-8 * 24 * time.Hour)})
	env.sessions.Create(ctx, &sessiondomain.Session{ID: "new", UpdatedAt: time.Now().UTC()})

	env.tokens.CleanupExpiredTokens(ctx)

	if env.sessions.count() != 1 {
		t.Fatalf("sessions remaining = %d, want 1", env.sessions.count())
	}
}

func TestRoundTripClaims(t *testing.T) {
	env := newTestEnv(t)
	res := login(t, env)
	claims, err := env.codec.VerifyAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != res.User.ID || claims.SessionID != res.SessionID || claims.Role != string(userdomain.RoleUser) {
		t.Fatalf("claims = %+v, want subject/session/role preserved", claims)
	}
}
