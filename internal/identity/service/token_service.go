package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"resqride/backend/internal/audit"
	auditdomain "resqride/backend/internal/audit/domain"
	"resqride/backend/internal/blacklist"
	"resqride/backend/internal/security"
	sessiondomain "resqride/backend/internal/session/domain"
	userdomain "resqride/backend/internal/user/domain"
)

// ErrInvalidRefreshToken covers every refresh failure: bad signature, expiry,
// unknown session, rotated-away token, missing user. The caller never learns
// which check failed.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Reason codes on invalid validation results.
const (
	ReasonInvalidToken     = "invalid_token"
	ReasonTokenExpired     = "token_expired"
	ReasonInvalidSignature = "invalid_signature"
	ReasonTokenBlacklisted = "token_blacklisted"
	ReasonUserNotFound     = "user_not_found"
	ReasonSessionNotFound  = "session_not_found"
)

// refreshHint is how close to expiry an access token must be before
// validation recommends a refresh.
const refreshHint = 300 * time.Second

// ValidationResult is the outcome of ValidateTokenLifecycle. Failures are
// data, not errors: Valid false plus a Reason code.
type ValidationResult struct {
	Valid         bool
	Reason        string
	ShouldRefresh bool
	User          *userdomain.User
	Session       *sessiondomain.Session
}

// TokenPair is a freshly issued access + refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int
}

// TokenLifecycleManager validates access tokens against the full lifecycle
// (expiry, signature, revocation, user, session) and rotates refresh tokens.
type TokenLifecycleManager struct {
	users     UserRepo
	sessions  SessionRepo
	codec     *security.TokenCodec
	revoked   *blacklist.Blacklist
	audit     audit.Recorder
	retention time.Duration
	now       func() time.Time
}

// NewTokenLifecycleManager returns a manager over the given collaborators.
// retention bounds the idle-session sweep in CleanupExpiredTokens.
func NewTokenLifecycleManager(
	users UserRepo,
	sessions SessionRepo,
	codec *security.TokenCodec,
	revoked *blacklist.Blacklist,
	auditLog audit.Recorder,
	retention time.Duration,
) *TokenLifecycleManager {
	return &TokenLifecycleManager{
		users:     users,
		sessions:  sessions,
		codec:     codec,
		revoked:   revoked,
		audit:     auditLog,
		retention: retention,
		now:       time.Now,
	}
}

// ValidateTokenLifecycle runs the ordered lifecycle checks on an access token.
//
// Expiry is read from the unverified claims and checked before the signature:
// an already-expired token short-circuits to token_expired whether or not it
// was ever genuine, so the result leaks nothing about forgeries. The refresh
// hint is set whenever less than refreshHint of lifetime remains.
func (m *TokenLifecycleManager) ValidateTokenLifecycle(ctx context.Context, token string) *ValidationResult {
	unverified, err := security.DecodeUnverified(token)
	if err != nil || unverified.ExpiresAt == nil {
		return m.invalid(ctx, ReasonInvalidToken, false, nil)
	}
	now := m.now()
	exp := unverified.ExpiresAt.Time
	if !exp.After(now) {
		return m.invalid(ctx, ReasonTokenExpired, true, unverified)
	}
	shouldRefresh := exp.Sub(now) < refreshHint

	claims, err := m.codec.VerifyAccess(token)
	if err != nil {
		return m.invalid(ctx, ReasonInvalidSignature, shouldRefresh, unverified)
	}
	if m.revoked.Contains(token) {
		return m.invalid(ctx, ReasonTokenBlacklisted, shouldRefresh, claims)
	}
	user, err := m.users.GetByID(ctx, claims.Subject)
	if err != nil || user == nil || user.Deleted {
		return m.invalid(ctx, ReasonUserNotFound, shouldRefresh, claims)
	}
	sess, err := m.sessions.GetByID(ctx, claims.SessionID)
	if err != nil || sess == nil {
		return m.invalid(ctx, ReasonSessionNotFound, shouldRefresh, claims)
	}
	return &ValidationResult{
		Valid:         true,
		ShouldRefresh: shouldRefresh,
		User:          user,
		Session:       sess,
	}
}

// invalid builds a failed result and records the internal cause, which is
// never disclosed to the caller beyond the reason code.
func (m *TokenLifecycleManager) invalid(ctx context.Context, reason string, shouldRefresh bool, claims *security.Claims) *ValidationResult {
	eventType := auditdomain.EventInvalidToken
	if reason == ReasonTokenExpired {
		eventType = auditdomain.EventTokenExpired
	}
	event := &auditdomain.SecurityEvent{
		Type:    eventType,
		Details: map[string]string{"reason": reason},
	}
	if claims != nil {
		event.UserID = claims.Subject
		event.SessionID = claims.SessionID
	}
	m.audit.Log(ctx, event)
	return &ValidationResult{Reason: reason, ShouldRefresh: shouldRefresh}
}

// RefreshAccessToken rotates a refresh token into a new pair.
//
// The presented token must carry a valid refresh signature, name a live
// session, and hash-match the refresh token currently bound to that session.
// Rotation order is issue-new, persist-new, blacklist-old: a crash in between
// leaves a brief two-valid-tokens window rather than a locked-out user.
func (m *TokenLifecycleManager) RefreshAccessToken(ctx context.Context, refreshToken string, client ClientInfo) (*TokenPair, error) {
	claims, err := m.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := m.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshTokenHash == "" || !security.TokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		// Hash mismatch means an already-rotated-away token is being
		// replayed even if it was never separately blacklisted.
		m.audit.Log(ctx, &auditdomain.SecurityEvent{
			UserID:    sess.UserID,
			SessionID: sess.ID,
			Type:      auditdomain.EventSuspiciousActivity,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Details:   map[string]string{"reason": "refresh_token_replay"},
		})
		return nil, ErrInvalidRefreshToken
	}
	user, err := m.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Deleted {
		return nil, ErrInvalidRefreshToken
	}

	accessToken, _, err := m.codec.IssueAccess(user.ID, string(user.Role), sess.ID, user.Email)
	if err != nil {
		return nil, err
	}
	newRefresh, jti, _, err := m.codec.IssueRefresh(user.ID, string(user.Role), sess.ID)
	if err != nil {
		return nil, err
	}
	if err := m.sessions.UpdateRefreshToken(ctx, sess.ID, jti, security.HashToken(newRefresh)); err != nil {
		return nil, err
	}
	m.revoked.Add(refreshToken, user.ID, sess.ID, blacklist.ReasonTokenRefresh)
	m.audit.Log(ctx, &auditdomain.SecurityEvent{
		UserID:    user.ID,
		SessionID: sess.ID,
		Type:      auditdomain.EventTokenRefresh,
		IP:        client.IP,
		UserAgent: client.UserAgent,
	})
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresIn:    m.accessExpiresIn(),
	}, nil
}

// accessExpiresIn converts the configured access lifetime to whole seconds,
// falling back to one hour when no usable lifetime is configured.
func (m *TokenLifecycleManager) accessExpiresIn() int {
	secs := int(m.codec.AccessTTL() / time.Second)
	if secs <= 0 {
		return 3600
	}
	return secs
}

// RevokeAllUserTokens blacklists every session's refresh token, deletes all
// of the user's sessions, and clears presence. Unlike logout this is an
// explicit administrative action, so errors propagate. Returns the number of
// sessions revoked.
func (m *TokenLifecycleManager) RevokeAllUserTokens(ctx context.Context, userID, reason string) (int, error) {
	sessions, err := m.sessions.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, sess := range sessions {
		if sess.RefreshTokenHash != "" {
			m.revoked.AddHash(sess.RefreshTokenHash, sess.UserID, sess.ID, reason)
		}
	}
	count, err := m.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := m.users.SetPresence(ctx, userID, false, false); err != nil {
		return count, err
	}
	m.audit.Log(ctx, &auditdomain.SecurityEvent{
		UserID:  userID,
		Type:    auditdomain.EventMassTokenRevocation,
		Details: map[string]string{"reason": reason, "sessions": fmt.Sprintf("%d", count)},
	})
	return count, nil
}

// CleanupExpiredTokens runs the idle-session retention sweep and the
// blacklist sweep. Errors are logged and the next tick retries.
func (m *TokenLifecycleManager) CleanupExpiredTokens(ctx context.Context) {
	cutoff := m.now().UTC().Add(-m.retention)
	removed, err := m.sessions.DeleteIdleSince(ctx, cutoff)
	if err != nil {
		log.Printf("tokens: session retention sweep: %v", err)
	} else if removed > 0 {
		log.Printf("tokens: removed %d idle sessions", removed)
	}
	if swept := m.revoked.Sweep(); swept > 0 {
		log.Printf("tokens: swept %d expired blacklist entries", swept)
	}
}

// Run invokes CleanupExpiredTokens on the given interval until ctx is
// cancelled. Started once from main.
func (m *TokenLifecycleManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupExpiredTokens(ctx)
		}
	}
}
