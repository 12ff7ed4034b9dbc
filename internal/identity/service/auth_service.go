// Package service implements the authentication flows and the token
// lifecycle against the user and session stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"resqride/backend/internal/audit"
	auditdomain "resqride/backend/internal/audit/domain"
	"resqride/backend/internal/blacklist"
	"resqride/backend/internal/identity/provider"
	"resqride/backend/internal/security"
	sessiondomain "resqride/backend/internal/session/domain"
	userdomain "resqride/backend/internal/user/domain"
)

// Sentinel errors for the auth flows; the transport layer maps them to
// status codes. External messages stay uniform; the internal cause goes to
// the audit log.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrConflict             = errors.New("user already exists")
)

// UserRepo is the minimal user store needed by the auth flows.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmailAndRole(ctx context.Context, email string, role userdomain.Role) (*userdomain.User, error)
	GetByProviderSubjectOrEmail(ctx context.Context, subject, email string) (*userdomain.User, error)
	ExistsByEmailOrPhone(ctx context.Context, email, phone, countryCode string) (bool, error)
	Create(ctx context.Context, u *userdomain.User) error
	Update(ctx context.Context, u *userdomain.User) error
	SetPresence(ctx context.Context, id string, online, socketConnected bool) error
}

// SessionRepo is the minimal session store needed by the auth flows.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int, error)
}

// ClientInfo carries request provenance into audit events.
type ClientInfo struct {
	DeviceType string
	IP         string
	UserAgent  string
}

// AuthResult is the outcome of a successful login or registration.
type AuthResult struct {
	User         *userdomain.User
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresAt    time.Time
	Provider     string // "external" or "local"
}

// ExternalLoginInput is the payload for social login. Exactly one of
// IdentityToken or AuthorizationCode must be set; a code is exchanged for an
// identity token first.
type ExternalLoginInput struct {
	IdentityToken     string
	AuthorizationCode string
	Client            ClientInfo
}

// DriverRegistration is the payload for password-based driver signup.
type DriverRegistration struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	Phone       string
	CountryCode string
	Client      ClientInfo
}

// AuthService implements external-identity login, driver registration and
// login, logout, and the session retention sweep.
type AuthService struct {
	users     UserRepo
	sessions  SessionRepo
	codec     *security.TokenCodec
	hasher    *security.Hasher
	revoked   *blacklist.Blacklist
	audit     audit.Recorder
	idp       provider.Provider
	retention time.Duration
}

// NewAuthService returns an AuthService with the given collaborators.
// retention bounds how long an idle session survives before the sweep
// removes it.
func NewAuthService(
	users UserRepo,
	sessions SessionRepo,
	codec *security.TokenCodec,
	hasher *security.Hasher,
	revoked *blacklist.Blacklist,
	auditLog audit.Recorder,
	idp provider.Provider,
	retention time.Duration,
) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		codec:     codec,
		hasher:    hasher,
		revoked:   revoked,
		audit:     auditLog,
		idp:       idp,
		retention: retention,
	}
}

// LoginWithExternalIdentity authenticates a rider through the external
// identity provider and reconciles the asserted profile into the local user
// record. Every internal failure is folded into ErrAuthenticationFailed so
// the caller sees a single kind.
func (s *AuthService) LoginWithExternalIdentity(ctx context.Context, in ExternalLoginInput) (*AuthResult, error) {
	res, err := s.loginWithExternalIdentity(ctx, in)
	if err != nil {
		s.audit.Log(ctx, &auditdomain.SecurityEvent{
			Type:      auditdomain.EventAuthenticationFailed,
			IP:        in.Client.IP,
			UserAgent: in.Client.UserAgent,
			Details:   map[string]string{"provider": "external", "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return res, nil
}

func (s *AuthService) loginWithExternalIdentity(ctx context.Context, in ExternalLoginInput) (*AuthResult, error) {
	identityToken := in.IdentityToken
	if identityToken == "" {
		if in.AuthorizationCode == "" {
			return nil, errors.New("identity token or authorization code required")
		}
		exch, err := s.idp.ExchangeAuthorizationCode(ctx, in.AuthorizationCode)
		if err != nil {
			return nil, err
		}
		identityToken = exch.IDToken
	}
	profile, err := s.idp.ValidateIdentityToken(ctx, identityToken)
	if err != nil {
		return nil, err
	}
	user, err := s.reconcileProfile(ctx, profile)
	if err != nil {
		return nil, err
	}
	result, err := s.startSession(ctx, user, in.Client.DeviceType)
	if err != nil {
		return nil, err
	}
	result.Provider = "external"
	s.audit.Log(ctx, &auditdomain.SecurityEvent{
		UserID:    user.ID,
		SessionID: result.SessionID,
		Type:      auditdomain.EventLogin,
		IP:        in.Client.IP,
		UserAgent: in.Client.UserAgent,
		Details:   map[string]string{"provider": "external"},
	})
	return result, nil
}

// reconcileProfile matches the asserted profile to a non-deleted user by
// provider subject or email, updating the record in place, or creates a new
// rider when no match exists.
func (s *AuthService) reconcileProfile(ctx context.Context, p *provider.Profile) (*userdomain.User, error) {
	user, err := s.users.GetByProviderSubjectOrEmail(ctx, p.Subject, p.Email)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if user == nil {
		first, last := profileName(p, "", "")
		user = &userdomain.User{
			ID:              uuid.New().String(),
			FirstName:       first,
			LastName:        last,
			Email:           p.Email,
			EmailVerified:   p.EmailVerified,
			Role:            userdomain.RoleUser,
			ProviderSubject: p.Subject,
			AvatarURL:       p.AvatarURL,
			LoyaltyPoints:   0,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := user.Validate(); err != nil {
			return nil, err
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	user.FirstName, user.LastName = profileName(p, user.FirstName, user.LastName)
	if p.Email != "" {
		user.Email = p.Email
		user.EmailVerified = p.EmailVerified
	}
	if user.ProviderSubject == "" {
		user.ProviderSubject = p.Subject
	}
	if p.AvatarURL != "" {
		user.AvatarURL = p.AvatarURL
	}
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// profileName resolves first/last name with the priority: explicit
// given/family name, then a split of the combined display name, then the
// existing stored value.
func profileName(p *provider.Profile, existingFirst, existingLast string) (first, last string) {
	if p.GivenName != "" || p.FamilyName != "" {
		return p.GivenName, p.FamilyName
	}
	if name := strings.TrimSpace(p.Name); name != "" {
		parts := strings.SplitN(name, " ", 2)
		if len(parts) == 2 {
			return parts[0], parts[1]
		}
		return parts[0], existingLast
	}
	return existingFirst, existingLast
}

// RegisterDriver creates a driver-class applicant with approval pending.
// A non-deleted user with the same email or the same (phone, country code)
// pair is a conflict.
func (s *AuthService) RegisterDriver(ctx context.Context, in DriverRegistration) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	exists, err := s.users.ExistsByEmailOrPhone(ctx, email, in.Phone, in.CountryCode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrConflict
	}
	hashed, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:             uuid.New().String(),
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Email:          email,
		Role:           userdomain.RoleDriver,
		PasswordHash:   hashed,
		Phone:          in.Phone,
		CountryCode:    in.CountryCode,
		ApprovalStatus: userdomain.ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	result, err := s.startSession(ctx, user, in.Client.DeviceType)
	if err != nil {
		return nil, err
	}
	result.Provider = "local"
	s.audit.Log(ctx, &auditdomain.SecurityEvent{
		UserID:    user.ID,
		SessionID: result.SessionID,
		Type:      auditdomain.EventLogin,
		IP:        in.Client.IP,
		UserAgent: in.Client.UserAgent,
		Details:   map[string]string{"provider": "local", "flow": "driver_register"},
	})
	return result, nil
}

// LoginDriver authenticates a driver by email and password. Unknown user and
// wrong password both return ErrInvalidCredentials so responses do not allow
// user enumeration.
func (s *AuthService) LoginDriver(ctx context.Context, email, password string, client ClientInfo) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetByEmailAndRole(ctx, email, userdomain.RoleDriver)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		s.audit.Log(ctx, &auditdomain.SecurityEvent{
			UserID:    user.ID,
			Type:      auditdomain.EventAuthenticationError,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Details:   map[string]string{"provider": "local", "reason": "password_mismatch"},
		})
		return nil, ErrInvalidCredentials
	}
	result, err := s.startSession(ctx, user, client.DeviceType)
	if err != nil {
		return nil, err
	}
	result.Provider = "local"
	s.audit.Log(ctx, &auditdomain.SecurityEvent{
		UserID:    user.ID,
		SessionID: result.SessionID,
		Type:      auditdomain.EventLogin,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Details:   map[string]string{"provider": "local"},
	})
	return result, nil
}

// startSession creates a session for the user, issues a token pair, and
// binds the refresh token's jti and hash to the session.
func (s *AuthService) startSession(ctx context.Context, user *userdomain.User, deviceType string) (*AuthResult, error) {
	sessionID := uuid.New().String()
	accessToken, expiresAt, err := s.codec.IssueAccess(user.ID, string(user.Role), sessionID, user.Email)
	if err != nil {
		return nil, err
	}
	refreshToken, jti, _, err := s.codec.IssueRefresh(user.ID, string(user.Role), sessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		Role:             string(user.Role),
		DeviceType:       deviceType,
		RefreshJTI:       jti,
		RefreshTokenHash: security.HashToken(refreshToken),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
		ExpiresAt:    expiresAt,
	}, nil
}

// Logout ends one session: the session's refresh token is blacklisted, the
// session record deleted, presence cleared, and for riders the external
// provider is told. Every step is best-effort; Logout never fails observably.
func (s *AuthService) Logout(ctx context.Context, sessionID string, client ClientInfo) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		log.Printf("auth: logout session lookup: %v", err)
		return
	}
	if sess == nil {
		return
	}
	if sess.RefreshTokenHash != "" {
		s.revoked.AddHash(sess.RefreshTokenHash, sess.UserID, sess.ID, blacklist.ReasonUserLogout)
	}
	if err := s.sessions.DeleteByID(ctx, sess.ID); err != nil {
		log.Printf("auth: logout session delete: %v", err)
	}
	if err := s.users.SetPresence(ctx, sess.UserID, false, false); err != nil {
		log.Printf("auth: logout presence: %v", err)
	}
	if sess.Role == string(userdomain.RoleUser) && s.idp != nil {
		if err := s.idp.NotifyLogout(ctx, sess.UserID); err != nil {
			log.Printf("auth: logout provider notify: %v", err)
		}
	}
	s.audit.Log(ctx, &auditdomain.SecurityEvent{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Type:      auditdomain.EventLogout,
		IP:        client.IP,
		UserAgent: client.UserAgent,
	})
}

// LogoutAll ends every session of the user: one blacklist entry per session,
// all session records deleted, presence cleared, provider notified for
// riders, one logout event. Best-effort like Logout.
func (s *AuthService) LogoutAll(ctx context.Context, userID string, client ClientInfo) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		log.Printf("auth: logout-all session list: %v", err)
		return
	}
	isRider := false
	for _, sess := range sessions {
		if sess.RefreshTokenHash != "" {
			s.revoked.AddHash(sess.RefreshTokenHash, sess.UserID, sess.ID, blacklist.ReasonLogoutAllSessions)
		}
		if sess.Role == string(userdomain.RoleUser) {
			isRider = true
		}
	}
	count, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		log.Printf("auth: logout-all session delete: %v", err)
	}
	if err := s.users.SetPresence(ctx, userID, false, false); err != nil {
		log.Printf("auth: logout-all presence: %v", err)
	}
	if isRider && s.idp != nil {
		if err := s.idp.NotifyLogout(ctx, userID); err != nil {
			log.Printf("auth: logout-all provider notify: %v", err)
		}
	}
	s.audit.Log(ctx, &auditdomain.SecurityEvent{
		UserID:    userID,
		Type:      auditdomain.EventLogout,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Details:   map[string]string{"scope": "all_sessions", "sessions": fmt.Sprintf("%d", count)},
	})
}

// CleanupExpiredSessions removes sessions idle longer than the retention
// window. Errors are logged, never propagated; the next tick retries.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)
	removed, err := s.sessions.DeleteIdleSince(ctx, cutoff)
	if err != nil {
		log.Printf("auth: session retention sweep: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("auth: removed %d idle sessions", removed)
	}
}
