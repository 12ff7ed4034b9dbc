package server

import (
	"context"

	sessiondomain "resqride/backend/internal/session/domain"
	userdomain "resqride/backend/internal/user/domain"
)

type contextKey struct{ name string }

var (
	userKey    = contextKey{"user"}
	sessionKey = contextKey{"session"}
)

// withIdentity returns a context carrying the validated caller and session.
// Handlers read these via CallerUser and CallerSession.
func withIdentity(ctx context.Context, user *userdomain.User, sess *sessiondomain.Session) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	ctx = context.WithValue(ctx, sessionKey, sess)
	return ctx
}

// CallerUser returns the authenticated user from context and true if set.
func CallerUser(ctx context.Context) (*userdomain.User, bool) {
	u, ok := ctx.Value(userKey).(*userdomain.User)
	return u, ok
}

// CallerSession returns the authenticated session from context and true if set.
func CallerSession(ctx context.Context) (*sessiondomain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*sessiondomain.Session)
	return s, ok
}
