package server

import (
	"net/http"
	"strings"

	"resqride/backend/internal/identity/service"
)

const bearerPrefix = "bearer "

// refreshHintHeader is set to "true" on authenticated responses whose access
// token is close to expiry, so clients know to refresh proactively.
const refreshHintHeader = "X-Token-Refresh-Recommended"

// authenticate validates the Bearer access token on every request to the
// wrapped handler and puts the resolved user and session in context.
// Responses to invalid tokens are uniformly 401; the validation reason stays
// in the audit log.
func authenticate(tokens *service.TokenLifecycleManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Missing or invalid authorization")
			return
		}
		v := tokens.ValidateTokenLifecycle(r.Context(), token)
		if v.ShouldRefresh {
			w.Header().Set(refreshHintHeader, "true")
		}
		if !v.Valid {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), v.User, v.Session)))
	})
}

// extractBearer returns the Bearer token from the Authorization header, or
// "" when missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// clientInfo collects request provenance for audit events.
func clientInfo(r *http.Request) service.ClientInfo {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	} else if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = strings.TrimSpace(ip[:i])
	}
	return service.ClientInfo{
		DeviceType: r.Header.Get("X-Device-Type"),
		IP:         ip,
		UserAgent:  r.UserAgent(),
	}
}
