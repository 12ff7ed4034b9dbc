package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"resqride/backend/internal/audit"
	"resqride/backend/internal/blacklist"
	"resqride/backend/internal/identity/service"
	"resqride/backend/internal/platform/rbac"
	userdomain "resqride/backend/internal/user/domain"
)

// Handler carries the auth endpoints' dependencies.
type Handler struct {
	auth    *service.AuthService
	tokens  *service.TokenLifecycleManager
	guard   *rbac.Guard
	revoked *blacklist.Blacklist
	audit   *audit.Logger
}

// NewHandler returns the HTTP handler set over the given services.
func NewHandler(
	auth *service.AuthService,
	tokens *service.TokenLifecycleManager,
	guard *rbac.Guard,
	revoked *blacklist.Blacklist,
	auditLog *audit.Logger,
) *Handler {
	return &Handler{auth: auth, tokens: tokens, guard: guard, revoked: revoked, audit: auditLog}
}

type userView struct {
	ID             string  `json:"id"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Email          string  `json:"email"`
	EmailVerified  bool    `json:"email_verified"`
	Role           string  `json:"role"`
	Phone          string  `json:"phone,omitempty"`
	CountryCode    string  `json:"country_code,omitempty"`
	AvatarURL      string  `json:"avatar_url,omitempty"`
	ApprovalStatus string  `json:"approval_status,omitempty"`
	Rating         float64 `json:"rating,omitempty"`
	TotalRides     int     `json:"total_rides,omitempty"`
	LoyaltyPoints  int     `json:"loyalty_points"`
}

func toUserView(u *userdomain.User) userView {
	return userView{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		EmailVerified:  u.EmailVerified,
		Role:           string(u.Role),
		Phone:          u.Phone,
		CountryCode:    u.CountryCode,
		AvatarURL:      u.AvatarURL,
		ApprovalStatus: string(u.ApprovalStatus),
		Rating:         u.Rating,
		TotalRides:     u.TotalRides,
		LoyaltyPoints:  u.LoyaltyPoints,
	}
}

type authResponse struct {
	User         userView  `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SessionID    string    `json:"session_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	Provider     string    `json:"provider"`
}

func toAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{
		User:         toUserView(res.User),
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		SessionID:    res.SessionID,
		ExpiresAt:    res.ExpiresAt,
		Provider:     res.Provider,
	}
}

// SocialLogin handles POST /v1/auth/social.
func (h *Handler) SocialLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IdentityToken     string `json:"identity_token"`
		AuthorizationCode string `json:"authorization_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := h.auth.LoginWithExternalIdentity(r.Context(), service.ExternalLoginInput{
		IdentityToken:     req.IdentityToken,
		AuthorizationCode: req.AuthorizationCode,
		Client:            clientInfo(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// RegisterDriver handles POST /v1/auth/driver/register.
func (h *Handler) RegisterDriver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		Phone       string `json:"phone"`
		CountryCode string `json:"country_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	res, err := h.auth.RegisterDriver(r.Context(), service.DriverRegistration{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Password:    req.Password,
		Phone:       req.Phone,
		CountryCode: req.CountryCode,
		Client:      clientInfo(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

// LoginDriver handles POST /v1/auth/driver/login.
func (h *Handler) LoginDriver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := h.auth.LoginDriver(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// Refresh handles POST /v1/auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}
	pair, err := h.tokens.RefreshAccessToken(r.Context(), req.RefreshToken, clientInfo(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}

// Logout handles POST /v1/auth/logout. Guarded; ends the caller's session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := CallerSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization")
		return
	}
	h.auth.Logout(r.Context(), sess.ID, clientInfo(r))
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /v1/auth/logout-all. Guarded; ends every session of
// the caller.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := CallerUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization")
		return
	}
	h.auth.LogoutAll(r.Context(), user.ID, clientInfo(r))
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := CallerUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization")
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

// BlacklistStats handles GET /v1/admin/blacklist/stats.
func (h *Handler) BlacklistStats(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.RequireAdmin(r.Context(), h.caller(r), rbac.AdminRequirement{
		Required: []userdomain.Permission{{Resource: "blacklist", Action: "read"}},
		Endpoint: "/v1/admin/blacklist/stats",
		Method:   http.MethodGet,
	}); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":      h.revoked.Count(),
		"event_counts": h.audit.Stats(),
	})
}

// RevokeUserTokens handles POST /v1/admin/users/{id}/revoke-tokens.
func (h *Handler) RevokeUserTokens(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.RequireAdmin(r.Context(), h.caller(r), rbac.AdminRequirement{
		Required: []userdomain.Permission{{Resource: "sessions", Action: userdomain.ActionManage}},
		Endpoint: "/v1/admin/users/{id}/revoke-tokens",
		Method:   http.MethodPost,
	}); err != nil {
		writeServiceError(w, err)
		return
	}
	userID := mux.Vars(r)["id"]
	count, err := h.tokens.RevokeAllUserTokens(r.Context(), userID, blacklist.ReasonUserRequested)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked_sessions": count})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// caller builds the rbac caller from the request's authenticated context.
func (h *Handler) caller(r *http.Request) rbac.Caller {
	user, _ := CallerUser(r.Context())
	sessionID := ""
	if sess, ok := CallerSession(r.Context()); ok {
		sessionID = sess.ID
	}
	info := clientInfo(r)
	return rbac.Caller{User: user, SessionID: sessionID, IP: info.IP, UserAgent: info.UserAgent}
}
