// Package server is the HTTP surface: routing, CORS, the bearer-token
// middleware, and the request handlers over the auth services.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"resqride/backend/internal/identity/service"
)

// NewRouter builds the full route table. Guarded routes run the bearer-token
// middleware; admin routes additionally run the capability gate inside their
// handlers so denials carry per-route requirements.
func NewRouter(h *Handler, tokens *service.TokenLifecycleManager, corsOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/auth/social", h.SocialLogin).Methods(http.MethodPost)
	v1.HandleFunc("/auth/driver/register", h.RegisterDriver).Methods(http.MethodPost)
	v1.HandleFunc("/auth/driver/login", h.LoginDriver).Methods(http.MethodPost)
	v1.HandleFunc("/auth/refresh", h.Refresh).Methods(http.MethodPost)

	guarded := v1.NewRoute().Subrouter()
	guarded.Use(func(next http.Handler) http.Handler { return authenticate(tokens, next) })
	guarded.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	guarded.HandleFunc("/auth/logout-all", h.LogoutAll).Methods(http.MethodPost)
	guarded.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)
	guarded.HandleFunc("/admin/blacklist/stats", h.BlacklistStats).Methods(http.MethodGet)
	guarded.HandleFunc("/admin/users/{id}/revoke-tokens", h.RevokeUserTokens).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Device-Type"},
		ExposedHeaders:   []string{refreshHintHeader},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
