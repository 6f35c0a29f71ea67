// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes the authentication service over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/holomush/sessionauth/internal/auth"
)

// AuthService is the subset of auth.Service the handlers call.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, sessionID string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// RequestRecorder counts handled requests by route pattern.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int)
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// RouterDeps collects what NewRouter needs.
type RouterDeps struct {
	Service  AuthService
	Verifier auth.CredentialVerifier
	Paths    *auth.PathMatcher
	Cookie   CookieConfig
	Logger   *slog.Logger
	Metrics  RequestRecorder
}

// NewRouter returns the API router.
//
// Middleware order: Recoverer → request logging/metrics → authentication.
// Authentication runs for every path the PathMatcher does not exclude.
func NewRouter(in *RouterDeps) http.Handler {
	deps := *in
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = DefaultCookieName
	}
	if deps.Paths == nil {
		deps.Paths, _ = auth.NewPathMatcher(nil) //nolint:errcheck // no patterns, cannot fail
	}

	h := &handler{
		svc:      deps.Service,
		verifier: deps.Verifier,
		cookie:   deps.Cookie,
		logger:   deps.Logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(newRequestMiddleware(deps.Logger, deps.Metrics))
	r.Use(newAuthMiddleware(deps.Paths, deps.Verifier, deps.Cookie.Name, deps.Logger))

	r.Get("/", h.index)
	r.Post("/users", h.register)
	r.Post("/sessions", h.login)
	r.Delete("/sessions", h.logout)
	r.Get("/profile", h.profile)
	r.Post("/reset_password", h.requestReset)
	r.Put("/reset_password", h.resetPassword)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
