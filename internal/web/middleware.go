// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/holomush/sessionauth/internal/auth"
)

type contextKey string

var userContextKey = contextKey("user")

// UserFromContext returns the user the authentication middleware resolved.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	user, ok := ctx.Value(userContextKey).(*auth.User)
	return user, ok && user != nil
}

// ContextWithUser stores user in ctx.
func ContextWithUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// credentials extracts the Authorization header and session cookie.
func credentials(r *http.Request, cookieName string) auth.Credentials {
	creds := auth.Credentials{Authorization: r.Header.Get("Authorization")}
	if c, err := r.Cookie(cookieName); err == nil {
		creds.SessionID = c.Value
	}
	return creds
}

// newAuthMiddleware resolves the current user for paths that require
// authentication. Requests without credentials, or whose credentials do
// not resolve, get 403.
func newAuthMiddleware(paths *auth.PathMatcher, verifier auth.CredentialVerifier, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !paths.RequireAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			creds := credentials(r, cookieName)
			if (creds.Authorization == "" && creds.SessionID == "") || verifier == nil {
				writeMessage(w, http.StatusForbidden, "forbidden")
				return
			}

			user, err := verifier.CurrentUser(r.Context(), creds)
			if err != nil {
				writeError(w, r, logger, err, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// newRequestMiddleware logs every request and counts it by route pattern.
func newRequestMiddleware(logger *slog.Logger, metrics RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if metrics != nil {
				metrics.RecordHTTPRequest(r.Method, route, rec.statusCode)
			}

			level := slog.LevelInfo
			switch {
			case rec.statusCode >= 500:
				level = slog.LevelError
			case rec.statusCode >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(time.Since(start).Nanoseconds())/float64(time.Millisecond)),
			)
		})
	}
}
