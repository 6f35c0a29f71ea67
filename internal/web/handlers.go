// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/holomush/sessionauth/internal/auth"
)

// DefaultCookieName is the session cookie name when none is configured.
const DefaultCookieName = "session_id"

type handler struct {
	svc      AuthService
	verifier auth.CredentialVerifier
	cookie   CookieConfig
	logger   *slog.Logger
}

type emailMessage struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

type emailBody struct {
	Email string `json:"email"`
}

type resetTokenBody struct {
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

// formValues reads the named form fields. It reports false after writing a
// 400 response when any is missing.
func formValues(w http.ResponseWriter, r *http.Request, names ...string) ([]string, bool) {
	if err := r.ParseForm(); err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed form body")
		return nil, false
	}
	values := make([]string, len(names))
	var missing []string
	for i, name := range names {
		values[i] = r.PostForm.Get(name)
		if values[i] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		writeMessage(w, http.StatusBadRequest, "missing form fields: "+strings.Join(missing, ", "))
		return nil, false
	}
	return values, true
}

func (h *handler) index(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "Bienvenue")
}

// register handles POST /users.
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	values, ok := formValues(w, r, "email", "password")
	if !ok {
		return
	}
	email, password := values[0], values[1]

	if _, err := h.svc.Register(r.Context(), email, password); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, emailMessage{Email: email, Message: "user created"})
}

// login handles POST /sessions.
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	values, ok := formValues(w, r, "email", "password")
	if !ok {
		return
	}
	email, password := values[0], values[1]

	sessionID, err := h.svc.Login(r.Context(), email, password)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, h.sessionCookie(sessionID, 0))
	writeJSON(w, http.StatusOK, emailMessage{Email: email, Message: "logged in"})
}

// logout handles DELETE /sessions and redirects to the index.
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil || c.Value == "" {
		writeMessage(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
		return
	}

	if err := h.svc.Logout(r.Context(), c.Value); err != nil {
		writeError(w, r, h.logger, err, http.StatusForbidden)
		return
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	http.Redirect(w, r, "/", http.StatusFound)
}

// profile handles GET /profile.
func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		if h.verifier == nil {
			writeMessage(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
			return
		}
		var err error
		user, err = h.verifier.CurrentUser(r.Context(), credentials(r, h.cookie.Name))
		if err != nil {
			writeError(w, r, h.logger, err, http.StatusForbidden)
			return
		}
	}
	writeJSON(w, http.StatusOK, emailBody{Email: user.Email})
}

// requestReset handles POST /reset_password.
func (h *handler) requestReset(w http.ResponseWriter, r *http.Request) {
	values, ok := formValues(w, r, "email")
	if !ok {
		return
	}
	email := values[0]

	token, err := h.svc.RequestPasswordReset(r.Context(), email)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, resetTokenBody{Email: email, ResetToken: token})
}

// resetPassword handles PUT /reset_password.
func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	values, ok := formValues(w, r, "email", "reset_token", "new_password")
	if !ok {
		return
	}
	email, token, password := values[0], values[1], values[2]

	if err := h.svc.ResetPassword(r.Context(), token, password); err != nil {
		writeError(w, r, h.logger, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, emailMessage{Email: email, Message: "Password updated"})
}

// sessionCookie builds the session cookie. A negative maxAge deletes it.
func (h *handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
