// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Verifier kinds accepted by NewCredentialVerifier.
const (
	VerifierSession = "session"
	VerifierBasic   = "basic"
)

// Credentials carries what a transport extracted from a request.
type Credentials struct {
	// Authorization is the raw Authorization header value.
	Authorization string
	// SessionID is the session cookie value.
	SessionID string
}

// CredentialVerifier resolves request credentials to the current user.
type CredentialVerifier interface {
	CurrentUser(ctx context.Context, creds Credentials) (*User, error)
}

// PasswordAuthenticator checks an email/password pair without side effects
// on sessions.
type PasswordAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (*User, error)
}

// SessionResolver returns the user holding a session id.
type SessionResolver interface {
	UserFromSession(ctx context.Context, sessionID string) (*User, error)
}

// NewCredentialVerifier returns the verifier for kind, backed by svc.
func NewCredentialVerifier(kind string, svc *Service) (CredentialVerifier, error) {
	if svc == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("service is required")
	}
	switch kind {
	case VerifierSession, "":
		return NewSessionVerifier(svc), nil
	case VerifierBasic:
		return NewHeaderVerifier(svc), nil
	default:
		return nil, oops.Code("AUTH_UNKNOWN_VERIFIER").
			With("verifier", kind).
			Errorf("unknown credential verifier %q", kind)
	}
}

// SessionVerifier authenticates requests by their session cookie.
type SessionVerifier struct {
	sessions SessionResolver
}

// NewSessionVerifier creates a SessionVerifier.
func NewSessionVerifier(sessions SessionResolver) *SessionVerifier {
	return &SessionVerifier{sessions: sessions}
}

// CurrentUser resolves creds.SessionID.
func (v *SessionVerifier) CurrentUser(ctx context.Context, creds Credentials) (*User, error) {
	if creds.SessionID == "" {
		return nil, oops.Code("SESSION_MISSING").Wrap(ErrInvalidSession)
	}
	return v.sessions.UserFromSession(ctx, creds.SessionID)
}

// HeaderVerifier authenticates requests by an "Authorization: Basic" header
// carrying base64("email:password").
type HeaderVerifier struct {
	passwords PasswordAuthenticator
}

// NewHeaderVerifier creates a HeaderVerifier.
func NewHeaderVerifier(passwords PasswordAuthenticator) *HeaderVerifier {
	return &HeaderVerifier{passwords: passwords}
}

// CurrentUser parses creds.Authorization and checks the embedded credentials.
func (v *HeaderVerifier) CurrentUser(ctx context.Context, creds Credentials) (*User, error) {
	email, password, err := ParseBasicAuthorization(creds.Authorization)
	if err != nil {
		return nil, err
	}
	return v.passwords.Authenticate(ctx, email, password)
}

// ParseBasicAuthorization extracts email and password from a Basic
// Authorization header. The decoded value is split at the first colon, so
// passwords may contain colons.
func ParseBasicAuthorization(header string) (email, password string, err error) {
	token, ok := strings.CutPrefix(strings.TrimSpace(header), "Basic ")
	if !ok || token == "" {
		return "", "", invalidHeader("missing basic credentials")
	}

	decoded, decodeErr := base64.StdEncoding.DecodeString(token)
	if decodeErr != nil {
		return "", "", invalidHeader("credentials are not valid base64")
	}
	if !utf8.Valid(decoded) {
		return "", "", invalidHeader("credentials are not valid utf-8")
	}

	email, password, ok = strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", invalidHeader("credentials are missing a colon separator")
	}
	return email, password, nil
}

func invalidHeader(reason string) error {
	return oops.Code("AUTH_INVALID_HEADER").Wrapf(ErrInvalidCredentials, "%s", reason)
}

// PathMatcher decides which request paths need authentication.
type PathMatcher struct {
	excluded []glob.Glob
}

// NewPathMatcher compiles excluded path patterns. Patterns are compared
// slash-tolerantly ("/status" and "/status/" are the same path) and may
// use '*' wildcards, which also match across '/'.
func NewPathMatcher(excluded []string) (*PathMatcher, error) {
	m := &PathMatcher{excluded: make([]glob.Glob, 0, len(excluded))}
	for _, pattern := range excluded {
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(withTrailingSlash(pattern))
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_PATH_PATTERN").
				With("pattern", pattern).
				Wrap(err)
		}
		m.excluded = append(m.excluded, g)
	}
	return m, nil
}

// RequireAuth reports whether path needs authentication. An empty path
// always does.
func (m *PathMatcher) RequireAuth(path string) bool {
	if path == "" || len(m.excluded) == 0 {
		return true
	}
	path = withTrailingSlash(path)
	for _, g := range m.excluded {
		if g.Match(path) {
			return false
		}
	}
	return true
}

func withTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") || strings.HasSuffix(p, "*") {
		return p
	}
	return p + "/"
}
