// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessionauth/internal/auth"
	"github.com/holomush/sessionauth/pkg/errutil"
)

func basic(s string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(s))
}

func TestParseBasicAuthorization(t *testing.T) {
	tests := []struct {
		name         string
		header       string
		wantEmail    string
		wantPassword string
		wantErr      bool
	}{
		{"valid", basic("u1@x.com:pw1"), "u1@x.com", "pw1", false},
		{"password with colons", basic("u1@x.com:a:b:c"), "u1@x.com", "a:b:c", false},
		{"empty password", basic("u1@x.com:"), "u1@x.com", "", false},
		{"surrounding whitespace", "  " + basic("u1@x.com:pw1") + " ", "u1@x.com", "pw1", false},
		{"empty header", "", "", "", true},
		{"bearer scheme", "Bearer abc", "", "", true},
		{"lowercase scheme", "basic " + base64.StdEncoding.EncodeToString([]byte("a:b")), "", "", true},
		{"no token", "Basic ", "", "", true},
		{"not base64", "Basic !!!", "", "", true},
		{"no colon", basic("u1@x.com"), "", "", true},
		{"invalid utf-8", "Basic " + base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, ':', 'x'}), "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, password, err := auth.ParseBasicAuthorization(tt.header)
			if tt.wantErr {
				require.ErrorIs(t, err, auth.ErrInvalidCredentials)
				errutil.AssertErrorCode(t, err, "AUTH_INVALID_HEADER")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmail, email)
			assert.Equal(t, tt.wantPassword, password)
		})
	}
}

func TestPathMatcher_RequireAuth(t *testing.T) {
	m, err := auth.NewPathMatcher([]string{"/", "/status/", "/stats", "/public/*"})
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"", true},
		{"/", false},
		{"/status", false},
		{"/status/", false},
		{"/stats/", false},
		{"/public/a", false},
		{"/public/a/b", false},
		{"/users", true},
		{"/statuses", true},
		{"/profile", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.RequireAuth(tt.path))
		})
	}

	t.Run("no exclusions", func(t *testing.T) {
		m, err := auth.NewPathMatcher(nil)
		require.NoError(t, err)
		assert.True(t, m.RequireAuth("/status"))
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := auth.NewPathMatcher([]string{"/a/[b"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PATH_PATTERN")
	})
}

func TestNewCredentialVerifier(t *testing.T) {
	svc := newMemoryService(t)

	v, err := auth.NewCredentialVerifier(auth.VerifierSession, svc)
	require.NoError(t, err)
	assert.IsType(t, &auth.SessionVerifier{}, v)

	v, err = auth.NewCredentialVerifier(auth.VerifierBasic, svc)
	require.NoError(t, err)
	assert.IsType(t, &auth.HeaderVerifier{}, v)

	_, err = auth.NewCredentialVerifier("jwt", svc)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_UNKNOWN_VERIFIER")

	_, err = auth.NewCredentialVerifier(auth.VerifierSession, nil)
	require.Error(t, err)
}

func TestCredentialVerifiers_CurrentUser(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService(t)
	_, err := svc.Register(ctx, "u1@x.com", "pw1")
	require.NoError(t, err)
	sid, err := svc.Login(ctx, "u1@x.com", "pw1")
	require.NoError(t, err)

	t.Run("session", func(t *testing.T) {
		v := auth.NewSessionVerifier(svc)

		user, err := v.CurrentUser(ctx, auth.Credentials{SessionID: sid, Authorization: basic("u1@x.com:wrong")})
		require.NoError(t, err)
		assert.Equal(t, "u1@x.com", user.Email)

		_, err = v.CurrentUser(ctx, auth.Credentials{})
		require.ErrorIs(t, err, auth.ErrInvalidSession)
		errutil.AssertErrorCode(t, err, "SESSION_MISSING")

		_, err = v.CurrentUser(ctx, auth.Credentials{SessionID: "forged"})
		require.ErrorIs(t, err, auth.ErrInvalidSession)
	})

	t.Run("header", func(t *testing.T) {
		v := auth.NewHeaderVerifier(svc)

		user, err := v.CurrentUser(ctx, auth.Credentials{Authorization: basic("u1@x.com:pw1")})
		require.NoError(t, err)
		assert.Equal(t, "u1@x.com", user.Email)

		_, err = v.CurrentUser(ctx, auth.Credentials{Authorization: basic("u1@x.com:wrong"), SessionID: sid})
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)

		_, err = v.CurrentUser(ctx, auth.Credentials{})
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}
