// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionRegistry maps opaque session ids to users. Each user holds at most
// one session; issuing a new one replaces the old. Sessions have no expiry
// and stay valid until revoked.
type SessionRegistry struct {
	users   UserRepository
	timeout time.Duration
}

// NewSessionRegistry creates a SessionRegistry over users. Each store call is
// bounded by timeout (DefaultStoreTimeout when zero).
func NewSessionRegistry(users UserRepository, timeout time.Duration) (*SessionRegistry, error) {
	if users == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("user repository is required")
	}
	return &SessionRegistry{users: users, timeout: timeout}, nil
}

// Issue generates a fresh session id for userID, stores its hash, and
// returns the plaintext id.
func (r *SessionRegistry) Issue(ctx context.Context, userID ulid.ULID) (string, error) {
	id, hash, err := GenerateSessionID()
	if err != nil {
		return "", err
	}

	err = execStore(ctx, r.timeout, "set session", func(ctx context.Context) error {
		return r.users.SetSession(ctx, userID, hash)
	})
	if err != nil {
		return "", oops.Code("SESSION_ISSUE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return id, nil
}

// Resolve returns the ID of the user holding sessionID.
// Fails with ErrInvalidSession for ids that were never issued or are revoked.
func (r *SessionRegistry) Resolve(ctx context.Context, sessionID string) (ulid.ULID, error) {
	if sessionID == "" {
		return ulid.ULID{}, oops.Code("SESSION_INVALID").Wrap(ErrInvalidSession)
	}

	user, err := callStore(ctx, r.timeout, "get user by session", func(ctx context.Context) (*User, error) {
		return r.users.GetBySessionHash(ctx, HashToken(sessionID))
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code("SESSION_INVALID").Wrap(ErrInvalidSession)
		}
		return ulid.ULID{}, oops.Code("SESSION_RESOLVE_FAILED").Wrap(err)
	}
	return user.ID, nil
}

// Revoke clears userID's session if it is still sessionID. Revoking a
// session that is already gone, or was replaced by a newer one, succeeds
// and leaves the newer session in place.
func (r *SessionRegistry) Revoke(ctx context.Context, userID ulid.ULID, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := execStore(ctx, r.timeout, "clear session", func(ctx context.Context) error {
		return r.users.ClearSession(ctx, userID, HashToken(sessionID))
	})
	if err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}
