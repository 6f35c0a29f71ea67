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

// ResetTokenManager issues and consumes one-time password reset tokens.
// A user holds at most one token; issuing replaces any previous one.
type ResetTokenManager struct {
	users   UserRepository
	timeout time.Duration
}

// NewResetTokenManager creates a ResetTokenManager over users.
func NewResetTokenManager(users UserRepository, timeout time.Duration) (*ResetTokenManager, error) {
	if users == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("user repository is required")
	}
	return &ResetTokenManager{users: users, timeout: timeout}, nil
}

// Issue generates a reset token for the user registered under email.
// Returns the plaintext token; ErrNotFound propagates for unknown emails.
func (m *ResetTokenManager) Issue(ctx context.Context, email string) (string, error) {
	user, err := callStore(ctx, m.timeout, "get user by email", func(ctx context.Context) (*User, error) {
		return m.users.GetByEmail(ctx, email)
	})
	if err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", err
	}

	err = execStore(ctx, m.timeout, "set reset token", func(ctx context.Context) error {
		return m.users.SetResetToken(ctx, user.ID, hash)
	})
	if err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "SetResetToken").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return token, nil
}

// Consume validates token and, in one atomic store operation, replaces the
// holder's password hash and clears the token. A consumed token cannot be
// used again.
func (m *ResetTokenManager) Consume(ctx context.Context, token, newPasswordHash string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}
	if newPasswordHash == "" {
		return ulid.ULID{}, oops.Code("RESET_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	id, err := callStore(ctx, m.timeout, "consume reset token", func(ctx context.Context) (ulid.ULID, error) {
		return m.users.ConsumeResetToken(ctx, HashToken(token), newPasswordHash)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return ulid.ULID{}, oops.Code("RESET_CONSUME_FAILED").Wrap(err)
	}
	return id, nil
}
