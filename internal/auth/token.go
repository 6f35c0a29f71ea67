// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// ResetTokenBytes is the entropy of a reset token (64 hex chars).
const ResetTokenBytes = 32

// DefaultStoreTimeout bounds a single store call when no timeout is configured.
const DefaultStoreTimeout = 5 * time.Second

// GenerateSessionID creates a random UUIDv4 session id and its hash.
// The plaintext id is sent to the client; the hash is stored.
func GenerateSessionID() (id, hash string, err error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", "", oops.Code("SESSION_ID_GENERATE_FAILED").
			With("operation", "uuid.NewRandom").
			Wrap(err)
	}
	id = u.String()
	return id, HashToken(id), nil
}

// GenerateResetToken creates a secure random token and its hash.
func GenerateResetToken() (token, hash string, err error) {
	b := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", ResetTokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken computes the SHA-256 hex digest under which session ids and
// reset tokens are stored.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// callStore runs fn under a bounded context. A store call that outlives the
// bound fails with STORE_UNAVAILABLE; there is no retry.
func callStore[T any](ctx context.Context, timeout time.Duration, operation string, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(ctx)
	return v, storeError(operation, err)
}

// execStore is callStore for operations without a result.
func execStore(ctx context.Context, timeout time.Duration, operation string, fn func(context.Context) error) error {
	_, err := callStore(ctx, timeout, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
