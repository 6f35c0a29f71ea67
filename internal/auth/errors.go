// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Sentinel errors. Repositories and services wrap these with oops codes;
// callers match them with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidSession is returned when no user holds the session id.
	ErrInvalidSession = errors.New("invalid session")

	// ErrInvalidToken is returned when no user holds the reset token.
	ErrInvalidToken = errors.New("invalid reset token")

	// ErrInvalidEmail is returned for empty or malformed email addresses.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrStoreUnavailable is returned when the backing store cannot answer in time.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// storeError converts an expired deadline on a store call into
// ErrStoreUnavailable. Caller cancellation and other errors pass through
// untouched.
func storeError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", operation).
			Wrapf(errors.Join(ErrStoreUnavailable, err), "store call did not complete")
	}
	return err
}
