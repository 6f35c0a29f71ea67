// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"net/mail"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxEmailLength mirrors the users.email column width.
const MaxEmailLength = 250

// User represents a registered account.
//
// SessionHash and ResetTokenHash hold SHA-256 digests of the plaintext
// values handed to the client. Empty means "no active session" and
// "no pending reset" respectively.
type User struct {
	ID             ulid.ULID
	Email          string
	PasswordHash   string
	SessionHash    string
	ResetTokenHash string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated User with a fresh ID.
func NewUser(email, passwordHash string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// HasSession reports whether the user currently holds a session.
func (u *User) HasSession() bool {
	return u.SessionHash != ""
}

// HasResetToken reports whether a reset token is pending.
func (u *User) HasResetToken() bool {
	return u.ResetTokenHash != ""
}

// ValidateEmail rejects empty, oversized, or unparseable addresses.
// The address is not normalized; case is preserved as given.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Wrapf(ErrInvalidEmail, "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Wrapf(ErrInvalidEmail, "email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("AUTH_INVALID_EMAIL").Wrapf(ErrInvalidEmail, "email is not a valid address")
	}
	return nil
}

// Lookup is the result of an existence check: either Found or Absent.
type Lookup struct {
	user *User
}

// Found wraps an existing user.
func Found(u *User) Lookup {
	return Lookup{user: u}
}

// Absent is the empty lookup result.
func Absent() Lookup {
	return Lookup{}
}

// User returns the user and true when the lookup found one.
func (l Lookup) User() (*User, bool) {
	return l.user, l.user != nil
}

// UserRepository manages user persistence. Every mutating method is atomic
// with respect to concurrent callers touching the same row.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by exact email. Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetBySessionHash retrieves the user currently holding the session.
	// Returns ErrNotFound if none does.
	GetBySessionHash(ctx context.Context, sessionHash string) (*User, error)

	// UpdatePassword replaces the password hash. Returns ErrNotFound if absent.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetSession sets or clears (empty hash) the user's session.
	SetSession(ctx context.Context, id ulid.ULID, sessionHash string) error

	// ClearSession clears the user's session only while it still equals
	// sessionHash. A missing user or a different session is a no-op.
	ClearSession(ctx context.Context, id ulid.ULID, sessionHash string) error

	// SetResetToken sets or clears (empty hash) the user's reset token.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string) error

	// ConsumeResetToken atomically finds the user holding tokenHash, replaces
	// the password hash, and clears the token. Returns ErrNotFound if no user
	// holds the token.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string) (ulid.ULID, error)
}
