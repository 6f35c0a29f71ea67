// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides an in-process auth.UserRepository.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/sessionauth/internal/auth"
)

// UserRepository is an in-memory auth.UserRepository. All methods serialize
// on a single lock, so check-and-write sequences are atomic. Returned users
// are copies.
type UserRepository struct {
	mu      sync.RWMutex
	users   map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID
	bySess  map[string]ulid.ULID
	byReset map[string]ulid.ULID
	clock   func() time.Time
}

// NewUserRepository creates an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:   make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
		bySess:  make(map[string]ulid.ULID),
		byReset: make(map[string]ulid.ULID),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors are classified by the caller
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return oops.Code("USER_EMAIL_TAKEN").
			With("email", user.Email).
			Wrap(auth.ErrDuplicateEmail)
	}
	if _, taken := r.users[user.ID]; taken {
		return oops.Code("USER_CREATE_FAILED").
			With("id", user.ID.String()).
			Errorf("user id already exists")
	}

	stored := *user
	r.users[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID
	if stored.SessionHash != "" {
		r.bySess[stored.SessionHash] = stored.ID
	}
	if stored.ResetTokenHash != "" {
		r.byReset[stored.ResetTokenHash] = stored.ID
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors are classified by the caller
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, notFound("id", id.String())
	}
	cp := *u
	return &cp, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getByIndex(ctx, r.byEmail, email, "email")
}

// GetBySessionHash retrieves the user holding sessionHash.
func (r *UserRepository) GetBySessionHash(ctx context.Context, sessionHash string) (*auth.User, error) {
	return r.getByIndex(ctx, r.bySess, sessionHash, "session")
}

func (r *UserRepository) getByIndex(ctx context.Context, index map[string]ulid.ULID, key, field string) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors are classified by the caller
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := index[key]
	if !ok || key == "" {
		return nil, notFound("by", field)
	}
	cp := *r.users[id]
	return &cp, nil
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.update(ctx, id, func(u *auth.User) {
		u.PasswordHash = passwordHash
	})
}

// SetSession sets or clears the user's session.
func (r *UserRepository) SetSession(ctx context.Context, id ulid.ULID, sessionHash string) error {
	return r.update(ctx, id, func(u *auth.User) {
		if u.SessionHash != "" {
			delete(r.bySess, u.SessionHash)
		}
		u.SessionHash = sessionHash
		if sessionHash != "" {
			r.bySess[sessionHash] = u.ID
		}
	})
}

// ClearSession clears the user's session if it is still sessionHash.
func (r *UserRepository) ClearSession(ctx context.Context, id ulid.ULID, sessionHash string) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors are classified by the caller
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || sessionHash == "" || u.SessionHash != sessionHash {
		return nil
	}
	delete(r.bySess, sessionHash)
	u.SessionHash = ""
	u.UpdatedAt = r.clock()
	return nil
}

// SetResetToken sets or clears the user's reset token.
func (r *UserRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string) error {
	return r.update(ctx, id, func(u *auth.User) {
		if u.ResetTokenHash != "" {
			delete(r.byReset, u.ResetTokenHash)
		}
		u.ResetTokenHash = tokenHash
		if tokenHash != "" {
			r.byReset[tokenHash] = u.ID
		}
	})
}

// ConsumeResetToken replaces the password of the token holder and clears
// the token under one lock.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string) (ulid.ULID, error) {
	if err := ctx.Err(); err != nil {
		return ulid.ULID{}, err //nolint:wrapcheck // context errors are classified by the caller
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byReset[tokenHash]
	if !ok || tokenHash == "" {
		return ulid.ULID{}, notFound("by", "reset_token")
	}
	u := r.users[id]
	delete(r.byReset, tokenHash)
	u.ResetTokenHash = ""
	u.PasswordHash = passwordHash
	u.UpdatedAt = r.clock()
	return id, nil
}

func (r *UserRepository) update(ctx context.Context, id ulid.ULID, fn func(*auth.User)) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors are classified by the caller
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return notFound("id", id.String())
	}
	fn(u)
	u.UpdatedAt = r.clock()
	return nil
}

func notFound(key, value string) error {
	return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
