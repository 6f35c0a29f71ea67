// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis provides a Redis auth.UserRepository.
//
// Each user is a hash under "<prefix>:user:<id>". Email, session and reset
// token lookups go through string keys holding the user id. Multi-key
// updates run under WATCH/MULTI and retry on conflict.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/sessionauth/internal/auth"
)

// DefaultPrefix namespaces all keys written by the repository.
const DefaultPrefix = "sessionauth"

const maxTxRetries = 4

const (
	fieldID        = "id"
	fieldEmail     = "email"
	fieldPassword  = "hashed_password"
	fieldSession   = "session_id"
	fieldReset     = "reset_token"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

var errTxConflict = errors.New("transaction kept conflicting")

// UserRepository implements auth.UserRepository on Redis.
type UserRepository struct {
	client *goredis.Client
	prefix string
}

// NewUserRepository creates a UserRepository. An empty prefix selects
// DefaultPrefix.
func NewUserRepository(client *goredis.Client, prefix string) *UserRepository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &UserRepository{client: client, prefix: prefix}
}

func (r *UserRepository) userKey(id string) string     { return r.prefix + ":user:" + id }
func (r *UserRepository) emailKey(email string) string { return r.prefix + ":email:" + email }
func (r *UserRepository) sessionKey(h string) string   { return r.prefix + ":session:" + h }
func (r *UserRepository) resetKey(h string) string     { return r.prefix + ":reset:" + h }

// Create stores a new user. The email index key is watched, so two
// concurrent registrations of one email cannot both commit.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	emailKey := r.emailKey(user.Email)
	userKey := r.userKey(user.ID.String())

	err := r.watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, emailKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return auth.ErrDuplicateEmail
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, emailKey, user.ID.String(), 0)
			pipe.HSet(ctx, userKey, encodeUser(user))
			if user.SessionHash != "" {
				pipe.Set(ctx, r.sessionKey(user.SessionHash), user.ID.String(), 0)
			}
			if user.ResetTokenHash != "" {
				pipe.Set(ctx, r.resetKey(user.ResetTokenHash), user.ID.String(), 0)
			}
			return nil
		})
		return err
	}, emailKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrDuplicateEmail):
		return oops.Code("USER_EMAIL_TAKEN").With("email", user.Email).Wrap(auth.ErrDuplicateEmail)
	default:
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "create user").
			With("id", user.ID.String()).
			Wrap(withContext(ctx, err))
	}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.load(ctx, id.String(), "id", id.String())
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getByIndex(ctx, r.emailKey(email), "email", email)
}

// GetBySessionHash retrieves the user holding sessionHash.
func (r *UserRepository) GetBySessionHash(ctx context.Context, sessionHash string) (*auth.User, error) {
	if sessionHash == "" {
		return nil, notFound("by", "session")
	}
	return r.getByIndex(ctx, r.sessionKey(sessionHash), "by", "session")
}

func (r *UserRepository) getByIndex(ctx context.Context, indexKey, key, value string) (*auth.User, error) {
	id, err := r.client.Get(ctx, indexKey).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, notFound(key, value)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With(key, value).Wrap(withContext(ctx, err))
	}
	return r.load(ctx, id, key, value)
}

func (r *UserRepository) load(ctx context.Context, id, key, value string) (*auth.User, error) {
	fields, err := r.client.HGetAll(ctx, r.userKey(id)).Result()
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With(key, value).Wrap(withContext(ctx, err))
	}
	if len(fields) == 0 {
		return nil, notFound(key, value)
	}
	return decodeUser(fields)
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.updateField(ctx, "update password", id, fieldPassword, passwordHash, nil)
}

// SetSession sets or clears the user's session and keeps the session index
// in step.
func (r *UserRepository) SetSession(ctx context.Context, id ulid.ULID, sessionHash string) error {
	return r.updateField(ctx, "set session", id, fieldSession, sessionHash, r.sessionKey)
}

// ClearSession clears the user's session if it is still sessionHash. The
// user key is watched, so a session issued concurrently survives.
func (r *UserRepository) ClearSession(ctx context.Context, id ulid.ULID, sessionHash string) error {
	if sessionHash == "" {
		return nil
	}
	userKey := r.userKey(id.String())

	err := r.watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.HGet(ctx, userKey, fieldSession).Result()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if current != sessionHash {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, r.sessionKey(sessionHash))
			pipe.HSet(ctx, userKey, fieldSession, "", fieldUpdatedAt, formatTime(time.Now().UTC()))
			return nil
		})
		return err
	}, userKey)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "clear session").
			With("id", id.String()).
			Wrap(withContext(ctx, err))
	}
	return nil
}

// SetResetToken sets or clears the user's reset token and keeps the reset
// index in step.
func (r *UserRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string) error {
	return r.updateField(ctx, "set reset token", id, fieldReset, tokenHash, r.resetKey)
}

// updateField writes one hash field. When index is non-nil the old index
// key is removed and a new one written for a non-empty value.
func (r *UserRepository) updateField(ctx context.Context, operation string, id ulid.ULID, field, value string, index func(string) string) error {
	userKey := r.userKey(id.String())

	err := r.watch(ctx, func(tx *goredis.Tx) error {
		old, err := tx.HMGet(ctx, userKey, fieldID, field).Result()
		if err != nil {
			return err
		}
		if old[0] == nil {
			return auth.ErrNotFound
		}
		previous, _ := old[1].(string)

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if index != nil {
				if previous != "" {
					pipe.Del(ctx, index(previous))
				}
				if value != "" {
					pipe.Set(ctx, index(value), id.String(), 0)
				}
			}
			pipe.HSet(ctx, userKey, field, value, fieldUpdatedAt, formatTime(time.Now().UTC()))
			return nil
		})
		return err
	}, userKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrNotFound):
		return notFound("id", id.String())
	default:
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(withContext(ctx, err))
	}
}

// ConsumeResetToken swaps the password and drops the token in one MULTI.
// The reset index key is watched, so only one consumer of a token commits.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string) (ulid.ULID, error) {
	if tokenHash == "" {
		return ulid.ULID{}, notFound("by", "reset_token")
	}
	resetKey := r.resetKey(tokenHash)

	var holder string
	err := r.watch(ctx, func(tx *goredis.Tx) error {
		id, err := tx.Get(ctx, resetKey).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, resetKey)
			pipe.HSet(ctx, r.userKey(id),
				fieldPassword, passwordHash,
				fieldReset, "",
				fieldUpdatedAt, formatTime(time.Now().UTC()))
			return nil
		})
		if err == nil {
			holder = id
		}
		return err
	}, resetKey)

	switch {
	case errors.Is(err, goredis.Nil):
		return ulid.ULID{}, notFound("by", "reset_token")
	case err != nil:
		return ulid.ULID{}, oops.Code("USER_CONSUME_RESET_FAILED").
			With("operation", "consume reset token").
			Wrap(withContext(ctx, err))
	}

	id, err := ulid.Parse(holder)
	if err != nil {
		return ulid.ULID{}, oops.Code("USER_INVALID_ID").With("id", holder).Wrap(err)
	}
	return id, nil
}

// watch runs fn under WATCH keys, retrying optimistic-lock failures.
func (r *UserRepository) watch(ctx context.Context, fn func(*goredis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := r.client.Watch(ctx, fn, keys...)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return errTxConflict
}

func encodeUser(u *auth.User) map[string]any {
	return map[string]any{
		fieldID:        u.ID.String(),
		fieldEmail:     u.Email,
		fieldPassword:  u.PasswordHash,
		fieldSession:   u.SessionHash,
		fieldReset:     u.ResetTokenHash,
		fieldCreatedAt: formatTime(u.CreatedAt),
		fieldUpdatedAt: formatTime(u.UpdatedAt),
	}
}

func decodeUser(fields map[string]string) (*auth.User, error) {
	id, err := ulid.Parse(fields[fieldID])
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", fields[fieldID]).
			Wrap(err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, oops.Code("USER_SCAN_FAILED").With("field", fieldCreatedAt).Wrap(err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt])
	if err != nil {
		return nil, oops.Code("USER_SCAN_FAILED").With("field", fieldUpdatedAt).Wrap(err)
	}
	return &auth.User{
		ID:             id,
		Email:          fields[fieldEmail],
		PasswordHash:   fields[fieldPassword],
		SessionHash:    fields[fieldSession],
		ResetTokenHash: fields[fieldReset],
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// withContext attaches the context error to network failures caused by an
// expired deadline, so callers can classify them.
func withContext(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return errors.Join(err, ctxErr)
	}
	return err
}

func notFound(key, value string) error {
	return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
