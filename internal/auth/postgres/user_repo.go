// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres provides a PostgreSQL auth.UserRepository.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/sessionauth/internal/auth"
)

// emailConstraint is the unique constraint backing email uniqueness.
const emailConstraint = "users_email_key"

const userColumns = `id, email, hashed_password, session_id, reset_token, created_at, updated_at`

// DB is the subset of *pgxpool.Pool used by UserRepository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user. The email unique constraint decides races
// between concurrent registrations.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.SessionHash,
		user.ResetTokenHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == emailConstraint {
			return oops.Code("USER_EMAIL_TAKEN").
				With("email", user.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	return r.get(row, "id", id.String())
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return r.get(row, "email", email)
}

// GetBySessionHash retrieves the user holding sessionHash.
func (r *UserRepository) GetBySessionHash(ctx context.Context, sessionHash string) (*auth.User, error) {
	if sessionHash == "" {
		return nil, oops.Code("USER_NOT_FOUND").With("by", "session").Wrap(auth.ErrNotFound)
	}
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE session_id = $1`, sessionHash)
	return r.get(row, "by", "session")
}

func (r *UserRepository) get(row pgx.Row, key, value string) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With(key, value).Wrap(err)
	}
	return user, nil
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.update(ctx, "update password",
		`UPDATE users SET hashed_password = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash)
}

// SetSession sets or clears the user's session.
func (r *UserRepository) SetSession(ctx context.Context, id ulid.ULID, sessionHash string) error {
	return r.update(ctx, "set session",
		`UPDATE users SET session_id = NULLIF($2, ''), updated_at = $3 WHERE id = $1`,
		id, sessionHash)
}

// ClearSession clears the user's session if it is still sessionHash. No
// matching row is not an error.
func (r *UserRepository) ClearSession(ctx context.Context, id ulid.ULID, sessionHash string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET session_id = NULL, updated_at = $3 WHERE id = $1 AND session_id = $2`,
		id.String(), sessionHash, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "clear session").
			With("id", id.String()).
			Wrap(err)
	}
	return nil
}

// SetResetToken sets or clears the user's reset token.
func (r *UserRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string) error {
	return r.update(ctx, "set reset token",
		`UPDATE users SET reset_token = NULLIF($2, ''), updated_at = $3 WHERE id = $1`,
		id, tokenHash)
}

func (r *UserRepository) update(ctx context.Context, operation, sql string, id ulid.ULID, value string) error {
	result, err := r.db.Exec(ctx, sql, id.String(), value, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeResetToken replaces the password and clears the token in a single
// UPDATE. Concurrent consumers of one token serialize on the row lock and
// only the first sees a match.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string) (ulid.ULID, error) {
	if tokenHash == "" {
		return ulid.ULID{}, oops.Code("USER_NOT_FOUND").With("by", "reset_token").Wrap(auth.ErrNotFound)
	}

	var idStr string
	err := r.db.QueryRow(ctx, `
		UPDATE users
		SET hashed_password = $2, reset_token = NULL, updated_at = $3
		WHERE reset_token = $1
		RETURNING id
	`, tokenHash, passwordHash, time.Now().UTC()).Scan(&idStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, oops.Code("USER_NOT_FOUND").With("by", "reset_token").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("USER_CONSUME_RESET_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return ulid.ULID{}, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	return id, nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr      string
		user       auth.User
		sessionID  *string
		resetToken *string
	)
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.PasswordHash,
		&sessionID,
		&resetToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").With("operation", "scan user").Wrap(err)
	}

	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	if sessionID != nil {
		user.SessionHash = *sessionID
	}
	if resetToken != nil {
		user.ResetTokenHash = *resetToken
	}
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
