// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessionauth/internal/auth"
	"github.com/holomush/sessionauth/internal/auth/memory"
	"github.com/holomush/sessionauth/pkg/errutil"
)

func newUser(t *testing.T, email string) *auth.User {
	t.Helper()
	u, err := auth.NewUser(email, "hash")
	require.NoError(t, err)
	return u
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()

	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))

	t.Run("stores a copy", func(t *testing.T) {
		u.PasswordHash = "mutated"
		stored, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "hash", stored.PasswordHash)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		err := repo.Create(ctx, newUser(t, "bob@example.com"))
		require.ErrorIs(t, err, auth.ErrDuplicateEmail)
		errutil.AssertErrorCode(t, err, "USER_EMAIL_TAKEN")
	})

	t.Run("email match is exact", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newUser(t, "Bob@example.com")))
	})
}

func TestUserRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, auth.ErrNotFound)

	_, err = repo.GetByID(ctx, ulid.Make())
	require.ErrorIs(t, err, auth.ErrNotFound)

	_, err = repo.GetBySessionHash(ctx, "")
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUserRepository_SetSession(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))

	require.NoError(t, repo.SetSession(ctx, u.ID, "first"))
	got, err := repo.GetBySessionHash(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	t.Run("replacing drops the old session", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, u.ID, "second"))
		_, err := repo.GetBySessionHash(ctx, "first")
		require.ErrorIs(t, err, auth.ErrNotFound)
		_, err = repo.GetBySessionHash(ctx, "second")
		require.NoError(t, err)
	})

	t.Run("clearing removes the session", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, u.ID, ""))
		_, err := repo.GetBySessionHash(ctx, "second")
		require.ErrorIs(t, err, auth.ErrNotFound)
		stored, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, stored.HasSession())
	})

	t.Run("unknown user", func(t *testing.T) {
		err := repo.SetSession(ctx, ulid.Make(), "x")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_ClearSession(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.SetSession(ctx, u.ID, "current"))

	require.NoError(t, repo.ClearSession(ctx, u.ID, "stale"))
	got, err := repo.GetBySessionHash(ctx, "current")
	require.NoError(t, err, "a different session is left alone")
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, repo.ClearSession(ctx, u.ID, "current"))
	_, err = repo.GetBySessionHash(ctx, "current")
	require.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, repo.ClearSession(ctx, ulid.Make(), "current"), "unknown user is a no-op")
}

func TestUserRepository_ConsumeResetToken(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.SetResetToken(ctx, u.ID, "tok"))

	id, err := repo.ConsumeResetToken(ctx, "tok", "newhash")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", stored.PasswordHash)
	assert.False(t, stored.HasResetToken())

	_, err = repo.ConsumeResetToken(ctx, "tok", "other")
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUserRepository_ConsumeResetTokenOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.SetResetToken(ctx, u.ID, "tok"))

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConsumeResetToken(ctx, "tok", "h"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestUserRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := memory.NewUserRepository()

	err := repo.Create(ctx, newUser(t, "bob@example.com"))
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = repo.GetByEmail(ctx, "bob@example.com")
	assert.True(t, errors.Is(err, context.Canceled))
}
