// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package redis_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessionauth/internal/auth"
	"github.com/holomush/sessionauth/internal/auth/redis"
	"github.com/holomush/sessionauth/pkg/errutil"
)

func newRepo(t *testing.T) (*redis.UserRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewUserRepository(client, "test"), mr
}

func newUser(t *testing.T, email string) *auth.User {
	t.Helper()
	u, err := auth.NewUser(email, "hash")
	require.NoError(t, err)
	return u
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRepo(t)
	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", byID.Email)

	assert.True(t, mr.Exists("test:email:bob@example.com"))
	assert.Equal(t, u.ID.String(), mr.HGet("test:user:"+u.ID.String(), "id"))

	t.Run("duplicate email", func(t *testing.T) {
		err := repo.Create(ctx, newUser(t, "bob@example.com"))
		require.ErrorIs(t, err, auth.ErrDuplicateEmail)
		errutil.AssertErrorCode(t, err, "USER_EMAIL_TAKEN")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, auth.ErrNotFound)
		_, err = repo.GetByID(ctx, ulid.Make())
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := auth.NewUser("race@example.com", "hash")
			if err != nil {
				return
			}
			if repo.Create(ctx, u) == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestUserRepository_SetSession(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRepo(t)
	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))

	require.NoError(t, repo.SetSession(ctx, u.ID, "s1"))
	got, err := repo.GetBySessionHash(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "s1", got.SessionHash)

	require.NoError(t, repo.SetSession(ctx, u.ID, "s2"))
	assert.False(t, mr.Exists("test:session:s1"), "old session index must be removed")
	_, err = repo.GetBySessionHash(ctx, "s1")
	require.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, repo.SetSession(ctx, u.ID, ""))
	_, err = repo.GetBySessionHash(ctx, "s2")
	require.ErrorIs(t, err, auth.ErrNotFound)

	err = repo.SetSession(ctx, ulid.Make(), "s3")
	require.ErrorIs(t, err, auth.ErrNotFound)
	assert.False(t, mr.Exists("test:session:s3"))
}

func TestUserRepository_ClearSession(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRepo(t)
	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.SetSession(ctx, u.ID, "s2"))

	require.NoError(t, repo.ClearSession(ctx, u.ID, "s1"))
	assert.True(t, mr.Exists("test:session:s2"), "a different session is left alone")

	require.NoError(t, repo.ClearSession(ctx, u.ID, "s2"))
	assert.False(t, mr.Exists("test:session:s2"))
	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SessionHash)

	require.NoError(t, repo.ClearSession(ctx, ulid.Make(), "s2"), "unknown user is a no-op")
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))

	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "newhash"))
	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.PasswordHash)
}

func TestUserRepository_ConsumeResetToken(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRepo(t)
	u := newUser(t, "bob@example.com")
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.SetResetToken(ctx, u.ID, "t1"))

	t.Run("replacing a token invalidates the old one", func(t *testing.T) {
		require.NoError(t, repo.SetResetToken(ctx, u.ID, "t2"))
		_, err := repo.ConsumeResetToken(ctx, "t1", "x")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	id, err := repo.ConsumeResetToken(ctx, "t2", "newhash")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.False(t, mr.Exists("test:reset:t2"))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.PasswordHash)
	assert.False(t, got.HasResetToken())

	_, err = repo.ConsumeResetToken(ctx, "t2", "again")
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUserRepository_Unavailable(t *testing.T) {
	ctx := context.Background()
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	repo := redis.NewUserRepository(client, "")

	_, err := repo.GetByEmail(ctx, "bob@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrNotFound)
	errutil.AssertErrorCode(t, err, "USER_GET_FAILED")
}
