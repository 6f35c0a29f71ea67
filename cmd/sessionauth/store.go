// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/sessionauth/internal/auth/memory"
	"github.com/holomush/sessionauth/internal/auth/postgres"
	authredis "github.com/holomush/sessionauth/internal/auth/redis"
	"github.com/holomush/sessionauth/internal/config"
	"github.com/holomush/sessionauth/internal/store"
)

// openStore opens the user repository selected by cfg.Store.Driver.
func openStore(ctx context.Context, cfg *config.Config) (*UserStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return &UserStore{Repo: memory.NewUserRepository(), Close: func() {}}, nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	case config.DriverRedis:
		return openRedis(ctx, cfg)
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("driver", cfg.Store.Driver).
			Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*UserStore, error) {
	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL); err != nil {
			return nil, err
		}
	}

	pool, err := store.Connect(ctx, cfg.Database.URL, store.DefaultConnectOptions())
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "connected to database")

	return &UserStore{
		Repo:  postgres.NewUserRepository(pool),
		Close: pool.Close,
		Ping:  pool.Ping,
	}, nil
}

func openRedis(ctx context.Context, cfg *config.Config) (*UserStore, error) {
	opts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").Wrap(err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // already failing
		return nil, oops.Code("REDIS_CONNECT_FAILED").Wrap(err)
	}
	slog.InfoContext(ctx, "connected to redis")

	return &UserStore{
		Repo: authredis.NewUserRepository(client, cfg.Redis.Prefix),
		Close: func() {
			if err := client.Close(); err != nil {
				slog.Warn("error closing redis client", "error", err)
			}
		},
		Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}, nil
}

// migrateUp applies every pending migration.
func migrateUp(databaseURL string) (err error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return m.Up()
}
