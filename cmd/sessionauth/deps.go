// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"net"

	"github.com/holomush/sessionauth/internal/auth"
	"github.com/holomush/sessionauth/internal/config"
	"github.com/holomush/sessionauth/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoreOpener opens the configured user store.
	// Default: openStore
	StoreOpener func(ctx context.Context, cfg *config.Config) (*UserStore, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// UserStore is an opened user repository and the func that releases it.
type UserStore struct {
	Repo  auth.UserRepository
	Close func()
	// Ping reports whether the store still answers. Nil means always ready.
	Ping func(ctx context.Context) error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
