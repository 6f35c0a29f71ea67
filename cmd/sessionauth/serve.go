// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/sessionauth/internal/auth"
	"github.com/holomush/sessionauth/internal/config"
	"github.com/holomush/sessionauth/internal/logging"
	"github.com/holomush/sessionauth/internal/observability"
	"github.com/holomush/sessionauth/internal/web"
)

const (
	serviceName     = "sessionauth"
	shutdownTimeout = 5 * time.Second
	readinessPing   = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP API",
		Long: `Start the HTTP API serving registration, login, logout, profile and
password reset, plus the metrics and health endpoints when metrics-addr is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps starts the API with injectable dependencies and blocks
// until a signal, a server failure or ctx cancellation. If deps is nil,
// default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreOpener == nil {
		deps.StoreOpener = openStore
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.Setup(serviceName, version, cfg.Log.Format, cmd.ErrOrStderr(),
		logging.WithLevel(logging.ParseLevel(cfg.Log.Level)))
	slog.SetDefault(logger)

	logger.InfoContext(ctx, "starting sessionauth",
		"http_addr", cfg.HTTP.Addr,
		"store", cfg.Store.Driver,
		"verifier", cfg.Auth.Verifier,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	userStore, err := deps.StoreOpener(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open user store").With("driver", cfg.Store.Driver).Wrap(err)
	}
	defer userStore.Close()

	var obsServer ObservabilityServer
	var metrics auth.MetricsRecorder
	var requests web.RequestRecorder
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readiness(ctx, userStore))
		metrics = obsServer.Metrics()
		requests = obsServer.Metrics()
	}

	handler, err := buildHandler(cfg, userStore, logger, metrics, requests)
	if err != nil {
		return err
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("sessionauth listening on " + listener.Addr().String())
	logger.InfoContext(ctx, "http server listening", "addr", listener.Addr().String())

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errChan:
		logger.Error("http server error", "error", serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}

	logger.Info("shutdown complete")
	if serveErr != nil {
		return oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
	}
	return nil
}

// buildHandler wires the auth service, verifier and router for cfg.
func buildHandler(cfg *config.Config, userStore *UserStore, logger *slog.Logger, metrics auth.MetricsRecorder, requests web.RequestRecorder) (http.Handler, error) {
	hasher, err := auth.NewHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}

	svc, err := auth.NewService(userStore.Repo, hasher,
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
		auth.WithStoreTimeout(cfg.Store.Timeout),
	)
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewCredentialVerifier(cfg.Auth.Verifier, svc)
	if err != nil {
		return nil, err
	}

	paths, err := auth.NewPathMatcher(cfg.Auth.ExcludedPaths)
	if err != nil {
		return nil, err
	}

	return web.NewRouter(&web.RouterDeps{
		Service:  svc,
		Verifier: verifier,
		Paths:    paths,
		Cookie:   web.CookieConfig{Name: cfg.Cookie.Name, Secure: cfg.Cookie.Secure},
		Logger:   logger,
		Metrics:  requests,
	}), nil
}

// readiness reports ready while the user store answers a ping.
func readiness(ctx context.Context, userStore *UserStore) observability.ReadinessChecker {
	return func() bool {
		if userStore.Ping == nil {
			return true
		}
		pingCtx, cancel := context.WithTimeout(ctx, readinessPing)
		defer cancel()
		return userStore.Ping(pingCtx) == nil
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
