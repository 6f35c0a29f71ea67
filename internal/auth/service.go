// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/sessionauth/pkg/errutil"
)

const tracerName = "github.com/holomush/sessionauth/internal/auth"

// Operation names used for metrics and spans.
const (
	OpRegister             = "register"
	OpLogin                = "login"
	OpAuthenticate         = "authenticate"
	OpLogout               = "logout"
	OpUserFromSession      = "user_from_session"
	OpRequestPasswordReset = "request_password_reset"
	OpResetPassword        = "reset_password"
)

// Operation outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeCanceled    = "canceled"
	OutcomeError       = "error"
)

// fallbackDummyHash is used if the configured hasher cannot produce a dummy
// hash. It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const fallbackDummyHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// MetricsRecorder receives one event per service operation.
type MetricsRecorder interface {
	RecordAuthOperation(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthOperation(string, string) {}

// Service orchestrates registration, login, logout, profile lookup and
// password reset. It is the only component transport handlers talk to.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	sessions *SessionRegistry
	resets   *ResetTokenManager

	logger  *slog.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
	timeout time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. A nil logger fails construction.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the operation recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithStoreTimeout bounds every store call made on behalf of a request.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// NewService creates a Service and the SessionRegistry and ResetTokenManager
// it owns.
func NewService(users UserRepository, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}

	s := &Service{
		users:   users,
		hasher:  hasher,
		logger:  slog.Default(),
		metrics: noopRecorder{},
		tracer:  otel.Tracer(tracerName),
		timeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	if s.timeout <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("timeout", s.timeout).
			Errorf("store timeout must be positive")
	}

	var err error
	if s.sessions, err = NewSessionRegistry(users, s.timeout); err != nil {
		return nil, err
	}
	if s.resets, err = NewResetTokenManager(users, s.timeout); err != nil {
		return nil, err
	}
	return s, nil
}

// Sessions returns the registry owned by the service.
func (s *Service) Sessions() *SessionRegistry {
	return s.sessions
}

// Register creates a user. Fails with ErrDuplicateEmail when the email is
// already registered.
func (s *Service) Register(ctx context.Context, email, password string) (user *User, err error) {
	ctx, done := s.begin(ctx, OpRegister)
	defer func() { done(err) }()

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	lookup, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "lookup email").Wrap(err)
	}
	if _, found := lookup.User(); found {
		return nil, oops.Code("AUTH_ALREADY_REGISTERED").Wrap(ErrDuplicateEmail)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.With("operation", "hash password").Wrap(err)
	}

	user, err = NewUser(email, hash)
	if err != nil {
		return nil, err
	}

	err = execStore(ctx, s.timeout, "create user", func(ctx context.Context) error {
		return s.users.Create(ctx, user)
	})
	if err != nil {
		return nil, oops.With("operation", "create user").Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String(), "email", email)
	return user, nil
}

// Authenticate checks email and password without issuing a session.
// Unknown email and wrong password both fail with ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user *User, err error) {
	ctx, done := s.begin(ctx, OpAuthenticate)
	defer func() { done(err) }()
	return s.authenticate(ctx, email, password)
}

// Login authenticates the user and issues a fresh session, replacing any
// previous one. Returns the plaintext session id.
func (s *Service) Login(ctx context.Context, email, password string) (sessionID string, err error) {
	ctx, done := s.begin(ctx, OpLogin)
	defer func() { done(err) }()

	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}

	sessionID, err = s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue session").Wrap(err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	return sessionID, nil
}

// Logout revokes the session. Fails with ErrInvalidSession when the id does
// not resolve.
func (s *Service) Logout(ctx context.Context, sessionID string) (err error) {
	ctx, done := s.begin(ctx, OpLogout)
	defer func() { done(err) }()

	userID, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, userID, sessionID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").Wrap(err)
	}

	s.logger.InfoContext(ctx, "user logged out", "user_id", userID.String())
	return nil
}

// UserFromSession returns the user holding sessionID. Fails with
// ErrInvalidSession or ErrNotFound; callers treat both as unauthenticated.
func (s *Service) UserFromSession(ctx context.Context, sessionID string) (user *User, err error) {
	ctx, done := s.begin(ctx, OpUserFromSession)
	defer func() { done(err) }()

	userID, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err = callStore(ctx, s.timeout, "get user by id", func(ctx context.Context) (*User, error) {
		return s.users.GetByID(ctx, userID)
	})
	if err != nil {
		return nil, oops.With("operation", "load session user").With("user_id", userID.String()).Wrap(err)
	}
	return user, nil
}

// RequestPasswordReset issues a reset token for email. An unknown email
// fails like any other reset failure; the caller must not reveal which.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (token string, err error) {
	ctx, done := s.begin(ctx, OpRequestPasswordReset)
	defer func() { done(err) }()

	token, err = s.resets.Issue(ctx, email)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset requested", "email", email)
	return token, nil
}

// ResetPassword replaces the password of the user holding token and
// invalidates the token. Fails with ErrInvalidToken for unknown or spent tokens.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, done := s.begin(ctx, OpResetPassword)
	defer func() { done(err) }()

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.With("operation", "hash password").Wrap(err)
	}

	userID, err := s.resets.Consume(ctx, token, hash)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", userID.String())
	return nil
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*User, error) {
	lookup, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "lookup email").Wrap(err)
	}

	user, found := lookup.User()
	if !found {
		// Spend the same hashing time as a real verification.
		_, _ = s.hasher.Verify(password, s.dummy()) //nolint:errcheck // result is irrelevant
		return nil, invalidCredentials()
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if !valid {
		s.logger.WarnContext(ctx, "password mismatch", "user_id", user.ID.String())
		return nil, invalidCredentials()
	}

	s.upgradeHash(ctx, user, password)
	return user, nil
}

// upgradeHash re-hashes the password in the preferred scheme. Failures are
// logged and never fail the login.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	if !s.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	err = execStore(ctx, s.timeout, "upgrade password hash", func(ctx context.Context) error {
		return s.users.UpdatePassword(ctx, user.ID, hash)
	})
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	user.PasswordHash = hash
}

// lookupByEmail turns the repository's NotFound into an Absent result so
// callers branch on existence instead of on errors.
func (s *Service) lookupByEmail(ctx context.Context, email string) (Lookup, error) {
	user, err := callStore(ctx, s.timeout, "get user by email", func(ctx context.Context) (*User, error) {
		return s.users.GetByEmail(ctx, email)
	})
	if errors.Is(err, ErrNotFound) {
		return Absent(), nil
	}
	if err != nil {
		return Absent(), err
	}
	return Found(user), nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		id := ulid.Make().String()
		hash, err := s.hasher.Hash(id)
		if err != nil || hash == "" {
			hash = fallbackDummyHash
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// begin starts a span for operation and returns a completion func that
// records the outcome.
func (s *Service) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "auth."+operation,
		trace.WithAttributes(attribute.String("auth.operation", operation)))
	return ctx, func(err error) {
		outcome := Outcome(err)
		span.SetAttributes(attribute.String("auth.outcome", outcome))
		if outcome == OutcomeError || outcome == OutcomeUnavailable {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			errutil.LogErrorContext(ctx, s.logger, "auth operation failed", err)
		}
		span.End()
		s.metrics.RecordAuthOperation(operation, outcome)
	}
}

// Outcome classifies an operation result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrStoreUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidSession),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrEmptyPassword),
		errors.Is(err, ErrInvalidEmail):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}
