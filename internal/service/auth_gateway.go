package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/port/outbound"
)

const instrumentationName = "github.com/yazcar/yazcarfax/internal/service"

// DefaultBackendTimeout bounds each backend or directory call.
const DefaultBackendTimeout = 10 * time.Second

// ErrInvalidInput is returned when sign-in credentials fail validation.
var ErrInvalidInput = errors.New("invalid input")

// SignInResult is what a successful sign-in hands to the caller, which is
// responsible for writing it into the session store.
type SignInResult struct {
	User    *auth.User
	Session *auth.BackendSession
}

// AuthStatus is the outcome of the launch-time check.
type AuthStatus struct {
	IsAuthenticated bool       `json:"is_authenticated" yaml:"is_authenticated"`
	User            *auth.User `json:"user,omitempty" yaml:"user,omitempty"`
	// Session is the backend session the status was derived from.
	Session *auth.BackendSession `json:"-" yaml:"-"`
}

type signInRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// AuthGateway brokers identity between the hosted auth service, the users
// table and the durable cache. It never mutates the in-memory session
// store. SignIn, SignOut and CheckAuthStatus run one at a time; callers
// queue until the previous one returns or their context ends.
type AuthGateway struct {
	backend  auth.Backend
	profiles auth.ProfileDirectory
	cache    *CredentialCache
	validate *validator.Validate
	sem      chan struct{}
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
	ops      metric.Int64Counter
}

// GatewayOption configures an AuthGateway.
type GatewayOption func(*AuthGateway)

// WithBackendTimeout bounds each backend and directory call.
func WithBackendTimeout(d time.Duration) GatewayOption {
	return func(g *AuthGateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *AuthGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewAuthGateway creates an AuthGateway. kv is the durable cache.
func NewAuthGateway(backend auth.Backend, profiles auth.ProfileDirectory, kv outbound.KeyValueStore, opts ...GatewayOption) *AuthGateway {
	g := &AuthGateway{
		backend:  backend,
		profiles: profiles,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		sem:      make(chan struct{}, 1),
		timeout:  DefaultBackendTimeout,
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cache = NewCredentialCache(kv, g.logger)

	ops, err := otel.Meter(instrumentationName).Int64Counter("yazcar.auth.operations",
		metric.WithDescription("Auth gateway operations by outcome"))
	if err != nil {
		g.logger.Warn("failed to create auth operation counter", "error", err)
	}
	g.ops = ops
	return g
}

// SignIn authenticates with the backend and resolves the user's profile.
// Both must succeed: an account without a users row fails with
// auth.ErrProfileNotFound. When rememberMe is set the token and profile are
// written to the durable cache as a pair; otherwise any cached pair is
// dropped and the backend is asked not to persist its session.
func (g *AuthGateway) SignIn(ctx context.Context, email, password string, rememberMe bool) (res *SignInResult, err error) {
	ctx, span := g.tracer.Start(ctx, "AuthGateway.SignIn",
		trace.WithAttributes(attribute.Bool("remember_me", rememberMe)))
	defer func() { g.finish(ctx, span, "sign_in", err) }()
	defer recoverInto(&err, "sign in")

	if verr := g.validate.Struct(signInRequest{Email: email, Password: password}); verr != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(verr))
	}

	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.release()

	if p, ok := g.backend.(auth.SessionPersister); ok {
		p.PersistSession(rememberMe)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	sess, err := g.backend.SignInWithPassword(callCtx, email, password)
	cancel()
	if err != nil {
		return nil, g.classify(ctx, "sign in", err)
	}
	if sess == nil || sess.User.ID == "" {
		return nil, fmt.Errorf("sign in: %w: backend returned no identity", auth.ErrNetwork)
	}
	span.SetAttributes(attribute.String("user_id", sess.User.ID))

	callCtx, cancel = context.WithTimeout(ctx, g.timeout)
	profile, err := g.profiles.GetProfile(callCtx, sess.User.ID)
	cancel()
	if err != nil {
		if errors.Is(err, auth.ErrProfileNotFound) {
			g.logger.Warn("backend account has no profile", "user_id", sess.User.ID)
			g.abandonSession(ctx)
		}
		return nil, g.classify(ctx, "get profile", err)
	}

	if rememberMe {
		if err := g.cache.Save(ctx, sess.AccessToken, profile); err != nil {
			g.logger.Warn("failed to cache credentials", "error", err)
		}
	} else if err := g.cache.Clear(ctx); err != nil {
		g.logger.Warn("failed to clear cached credentials", "error", err)
	}

	g.logger.Info("signed in", "user_id", profile.ID, "role", profile.Role, "remember_me", rememberMe)
	return &SignInResult{User: profile, Session: sess}, nil
}

// abandonSession drops a backend session that will not be used.
func (g *AuthGateway) abandonSession(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.backend.SignOut(callCtx); err != nil {
		g.logger.Debug("failed to drop orphaned backend session", "error", err)
	}
}

// SignOut revokes the backend session and clears the durable cache. The
// cache is cleared whatever the backend says; the returned error is
// informational and the caller should treat the user as signed out.
func (g *AuthGateway) SignOut(ctx context.Context) (err error) {
	ctx, span := g.tracer.Start(ctx, "AuthGateway.SignOut")
	defer func() { g.finish(ctx, span, "sign_out", err) }()
	defer recoverInto(&err, "sign out")

	if err := g.acquire(ctx); err != nil {
		// Never leave a device looking signed in.
		return errors.Join(err, g.cache.Clear(context.WithoutCancel(ctx)))
	}
	defer g.release()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	backendErr := g.backend.SignOut(callCtx)
	cancel()
	if backendErr != nil {
		backendErr = g.classify(ctx, "sign out", backendErr)
		g.logger.Warn("backend sign-out failed, clearing local credentials anyway", "error", backendErr)
	}

	cacheErr := g.cache.Clear(context.WithoutCancel(ctx))
	if cacheErr != nil {
		g.logger.Error("failed to clear cached credentials", "error", cacheErr)
	}
	g.logger.Info("signed out")
	return errors.Join(backendErr, cacheErr)
}

// CheckAuthStatus reconciles the durable cache with the backend session at
// launch. The backend session decides validity; the cache only saves the
// profile round trip. A missing or corrupt cache entry is repaired from the
// users table. Any failure reports signed out along with the error.
func (g *AuthGateway) CheckAuthStatus(ctx context.Context) (status AuthStatus, err error) {
	ctx, span := g.tracer.Start(ctx, "AuthGateway.CheckAuthStatus")
	defer func() {
		if err != nil {
			status = AuthStatus{}
		}
		span.SetAttributes(attribute.Bool("authenticated", status.IsAuthenticated))
		g.finish(ctx, span, "check_auth_status", err)
	}()
	defer recoverInto(&err, "check auth status")

	if err := g.acquire(ctx); err != nil {
		return AuthStatus{}, err
	}
	defer g.release()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	sess, err := g.backend.GetSession(callCtx)
	cancel()
	if err != nil {
		return AuthStatus{}, g.classify(ctx, "get session", err)
	}
	if sess == nil {
		// The cache must not outlive the session it mirrors.
		if err := g.cache.Clear(ctx); err != nil {
			g.logger.Warn("failed to clear stale credentials", "error", err)
		}
		return AuthStatus{}, nil
	}

	_, cached, cacheErr := g.cache.Load(ctx)
	switch {
	case cacheErr == nil && cached != nil && cached.ID == sess.User.ID:
		return AuthStatus{IsAuthenticated: true, User: cached, Session: sess}, nil
	case errors.Is(cacheErr, auth.ErrCacheCorrupt):
		g.logger.Warn("cached profile is corrupt, refetching", "error", cacheErr)
	case cacheErr != nil:
		g.logger.Warn("failed to read cached profile, refetching", "error", cacheErr)
	case cached != nil:
		g.logger.Warn("cached profile belongs to another user, refetching",
			"cached_id", cached.ID, "session_user_id", sess.User.ID)
	}

	callCtx, cancel = context.WithTimeout(ctx, g.timeout)
	profile, err := g.profiles.GetProfile(callCtx, sess.User.ID)
	cancel()
	if err != nil {
		if errors.Is(err, auth.ErrProfileNotFound) {
			if clearErr := g.cache.Clear(ctx); clearErr != nil {
				g.logger.Warn("failed to clear credentials for missing profile", "error", clearErr)
			}
		}
		return AuthStatus{}, g.classify(ctx, "get profile", err)
	}

	if err := g.cache.Save(ctx, sess.AccessToken, profile); err != nil {
		g.logger.Warn("failed to repair credential cache", "error", err)
	} else {
		g.logger.Debug("repaired credential cache", "user_id", profile.ID)
	}
	return AuthStatus{IsAuthenticated: true, User: profile, Session: sess}, nil
}

// GetCurrentUser reads the cached profile. It never touches the network and
// does not wait for in-flight operations. A missing or torn cache yields nil.
func (g *AuthGateway) GetCurrentUser(ctx context.Context) (user *auth.User, err error) {
	defer recoverInto(&err, "get current user")
	_, user, err = g.cache.Load(ctx)
	return user, err
}

func (g *AuthGateway) acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *AuthGateway) release() {
	<-g.sem
}

// classify maps a backend or directory failure onto the error taxonomy.
// A call deadline is a network failure; cancellation by the caller is not.
func (g *AuthGateway) classify(ctx context.Context, op string, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: timed out after %s", op, auth.ErrNetwork, g.timeout)
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrProfileNotFound),
		errors.Is(err, auth.ErrRateLimited),
		errors.Is(err, auth.ErrSessionNotFound),
		errors.Is(err, auth.ErrNetwork):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, auth.ErrNetwork, err)
	}
}

func (g *AuthGateway) finish(ctx context.Context, span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	if g.ops != nil {
		g.ops.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		))
	}
	span.End()
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrProfileNotFound):
		return "profile_not_found"
	case errors.Is(err, auth.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, auth.ErrNetwork):
		return "network"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// recoverInto turns a panic in the current function into an error.
func recoverInto(err *error, op string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: unexpected failure: %v", op, r)
	}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "email":
		return "email is not a valid address"
	default:
		return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
}
