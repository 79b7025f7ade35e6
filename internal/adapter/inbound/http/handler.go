package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/authevent"
	"github.com/yazcar/yazcarfax/internal/domain/authsession"
	"github.com/yazcar/yazcarfax/internal/domain/ratelimit"
	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
)

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// Directory serves the users and cars tables.
type Directory interface {
	auth.ProfileDirectory
	vehicle.Directory
}

// EventRecorder receives auth events. service.AuthEventService implements it.
type EventRecorder interface {
	Record(authevent.Event)
}

// Backend serves the auth and REST endpoints.
type Backend struct {
	accounts  auth.AccountStore
	directory Directory
	sessions  *authsession.Service
	issuer    *auth.TokenIssuer

	limiter ratelimit.RateLimiter
	limit   ratelimit.RateLimitConfig
	events  EventRecorder
	metrics *Metrics
	now     func() time.Time

	// dummyHash is verified for unknown emails so both failures cost the same.
	dummyOnce sync.Once
	dummyHash string
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithRateLimit throttles password sign-ins per client address and per email.
func WithRateLimit(limiter ratelimit.RateLimiter, cfg ratelimit.RateLimitConfig) BackendOption {
	return func(b *Backend) {
		b.limiter = limiter
		b.limit = cfg
	}
}

// WithEvents records sign-ins and sign-outs.
func WithEvents(rec EventRecorder) BackendOption {
	return func(b *Backend) {
		b.events = rec
	}
}

// WithMetrics counts sign-in outcomes.
func WithMetrics(m *Metrics) BackendOption {
	return func(b *Backend) {
		b.metrics = m
	}
}

// WithClock replaces time.Now for token issuance.
func WithClock(now func() time.Time) BackendOption {
	return func(b *Backend) {
		b.now = now
	}
}

// NewBackend creates a Backend.
func NewBackend(accounts auth.AccountStore, directory Directory, sessions *authsession.Service, issuer *auth.TokenIssuer, opts ...BackendOption) *Backend {
	b := &Backend{
		accounts:  accounts,
		directory: directory,
		sessions:  sessions,
		issuer:    issuer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Routes registers the auth and REST endpoints on mux.
func (b *Backend) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/v1/token", b.handleToken)
	mux.HandleFunc("GET /auth/v1/user", b.handleUser)
	mux.HandleFunc("POST /auth/v1/logout", b.handleLogout)
	mux.HandleFunc("GET /rest/v1/users", b.handleUsers)
	mux.HandleFunc("GET /rest/v1/cars", b.handleCars)
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Aud   string `json:"aud"`
	Role  string `json:"role"`
}

func newUserResponse(u auth.BackendUser) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Aud: "authenticated", Role: "authenticated"}
}

func (b *Backend) handleToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		b.passwordGrant(w, r)
	case "refresh_token":
		b.refreshGrant(w, r)
	default:
		writeAuthError(w, http.StatusBadRequest, "unsupported_grant_type",
			fmt.Sprintf("unsupported grant_type %q", grant))
	}
}

func (b *Backend) passwordGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := LoggerFromContext(ctx)

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "could not parse request body as JSON")
		return
	}
	body.Email = strings.TrimSpace(body.Email)
	if body.Email == "" || body.Password == "" {
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "missing email or password")
		return
	}

	if retryAfter, keyType, throttled := b.throttle(r, body.Email); throttled {
		logger.Warn("sign-in throttled", "key_type", keyType, "retry_after", retryAfter)
		b.countSignIn("password", "throttled")
		if b.metrics != nil {
			b.metrics.ThrottledSignIns.WithLabelValues(string(keyType)).Inc()
		}
		b.record(r, authevent.Event{Type: authevent.TypeSignInThrottle, Email: body.Email, Reason: string(keyType)})
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second)/time.Second)+1))
		writeAuthError(w, http.StatusTooManyRequests, "over_request_rate_limit", "Request rate limit reached")
		return
	}

	acct, err := b.accounts.GetAccountByEmail(ctx, body.Email)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		_, _ = auth.VerifyPassword(body.Password, b.timingHash())
		b.rejectCredentials(w, r, body.Email, "unknown email")
		return
	case err != nil:
		logger.Error("account lookup failed", "error", err)
		b.countSignIn("password", "error")
		writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", "account lookup failed")
		return
	}

	match, err := auth.VerifyPassword(body.Password, acct.PasswordHash)
	if err != nil {
		logger.Error("stored password hash is unusable", "user_id", acct.User.ID, "error", err)
	}
	if !match {
		b.rejectCredentials(w, r, body.Email, "wrong password")
		return
	}

	sess, err := b.sessions.Create(ctx, acct.User)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		b.countSignIn("password", "error")
		writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", "could not create session")
		return
	}
	if !b.issue(w, r, acct.User, sess) {
		return
	}
	if b.limiter != nil {
		b.limiter.Reset(ratelimit.EmailKey(body.Email))
	}
	logger.Info("signed in", "user_id", acct.User.ID, "session_id", sess.ID)
	b.countSignIn("password", "ok")
	b.record(r, authevent.Event{Type: authevent.TypeSignIn, UserID: acct.User.ID, Email: acct.User.Email, SessionID: sess.ID})
}

func (b *Backend) rejectCredentials(w http.ResponseWriter, r *http.Request, email, reason string) {
	LoggerFromContext(r.Context()).Info("sign-in rejected", "reason", reason)
	b.countSignIn("password", "invalid")
	b.record(r, authevent.Event{Type: authevent.TypeSignInFailed, Email: email, Reason: reason})
	writeAuthError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
}

func (b *Backend) refreshGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := LoggerFromContext(ctx)

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "refresh_token is required")
		return
	}

	sess, err := b.sessions.Rotate(ctx, body.RefreshToken)
	if errors.Is(err, authsession.ErrSessionNotFound) {
		b.countSignIn("refresh_token", "invalid")
		writeAuthError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
		return
	}
	if err != nil {
		logger.Error("failed to rotate session", "error", err)
		b.countSignIn("refresh_token", "error")
		writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", "could not refresh session")
		return
	}

	acct, err := b.accounts.GetAccount(ctx, sess.UserID)
	if err != nil {
		// The account was removed under a live session.
		_ = b.sessions.Delete(ctx, sess.ID)
		b.countSignIn("refresh_token", "invalid")
		writeAuthError(w, http.StatusBadRequest, "user_not_found", "User from refresh token not found")
		return
	}
	if !b.issue(w, r, acct.User, sess) {
		return
	}
	b.countSignIn("refresh_token", "ok")
	b.record(r, authevent.Event{Type: authevent.TypeTokenRefresh, UserID: acct.User.ID, SessionID: sess.ID})
}

// issue signs an access token for sess and writes the token response.
func (b *Backend) issue(w http.ResponseWriter, r *http.Request, user auth.BackendUser, sess *authsession.Session) bool {
	now := b.now()
	token, expiresAt, err := b.issuer.Issue(user, sess.ID, now)
	if err != nil {
		LoggerFromContext(r.Context()).Error("failed to issue token", "error", err)
		writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", "could not issue token")
		return false
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  token,
		TokenType:    "bearer",
		ExpiresIn:    int64(b.issuer.TTL() / time.Second),
		ExpiresAt:    expiresAt.Unix(),
		RefreshToken: sess.RefreshToken,
		User:         newUserResponse(user),
	})
	return true
}

// authenticate resolves the bearer token to a live session.
func (b *Backend) authenticate(r *http.Request) (*auth.AccessClaims, *authsession.Session, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, nil, auth.ErrInvalidToken
	}
	claims, err := b.issuer.Verify(token)
	if err != nil {
		return nil, nil, err
	}
	sess, err := b.sessions.Get(r.Context(), claims.SessionID)
	if err != nil {
		return claims, nil, err
	}
	if sess.UserID != claims.Subject {
		return claims, nil, authsession.ErrSessionNotFound
	}
	return claims, sess, nil
}

func (b *Backend) handleUser(w http.ResponseWriter, r *http.Request) {
	claims, _, err := b.authenticate(r)
	switch {
	case errors.Is(err, authsession.ErrSessionNotFound):
		writeAuthError(w, http.StatusForbidden, "session_not_found", "Session from session_id claim in JWT does not exist")
		return
	case err != nil:
		writeAuthError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(auth.BackendUser{ID: claims.Subject, Email: claims.Email}))
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, sess, err := b.authenticate(r)
	switch {
	case errors.Is(err, authsession.ErrSessionNotFound):
		writeAuthError(w, http.StatusNotFound, "session_not_found", "Session not found")
		return
	case err != nil:
		writeAuthError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}
	if err := b.sessions.Delete(r.Context(), sess.ID); err != nil {
		LoggerFromContext(r.Context()).Error("failed to delete session", "error", err)
		writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", "could not end session")
		return
	}
	if b.metrics != nil {
		b.metrics.SessionsRevoked.Inc()
	}
	LoggerFromContext(r.Context()).Info("signed out", "user_id", claims.Subject, "session_id", sess.ID)
	b.record(r, authevent.Event{Type: authevent.TypeSignOut, UserID: claims.Subject, Email: claims.Email, SessionID: sess.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := b.restPreamble(w, r)
	if !ok {
		return
	}
	u, err := b.directory.GetProfile(r.Context(), id)
	switch {
	case errors.Is(err, auth.ErrProfileNotFound):
		writeJSON(w, http.StatusOK, []auth.User{})
	case err != nil:
		LoggerFromContext(r.Context()).Error("profile query failed", "error", err)
		writeRestError(w, http.StatusInternalServerError, "XX000", "profile query failed")
	default:
		writeJSON(w, http.StatusOK, []*auth.User{u})
	}
}

func (b *Backend) handleCars(w http.ResponseWriter, r *http.Request) {
	id, ok := b.restPreamble(w, r)
	if !ok {
		return
	}
	c, err := b.directory.GetCar(r.Context(), id)
	switch {
	case errors.Is(err, vehicle.ErrCarNotFound):
		writeJSON(w, http.StatusOK, []vehicle.Car{})
	case err != nil:
		LoggerFromContext(r.Context()).Error("car query failed", "error", err)
		writeRestError(w, http.StatusInternalServerError, "XX000", "car query failed")
	default:
		writeJSON(w, http.StatusOK, []*vehicle.Car{c})
	}
}

// restPreamble authenticates a REST read and returns its id=eq. filter value.
func (b *Backend) restPreamble(w http.ResponseWriter, r *http.Request) (string, bool) {
	if _, _, err := b.authenticate(r); err != nil {
		writeRestError(w, http.StatusUnauthorized, "PGRST301", "JWT invalid or session ended")
		return "", false
	}
	id, ok := strings.CutPrefix(r.URL.Query().Get("id"), "eq.")
	if !ok || id == "" {
		writeRestError(w, http.StatusBadRequest, "PGRST100", "an id=eq.<value> filter is required")
		return "", false
	}
	return id, true
}

// throttle checks the IP and email buckets. Both are charged.
func (b *Backend) throttle(r *http.Request, email string) (time.Duration, ratelimit.KeyType, bool) {
	if b.limiter == nil {
		return 0, "", false
	}
	ctx := r.Context()
	checks := []struct {
		keyType ratelimit.KeyType
		key     string
	}{
		{ratelimit.KeyTypeIP, ratelimit.FormatKey(ratelimit.KeyTypeIP, ClientIPFromContext(ctx))},
		{ratelimit.KeyTypeEmail, ratelimit.EmailKey(email)},
	}
	for _, c := range checks {
		res, err := b.limiter.Allow(ctx, c.key, b.limit)
		if err != nil {
			// Fail open; the limiter is a convenience for the dev backend.
			LoggerFromContext(ctx).Warn("rate limiter failed", "error", err)
			continue
		}
		if !res.Allowed {
			return res.RetryAfter, c.keyType, true
		}
	}
	return 0, "", false
}

func (b *Backend) timingHash() string {
	b.dummyOnce.Do(func() {
		b.dummyHash, _ = auth.HashPassword("yazcar-unknown-account")
	})
	return b.dummyHash
}

func (b *Backend) countSignIn(grant, outcome string) {
	if b.metrics != nil {
		b.metrics.SignInsTotal.WithLabelValues(grant, outcome).Inc()
	}
}

func (b *Backend) record(r *http.Request, ev authevent.Event) {
	if b.events == nil {
		return
	}
	ev.Timestamp = b.now().UTC()
	ev.RequestID = RequestIDFromContext(r.Context())
	ev.SourceIP = ClientIPFromContext(r.Context())
	ev.UserAgent = r.UserAgent()
	b.events.Record(ev)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAuthError writes an error in the auth service's format.
func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "error_code": code, "msg": msg})
}

// writeRestError writes an error in the REST service's format.
func writeRestError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"code": code, "message": message, "details": nil, "hint": nil})
}
