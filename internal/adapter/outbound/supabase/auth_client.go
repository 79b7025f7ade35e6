package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/port/outbound"
)

// SessionStorageKey is the key the backend session is persisted under.
const SessionStorageKey = "sb-auth-token"

// refreshMargin is how close to expiry an access token is refreshed early.
const refreshMargin = 30 * time.Second

// AuthClient implements auth.Backend against a GoTrue endpoint.
// The current session is kept in memory and, when persistence is on,
// mirrored to the key-value store so it survives restarts.
type AuthClient struct {
	client
	storage outbound.KeyValueStore
	now     func() time.Time

	mu        sync.Mutex
	current   *auth.BackendSession
	loaded    bool // storage has been consulted
	validated bool // current was confirmed by the server in this process
	persist   bool
}

// NewAuthClient creates an AuthClient. storage may be nil, in which case
// sessions never outlive the process.
func NewAuthClient(baseURL, anonKey string, storage outbound.KeyValueStore, opts ...ClientOption) *AuthClient {
	return &AuthClient{
		client:  newClient(baseURL, anonKey, opts...),
		storage: storage,
		now:     time.Now,
		persist: true,
	}
}

// PersistSession controls whether the next session is written to storage.
func (a *AuthClient) PersistSession(persist bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.persist = persist
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

func (t tokenResponse) session(now time.Time) *auth.BackendSession {
	sess := &auth.BackendSession{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		User:         auth.BackendUser{ID: t.User.ID, Email: t.User.Email},
	}
	switch {
	case t.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		sess.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	default:
		if exp, ok := auth.TokenExpiry(t.AccessToken); ok {
			sess.ExpiresAt = exp.UTC()
		}
	}
	return sess
}

// SignInWithPassword exchanges credentials for a session.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*auth.BackendSession, error) {
	var tr tokenResponse
	err := a.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &tr)
	if err != nil {
		return nil, signInError(err)
	}
	if tr.AccessToken == "" || tr.User.ID == "" {
		return nil, fmt.Errorf("%w: sign-in response without session", auth.ErrNetwork)
	}

	sess := tr.session(a.now())
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loaded = true
	a.setLocked(ctx, sess)
	c := *sess
	return &c, nil
}

func signInError(err error) error {
	switch statusOf(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %v", auth.ErrInvalidCredentials, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", auth.ErrRateLimited, err)
	}
	return asNetwork(err)
}

// SignOut revokes the current session. The local session is dropped first,
// so the client is signed out even when the server cannot be reached.
func (a *AuthClient) SignOut(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	sess := a.loadLocked(ctx)
	a.clearLocked(ctx)
	if sess == nil {
		return nil
	}

	err := a.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		query:  url.Values{"scope": {"local"}},
		bearer: sess.AccessToken,
	}, nil)
	switch statusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		// Already revoked or expired on the server.
		return nil
	}
	if err != nil {
		return fmt.Errorf("sign out: %w", asNetwork(err))
	}
	return nil
}

// GetSession returns the current session, refreshing it when the access
// token is about to expire. A session restored from storage is confirmed
// with the server once per process; a revoked session yields nil.
func (a *AuthClient) GetSession(ctx context.Context) (*auth.BackendSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sess := a.loadLocked(ctx)
	if sess == nil {
		return nil, nil
	}
	if !sess.ExpiresAt.IsZero() && a.now().Add(refreshMargin).After(sess.ExpiresAt) {
		return a.refreshLocked(ctx, sess)
	}

	if !a.validated {
		var u userResponse
		err := a.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", bearer: sess.AccessToken}, &u)
		switch {
		case err == nil:
			a.validated = true
			if u.ID != "" {
				sess.User = auth.BackendUser{ID: u.ID, Email: u.Email}
			}
		case statusOf(err) == http.StatusUnauthorized || statusOf(err) == http.StatusForbidden:
			return a.refreshLocked(ctx, sess)
		default:
			return nil, fmt.Errorf("get session: %w", asNetwork(err))
		}
	}

	c := *sess
	return &c, nil
}

// AccessToken returns the bearer token of the current session, or "" when
// signed out. It is the token source of RestClient.
func (a *AuthClient) AccessToken(ctx context.Context) (string, error) {
	sess, err := a.GetSession(ctx)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.AccessToken, nil
}

func (a *AuthClient) refreshLocked(ctx context.Context, sess *auth.BackendSession) (*auth.BackendSession, error) {
	if sess.RefreshToken == "" {
		a.clearLocked(ctx)
		return nil, nil
	}

	var tr tokenResponse
	err := a.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": sess.RefreshToken},
	}, &tr)
	if err != nil {
		switch statusOf(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			a.logger.Info("stored session was rejected, signing out locally", "status", statusOf(err))
			a.clearLocked(ctx)
			return nil, nil
		}
		return nil, fmt.Errorf("refresh session: %w", asNetwork(err))
	}

	next := tr.session(a.now())
	if next.User.ID == "" {
		next.User = sess.User
	}
	a.setLocked(ctx, next)
	a.validated = true
	a.logger.Debug("refreshed backend session", "user_id", next.User.ID, "expires_at", next.ExpiresAt)
	c := *next
	return &c, nil
}

// loadLocked returns the current session, reading storage on first use.
func (a *AuthClient) loadLocked(ctx context.Context) *auth.BackendSession {
	if a.loaded {
		return a.current
	}
	a.loaded = true
	if a.storage == nil {
		return nil
	}

	raw, ok, err := a.storage.Get(ctx, SessionStorageKey)
	if err != nil {
		a.logger.Warn("failed to read stored session", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var sess auth.BackendSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.AccessToken == "" {
		a.logger.Warn("discarding unreadable stored session", "error", err)
		_ = a.storage.Remove(ctx, SessionStorageKey)
		return nil
	}
	a.current = &sess
	a.validated = false
	return a.current
}

func (a *AuthClient) setLocked(ctx context.Context, sess *auth.BackendSession) {
	a.current = sess
	a.validated = true
	if a.storage == nil {
		return
	}
	if !a.persist {
		if err := a.storage.Remove(ctx, SessionStorageKey); err != nil {
			a.logger.Warn("failed to drop stored session", "error", err)
		}
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		a.logger.Warn("failed to encode session", "error", err)
		return
	}
	if err := a.storage.Set(ctx, SessionStorageKey, string(data)); err != nil {
		a.logger.Warn("failed to persist session", "error", err)
	}
}

func (a *AuthClient) clearLocked(ctx context.Context) {
	a.current = nil
	a.validated = false
	if a.storage == nil {
		return
	}
	if err := a.storage.Remove(ctx, SessionStorageKey); err != nil {
		a.logger.Warn("failed to remove stored session", "error", err)
	}
}

// asNetwork tags err as a transport failure unless it already is one or
// the caller gave up.
func asNetwork(err error) error {
	if err == nil || errors.Is(err, auth.ErrNetwork) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", auth.ErrNetwork, err)
}

var (
	_ auth.Backend          = (*AuthClient)(nil)
	_ auth.SessionPersister = (*AuthClient)(nil)
)
