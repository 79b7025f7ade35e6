package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/yazcar/yazcarfax/internal/domain/routing"
	"github.com/yazcar/yazcarfax/internal/domain/session"
)

// SessionManager is the session context of one running client. It owns the
// session store, keeps the routing gate attached to it and turns gateway
// results into store mutations.
type SessionManager struct {
	gateway *AuthGateway
	store   *session.Store
	gate    *routing.Gate
	logger  *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	detach    func()
	closeOnce sync.Once
}

// NewSessionManager wires the store to the gate. Call Close to detach.
func NewSessionManager(gateway *AuthGateway, store *session.Store, gate *routing.Gate, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &SessionManager{
		gateway: gateway,
		store:   store,
		gate:    gate,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	m.detach = gate.Attach(ctx, store)
	return m
}

// Store returns the session store.
func (m *SessionManager) Store() *session.Store {
	return m.store
}

// Gate returns the routing gate.
func (m *SessionManager) Gate() *routing.Gate {
	return m.gate
}

// Launch runs the cold-start check, hydrates the store and routes. The gate
// is evaluated even when the store did not change, so a signed-out launch
// still lands on the login screen. A failed check routes as signed out and
// returns the error.
func (m *SessionManager) Launch(ctx context.Context) (AuthStatus, error) {
	status, err := m.gateway.CheckAuthStatus(ctx)
	if err != nil {
		m.logger.Warn("auth status check failed, starting signed out", "error", err)
	}

	if status.IsAuthenticated {
		var token string
		if status.Session != nil {
			token = status.Session.AccessToken
		}
		m.store.SignedIn(status.User, token, status.Session)
	} else {
		m.store.Reset()
	}

	if gateErr := m.route(ctx); gateErr != nil {
		err = errors.Join(err, gateErr)
	}
	return status, err
}

// Login signs in and, on success, records the identity in the store, which
// routes through the attached gate. On failure the store is untouched.
func (m *SessionManager) Login(ctx context.Context, email, password string, rememberMe bool) (*SignInResult, error) {
	res, err := m.gateway.SignIn(ctx, email, password, rememberMe)
	if err != nil {
		return nil, err
	}
	m.store.SignedIn(res.User, res.Session.AccessToken, res.Session)
	return res, m.route(ctx)
}

// Logout signs out and resets the store whatever the backend said. The
// returned error is informational.
func (m *SessionManager) Logout(ctx context.Context) error {
	err := m.gateway.SignOut(ctx)
	m.store.Reset()
	// A store that was already empty does not notify.
	if gateErr := m.route(ctx); gateErr != nil {
		err = errors.Join(err, gateErr)
	}
	return err
}

// Close detaches the gate and tears the store down. Safe to call more than once.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		m.detach()
		m.cancel()
		m.store.Close()
	})
}

// route evaluates the gate for the current state. The attached observer
// usually fired already, in which case Evaluate is a no-op and the gate's
// section tells whether that navigation failed.
func (m *SessionManager) route(ctx context.Context) error {
	if _, err := m.gate.Evaluate(ctx, m.store.Snapshot()); err != nil {
		return err
	}
	if m.gate.Section() == routing.SectionFailed {
		return routing.ErrRoutingFailure
	}
	return nil
}
