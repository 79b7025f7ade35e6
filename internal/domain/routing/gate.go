package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/session"
)

// ErrRoutingFailure is returned when the landing route could not be resolved
// or navigated to. The gate has already shown RouteError when it is returned.
var ErrRoutingFailure = errors.New("routing failure")

// Navigator is the host navigation stack.
type Navigator interface {
	// Ready is closed once the stack is mounted and can accept navigation.
	Ready() <-chan struct{}
	// Navigate replaces the current screen with route.
	Navigate(ctx context.Context, route Route) error
}

// ResolveFunc maps authentication state and role to a route.
type ResolveFunc func(isAuthenticated bool, role auth.Role) Route

// Gate fires exactly one navigation per distinct session state.
type Gate struct {
	nav     Navigator
	resolve ResolveFunc
	logger  *slog.Logger

	mu       sync.Mutex
	last     uint64
	fired    bool
	section  Section
	location Route
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLogger sets the logger used for routing decisions.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithResolver replaces the route table.
func WithResolver(fn ResolveFunc) GateOption {
	return func(g *Gate) {
		g.resolve = fn
	}
}

// NewGate creates a gate in the Unresolved state.
func NewGate(nav Navigator, opts ...GateOption) *Gate {
	g := &Gate{
		nav:     nav,
		resolve: Resolve,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Section returns the current gate state.
func (g *Gate) Section() Section {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.section
}

// Location returns the last route the gate navigated to.
func (g *Gate) Location() Route {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.location
}

// Evaluate resolves the landing route for st and navigates to it.
// It blocks until the navigator is ready or ctx is done. fired is false when
// st resolves to the same identity the gate last fired for.
func (g *Gate) Evaluate(ctx context.Context, st session.State) (fired bool, err error) {
	select {
	case <-g.nav.Ready():
	case <-ctx.Done():
		return false, ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	fp := fingerprint(st)
	if g.fired && fp == g.last {
		g.logger.Debug("routing gate suppressed duplicate fire", "section", g.section)
		return false, nil
	}
	g.last = fp
	g.fired = true

	route, err := g.safeResolve(st)
	if err == nil {
		err = g.nav.Navigate(ctx, route)
	}
	if err != nil {
		g.logger.Error("routing gate failed", "error", err, "authenticated", st.IsAuthenticated())
		g.section = SectionFailed
		g.location = RouteError
		if navErr := g.nav.Navigate(ctx, RouteError); navErr != nil {
			g.logger.Error("failed to show error screen", "error", navErr)
		}
		return true, fmt.Errorf("%w: %v", ErrRoutingFailure, err)
	}

	g.section = sectionOf(route)
	g.location = route
	g.logger.Info("routing gate fired", "route", route, "section", g.section)
	return true, nil
}

// Attach evaluates the gate on every store change until ctx is done or the
// returned function is called. Observers run inside store mutations, so a
// change made before the navigator is ready is skipped and left to the next
// explicit Evaluate.
func (g *Gate) Attach(ctx context.Context, store *session.Store) (detach func()) {
	return store.Subscribe(func(st session.State) {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-g.nav.Ready():
		default:
			g.logger.Debug("routing gate skipped change, navigator not ready")
			return
		}
		// Errors are logged by Evaluate and surfaced on the error screen.
		_, _ = g.Evaluate(ctx, st)
	})
}

func (g *Gate) safeResolve(st session.State) (route Route, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic resolving route: %v", r)
		}
	}()
	return g.resolve(st.IsAuthenticated(), st.Role()), nil
}

// fingerprint identifies the routing-relevant part of a session state.
func fingerprint(st session.State) uint64 {
	h := xxhash.New()
	if st.IsAuthenticated() {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.WriteString(string(st.Role()))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(st.UserID())
	return h.Sum64()
}
