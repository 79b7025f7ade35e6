package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/session"
)

// fakeNavigator records navigations and can be made to fail.
type fakeNavigator struct {
	ready chan struct{}

	mu      sync.Mutex
	routes  []Route
	failFor Route
}

func newFakeNavigator(ready bool) *fakeNavigator {
	n := &fakeNavigator{ready: make(chan struct{})}
	if ready {
		close(n.ready)
	}
	return n
}

func (n *fakeNavigator) Ready() <-chan struct{} { return n.ready }

func (n *fakeNavigator) Navigate(_ context.Context, route Route) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if route == n.failFor {
		return errors.New("navigation stack rejected route")
	}
	n.routes = append(n.routes, route)
	return nil
}

func (n *fakeNavigator) history() []Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Route, len(n.routes))
	copy(out, n.routes)
	return out
}

func signedIn(id string, role auth.Role) session.State {
	return session.State{User: &auth.User{ID: id, Role: role}, Token: "tok"}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		authenticated bool
		role          auth.Role
		want          Route
	}{
		{"signed out", false, auth.RoleUnknown, RouteLogin},
		{"signed out ignores role", false, auth.RoleAdmin, RouteLogin},
		{"admin", true, auth.RoleAdmin, RouteAdminDashboard},
		{"shop owner", true, auth.RoleShopOwner, RouteShopDashboard},
		{"customer", true, auth.RoleCustomer, RouteCustomerDashboard},
		{"unknown role fails closed", true, auth.RoleUnknown, RouteLogin},
		{"uncanonicalized role fails closed", true, auth.Role("mechanic"), RouteLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.authenticated, tt.role); got != tt.want {
				t.Errorf("Resolve(%v, %q) = %q, want %q", tt.authenticated, tt.role, got, tt.want)
			}
		})
	}
}

func TestResolve_LegacyShopRole(t *testing.T) {
	role, _ := auth.ParseRole("shop")
	if got := Resolve(true, role); got != RouteShopDashboard {
		t.Errorf("Resolve(true, shop) = %q, want %q", got, RouteShopDashboard)
	}
}

func TestGate_FiresOncePerStateChange(t *testing.T) {
	t.Parallel()

	nav := newFakeNavigator(true)
	g := NewGate(nav)
	ctx := context.Background()

	steps := []struct {
		state     session.State
		wantFired bool
	}{
		{session.State{}, true},
		{session.State{}, false},
		{signedIn("u1", auth.RoleAdmin), true},
		{signedIn("u1", auth.RoleAdmin), false},
		{signedIn("u2", auth.RoleAdmin), true},
		{session.State{}, true},
	}
	for i, step := range steps {
		fired, err := g.Evaluate(ctx, step.state)
		if err != nil {
			t.Fatalf("step %d: Evaluate() error = %v", i, err)
		}
		if fired != step.wantFired {
			t.Errorf("step %d: fired = %v, want %v", i, fired, step.wantFired)
		}
	}

	want := []Route{RouteLogin, RouteAdminDashboard, RouteAdminDashboard, RouteLogin}
	got := nav.history()
	if len(got) != len(want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if g.Section() != SectionLoggedOut {
		t.Errorf("Section() = %v, want %v", g.Section(), SectionLoggedOut)
	}
}

func TestGate_UnknownRoleGoesToLogin(t *testing.T) {
	t.Parallel()

	nav := newFakeNavigator(true)
	g := NewGate(nav)

	if _, err := g.Evaluate(context.Background(), signedIn("u1", auth.RoleUnknown)); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if g.Location() != RouteLogin {
		t.Errorf("Location() = %q, want %q", g.Location(), RouteLogin)
	}
}

func TestGate_WaitsForNavigatorReady(t *testing.T) {
	t.Parallel()

	nav := newFakeNavigator(false)
	g := NewGate(nav)

	done := make(chan error, 1)
	go func() {
		_, err := g.Evaluate(context.Background(), signedIn("u1", auth.RoleCustomer))
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("Evaluate() returned before the navigator was ready")
	case <-time.After(20 * time.Millisecond):
	}
	if len(nav.history()) != 0 {
		t.Fatal("navigated before the navigator was ready")
	}

	close(nav.ready)
	if err := <-done; err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got := nav.history(); len(got) != 1 || got[0] != RouteCustomerDashboard {
		t.Errorf("history = %v, want [%s]", got, RouteCustomerDashboard)
	}
}

func TestGate_ContextCancelledBeforeReady(t *testing.T) {
	t.Parallel()

	g := NewGate(newFakeNavigator(false))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fired, err := g.Evaluate(ctx, session.State{})
	if fired || !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() = (%v, %v), want (false, context.Canceled)", fired, err)
	}
	if g.Section() != SectionUnresolved {
		t.Errorf("Section() = %v, want %v", g.Section(), SectionUnresolved)
	}
}

func TestGate_PanicShowsErrorScreen(t *testing.T) {
	t.Parallel()

	nav := newFakeNavigator(true)
	g := NewGate(nav, WithResolver(func(bool, auth.Role) Route {
		panic("role table exploded")
	}))

	fired, err := g.Evaluate(context.Background(), signedIn("u1", auth.RoleAdmin))
	if !fired || !errors.Is(err, ErrRoutingFailure) {
		t.Fatalf("Evaluate() = (%v, %v), want (true, ErrRoutingFailure)", fired, err)
	}
	if got := nav.history(); len(got) != 1 || got[0] != RouteError {
		t.Errorf("history = %v, want [%s]", got, RouteError)
	}
	if g.Section() != SectionFailed {
		t.Errorf("Section() = %v, want %v", g.Section(), SectionFailed)
	}

	// Re-evaluating the same state must not loop back through the error screen.
	fired, err = g.Evaluate(context.Background(), signedIn("u1", auth.RoleAdmin))
	if fired || err != nil {
		t.Errorf("second Evaluate() = (%v, %v), want (false, nil)", fired, err)
	}
	if len(nav.history()) != 1 {
		t.Errorf("history = %v, want a single error navigation", nav.history())
	}
}

func TestGate_NavigateFailureShowsErrorScreen(t *testing.T) {
	t.Parallel()

	nav := newFakeNavigator(true)
	nav.failFor = RouteShopDashboard
	g := NewGate(nav)

	_, err := g.Evaluate(context.Background(), signedIn("u1", auth.RoleShopOwner))
	if !errors.Is(err, ErrRoutingFailure) {
		t.Fatalf("Evaluate() error = %v, want ErrRoutingFailure", err)
	}
	if g.Location() != RouteError {
		t.Errorf("Location() = %q, want %q", g.Location(), RouteError)
	}
}

func TestGate_AttachFollowsStore(t *testing.T) {
	t.Parallel()

	nav := newFakeNavigator(true)
	g := NewGate(nav)
	store := session.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	detach := g.Attach(ctx, store)
	store.SignedIn(&auth.User{ID: "u1", Role: auth.RoleShopOwner}, "tok", nil)
	store.SetToken("tok-2") // same identity, no new fire
	store.Reset()

	want := []Route{RouteShopDashboard, RouteLogin}
	got := nav.history()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("history = %v, want %v", got, want)
	}

	detach()
	store.SignedIn(&auth.User{ID: "u1", Role: auth.RoleAdmin}, "tok", nil)
	if len(nav.history()) != 2 {
		t.Errorf("gate fired after detach: %v", nav.history())
	}
}

func TestGate_AttachDoesNotBlockBeforeReady(t *testing.T) {
	t.Parallel()

	nav := newFakeNavigator(false)
	g := NewGate(nav)
	store := session.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer g.Attach(ctx, store)()

	done := make(chan struct{})
	go func() {
		store.SignedIn(&auth.User{ID: "u1", Role: auth.RoleCustomer}, "tok", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("store mutation blocked on an unmounted navigator")
	}
	if len(nav.history()) != 0 {
		t.Fatalf("navigated before the navigator was ready: %v", nav.history())
	}

	close(nav.ready)
	fired, err := g.Evaluate(ctx, store.Snapshot())
	if !fired || err != nil {
		t.Fatalf("Evaluate() = (%v, %v), want (true, nil)", fired, err)
	}
	if got := nav.history(); len(got) != 1 || got[0] != RouteCustomerDashboard {
		t.Errorf("history = %v, want [%s]", got, RouteCustomerDashboard)
	}
}
