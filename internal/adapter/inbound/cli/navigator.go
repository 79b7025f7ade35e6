// Package cli renders the client's screens on a terminal.
package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/yazcar/yazcarfax/internal/domain/routing"
)

// screen is what a route shows.
type screen struct {
	title string
	hint  string
}

var screens = map[routing.Route]screen{
	routing.RouteLogin:             {"Sign in", "run `yazcar login` to sign in"},
	routing.RouteAdminDashboard:    {"Admin dashboard", "run `yazcar scan` to look a car up"},
	routing.RouteShopDashboard:     {"Shop dashboard", "run `yazcar scan` to look a car up"},
	routing.RouteCustomerDashboard: {"Customer dashboard", "your cars are listed in the mobile app"},
	routing.RouteError:             {"Something went wrong", "run `yazcar logout` to start over"},
}

// Navigator prints one screen per navigation. It accepts navigation once
// Mount has been called.
type Navigator struct {
	out   io.Writer
	ready chan struct{}
	once  sync.Once

	mu      sync.Mutex
	current routing.Route
	history []routing.Route
}

// NewNavigator creates an unmounted Navigator writing to out.
func NewNavigator(out io.Writer) *Navigator {
	return &Navigator{out: out, ready: make(chan struct{})}
}

// Mount marks the terminal ready. Safe to call more than once.
func (n *Navigator) Mount() {
	n.once.Do(func() { close(n.ready) })
}

// Ready implements routing.Navigator.
func (n *Navigator) Ready() <-chan struct{} {
	return n.ready
}

// Navigate implements routing.Navigator.
func (n *Navigator) Navigate(ctx context.Context, route routing.Route) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, ok := screens[route]
	if !ok {
		return fmt.Errorf("no screen for route %q", route)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.out, "── %s (%s)\n   %s\n", s.title, route, s.hint); err != nil {
		return fmt.Errorf("render %s: %w", route, err)
	}
	n.current = route
	n.history = append(n.history, route)
	return nil
}

// Current returns the route on screen, or "" before the first navigation.
func (n *Navigator) Current() routing.Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// History returns every route navigated to, oldest first.
func (n *Navigator) History() []routing.Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]routing.Route, len(n.history))
	copy(out, n.history)
	return out
}

var _ routing.Navigator = (*Navigator)(nil)
