package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yazcar/yazcarfax/internal/adapter/outbound/memory"
	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/routing"
	"github.com/yazcar/yazcarfax/internal/port/outbound"
)

const testPassword = "correct horse"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture is a gateway over in-memory adapters.
type fixture struct {
	backend *memory.AuthBackend
	dir     *memory.Directory
	kv      *memory.KVStore
	gw      *AuthGateway
}

func newFixture(t *testing.T, opts ...GatewayOption) *fixture {
	t.Helper()
	f := &fixture{
		backend: memory.NewAuthBackend(time.Hour),
		dir:     memory.NewDirectory(),
		kv:      memory.NewKVStore(),
	}
	opts = append([]GatewayOption{WithGatewayLogger(discardLogger())}, opts...)
	f.gw = NewAuthGateway(f.backend, f.dir, f.kv, opts...)
	return f
}

// addUser creates a backend account and, when withProfile is set, its users row.
func (f *fixture) addUser(t *testing.T, id, email string, role auth.Role, withProfile bool) auth.User {
	t.Helper()
	if _, err := f.backend.AddAccount(id, email, testPassword); err != nil {
		t.Fatalf("AddAccount() error = %v", err)
	}
	u := auth.User{
		ID:        id,
		Email:     email,
		Name:      "Test " + string(role),
		Phone:     "555-0100",
		Role:      role,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if withProfile {
		f.dir.PutProfile(u)
	}
	return u
}

// assertCachePair fails when exactly one of the two cache keys is present.
func assertCachePair(t *testing.T, kv outbound.KeyValueStore) {
	t.Helper()
	ctx := context.Background()
	_, hasToken, _ := kv.Get(ctx, KeyAuthToken)
	_, hasUser, _ := kv.Get(ctx, KeyUserData)
	if hasToken != hasUser {
		t.Errorf("cache pair torn: auth_token present=%v, user_data present=%v", hasToken, hasUser)
	}
}

func cacheEmpty(kv outbound.KeyValueStore) bool {
	ctx := context.Background()
	_, hasToken, _ := kv.Get(ctx, KeyAuthToken)
	_, hasUser, _ := kv.Get(ctx, KeyUserData)
	return !hasToken && !hasUser
}

// plainKV hides the batch methods of the wrapped store.
type plainKV struct {
	outbound.KeyValueStore
}

// failingKV fails Set for one key.
type failingKV struct {
	outbound.KeyValueStore
	failKey string
}

func (f failingKV) Set(ctx context.Context, key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.KeyValueStore.Set(ctx, key, value)
}

// blockingBackend blocks SignInWithPassword until released or ctx ends.
type blockingBackend struct {
	auth.Backend
	entered chan struct{}
	release chan struct{}
}

func newBlockingBackend(inner auth.Backend) *blockingBackend {
	return &blockingBackend{
		Backend: inner,
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (b *blockingBackend) SignInWithPassword(ctx context.Context, email, password string) (*auth.BackendSession, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return b.Backend.SignInWithPassword(ctx, email, password)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// panickingDirectory panics on every lookup.
type panickingDirectory struct{}

func (panickingDirectory) GetProfile(context.Context, string) (*auth.User, error) {
	panic("directory exploded")
}

// recordingNavigator is a ready navigator that records every route.
type recordingNavigator struct {
	ready chan struct{}

	mu     sync.Mutex
	routes []routing.Route
	fail   routing.Route
}

func newRecordingNavigator() *recordingNavigator {
	n := &recordingNavigator{ready: make(chan struct{})}
	close(n.ready)
	return n
}

func (n *recordingNavigator) Ready() <-chan struct{} { return n.ready }

func (n *recordingNavigator) Navigate(_ context.Context, r routing.Route) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if r == n.fail {
		return errors.New("screen failed to mount")
	}
	n.routes = append(n.routes, r)
	return nil
}

func (n *recordingNavigator) last() routing.Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

func (n *recordingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.routes)
}
