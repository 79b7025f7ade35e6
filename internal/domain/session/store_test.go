package session

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

func testUser() *auth.User {
	return &auth.User{
		ID:        "user-1",
		Email:     "admin@yazcar.test",
		Name:      "Ada Admin",
		Role:      auth.RoleAdmin,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func testBackendSession() *auth.BackendSession {
	return &auth.BackendSession{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "bearer",
		ExpiresAt:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		User:         auth.BackendUser{ID: "user-1", Email: "admin@yazcar.test"},
	}
}

func TestStore_NewIsSignedOut(t *testing.T) {
	t.Parallel()

	st := NewStore().Snapshot()
	if st.IsAuthenticated() {
		t.Error("IsAuthenticated() = true on a new store")
	}
	if st.Token != "" || st.Session != nil || st.User != nil {
		t.Errorf("Snapshot() = %+v, want zero state", st)
	}
	if st.Role() != auth.RoleUnknown {
		t.Errorf("Role() = %q, want RoleUnknown", st.Role())
	}
}

func TestStore_SignedInAndReset(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.SignedIn(testUser(), "access-1", testBackendSession())

	want := State{User: testUser(), Token: "access-1", Session: testBackendSession()}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Errorf("Snapshot() after SignedIn mismatch (-want +got):\n%s", diff)
	}
	if !s.Snapshot().IsAuthenticated() {
		t.Error("IsAuthenticated() = false after SignedIn")
	}

	s.Reset()
	if diff := cmp.Diff(State{}, s.Snapshot()); diff != "" {
		t.Errorf("Snapshot() after Reset mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	s := NewStore()
	u := testUser()
	s.SetUser(u)

	// Mutating the caller's value or a snapshot must not leak into the store.
	u.Name = "changed"
	snap := s.Snapshot()
	snap.User.Role = auth.RoleCustomer

	got := s.Snapshot()
	if got.User.Name != "Ada Admin" || got.User.Role != auth.RoleAdmin {
		t.Errorf("store state was mutated through an alias: %+v", got.User)
	}
}

func TestStore_SubscribeNotifiesOnChangeOnly(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var got []State
	unsubscribe := s.Subscribe(func(st State) { got = append(got, st) })

	s.SignedIn(testUser(), "access-1", testBackendSession())
	s.SignedIn(testUser(), "access-1", testBackendSession()) // no change
	s.SetToken("access-2")
	s.Reset()
	s.Reset() // no change

	if len(got) != 3 {
		t.Fatalf("observer called %d times, want 3", len(got))
	}
	if !got[0].IsAuthenticated() || got[1].Token != "access-2" || got[2].IsAuthenticated() {
		t.Errorf("unexpected notification sequence: %+v", got)
	}

	unsubscribe()
	unsubscribe()
	s.SetToken("access-3")
	if len(got) != 3 {
		t.Errorf("observer called after unsubscribe")
	}
}

func TestStore_CloseDropsObservers(t *testing.T) {
	t.Parallel()

	s := NewStore()
	calls := 0
	s.Subscribe(func(State) { calls++ })
	s.SignedIn(testUser(), "t", nil)

	s.Close()
	s.Close()
	if s.Snapshot().IsAuthenticated() {
		t.Error("Close() left the store authenticated")
	}

	s.SignedIn(testUser(), "t", nil)
	s.Subscribe(func(State) { calls++ })
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if s.Snapshot().IsAuthenticated() {
		t.Error("closed store accepted a mutation")
	}
}

// TestStore_AuthenticatedMatchesUser drives random mutations from several
// goroutines and checks that every observed state satisfies
// IsAuthenticated() == (User != nil) and that Reset never leaves a partial clear.
func TestStore_AuthenticatedMatchesUser(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var mu sync.Mutex
	var violations []State
	check := func(st State) {
		// SignedIn always writes the session together with the user, so a
		// session without a token can only come from a torn Reset.
		torn := st.Session != nil && st.Token == ""
		if st.IsAuthenticated() != (st.User != nil) || torn {
			mu.Lock()
			violations = append(violations, st)
			mu.Unlock()
		}
	}
	s.Subscribe(check)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				switch r.Intn(5) {
				case 0:
					s.SignedIn(testUser(), "access-1", testBackendSession())
				case 1:
					s.Reset()
				case 2:
					s.SetUser(nil)
				case 3:
					s.SetToken("orphan-token")
				case 4:
					check(s.Snapshot())
				}
			}
		}(int64(g))
	}
	wg.Wait()

	if len(violations) > 0 {
		t.Errorf("found %d states violating the invariant, first: %+v", len(violations), violations[0])
	}
}
