package session

import (
	"sync"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

// Observer is called with the new state after every change.
// Observers run synchronously on the mutating goroutine, outside the store lock.
type Observer func(State)

// Store is the mutex-protected session state.
type Store struct {
	mu        sync.RWMutex
	state     State
	observers map[uint64]Observer
	nextID    uint64
	closed    bool
}

// NewStore creates an empty, signed-out store.
func NewStore() *Store {
	return &Store{observers: make(map[uint64]Observer)}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// SetUser replaces the signed-in user. A nil user signs the session out of
// the UI but leaves token and session untouched; use Reset for a full clear.
func (s *Store) SetUser(u *auth.User) {
	s.update(func(st *State) {
		st.User = copyUser(u)
	})
}

// SetToken replaces the bearer token.
func (s *Store) SetToken(token string) {
	s.update(func(st *State) {
		st.Token = token
	})
}

// SetSession replaces the backend session object.
func (s *Store) SetSession(sess *auth.BackendSession) {
	s.update(func(st *State) {
		st.Session = copyBackendSession(sess)
	})
}

// SignedIn sets user, token and session in one step.
func (s *Store) SignedIn(u *auth.User, token string, sess *auth.BackendSession) {
	s.update(func(st *State) {
		st.User = copyUser(u)
		st.Token = token
		st.Session = copyBackendSession(sess)
	})
}

// Reset clears user, token and session together.
func (s *Store) Reset() {
	s.update(func(st *State) {
		*st = State{}
	})
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Subscribing to a closed store is a no-op.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fn == nil {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Close resets the state and drops every observer. Observers are not
// notified of the final reset. Safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
	s.observers = make(map[uint64]Observer)
	s.closed = true
}

// update applies fn under the write lock and notifies observers when the
// state actually changed.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	before := s.state
	fn(&s.state)
	if before.equal(s.state) {
		s.mu.Unlock()
		return
	}
	snapshot := s.state.clone()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(snapshot)
	}
}

func copyUser(u *auth.User) *auth.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func copyBackendSession(sess *auth.BackendSession) *auth.BackendSession {
	if sess == nil {
		return nil
	}
	c := *sess
	return &c
}
