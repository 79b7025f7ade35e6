package supabase

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeGoTrue serves the GoTrue and PostgREST endpoints the clients use.
type fakeGoTrue struct {
	t *testing.T

	mu        sync.Mutex
	password  string
	access    string
	refresh   string
	expiresIn int64
	revoked   bool
	down      bool
	hits      map[string]int
	users     map[string]string // id -> JSON row
	cars      map[string]string // id -> JSON row
	lastAuth  string
}

func newFakeGoTrue(t *testing.T) (*fakeGoTrue, *httptest.Server) {
	f := &fakeGoTrue{
		t:         t,
		password:  "hunter22",
		access:    "access-1",
		refresh:   "refresh-1",
		expiresIn: 3600,
		hits:      make(map[string]int),
		users:     make(map[string]string),
		cars:      make(map[string]string),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGoTrue) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

func (f *fakeGoTrue) authHeader() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *fakeGoTrue) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeGoTrue) revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeGoTrue) tokenBody() map[string]any {
	return map[string]any{
		"access_token":  f.access,
		"token_type":    "bearer",
		"expires_in":    f.expiresIn,
		"refresh_token": f.refresh,
		"user":          map[string]string{"id": "u-1", "email": "admin@yazcar.test"},
	}
}

func (f *fakeGoTrue) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	if gt := r.URL.Query().Get("grant_type"); gt != "" {
		key += "?" + gt
	}
	f.hits[key]++
	f.lastAuth = r.Header.Get("Authorization")

	if r.Header.Get("apikey") != "anon" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "no api key"})
		return
	}
	if f.down {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "maintenance"})
		return
	}
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	switch key {
	case "POST /auth/v1/token?password":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "throttled@yazcar.test" {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"code": 429, "msg": "slow down"})
			return
		}
		if body["password"] != f.password {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid_grant", "error_description": "Invalid login credentials",
			})
			return
		}
		f.revoked = false
		writeJSON(w, http.StatusOK, f.tokenBody())
	case "POST /auth/v1/token?refresh_token":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.revoked || body["refresh_token"] != f.refresh {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid_grant", "error_description": "Invalid Refresh Token",
			})
			return
		}
		f.access = "access-refreshed"
		f.refresh = "refresh-2"
		f.expiresIn = 3600
		writeJSON(w, http.StatusOK, f.tokenBody())
	case "GET /auth/v1/user":
		if f.revoked || bearer != f.access {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "u-1", "email": "admin@yazcar.test"})
	case "POST /auth/v1/logout":
		f.revoked = true
		w.WriteHeader(http.StatusNoContent)
	case "GET /rest/v1/users":
		f.serveRows(w, r, f.users)
	case "GET /rest/v1/cars":
		f.serveRows(w, r, f.cars)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no route " + key})
	}
}

func (f *fakeGoTrue) serveRows(w http.ResponseWriter, r *http.Request, table map[string]string) {
	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
	if strings.HasPrefix(id, "bad") {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code": "22P02", "message": "invalid input syntax for type uuid",
		})
		return
	}
	row, ok := table[id]
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = w.Write([]byte("[]"))
		return
	}
	_, _ = w.Write([]byte("[" + row + "]"))
}

// fixedClock returns a clock that can be advanced by tests.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
