package supabase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
)

func TestRestClient_GetProfile(t *testing.T) {
	fake, srv := newFakeGoTrue(t)
	fake.users["u-1"] = `{"id":"u-1","email":"owner@yazcar.test","name":"Sam Shop","phone":null,
		"role":"shop","shop_id":null,"created_at":"2024-05-06T07:08:09.123456"}`

	tokens := func(context.Context) (string, error) { return "user-jwt", nil }
	r := NewRestClient(srv.URL, "anon", tokens)
	ctx := context.Background()

	u, err := r.GetProfile(ctx, "u-1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if u.Role != auth.RoleShopOwner || u.Name != "Sam Shop" || u.Phone != "" {
		t.Errorf("GetProfile() = %+v", u)
	}
	if want := time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.UTC); !u.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", u.CreatedAt, want)
	}
	if fake.authHeader() != "Bearer user-jwt" {
		t.Errorf("Authorization = %q, want the session token", fake.authHeader())
	}

	if _, err := r.GetProfile(ctx, "u-missing"); !errors.Is(err, auth.ErrProfileNotFound) {
		t.Errorf("GetProfile(missing) error = %v, want ErrProfileNotFound", err)
	}
	if _, err := r.GetProfile(ctx, "bad-uuid"); !errors.Is(err, auth.ErrProfileNotFound) {
		t.Errorf("GetProfile(bad-uuid) error = %v, want ErrProfileNotFound", err)
	}
}

func TestRestClient_UnknownRoleDecodes(t *testing.T) {
	fake, srv := newFakeGoTrue(t)
	fake.users["u-2"] = `{"id":"u-2","role":"mechanic","created_at":"2024-05-06T07:08:09Z"}`

	u, err := NewRestClient(srv.URL, "anon", nil).GetProfile(context.Background(), "u-2")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if u.Role != auth.RoleUnknown {
		t.Errorf("Role = %q, want RoleUnknown", u.Role)
	}
	if fake.authHeader() != "Bearer anon" {
		t.Errorf("Authorization = %q, want the anon key", fake.authHeader())
	}
}

func TestRestClient_GetCar(t *testing.T) {
	fake, srv := newFakeGoTrue(t)
	fake.cars["c-1"] = `{"id":"c-1","make":"Toyota","model":"Corolla","year":2019,"plate_number":"34 ABC 12",
		"customer_id":"u-3","shop_id":null,"created_at":"2024-01-01T00:00:00+00:00",
		"customer":{"id":"u-3","name":"Cem Customer","phone":"555-0101"}}`
	r := NewRestClient(srv.URL, "anon", nil)
	ctx := context.Background()

	c, err := r.GetCar(ctx, "c-1")
	if err != nil {
		t.Fatalf("GetCar() error = %v", err)
	}
	want := vehicle.Owner{ID: "u-3", Name: "Cem Customer", Phone: "555-0101"}
	if c.Customer == nil || *c.Customer != want {
		t.Errorf("Customer = %+v, want %+v", c.Customer, want)
	}
	if c.Year != 2019 || c.PlateNumber != "34 ABC 12" {
		t.Errorf("GetCar() = %+v", c)
	}
	if got := fake.count("GET /rest/v1/cars"); got != 1 {
		t.Errorf("cars endpoint hit %d times", got)
	}

	if _, err := r.GetCar(ctx, "c-missing"); !errors.Is(err, vehicle.ErrCarNotFound) {
		t.Errorf("GetCar(missing) error = %v, want ErrCarNotFound", err)
	}
	if _, err := r.GetCar(ctx, "bad-code"); !errors.Is(err, vehicle.ErrCarNotFound) {
		t.Errorf("GetCar(bad-code) error = %v, want ErrCarNotFound", err)
	}
}

func TestRestClient_Errors(t *testing.T) {
	fake, srv := newFakeGoTrue(t)
	r := NewRestClient(srv.URL, "anon", nil)
	ctx := context.Background()

	fake.setDown(true)
	if _, err := r.GetProfile(ctx, "u-1"); !errors.Is(err, auth.ErrNetwork) {
		t.Errorf("GetProfile() while down error = %v, want ErrNetwork", err)
	}

	bad := NewRestClient(srv.URL, "wrong-key", nil)
	fake.setDown(false)
	if _, err := bad.GetProfile(ctx, "u-1"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Errorf("GetProfile() with bad key error = %v, want ErrSessionNotFound", err)
	}

	failing := NewRestClient(srv.URL, "anon", func(context.Context) (string, error) {
		return "", auth.ErrNetwork
	})
	if _, err := failing.GetCar(ctx, "c-1"); !errors.Is(err, auth.ErrNetwork) {
		t.Errorf("GetCar() with failing token source error = %v, want ErrNetwork", err)
	}
}
