package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yazcar/yazcarfax/internal/adapter/outbound/memory"
	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/session"
	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
)

type slowCars struct{}

func (slowCars) GetCar(ctx context.Context, _ string) (*vehicle.Car, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newScanFixture(t *testing.T, role auth.Role) (*ScanSession, *memory.Directory) {
	t.Helper()
	dir := memory.NewDirectory()
	dir.PutProfile(auth.User{ID: "c-1", Name: "Cora Customer", Phone: "555-0101", Role: auth.RoleCustomer})
	dir.PutCar(vehicle.Car{ID: "car-1", Make: "Toyota", Model: "Corolla", Year: 2019, PlateNumber: "34 ABC 12", CustomerID: "c-1"})
	dir.PutCar(vehicle.Car{ID: "car-2", Make: "Fiat", Model: "Egea", Year: 2021, PlateNumber: "06 XYZ 99", CustomerID: "c-1"})

	store := session.NewStore()
	if role != "" {
		store.SignedIn(&auth.User{ID: "staff", Role: role}, "tok", nil)
	}
	return NewScanSession(store, dir, time.Second, discardLogger()), dir
}

func TestScanSession_Scan(t *testing.T) {
	t.Parallel()

	s, _ := newScanFixture(t, auth.RoleShopOwner)
	car, err := s.Scan(context.Background(), "  car-1\n")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if car.PlateNumber != "34 ABC 12" || car.Customer == nil || car.Customer.Name != "Cora Customer" {
		t.Errorf("Scan() = %+v, want car-1 joined with its owner", car)
	}
	if !s.Pending() {
		t.Error("Pending() = false after a successful scan")
	}
}

func TestScanSession_Guards(t *testing.T) {
	t.Parallel()

	s, _ := newScanFixture(t, auth.RoleAdmin)
	ctx := context.Background()
	if _, err := s.Scan(ctx, "car-1"); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if _, err := s.Scan(ctx, "car-2"); !errors.Is(err, ErrScanPending) {
		t.Errorf("Scan() while pending error = %v, want ErrScanPending", err)
	}

	s.Rearm()
	if _, err := s.Scan(ctx, "car-1"); !errors.Is(err, ErrDuplicateScan) {
		t.Errorf("rescan of the same code error = %v, want ErrDuplicateScan", err)
	}
	if _, err := s.Scan(ctx, "car-2"); err != nil {
		t.Errorf("Scan() of a new code after Rearm error = %v", err)
	}
}

func TestScanSession_FailedScanCanRetry(t *testing.T) {
	t.Parallel()

	s, dir := newScanFixture(t, auth.RoleAdmin)
	ctx := context.Background()

	if _, err := s.Scan(ctx, "car-9"); !errors.Is(err, vehicle.ErrCarNotFound) {
		t.Fatalf("Scan() error = %v, want ErrCarNotFound", err)
	}
	if s.Pending() {
		t.Error("failed scan left a pending result")
	}

	dir.SetOffline(true)
	if _, err := s.Scan(ctx, "car-1"); !errors.Is(err, auth.ErrNetwork) {
		t.Fatalf("Scan() offline error = %v, want ErrNetwork", err)
	}
	dir.SetOffline(false)
	if _, err := s.Scan(ctx, "car-1"); err != nil {
		t.Errorf("retry after network failure error = %v", err)
	}
}

func TestScanSession_Authorization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		role    auth.Role
		wantErr error
	}{
		{"admin", auth.RoleAdmin, nil},
		{"shop owner", auth.RoleShopOwner, nil},
		{"customer", auth.RoleCustomer, ErrForbidden},
		{"signed out", "", ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newScanFixture(t, tt.role)
			if _, err := s.Lookup(context.Background(), "car-1"); !errors.Is(err, tt.wantErr) {
				t.Errorf("Lookup() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestScanSession_LookupBypassesGuards(t *testing.T) {
	t.Parallel()

	s, _ := newScanFixture(t, auth.RoleShopOwner)
	ctx := context.Background()
	if _, err := s.Scan(ctx, "car-1"); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Lookup(ctx, "car-1"); err != nil {
			t.Errorf("Lookup() #%d error = %v", i, err)
		}
	}
	if _, err := s.Lookup(ctx, " "); !errors.Is(err, ErrEmptyCode) {
		t.Errorf("Lookup(blank) error = %v, want ErrEmptyCode", err)
	}
}

func TestScanSession_Timeout(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	store.SignedIn(&auth.User{ID: "a", Role: auth.RoleAdmin}, "tok", nil)
	s := NewScanSession(store, slowCars{}, 10*time.Millisecond, discardLogger())

	if _, err := s.Scan(context.Background(), "car-1"); !errors.Is(err, auth.ErrNetwork) {
		t.Errorf("Scan() error = %v, want ErrNetwork", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Lookup(ctx, "car-1"); !errors.Is(err, context.Canceled) {
		t.Errorf("Lookup() with canceled ctx error = %v, want context.Canceled", err)
	}
}
