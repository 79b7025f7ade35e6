package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
)

// Directory holds user profiles and cars in memory.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]auth.User
	cars     map[string]vehicle.Car
	offline  bool
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		profiles: make(map[string]auth.User),
		cars:     make(map[string]vehicle.Car),
	}
}

// PutProfile inserts or replaces a profile.
func (d *Directory) PutProfile(u auth.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[u.ID] = u
}

// DeleteProfile removes a profile.
func (d *Directory) DeleteProfile(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.profiles, id)
}

// PutCar inserts or replaces a car.
func (d *Directory) PutCar(c vehicle.Car) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cars[c.ID] = c
}

// SetOffline makes every lookup fail with auth.ErrNetwork while true.
func (d *Directory) SetOffline(offline bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offline = offline
}

// GetProfile returns the profile with the given id.
func (d *Directory) GetProfile(ctx context.Context, id string) (*auth.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.offline {
		return nil, fmt.Errorf("get profile: %w", auth.ErrNetwork)
	}
	u, ok := d.profiles[id]
	if !ok {
		return nil, auth.ErrProfileNotFound
	}
	return &u, nil
}

// GetCar returns the car with the given id joined with its customer profile.
func (d *Directory) GetCar(ctx context.Context, id string) (*vehicle.Car, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.offline {
		return nil, fmt.Errorf("get car: %w", auth.ErrNetwork)
	}
	c, ok := d.cars[id]
	if !ok {
		return nil, vehicle.ErrCarNotFound
	}
	if owner, ok := d.profiles[c.CustomerID]; ok {
		c.Customer = &vehicle.Owner{ID: owner.ID, Name: owner.Name, Phone: owner.Phone}
	}
	return &c, nil
}

var (
	_ auth.ProfileDirectory = (*Directory)(nil)
	_ vehicle.Directory     = (*Directory)(nil)
)
