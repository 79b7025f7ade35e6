// Package vehicle contains the car records a scan resolves to.
package vehicle

import (
	"context"
	"errors"
	"time"
)

// ErrCarNotFound is returned when no car matches a scanned code.
var ErrCarNotFound = errors.New("car not found")

// Owner is the customer a car belongs to.
type Owner struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Phone string `json:"phone" yaml:"phone"`
}

// Car is a vehicle row joined with its owner.
type Car struct {
	ID          string    `json:"id" yaml:"id"`
	Make        string    `json:"make" yaml:"make"`
	Model       string    `json:"model" yaml:"model"`
	Year        int       `json:"year" yaml:"year"`
	PlateNumber string    `json:"plate_number" yaml:"plate_number"`
	QRID        string    `json:"qr_id,omitempty" yaml:"qr_id,omitempty"`
	CustomerID  string    `json:"customer_id" yaml:"customer_id"`
	ShopID      string    `json:"shop_id,omitempty" yaml:"shop_id,omitempty"`
	Customer    *Owner    `json:"customer,omitempty" yaml:"customer,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Directory looks cars up in the cars table.
// Implementations: supabase.RestClient, sqlite.Directory, memory.Directory.
type Directory interface {
	// GetCar returns the car with the given id joined with its customer.
	// Returns ErrCarNotFound if there is no row.
	GetCar(ctx context.Context, id string) (*Car, error)
}
