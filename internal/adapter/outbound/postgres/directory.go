// Package postgres reads profiles and cars straight from the backend's
// Postgres database, bypassing the REST layer.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
)

// invalidTextRepresentation is raised when a non-uuid string is compared
// with a uuid column.
const invalidTextRepresentation = "22P02"

// Directory implements auth.ProfileDirectory and vehicle.Directory.
type Directory struct {
	db *sql.DB
}

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*Directory, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w: %v", auth.ErrNetwork, err)
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// Close closes the connection pool.
func (d *Directory) Close() error {
	return d.db.Close()
}

// GetProfile returns the users row with the given id.
func (d *Directory) GetProfile(ctx context.Context, id string) (*auth.User, error) {
	var (
		u    auth.User
		role string
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id::text, COALESCE(email, ''), COALESCE(name, ''), COALESCE(phone, ''),
		       COALESCE(role, ''), COALESCE(shop_id::text, ''), created_at
		FROM users
		WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &role, &u.ShopID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
		return nil, auth.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", classify(err))
	}
	u.Role, _ = auth.ParseRole(role)
	return &u, nil
}

// GetCar returns the cars row whose id or qr_id equals id, joined with its customer.
func (d *Directory) GetCar(ctx context.Context, id string) (*vehicle.Car, error) {
	var (
		c                              vehicle.Car
		ownerID, ownerName, ownerPhone sql.NullString
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT c.id::text, COALESCE(c.make, ''), COALESCE(c.model, ''), COALESCE(c.year, 0),
		       COALESCE(c.plate_number, ''), COALESCE(c.qr_id, ''), COALESCE(c.customer_id::text, ''),
		       COALESCE(c.shop_id::text, ''), c.created_at,
		       u.id::text, u.name, u.phone
		FROM cars c
		LEFT JOIN users u ON u.id = c.customer_id
		WHERE c.id::text = $1 OR c.qr_id = $1
		LIMIT 1`, id,
	).Scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.PlateNumber, &c.QRID, &c.CustomerID, &c.ShopID, &c.CreatedAt,
		&ownerID, &ownerName, &ownerPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vehicle.ErrCarNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get car: %w", classify(err))
	}
	if ownerID.Valid {
		c.Customer = &vehicle.Owner{ID: ownerID.String, Name: ownerName.String, Phone: ownerPhone.String}
	}
	return &c, nil
}

func isInvalidInput(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}

// classify tags errors that did not come from the server as network failures.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", auth.ErrNetwork, err)
}

var (
	_ auth.ProfileDirectory = (*Directory)(nil)
	_ vehicle.Directory     = (*Directory)(nil)
)
