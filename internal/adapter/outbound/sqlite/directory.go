package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
)

// Directory serves the users and cars tables.
type Directory struct {
	db *DB
}

// NewDirectory creates a Directory on db.
func NewDirectory(db *DB) *Directory {
	return &Directory{db: db}
}

// GetProfile returns the users row with the given id.
func (d *Directory) GetProfile(ctx context.Context, id string) (*auth.User, error) {
	var (
		u         auth.User
		role      string
		createdAt string
	)
	err := d.db.db.QueryRowContext(ctx,
		`SELECT id, email, name, phone, role, shop_id, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &role, &u.ShopID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	u.Role, _ = auth.ParseRole(role)
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// PutProfile inserts or replaces a users row.
func (d *Directory) PutProfile(ctx context.Context, u auth.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := d.db.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, phone, role, shop_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email, name = excluded.name, phone = excluded.phone,
			role = excluded.role, shop_id = excluded.shop_id`,
		u.ID, u.Email, u.Name, u.Phone, string(u.Role), u.ShopID, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// GetCar returns the cars row with the given id or qr_id, joined with its customer.
func (d *Directory) GetCar(ctx context.Context, id string) (*vehicle.Car, error) {
	var (
		c                              vehicle.Car
		createdAt                      string
		ownerID, ownerName, ownerPhone sql.NullString
	)
	err := d.db.db.QueryRowContext(ctx, `
		SELECT c.id, c.make, c.model, c.year, c.plate_number, c.qr_id, c.customer_id, c.shop_id, c.created_at,
		       u.id, u.name, u.phone
		FROM cars c
		LEFT JOIN users u ON u.id = c.customer_id
		WHERE c.id = ? OR (c.qr_id <> '' AND c.qr_id = ?)
		LIMIT 1`, id, id,
	).Scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.PlateNumber, &c.QRID, &c.CustomerID, &c.ShopID, &createdAt,
		&ownerID, &ownerName, &ownerPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vehicle.ErrCarNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get car: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	if ownerID.Valid {
		c.Customer = &vehicle.Owner{ID: ownerID.String, Name: ownerName.String, Phone: ownerPhone.String}
	}
	return &c, nil
}

// PutCar inserts or replaces a cars row.
func (d *Directory) PutCar(ctx context.Context, c vehicle.Car) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := d.db.db.ExecContext(ctx, `
		INSERT INTO cars (id, make, model, year, plate_number, qr_id, customer_id, shop_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			make = excluded.make, model = excluded.model, year = excluded.year,
			plate_number = excluded.plate_number, qr_id = excluded.qr_id,
			customer_id = excluded.customer_id, shop_id = excluded.shop_id`,
		c.ID, c.Make, c.Model, c.Year, c.PlateNumber, c.QRID, c.CustomerID, c.ShopID, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("put car: %w", err)
	}
	return nil
}

var (
	_ auth.ProfileDirectory = (*Directory)(nil)
	_ vehicle.Directory     = (*Directory)(nil)
)
