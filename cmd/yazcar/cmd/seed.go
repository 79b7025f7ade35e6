package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yazcar/yazcarfax/internal/adapter/outbound/sqlite"
	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
)

var backendSeedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load accounts, profiles and cars into the dev backend",
	Long: `Load a YAML fixture file into the dev backend database. Existing
accounts are left alone; profiles and cars are upserted.

An account without a profile signs in but has no YazCar profile, which is
how the "profile not found" flow is exercised.

Example file:
  accounts:
    - email: admin@yazcar.test
      password: correct horse battery
      profile: {name: Ada Admin, role: admin}
    - email: orphan@yazcar.test
      password_hash: $argon2id$v=19$...
  cars:
    - {id: car-1, make: Toyota, model: Corolla, year: 2019,
       plate_number: 34 YZ 001, qr_id: QR-1, customer_id: c-1}`,
	Args: cobra.ExactArgs(1),
	RunE: runBackendSeed,
}

func init() {
	backendCmd.AddCommand(backendSeedCmd)
}

type seedFile struct {
	Accounts []seedAccount `yaml:"accounts" validate:"dive"`
	Cars     []vehicle.Car `yaml:"cars"`
}

type seedAccount struct {
	ID           string       `yaml:"id"`
	Email        string       `yaml:"email" validate:"required,email"`
	Password     string       `yaml:"password" validate:"required_without=PasswordHash,excluded_with=PasswordHash"`
	PasswordHash string       `yaml:"password_hash"`
	Profile      *seedProfile `yaml:"profile"`
}

type seedProfile struct {
	Name   string    `yaml:"name" validate:"required"`
	Phone  string    `yaml:"phone"`
	Role   auth.Role `yaml:"role" validate:"required"`
	ShopID string    `yaml:"shop_id"`
}

// seedReport counts what applySeed wrote.
type seedReport struct {
	Created  int
	Skipped  int
	Profiles int
	Cars     int
}

func runBackendSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()
	seed, err := parseSeedFile(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	ctx := cmd.Context()
	db, err := sqlite.Open(ctx, cfg.Server.Database)
	if err != nil {
		return fmt.Errorf("open backend database: %w", err)
	}
	defer func() { _ = db.Close() }()

	report, err := applySeed(ctx, sqlite.NewAccountStore(db), sqlite.NewDirectory(db), seed, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s: %d accounts created, %d existing, %d profiles, %d cars\n",
		db.Path(), report.Created, report.Skipped, report.Profiles, report.Cars)
	return nil
}

// parseSeedFile decodes and validates a fixture file.
func parseSeedFile(r io.Reader) (*seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(&seed); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	for i, a := range seed.Accounts {
		if a.PasswordHash != "" && !auth.IsPasswordHash(a.PasswordHash) {
			return nil, fmt.Errorf("invalid seed file: accounts[%d].password_hash is not an argon2id hash", i)
		}
		if a.Profile != nil && !a.Profile.Role.IsValid() {
			return nil, fmt.Errorf("invalid seed file: accounts[%d].profile.role %q is not admin, shop_owner or customer", i, a.Profile.Role)
		}
	}
	for i, c := range seed.Cars {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("invalid seed file: cars[%d].id is required", i)
		}
	}
	return &seed, nil
}

// seedDirectory is the writable side of the dev backend directory.
type seedDirectory interface {
	PutProfile(ctx context.Context, u auth.User) error
	PutCar(ctx context.Context, c vehicle.Car) error
}

// applySeed writes seed. Accounts that already exist keep their password.
func applySeed(ctx context.Context, accounts auth.AccountStore, dir seedDirectory, seed *seedFile, logger *slog.Logger) (seedReport, error) {
	var report seedReport
	for _, a := range seed.Accounts {
		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}
		hash := a.PasswordHash
		if hash == "" {
			var err error
			if hash, err = auth.HashPassword(a.Password); err != nil {
				return report, fmt.Errorf("hash password for %s: %w", a.Email, err)
			}
		}

		user := auth.BackendUser{ID: id, Email: strings.ToLower(strings.TrimSpace(a.Email))}
		err := accounts.CreateAccount(ctx, auth.Account{User: user, PasswordHash: hash})
		switch {
		case errors.Is(err, auth.ErrUserExists):
			existing, lookupErr := accounts.GetAccountByEmail(ctx, user.Email)
			if lookupErr != nil {
				return report, fmt.Errorf("look up existing account %s: %w", user.Email, lookupErr)
			}
			user = existing.User
			report.Skipped++
			logger.Debug("account exists, keeping it", "email", user.Email, "id", user.ID)
		case err != nil:
			return report, fmt.Errorf("create account %s: %w", user.Email, err)
		default:
			report.Created++
			logger.Debug("created account", "email", user.Email, "id", user.ID)
		}

		if a.Profile == nil {
			continue
		}
		profile := auth.User{
			ID:     user.ID,
			Email:  user.Email,
			Name:   a.Profile.Name,
			Phone:  a.Profile.Phone,
			Role:   a.Profile.Role,
			ShopID: a.Profile.ShopID,
		}
		if err := dir.PutProfile(ctx, profile); err != nil {
			return report, err
		}
		report.Profiles++
	}

	for _, c := range seed.Cars {
		if err := dir.PutCar(ctx, c); err != nil {
			return report, err
		}
		report.Cars++
	}
	return report, nil
}
