package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/session"
	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
)

// Scan errors.
var (
	// ErrForbidden is returned when the signed-in role may not look cars up.
	ErrForbidden = errors.New("vehicle lookup requires an admin or shop owner")
	// ErrEmptyCode is returned for a blank code.
	ErrEmptyCode = errors.New("scanned code is empty")
	// ErrScanPending is returned while the previous result has not been dismissed.
	ErrScanPending = errors.New("previous scan result is still open")
	// ErrDuplicateScan is returned when the camera reports the last code again.
	ErrDuplicateScan = errors.New("code was already scanned")
)

// ScanSession resolves scanned codes to cars for one scanner screen.
// After a successful scan further scans are refused until Rearm; a repeat
// of the last successful code is ignored even after Rearm.
type ScanSession struct {
	store   *session.Store
	cars    vehicle.Directory
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	pending  bool
	lastCode string
}

// NewScanSession creates a ScanSession. timeout bounds each lookup.
func NewScanSession(store *session.Store, cars vehicle.Directory, timeout time.Duration, logger *slog.Logger) *ScanSession {
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanSession{store: store, cars: cars, timeout: timeout, logger: logger}
}

// Scan handles a code reported by the camera.
func (s *ScanSession) Scan(ctx context.Context, code string) (*vehicle.Car, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	s.mu.Lock()
	switch {
	case s.pending:
		s.mu.Unlock()
		return nil, ErrScanPending
	case code == s.lastCode:
		s.mu.Unlock()
		return nil, ErrDuplicateScan
	}
	s.pending = true
	s.lastCode = code
	s.mu.Unlock()

	car, err := s.lookup(ctx, code)
	if err != nil {
		// A failed scan can be retried right away.
		s.mu.Lock()
		s.pending = false
		s.lastCode = ""
		s.mu.Unlock()
		return nil, err
	}
	return car, nil
}

// Lookup searches for a typed car id. It bypasses the scan guards.
func (s *ScanSession) Lookup(ctx context.Context, id string) (*vehicle.Car, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptyCode
	}
	return s.lookup(ctx, id)
}

// Rearm dismisses the current result so the next code is accepted.
func (s *ScanSession) Rearm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false
}

// Pending reports whether a result is waiting to be dismissed.
func (s *ScanSession) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *ScanSession) authorize() error {
	switch s.store.Snapshot().Role() {
	case auth.RoleAdmin, auth.RoleShopOwner:
		return nil
	default:
		return ErrForbidden
	}
}

func (s *ScanSession) lookup(ctx context.Context, code string) (*vehicle.Car, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	car, err := s.cars.GetCar(callCtx, code)
	switch {
	case err == nil:
		s.logger.Info("car found", "car_id", car.ID, "plate", car.PlateNumber)
		return car, nil
	case errors.Is(err, vehicle.ErrCarNotFound):
		s.logger.Info("no car for scanned code", "code", code)
		return nil, err
	case ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("look up car: %w: timed out", auth.ErrNetwork)
	default:
		return nil, fmt.Errorf("look up car: %w", err)
	}
}
