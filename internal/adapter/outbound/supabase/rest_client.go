package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
)

// invalidTextRepresentation is the Postgres code PostgREST relays when a
// filter value does not parse as the column type (a non-uuid id).
const invalidTextRepresentation = "22P02"

// carSelect embeds the owner of a car in the same request.
const carSelect = "*,customer:customer_id(id,name,phone)"

// TokenSource returns the bearer token for row-level security, or "" to
// fall back to the anon key.
type TokenSource func(ctx context.Context) (string, error)

// RestClient reads the users and cars tables through PostgREST.
type RestClient struct {
	client
	tokens TokenSource
}

// NewRestClient creates a RestClient. tokens may be nil.
func NewRestClient(baseURL, anonKey string, tokens TokenSource, opts ...ClientOption) *RestClient {
	return &RestClient{
		client: newClient(baseURL, anonKey, opts...),
		tokens: tokens,
	}
}

// profileRow decodes created_at leniently; the outer field shadows the
// embedded one.
type profileRow struct {
	auth.User
	CreatedAt string `json:"created_at"`
}

type carRow struct {
	vehicle.Car
	CreatedAt string `json:"created_at"`
}

// GetProfile returns the users row with the given id.
func (r *RestClient) GetProfile(ctx context.Context, id string) (*auth.User, error) {
	var rows []profileRow
	err := r.get(ctx, "/rest/v1/users", url.Values{
		"select": {"*"},
		"id":     {"eq." + id},
	}, &rows)
	if err != nil {
		if isInvalidInput(err) {
			return nil, auth.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", restError(err))
	}
	if len(rows) == 0 {
		return nil, auth.ErrProfileNotFound
	}
	u := rows[0].User
	u.CreatedAt = parseTimestamp(rows[0].CreatedAt)
	return &u, nil
}

// GetCar returns the cars row with the given id joined with its customer.
func (r *RestClient) GetCar(ctx context.Context, id string) (*vehicle.Car, error) {
	var rows []carRow
	err := r.get(ctx, "/rest/v1/cars", url.Values{
		"select": {carSelect},
		"id":     {"eq." + id},
	}, &rows)
	if err != nil {
		if isInvalidInput(err) {
			return nil, vehicle.ErrCarNotFound
		}
		return nil, fmt.Errorf("get car: %w", restError(err))
	}
	if len(rows) == 0 {
		return nil, vehicle.ErrCarNotFound
	}
	c := rows[0].Car
	c.CreatedAt = parseTimestamp(rows[0].CreatedAt)
	return &c, nil
}

func (r *RestClient) get(ctx context.Context, path string, query url.Values, out any) error {
	var bearer string
	if r.tokens != nil {
		tok, err := r.tokens(ctx)
		if err != nil {
			return err
		}
		bearer = tok
	}
	return r.do(ctx, request{method: http.MethodGet, path: path, query: query, bearer: bearer}, out)
}

func isInvalidInput(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && apiErr.Code == invalidTextRepresentation
}

func restError(err error) error {
	switch statusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", auth.ErrSessionNotFound, err)
	}
	return asNetwork(err)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
}

// parseTimestamp accepts the shapes Postgres timestamp columns are rendered
// in. Unparseable values yield the zero time.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

var (
	_ auth.ProfileDirectory = (*RestClient)(nil)
	_ vehicle.Directory     = (*RestClient)(nil)
)
