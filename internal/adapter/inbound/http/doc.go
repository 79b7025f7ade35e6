// Package http implements the yazcar dev backend: a local stand-in for the
// hosted auth and REST services, speaking the subset of their wire protocol
// the client uses.
//
// # Endpoints
//
//	POST /auth/v1/token?grant_type=password       - sign in with email and password
//	POST /auth/v1/token?grant_type=refresh_token  - exchange a refresh token
//	GET  /auth/v1/user                            - resolve the bearer token's account
//	POST /auth/v1/logout                          - revoke the bearer token's session
//	GET  /rest/v1/users?id=eq.<id>                - profile rows
//	GET  /rest/v1/cars?id=eq.<id>                 - car rows joined with their customer
//	GET  /health                                  - component checks
//	GET  /metrics                                 - Prometheus metrics
//
// Every /auth and /rest request must carry the anon key in the apikey header.
// /rest requests and /auth/v1/user need an access token in
// "Authorization: Bearer <token>".
//
// # Middleware Chain
//
//  1. MetricsMiddleware - request count and duration
//  2. RequestIDMiddleware - X-Request-ID and request-scoped logger
//  3. RealIPMiddleware - client address for sign-in throttling
//  4. APIKeyMiddleware - anon key check
//  5. Handler
//
// Sign-in attempts are throttled per client address and per email with GCRA.
// Every sign-in, failure, refresh and sign-out is recorded as an auth event.
package http
