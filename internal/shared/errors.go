package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Token lifecycle errors
	ErrNoCredential  = fmt.Errorf("no stored credential")
	ErrRefreshFailed = fmt.Errorf("token refresh failed")
	ErrAuthFailed    = fmt.Errorf("authentication failed")

	// Catalog and persistence errors
	ErrUpstreamUnavailable = fmt.Errorf("catalog unavailable")
	ErrRateLimited         = fmt.Errorf("catalog rate limited")
	ErrNotFound            = fmt.Errorf("not found")
	ErrForbidden           = fmt.Errorf("forbidden")
	ErrConflict            = fmt.Errorf("stale version")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
