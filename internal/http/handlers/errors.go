// Package handlers provides HTTP handler implementations for the public API.
// This file centralizes the stable machine-readable error codes used in
// error envelopes.
package handlers

// Stable error codes returned in ErrorResponse.Code.
const (
	// ErrCodeBadRequest marks malformed or incomplete request payloads.
	ErrCodeBadRequest = "bad_request"
	// ErrCodeUnauthorized marks a missing or invalid shared secret.
	ErrCodeUnauthorized = "unauthorized"
	// ErrCodeNotFound marks unknown routes or resources.
	ErrCodeNotFound = "not_found"
	// ErrCodeMethodNotAllowed marks an unsupported method on a known route.
	ErrCodeMethodNotAllowed = "method_not_allowed"
	// ErrCodeInternal marks unexpected server-side failures.
	ErrCodeInternal = "internal_error"
)
