// Package services implements the business logic of the delivery backend:
// identity mapping, the idempotent delivery ledger, the delivery
// orchestrator, and the webhook and manual-check flows built on top of them.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler/bot layer.
package services

import "errors"

var (
	// ErrMappingNotFound indicates that no identity mapping exists for the
	// requested external or chat identity.
	ErrMappingNotFound = errors.New("mapping not found")

	// ErrUnknownProduct is returned when a payment names a product id that is
	// not present in the catalog. Rejected before any state change.
	ErrUnknownProduct = errors.New("unknown product")

	// ErrUserNotFound indicates that the game platform resolved no account
	// for the requested username during registration.
	ErrUserNotFound = errors.New("external user not found")
)
