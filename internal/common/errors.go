// Package common defines shared constants, sentinel errors and small helpers
// used across the escrow server and client. Callers should use errors.Is to
// match the error kinds below; details are attached with fmt.Errorf("%w: ...").
package common

import "errors"

var (
	// Lookup errors (actor or repository absent).
	ErrNotFound = errors.New("not found")

	// Credential check failed.
	ErrUnauthenticated = errors.New("unauthenticated")

	// Role, ownership or liveness rule violated.
	ErrForbidden = errors.New("forbidden")

	// A recipient has no enrolled encryption key.
	ErrMissingKeyMaterial = errors.New("missing key material")

	// Alias, name or object already registered.
	ErrConflict = errors.New("conflict")

	// Key generation, encryption or wrapping failed.
	ErrCrypto = errors.New("crypto error")

	// A storage write failed.
	ErrPersistence = errors.New("persistence error")

	// A compensating delete failed after a primary failure.
	ErrCleanup = errors.New("cleanup error")

	// Malformed input (names, tags, emails, keys).
	ErrInvalidArgument = errors.New("invalid argument")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
