// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed boundary authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a temporary lockout after repeated auth failures.
	ErrRateLimited = errors.New("rate limited")

	// ErrBadMasterKey indicates a missing or malformed master key in configuration.
	ErrBadMasterKey = errors.New("bad master key")

	// ErrCryptoFailed indicates an encryption or authenticated-decryption failure.
	ErrCryptoFailed = errors.New("crypto operation failed")

	// ErrMissingOwner indicates no system account could be resolved as the owner.
	ErrMissingOwner = errors.New("no resolvable owner")

	// ErrConflict indicates a unique constraint violation on a vault write.
	ErrConflict = errors.New("conflict")
)
