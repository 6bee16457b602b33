// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrUnauthenticated indicates no resolvable identity for the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized indicates the caller does not own the target record.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCipher indicates a missing/malformed key or corrupt ciphertext.
	ErrCipher = errors.New("cipher failure")

	// ErrValidation indicates malformed input rejected before any mutation.
	ErrValidation = errors.New("validation")

	// ErrOracleUnavailable indicates a breach-oracle network or parse failure.
	// Callers downgrade it to a safe default; it never aborts a scan.
	ErrOracleUnavailable = errors.New("breach oracle unavailable")

	// ErrAudit indicates an unexpected internal failure aborting a whole audit run.
	ErrAudit = errors.New("audit failed")

	// ErrOperationFailed indicates a storage-layer fault.
	ErrOperationFailed = errors.New("operation failed")
)
