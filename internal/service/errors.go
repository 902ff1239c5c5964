package service

import "errors"

var (
	// ErrInvalidInput rejects malformed requests before any state change
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidSignature rejects a callback whose signature does not
	// match the configured webhook secret. State is never mutated.
	ErrInvalidSignature = errors.New("invalid callback signature")

	// ErrReconciliationFailed wraps a store error during the atomic
	// settlement commit. Prior state is unchanged; the gateway is
	// expected to redeliver the callback.
	ErrReconciliationFailed = errors.New("reconciliation failed")

	// ErrDuplicateRequest rejects an order request whose idempotency key
	// is claimed by a concurrent in-flight duplicate
	ErrDuplicateRequest = errors.New("duplicate request in progress")
)
