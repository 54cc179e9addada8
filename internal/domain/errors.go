package domain

import "errors"

var (
	// ErrInvalidBundle means a fetched bundle failed signature or key checks.
	// Only the session attempt for that one device is abandoned.
	ErrInvalidBundle = errors.New("invalid key bundle")

	// ErrEngineFailure wraps faults of the ratchet engine. Callers treat the
	// session as unavailable.
	ErrEngineFailure = errors.New("session engine failure")

	// ErrNotConfigured is returned by coordinator operations that need the
	// discovery module before Configure has been called.
	ErrNotConfigured = errors.New("coordinator not configured")

	// ErrNodeNotFound is returned by discovery modules when a pub-sub node
	// (device list or bundle) has never been published.
	ErrNodeNotFound = errors.New("pubsub node not found")
)
