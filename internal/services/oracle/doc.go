// Package oracle answers session-validity questions on top of the ratchet
// engine and starts sessions from fetched bundles.
//
// Engine faults are classified: bad key material becomes domain.ErrInvalidBundle,
// everything else domain.ErrEngineFailure.
package oracle
