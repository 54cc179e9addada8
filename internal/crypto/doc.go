// Package crypto exposes the minimal primitives used by the coordinator.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Registration id allocation for a fresh install (GenerateRegistrationID)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// All functions return fixed-size array types defined in internal/domain.
package crypto
