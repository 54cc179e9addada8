// Package x3dh implements the X3DH key agreement used to bootstrap a session
// with one remote device from its published key bundle.
//
// # Flows
//
// Initiator:
//  1. Verify the signed pre-key signature (VerifyBundle).
//  2. Generate an ephemeral X25519 key pair.
//  3. Compute DH values (IKa·SPKb, EKa·IKb, EKa·SPKb[, EKa·OPKb]).
//  4. HKDF over the concatenated DH outputs to produce the root key.
//  5. Return the root key and the Handshake (pre-key ids used, ephemeral public).
//
// Responder:
//  1. Receive the Handshake.
//  2. Look up the SPK and optionally consume the OPK.
//  3. Compute the symmetric DH set and HKDF to the identical root key.
//
// # Errors
//
// ErrBadSPK is returned when the SPK signature fails verification and
// ErrMissingKey when the bundle lacks key material. Both mean the bundle must
// not be used.
package x3dh
