// Package session establishes and tracks X3DH sessions with remote devices.
//
// It performs the initiator handshake against a fetched bundle, persists the
// session record per (bare identity, device), and exposes lookups.
package session
