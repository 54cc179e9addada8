// Package identity manages creation, encryption and loading of the local
// identity, and the registration id assigned to this install.
//
// It enforces passphrase policy, generates X25519 and Ed25519 key pairs, and
// persists them via the domain.IdentityStore.
package identity
