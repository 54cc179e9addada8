// Package prekey manages signed pre-keys and one-time pre-keys for X3DH
// bootstrap and assembles this device's public key bundle.
package prekey
