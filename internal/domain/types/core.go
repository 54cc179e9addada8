package types

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// DeviceID addresses one physical device of a logical identity. For the local
// device it equals the registration id.
type DeviceID uint32

// SignedPreKeyID uniquely identifies a signed pre-key.
type SignedPreKeyID uint32

// OneTimePreKeyID uniquely identifies a one-time pre-key.
type OneTimePreKeyID uint32
