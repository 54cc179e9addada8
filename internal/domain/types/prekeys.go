package types

// OneTimePreKeyPair is the full (private+public) one-time pre-key stored locally.
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID `json:"id"`
	Priv X25519Private   `json:"priv"`
	Pub  X25519Public    `json:"pub"`
}

// OneTimePreKeyPublic is only the public half (sent in bundles).
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id" cbor:"id"`
	Pub X25519Public    `json:"pub" cbor:"pub"`
}

// SessionKeyBundle is the public key material one device publishes so that
// others can start a session with it.
type SessionKeyBundle struct {
	Identity              string                `json:"identity" cbor:"identity"`
	DeviceID              DeviceID              `json:"device_id" cbor:"device_id"`
	RegistrationID        uint32                `json:"registration_id" cbor:"registration_id"`
	IdentityKey           X25519Public          `json:"identity_key" cbor:"identity_key"`
	SigningKey            Ed25519Public         `json:"signing_key" cbor:"signing_key"`
	SignedPreKeyID        SignedPreKeyID        `json:"signed_pre_key_id" cbor:"signed_pre_key_id"`
	SignedPreKey          X25519Public          `json:"signed_pre_key" cbor:"signed_pre_key"`
	SignedPreKeySignature []byte                `json:"signed_pre_key_signature" cbor:"signed_pre_key_signature"`
	OneTimePreKeys        []OneTimePreKeyPublic `json:"one_time_pre_keys,omitempty" cbor:"one_time_pre_keys,omitempty"`
}

// PublishedBundle is the locally cached copy of the last bundle we generated,
// together with whether it reached the discovery service.
type PublishedBundle struct {
	Bundle       SessionKeyBundle `json:"bundle"`
	Published    bool             `json:"published"`
	PublishedUTC int64            `json:"published_utc,omitempty"`
}
