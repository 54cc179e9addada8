package types

import "strconv"

// SessionAddress identifies a ratchet session: one device of one bare identity.
type SessionAddress struct {
	Identity string
	DeviceID DeviceID
}

// String renders the address as "bare:device", the persisted key form.
func (a SessionAddress) String() string {
	return a.Identity + ":" + strconv.FormatUint(uint64(a.DeviceID), 10)
}

// SessionRecord holds the X3DH-derived root key and metadata for a peer device.
type SessionRecord struct {
	Identity              string          `json:"identity"`
	DeviceID              DeviceID        `json:"device_id"`
	RootKey               []byte          `json:"root_key"`
	PeerSignedPreKey      X25519Public    `json:"peer_signed_pre_key"`
	PeerIdentityKey       X25519Public    `json:"peer_identity_key"`
	PeerRegistrationID    uint32          `json:"peer_registration_id"`
	CreatedUTC            int64           `json:"created_utc"`
	SignedPreKeyID        SignedPreKeyID  `json:"signed_pre_key_id"`
	OneTimePreKeyID       OneTimePreKeyID `json:"one_time_pre_key_id"`
	UsedOneTimePreKey     bool            `json:"used_one_time_pre_key"`
	InitiatorEphemeralKey X25519Public    `json:"initiator_ephemeral_key"`
}
