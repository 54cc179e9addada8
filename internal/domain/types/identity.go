package types

// Identity holds the long-term X25519 and Ed25519 keys of this device.
type Identity struct {
	XPub       X25519Public   `json:"xpub"`
	XPriv      X25519Private  `json:"xpriv"`
	EdPub      Ed25519Public  `json:"edpub"`
	EdPriv     Ed25519Private `json:"edpriv"`
	CreatedUTC int64          `json:"created_utc"`
}

// Account is the per-install record of the local device. RegistrationID is
// assigned once on first run and never changes afterwards.
type Account struct {
	JID            string `json:"jid"`
	RegistrationID uint32 `json:"registration_id"`
	CreatedUTC     int64  `json:"created_utc"`
}
