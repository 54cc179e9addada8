package interfaces

import (
	"context"

	domaintypes "omemo/internal/domain/types"
)

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, bool, error)
}

// AccountStore persists the local account record (registration id).
type AccountStore interface {
	SaveAccount(account domaintypes.Account) error
	LoadAccount() (domaintypes.Account, bool, error)
}

// PreKeyStore manages signed and one-time pre-keys on disk.
type PreKeyStore interface {
	// Signed pre-key
	SaveSignedPreKey(
		id domaintypes.SignedPreKeyID,
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
	) error
	LoadSignedPreKey(
		id domaintypes.SignedPreKeyID,
	) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
		ok bool,
		err error,
	)

	// One-time pre-keys
	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		ok bool,
		err error,
	)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)
	CountOneTimePreKeys() (int, error)

	// Id allocation. Ids are never reused.
	AllocateSignedPreKeyID() (domaintypes.SignedPreKeyID, error)
	AllocateOneTimePreKeyIDs(n int) (first domaintypes.OneTimePreKeyID, err error)

	// Current signed pre-key selection
	SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error)
}

// BundleStore caches the last bundle generated for this device.
type BundleStore interface {
	SaveBundle(bundle domaintypes.PublishedBundle) error
	LoadBundle() (domaintypes.PublishedBundle, bool, error)
}

// SessionStore persists established sessions per (bare identity, device).
type SessionStore interface {
	SaveSession(addr domaintypes.SessionAddress, record domaintypes.SessionRecord) error
	LoadSession(addr domaintypes.SessionAddress) (domaintypes.SessionRecord, bool, error)
}

// DeviceStore is the sole owner of identity → device-set state. Writes replace
// the stored snapshot; they never merge.
type DeviceStore interface {
	RecordOwnDevices(ctx context.Context, ids domaintypes.DeviceSet) error
	RecordBuddyDevices(ctx context.Context, identity string, ids domaintypes.DeviceSet) error
	OwnDevices(ctx context.Context) (domaintypes.DeviceSet, error)
	DevicesFor(ctx context.Context, identity string) (domaintypes.DeviceSet, error)
	Snapshot(ctx context.Context, identity string) (domaintypes.DeviceListSnapshot, bool, error)
}
