package interfaces

import (
	"context"

	domaintypes "omemo/internal/domain/types"
)

// RatchetEngine is the session engine the coordinator sits on top of.
type RatchetEngine interface {
	RegistrationID() (uint32, error)
	EnsureIdentity() (domaintypes.Identity, error)
	SessionExists(identity string, deviceID domaintypes.DeviceID) (bool, error)
	ProcessBundle(bundle domaintypes.SessionKeyBundle) error
	GenerateBundle(identity string, preKeys int) (domaintypes.SessionKeyBundle, error)
	ReplenishPreKeys(n int) error
	CurrentBundle(identity string) (domaintypes.SessionKeyBundle, error)
	PreKeyCount() (int, error)
}

// SessionOracle answers session-validity questions and starts sessions from
// fetched bundles.
type SessionOracle interface {
	HasValidSession(identity string, deviceID domaintypes.DeviceID) bool
	SessionState(identity string, deviceID domaintypes.DeviceID) (bool, error)
	OwnRegistrationID() (uint32, error)
	EnsureSession(identity string, deviceID domaintypes.DeviceID, bundle domaintypes.SessionKeyBundle) error
}

// BundlePublisher owns the lifecycle of this device's public bundle.
type BundlePublisher interface {
	CurrentOrNewBundle() (domaintypes.SessionKeyBundle, error)
	NeedsPublication() (bool, error)
	MarkPublished(bundle domaintypes.SessionKeyBundle) error
}

// DeviceListApplier is the part of the synchronizer the coordinator drives.
type DeviceListApplier interface {
	ApplyDeviceList(ctx context.Context, from domaintypes.JID, ids domaintypes.DeviceSet) (Outcome, error)
	ApplyOwnNotification(ctx context.Context, stream domaintypes.JID, n domaintypes.Notification) (Outcome, error)
	SelfCheck(ctx context.Context) (Outcome, error)
}

// Outcome reports what the synchronizer did with an input.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeStored
	OutcomeRepublished
	OutcomeForeign
	OutcomePending
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeRepublished:
		return "republished"
	case OutcomeForeign:
		return "foreign"
	case OutcomePending:
		return "pending"
	default:
		return "ignored"
	}
}

// IdentityService creates, retrieves, and inspects your identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string) (domaintypes.Identity, domaintypes.Fingerprint, error)
	EnsureIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
	RegistrationID(jid string) (uint32, error)
}

// PreKeyService generates pre-keys and assembles this device's bundle.
type PreKeyService interface {
	GenerateSignedPreKey(passphrase string) (domaintypes.SignedPreKeyID, error)
	GenerateOneTimePreKeys(count int) error
	CountOneTimePreKeys() (int, error)
	LoadPreKeyBundle(
		passphrase string,
		identity string,
		registrationID uint32,
	) (domaintypes.SessionKeyBundle, error)
}

// SessionService establishes or retrieves sessions with remote devices.
type SessionService interface {
	EstablishSession(passphrase string, bundle domaintypes.SessionKeyBundle) (domaintypes.SessionRecord, error)
	GetSession(addr domaintypes.SessionAddress) (domaintypes.SessionRecord, bool, error)
}
