package domain

import (
	interfaces "omemo/internal/domain/interfaces"
	types "omemo/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Fingerprint         = types.Fingerprint
	DeviceID            = types.DeviceID
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	JID                 = types.JID
	DeviceSet           = types.DeviceSet
	DeviceRecord        = types.DeviceRecord
	DeviceListSnapshot  = types.DeviceListSnapshot
	Identity            = types.Identity
	Account             = types.Account
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	SessionKeyBundle    = types.SessionKeyBundle
	PublishedBundle     = types.PublishedBundle
	SessionAddress      = types.SessionAddress
	SessionRecord       = types.SessionRecord
	Notification        = types.Notification
	Message             = types.Message
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService   = interfaces.IdentityService
	PreKeyService     = interfaces.PreKeyService
	SessionService    = interfaces.SessionService
	IdentityStore     = interfaces.IdentityStore
	AccountStore      = interfaces.AccountStore
	PreKeyStore       = interfaces.PreKeyStore
	BundleStore       = interfaces.BundleStore
	SessionStore      = interfaces.SessionStore
	DeviceStore       = interfaces.DeviceStore
	RatchetEngine     = interfaces.RatchetEngine
	SessionOracle     = interfaces.SessionOracle
	BundlePublisher   = interfaces.BundlePublisher
	DeviceListApplier = interfaces.DeviceListApplier
	Outcome           = interfaces.Outcome
	DiscoveryModule   = interfaces.DiscoveryModule
	ModuleDelegate    = interfaces.ModuleDelegate
	StreamDelegate    = interfaces.StreamDelegate
)

// Synchronizer outcomes.
const (
	OutcomeIgnored     = interfaces.OutcomeIgnored
	OutcomeStored      = interfaces.OutcomeStored
	OutcomeRepublished = interfaces.OutcomeRepublished
	OutcomeForeign     = interfaces.OutcomeForeign
	OutcomePending     = interfaces.OutcomePending
)

// Constructors and helpers re-exported from the types subpackage.
var (
	ParseJID           = types.ParseJID
	MustParseJID       = types.MustParseJID
	NewDeviceSet       = types.NewDeviceSet
	DeviceSetFromSlice = types.DeviceSetFromSlice
	ErrInvalidJID      = types.ErrInvalidJID
)
