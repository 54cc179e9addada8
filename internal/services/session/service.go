package session

import (
	"errors"
	"time"

	"omemo/internal/domain"
	"omemo/internal/protocol/x3dh"
)

// Service performs X3DH initiation and persists sessions.
//
// A session represents the shared root key and associated metadata needed
// for a ratchet conversation with one device. This service handles:
//   - Retrieving our own identity keys.
//   - Running the X3DH key agreement as the initiator against a bundle.
//   - Persisting the resulting session under the device's address.
type Service struct {
	idStore      domain.IdentityStore
	sessionStore domain.SessionStore
}

// New constructs a Session Service with the given stores.
func New(idStore domain.IdentityStore, sessionStore domain.SessionStore) *Service {
	return &Service{idStore: idStore, sessionStore: sessionStore}
}

// EstablishSession runs X3DH against bundle and stores the resulting session.
//
// Steps:
//  1. Load our own identity key pair from the identity store.
//  2. Verify the bundle and run X3DH as the initiator to derive the root key
//     and record which pre-keys were used.
//  3. Persist the session record for the bundle's (identity, device).
func (s *Service) EstablishSession(
	passphrase string,
	bundle domain.SessionKeyBundle,
) (domain.SessionRecord, error) {
	id, ok, err := s.idStore.LoadIdentity(passphrase)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	if !ok {
		return domain.SessionRecord{}, errors.New("no local identity")
	}

	res, err := x3dh.InitiatorRoot(id, bundle)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	record := domain.SessionRecord{
		Identity:              bundle.Identity,
		DeviceID:              bundle.DeviceID,
		RootKey:               res.RootKey,
		PeerSignedPreKey:      bundle.SignedPreKey,
		PeerIdentityKey:       bundle.IdentityKey,
		PeerRegistrationID:    bundle.RegistrationID,
		CreatedUTC:            time.Now().Unix(),
		SignedPreKeyID:        res.Handshake.SignedPreKeyID,
		OneTimePreKeyID:       res.Handshake.OneTimePreKeyID,
		UsedOneTimePreKey:     res.Handshake.UsedOneTimePreKey,
		InitiatorEphemeralKey: res.Handshake.EphemeralKey,
	}
	addr := domain.SessionAddress{Identity: bundle.Identity, DeviceID: bundle.DeviceID}
	if err := s.sessionStore.SaveSession(addr, record); err != nil {
		return domain.SessionRecord{}, err
	}
	return record, nil
}

// GetSession retrieves a stored session for addr.
func (s *Service) GetSession(addr domain.SessionAddress) (domain.SessionRecord, bool, error) {
	return s.sessionStore.LoadSession(addr)
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
