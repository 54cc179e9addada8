package prekey

import (
	"errors"

	"omemo/internal/crypto"
	"omemo/internal/domain"
)

var errNoSignedPrekey = errors.New("no signed pre-key available")

// Service manages pre-key pairs and builds the public bundle.
type Service struct {
	ids domain.IdentityStore
	ps  domain.PreKeyStore
}

// New returns a pre-key service over the identity and pre-key stores.
func New(ids domain.IdentityStore, ps domain.PreKeyStore) *Service {
	return &Service{ids: ids, ps: ps}
}

// GenerateSignedPreKey creates a signed pre-key, signs it with the identity
// key and marks it current.
func (s *Service) GenerateSignedPreKey(passphrase string) (domain.SignedPreKeyID, error) {
	id, ok, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New("no identity to sign the pre-key with")
	}

	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return 0, err
	}
	spkID, err := s.ps.AllocateSignedPreKeyID()
	if err != nil {
		return 0, err
	}
	sig := crypto.SignEd25519(id.EdPriv, spkPub.Slice())
	if err := s.ps.SaveSignedPreKey(spkID, spkPriv, spkPub, sig); err != nil {
		return 0, err
	}
	if err := s.ps.SetCurrentSignedPreKeyID(spkID); err != nil {
		return 0, err
	}
	return spkID, nil
}

// GenerateOneTimePreKeys adds count fresh one-time pre-keys to the store.
func (s *Service) GenerateOneTimePreKeys(count int) error {
	if count <= 0 {
		return nil
	}
	first, err := s.ps.AllocateOneTimePreKeyIDs(count)
	if err != nil {
		return err
	}
	pairs := make([]domain.OneTimePreKeyPair, 0, count)
	for i := 0; i < count; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return err
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{
			ID:   first + domain.OneTimePreKeyID(i),
			Priv: priv,
			Pub:  pub,
		})
	}
	return s.ps.SaveOneTimePreKeys(pairs)
}

// CountOneTimePreKeys reports the remaining one-time pre-key supply.
func (s *Service) CountOneTimePreKeys() (int, error) {
	return s.ps.CountOneTimePreKeys()
}

// LoadPreKeyBundle builds the public bundle from the current signed pre-key
// and the remaining one-time pre-keys.
func (s *Service) LoadPreKeyBundle(
	passphrase string,
	identity string,
	registrationID uint32,
) (domain.SessionKeyBundle, error) {
	id, ok, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.SessionKeyBundle{}, err
	}
	if !ok {
		return domain.SessionKeyBundle{}, errors.New("no identity to build a bundle from")
	}

	spkID, ok, err := s.ps.CurrentSignedPreKeyID()
	if err != nil {
		return domain.SessionKeyBundle{}, err
	}
	if !ok {
		return domain.SessionKeyBundle{}, errNoSignedPrekey
	}
	_, spkPub, sig, found, err := s.ps.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.SessionKeyBundle{}, err
	}
	if !found {
		return domain.SessionKeyBundle{}, errNoSignedPrekey
	}

	oneTime, err := s.ps.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.SessionKeyBundle{}, err
	}

	return domain.SessionKeyBundle{
		Identity:              identity,
		DeviceID:              domain.DeviceID(registrationID),
		RegistrationID:        registrationID,
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spkID,
		SignedPreKey:          spkPub,
		SignedPreKeySignature: sig,
		OneTimePreKeys:        oneTime,
	}, nil
}

// Compile-time assertion that Service implements domain.PreKeyService.
var _ domain.PreKeyService = (*Service)(nil)
