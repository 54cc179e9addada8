package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"omemo/internal/domain"
	"omemo/internal/services/identity"
	"omemo/internal/services/prekey"
	"omemo/internal/services/session"
	"omemo/internal/store"
)

// Engine implements domain.RatchetEngine for a single local account.
type Engine struct {
	ids      domain.IdentityService
	prekeys  domain.PreKeyService
	sessions domain.SessionService

	account    string
	passphrase string
	log        zerolog.Logger
}

// New builds an Engine from its services. account is the local bare JID.
func New(
	ids domain.IdentityService,
	prekeys domain.PreKeyService,
	sessions domain.SessionService,
	account string,
	passphrase string,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		ids:        ids,
		prekeys:    prekeys,
		sessions:   sessions,
		account:    account,
		passphrase: passphrase,
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// Open wires an Engine over the JSON file stores rooted at home.
func Open(home string, kdf store.KDFParams, account, passphrase string, log zerolog.Logger) *Engine {
	idStore := store.NewIdentityFileStore(home, kdf)
	return New(
		identity.New(idStore, store.NewAccountFileStore(home)),
		prekey.New(idStore, store.NewPrekeyFileStore(home)),
		session.New(idStore, store.NewSessionFileStore(home)),
		account,
		passphrase,
		log,
	)
}

// RegistrationID returns this install's registration id, assigning it on first use.
func (e *Engine) RegistrationID() (uint32, error) {
	return e.ids.RegistrationID(e.account)
}

// EnsureIdentity loads the identity, creating it on first run.
func (e *Engine) EnsureIdentity() (domain.Identity, error) {
	return e.ids.EnsureIdentity(e.passphrase)
}

// Fingerprint returns the short fingerprint of the identity key.
func (e *Engine) Fingerprint() (domain.Fingerprint, error) {
	return e.ids.FingerprintIdentity(e.passphrase)
}

// RotateIdentity replaces the identity keys and signs a fresh signed pre-key
// with the new signing key. The registration id is kept.
func (e *Engine) RotateIdentity() (domain.Fingerprint, error) {
	_, fp, err := e.ids.GenerateIdentity(e.passphrase)
	if err != nil {
		return "", fmt.Errorf("rotate identity: %w", err)
	}
	if _, err := e.prekeys.GenerateSignedPreKey(e.passphrase); err != nil {
		return "", fmt.Errorf("rotate identity: signed pre-key: %w", err)
	}
	e.log.Info().Str("fingerprint", string(fp)).Msg("identity rotated")
	return fp, nil
}

// SessionExists reports whether a session with (owner, deviceID) is stored.
func (e *Engine) SessionExists(owner string, deviceID domain.DeviceID) (bool, error) {
	_, ok, err := e.sessions.GetSession(domain.SessionAddress{Identity: owner, DeviceID: deviceID})
	return ok, err
}

// ProcessBundle verifies bundle and establishes a session with its device.
func (e *Engine) ProcessBundle(bundle domain.SessionKeyBundle) error {
	if _, err := e.EnsureIdentity(); err != nil {
		return err
	}
	rec, err := e.sessions.EstablishSession(e.passphrase, bundle)
	if err != nil {
		return err
	}
	e.log.Debug().
		Str("identity", rec.Identity).
		Uint32("device", uint32(rec.DeviceID)).
		Bool("one_time_pre_key", rec.UsedOneTimePreKey).
		Msg("session established")
	return nil
}

// GenerateBundle signs a new signed pre-key, tops the one-time pre-key supply
// up to preKeys and returns the resulting bundle. The identity key is reused.
func (e *Engine) GenerateBundle(owner string, preKeys int) (domain.SessionKeyBundle, error) {
	if _, err := e.EnsureIdentity(); err != nil {
		return domain.SessionKeyBundle{}, err
	}
	if _, err := e.prekeys.GenerateSignedPreKey(e.passphrase); err != nil {
		return domain.SessionKeyBundle{}, fmt.Errorf("signed pre-key: %w", err)
	}
	count, err := e.prekeys.CountOneTimePreKeys()
	if err != nil {
		return domain.SessionKeyBundle{}, err
	}
	if count < preKeys {
		if err := e.prekeys.GenerateOneTimePreKeys(preKeys - count); err != nil {
			return domain.SessionKeyBundle{}, fmt.Errorf("one-time pre-keys: %w", err)
		}
	}
	return e.CurrentBundle(owner)
}

// ReplenishPreKeys adds n one-time pre-keys.
func (e *Engine) ReplenishPreKeys(n int) error {
	return e.prekeys.GenerateOneTimePreKeys(n)
}

// CurrentBundle assembles the bundle from the stored keys without generating any.
func (e *Engine) CurrentBundle(owner string) (domain.SessionKeyBundle, error) {
	regID, err := e.RegistrationID()
	if err != nil {
		return domain.SessionKeyBundle{}, err
	}
	return e.prekeys.LoadPreKeyBundle(e.passphrase, owner, regID)
}

// PreKeyCount reports the remaining one-time pre-keys.
func (e *Engine) PreKeyCount() (int, error) {
	return e.prekeys.CountOneTimePreKeys()
}

var _ domain.RatchetEngine = (*Engine)(nil)
