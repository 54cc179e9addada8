package identity

import (
	"fmt"
	"time"
	"unicode"

	"omemo/internal/crypto"
	"omemo/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// Service manages identity key creation and access using a backing store.
//
// The identity contains:
//   - X25519 key pair for Diffie-Hellman (X3DH).
//   - Ed25519 key pair for signing (for example, signing the Signed Pre-Key).
type Service struct {
	store    domain.IdentityStore
	accounts domain.AccountStore
}

// New returns an identity service backed by the given stores.
func New(s domain.IdentityStore, accounts domain.AccountStore) *Service {
	return &Service{store: s, accounts: accounts}
}

// GenerateIdentity creates a new identity, saves it encrypted with the passphrase,
// and returns the identity plus a short fingerprint of the X25519 public key.
// An existing identity is replaced.
func (s *Service) GenerateIdentity(
	passphrase string,
) (domain.Identity, domain.Fingerprint, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, "", ErrWeakPassphrase
	}

	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, "", err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.Identity{}, "", err
	}

	id := domain.Identity{
		XPub:       xPub,
		XPriv:      xPriv,
		EdPub:      edPub,
		EdPriv:     edPriv,
		CreatedUTC: time.Now().Unix(),
	}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", err
	}
	return id, domain.Fingerprint(crypto.Fingerprint(id.XPub.Slice())), nil
}

// EnsureIdentity returns the stored identity, generating one on first run.
func (s *Service) EnsureIdentity(passphrase string) (domain.Identity, error) {
	id, ok, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return domain.Identity{}, err
	}
	if ok {
		return id, nil
	}
	id, _, err = s.GenerateIdentity(passphrase)
	return id, err
}

// FingerprintIdentity returns a short fingerprint of the local X25519 public key.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, ok, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no identity yet; run init first")
	}
	return domain.Fingerprint(crypto.Fingerprint(id.XPub.Slice())), nil
}

// RegistrationID returns this install's registration id, allocating and
// persisting it on first call. It never changes afterwards.
func (s *Service) RegistrationID(jid string) (uint32, error) {
	account, ok, err := s.accounts.LoadAccount()
	if err != nil {
		return 0, err
	}
	if ok && account.RegistrationID != 0 {
		return account.RegistrationID, nil
	}
	id, err := crypto.GenerateRegistrationID()
	if err != nil {
		return 0, err
	}
	account = domain.Account{JID: jid, RegistrationID: id, CreatedUTC: time.Now().Unix()}
	if err := s.accounts.SaveAccount(account); err != nil {
		return 0, err
	}
	return id, nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
