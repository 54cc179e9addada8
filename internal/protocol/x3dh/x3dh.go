package x3dh

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"

	"omemo/internal/crypto"
	"omemo/internal/domain"
	"omemo/internal/util/memzero"
)

const rootKeySize = 32

var (
	// ErrBadSPK is returned when the signed pre-key signature does not verify.
	ErrBadSPK = errors.New("x3dh: signed pre-key signature invalid")
	// ErrMissingKey is returned when the bundle lacks an identity or signed pre-key.
	ErrMissingKey = errors.New("x3dh: bundle is missing key material")
)

// info binds derived keys to this protocol.
var info = []byte("omemo-x3dh")

// Handshake carries what the responder needs to recompute the root key. It
// travels with the first message of a session.
type Handshake struct {
	InitiatorIdentityKey domain.X25519Public
	EphemeralKey         domain.X25519Public
	SignedPreKeyID       domain.SignedPreKeyID
	OneTimePreKeyID      domain.OneTimePreKeyID
	UsedOneTimePreKey    bool
}

// Result is the initiator's view of a completed key agreement.
type Result struct {
	RootKey   []byte
	Handshake Handshake
}

// VerifyBundle checks that bundle carries usable key material and a valid
// signature over its signed pre-key.
func VerifyBundle(bundle domain.SessionKeyBundle) error {
	if bundle.IdentityKey.IsZero() || bundle.SignedPreKey.IsZero() {
		return ErrMissingKey
	}
	if !crypto.VerifyEd25519(bundle.SigningKey, bundle.SignedPreKey.Slice(), bundle.SignedPreKeySignature) {
		return ErrBadSPK
	}
	return nil
}

// InitiatorRoot runs X3DH against bundle and returns the root key together with
// the handshake parameters. The first one-time pre-key of the bundle is used
// when present.
func InitiatorRoot(id domain.Identity, bundle domain.SessionKeyBundle) (Result, error) {
	if err := VerifyBundle(bundle); err != nil {
		return Result{}, err
	}
	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return Result{}, err
	}
	defer memzero.Zero(ephPriv[:])

	hs := Handshake{
		InitiatorIdentityKey: id.XPub,
		EphemeralKey:         ephPub,
		SignedPreKeyID:       bundle.SignedPreKeyID,
	}
	var opk *domain.X25519Public
	if len(bundle.OneTimePreKeys) > 0 {
		first := bundle.OneTimePreKeys[0]
		opk = &first.Pub
		hs.OneTimePreKeyID = first.ID
		hs.UsedOneTimePreKey = true
	}

	secrets := [][2][32]byte{
		{id.XPriv, bundle.SignedPreKey}, // DH(IKA, SPKB)
		{ephPriv, bundle.IdentityKey},   // DH(EKA, IKB)
		{ephPriv, bundle.SignedPreKey},  // DH(EKA, SPKB)
	}
	if opk != nil {
		secrets = append(secrets, [2][32]byte{ephPriv, *opk}) // DH(EKA, OPKB)
	}
	root, err := derive(secrets)
	if err != nil {
		return Result{}, err
	}
	return Result{RootKey: root, Handshake: hs}, nil
}

// ResponderRoot recomputes the initiator's root key from our identity, the
// private half of the referenced signed pre-key and, if one was used, the
// one-time pre-key.
func ResponderRoot(
	id domain.Identity,
	spkPriv domain.X25519Private,
	opkPriv *domain.X25519Private,
	hs Handshake,
) ([]byte, error) {
	secrets := [][2][32]byte{
		{spkPriv, hs.InitiatorIdentityKey}, // DH(SPKB, IKA)
		{id.XPriv, hs.EphemeralKey},        // DH(IKB, EKA)
		{spkPriv, hs.EphemeralKey},         // DH(SPKB, EKA)
	}
	if hs.UsedOneTimePreKey {
		if opkPriv == nil {
			return nil, ErrMissingKey
		}
		secrets = append(secrets, [2][32]byte{*opkPriv, hs.EphemeralKey})
	}
	return derive(secrets)
}

// derive computes each DH pair, concatenates the outputs and runs HKDF-SHA256.
func derive(pairs [][2][32]byte) ([]byte, error) {
	ikm := make([]byte, 0, 32*len(pairs))
	defer func() { memzero.Zero(ikm) }()
	for _, p := range pairs {
		out, err := crypto.DH(p[0], p[1])
		if err != nil {
			return nil, err
		}
		ikm = append(ikm, out[:]...)
		memzero.Zero(out[:])
	}
	root := make([]byte, rootKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, info), root); err != nil {
		return nil, err
	}
	return root, nil
}
