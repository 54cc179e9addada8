package x3dh_test

import (
	"bytes"
	"errors"
	"testing"

	"omemo/internal/crypto"
	"omemo/internal/domain"
	"omemo/internal/protocol/x3dh"
)

// makeIdentity creates a domain.Identity with fresh X25519 and Ed25519 pairs.
func makeIdentity(t *testing.T) domain.Identity {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	return domain.Identity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
}

// signedBundle returns Bob's bundle plus the private halves of its pre-keys.
func signedBundle(t *testing.T, bob domain.Identity, withOPK bool) (
	domain.SessionKeyBundle,
	domain.X25519Private,
	*domain.X25519Private,
) {
	t.Helper()
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	bundle := domain.SessionKeyBundle{
		Identity:              "bob@example.com",
		DeviceID:              5,
		RegistrationID:        5,
		IdentityKey:           bob.XPub,
		SigningKey:            bob.EdPub,
		SignedPreKeyID:        1,
		SignedPreKey:          spkPub,
		SignedPreKeySignature: crypto.SignEd25519(bob.EdPriv, spkPub[:]),
	}
	if !withOPK {
		return bundle, spkPriv, nil
	}
	opkPriv, opkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519 (opk): %v", err)
	}
	bundle.OneTimePreKeys = []domain.OneTimePreKeyPublic{{ID: 7, Pub: opkPub}}
	return bundle, spkPriv, &opkPriv
}

func TestInitiatorAndResponderRoot_NoOneTimePreKey(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, _ := signedBundle(t, bob, false)

	res, err := x3dh.InitiatorRoot(alice, bundle)
	if err != nil {
		t.Fatalf("InitiatorRoot: %v", err)
	}
	if res.Handshake.UsedOneTimePreKey {
		t.Fatal("want no one-time pre-key used")
	}
	if res.Handshake.SignedPreKeyID != 1 {
		t.Fatalf("want signed pre-key id 1, got %d", res.Handshake.SignedPreKeyID)
	}

	rk, err := x3dh.ResponderRoot(bob, spkPriv, nil, res.Handshake)
	if err != nil {
		t.Fatalf("ResponderRoot: %v", err)
	}
	if !bytes.Equal(res.RootKey, rk) {
		t.Fatal("root keys differ (no OPK)")
	}
}

func TestInitiatorAndResponderRoot_WithOneTimePreKey(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, opkPriv := signedBundle(t, bob, true)

	res, err := x3dh.InitiatorRoot(alice, bundle)
	if err != nil {
		t.Fatalf("InitiatorRoot: %v", err)
	}
	if !res.Handshake.UsedOneTimePreKey || res.Handshake.OneTimePreKeyID != 7 {
		t.Fatalf("unexpected one-time pre-key selection %+v", res.Handshake)
	}

	rk, err := x3dh.ResponderRoot(bob, spkPriv, opkPriv, res.Handshake)
	if err != nil {
		t.Fatalf("ResponderRoot: %v", err)
	}
	if !bytes.Equal(res.RootKey, rk) {
		t.Fatal("root keys differ (with OPK)")
	}

	if _, err := x3dh.ResponderRoot(bob, spkPriv, nil, res.Handshake); !errors.Is(err, x3dh.ErrMissingKey) {
		t.Fatalf("want ErrMissingKey without the OPK, got %v", err)
	}
}

func TestInitiatorRoot_RejectsBadSignature(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, _, _ := signedBundle(t, bob, false)
	bundle.SignedPreKeySignature[0] ^= 0x01

	if _, err := x3dh.InitiatorRoot(alice, bundle); !errors.Is(err, x3dh.ErrBadSPK) {
		t.Fatalf("want ErrBadSPK, got %v", err)
	}
}

func TestVerifyBundle_MissingKeys(t *testing.T) {
	if err := x3dh.VerifyBundle(domain.SessionKeyBundle{}); !errors.Is(err, x3dh.ErrMissingKey) {
		t.Fatalf("want ErrMissingKey, got %v", err)
	}
}
