package identity_test

import (
	"errors"
	"testing"

	"omemo/internal/services/identity"
	"omemo/internal/store"
)

var fastKDF = store.KDFParams{N: 1 << 10, R: 8, P: 1}

func TestGenerateIdentity_RejectsWeakPassphrase(t *testing.T) {
	home := t.TempDir()
	svc := identity.New(store.NewIdentityFileStore(home, fastKDF), store.NewAccountFileStore(home))

	for _, pass := range []string{"short", "alllowercaseletters", "NoDigitsOrSymbols", "N0Symbols1234"} {
		if _, _, err := svc.GenerateIdentity(pass); !errors.Is(err, identity.ErrWeakPassphrase) {
			t.Fatalf("%q: want ErrWeakPassphrase, got %v", pass, err)
		}
	}
}

func TestEnsureIdentity_CreatesOnce(t *testing.T) {
	home := t.TempDir()
	svc := identity.New(store.NewIdentityFileStore(home, fastKDF), store.NewAccountFileStore(home))
	pass := "Correct-Horse-Battery-9"

	first, err := svc.EnsureIdentity(pass)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := svc.EnsureIdentity(pass)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if first.XPub != second.XPub {
		t.Fatal("identity regenerated on second call")
	}
	fp, err := svc.FingerprintIdentity(pass)
	if err != nil || fp == "" {
		t.Fatalf("fingerprint: %q %v", fp, err)
	}
}
