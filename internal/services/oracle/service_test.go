package oracle_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"omemo/internal/domain"
	"omemo/internal/engine"
	"omemo/internal/services/oracle"
	"omemo/internal/store"
)

const testPass = "Correct-Horse-Battery-9"

var fastKDF = store.KDFParams{N: 1 << 10, R: 8, P: 1}

func newEngine(t *testing.T, account string) *engine.Engine {
	t.Helper()
	return engine.Open(t.TempDir(), fastKDF, account, testPass, zerolog.Nop())
}

// faultyEngine fails every call.
type faultyEngine struct{ domain.RatchetEngine }

func (faultyEngine) SessionExists(string, domain.DeviceID) (bool, error) {
	return false, errors.New("disk on fire")
}

func (faultyEngine) RegistrationID() (uint32, error) { return 0, errors.New("disk on fire") }

func TestEnsureSession_ThenValid(t *testing.T) {
	orc := oracle.New(newEngine(t, "alice@example.com"), zerolog.Nop())
	bob := newEngine(t, "bob@example.com")
	bundle, err := bob.GenerateBundle("bob@example.com", 2)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}

	if orc.HasValidSession("bob@example.com", bundle.DeviceID) {
		t.Fatal("valid before any session")
	}
	if err := orc.EnsureSession("bob@example.com", bundle.DeviceID, bundle); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !orc.HasValidSession("bob@example.com", bundle.DeviceID) {
		t.Fatal("not valid after EnsureSession")
	}
	// Idempotent: a second call with a now-tampered bundle is still a no-op.
	bundle.SignedPreKeySignature[0] ^= 0xff
	if err := orc.EnsureSession("bob@example.com", bundle.DeviceID, bundle); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

func TestEnsureSession_BadSignature(t *testing.T) {
	orc := oracle.New(newEngine(t, "alice@example.com"), zerolog.Nop())
	bob := newEngine(t, "bob@example.com")
	bundle, err := bob.GenerateBundle("bob@example.com", 1)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	bundle.DeviceID = 5
	bundle.SignedPreKeySignature[3] ^= 0x01

	err = orc.EnsureSession("bob@example.com", 5, bundle)
	if !errors.Is(err, domain.ErrInvalidBundle) {
		t.Fatalf("want ErrInvalidBundle, got %v", err)
	}
	if orc.HasValidSession("bob@example.com", 5) {
		t.Fatal("session valid after rejected bundle")
	}
}

func TestEnsureSession_AddressMismatch(t *testing.T) {
	orc := oracle.New(newEngine(t, "alice@example.com"), zerolog.Nop())
	bob := newEngine(t, "bob@example.com")
	bundle, err := bob.GenerateBundle("bob@example.com", 1)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}

	if err := orc.EnsureSession("carol@example.com", bundle.DeviceID, bundle); !errors.Is(err, domain.ErrInvalidBundle) {
		t.Fatalf("want ErrInvalidBundle, got %v", err)
	}
	if err := orc.EnsureSession("bob@example.com", bundle.DeviceID+1, bundle); !errors.Is(err, domain.ErrInvalidBundle) {
		t.Fatalf("want ErrInvalidBundle, got %v", err)
	}
}

func TestEngineFault(t *testing.T) {
	orc := oracle.New(faultyEngine{}, zerolog.Nop())

	if orc.HasValidSession("bob@example.com", 1) {
		t.Fatal("fault reported as valid")
	}
	if _, err := orc.SessionState("bob@example.com", 1); !errors.Is(err, domain.ErrEngineFailure) {
		t.Fatalf("want ErrEngineFailure, got %v", err)
	}
	if _, err := orc.OwnRegistrationID(); !errors.Is(err, domain.ErrEngineFailure) {
		t.Fatalf("want ErrEngineFailure, got %v", err)
	}
	if err := orc.EnsureSession("bob@example.com", 1, domain.SessionKeyBundle{}); !errors.Is(err, domain.ErrEngineFailure) {
		t.Fatalf("want ErrEngineFailure, got %v", err)
	}
}
