package oracle

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"omemo/internal/domain"
	"omemo/internal/protocol/x3dh"
)

// Service is the session oracle. It holds no state of its own; every answer is
// a live query against the engine.
type Service struct {
	engine domain.RatchetEngine
	log    zerolog.Logger
}

// New returns an oracle over engine.
func New(engine domain.RatchetEngine, log zerolog.Logger) *Service {
	return &Service{engine: engine, log: log.With().Str("component", "oracle").Logger()}
}

// HasValidSession reports whether a usable session with (identity, deviceID)
// exists. Engine faults are logged and reported as false.
func (s *Service) HasValidSession(identity string, deviceID domain.DeviceID) bool {
	ok, err := s.SessionState(identity, deviceID)
	if err != nil {
		s.log.Warn().Err(err).Str("identity", identity).Uint32("device", uint32(deviceID)).
			Msg("session query failed")
		return false
	}
	return ok
}

// SessionState is HasValidSession with engine faults surfaced.
func (s *Service) SessionState(identity string, deviceID domain.DeviceID) (bool, error) {
	ok, err := s.engine.SessionExists(identity, deviceID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	return ok, nil
}

// OwnRegistrationID returns the engine's registration id, which doubles as
// this device's id.
func (s *Service) OwnRegistrationID() (uint32, error) {
	id, err := s.engine.RegistrationID()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	return id, nil
}

// EnsureSession starts a session with (identity, deviceID) from bundle unless
// one already exists. A bundle addressed to another device, or one whose keys
// fail verification, is rejected with domain.ErrInvalidBundle and leaves no
// session behind.
func (s *Service) EnsureSession(identity string, deviceID domain.DeviceID, bundle domain.SessionKeyBundle) error {
	ok, err := s.SessionState(identity, deviceID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if bundle.Identity != identity || bundle.DeviceID != deviceID {
		return fmt.Errorf("%w: bundle for %s:%d offered for %s:%d", domain.ErrInvalidBundle,
			bundle.Identity, bundle.DeviceID, identity, deviceID)
	}
	if err := s.engine.ProcessBundle(bundle); err != nil {
		if errors.Is(err, x3dh.ErrBadSPK) || errors.Is(err, x3dh.ErrMissingKey) {
			s.log.Warn().Err(err).Str("identity", identity).Uint32("device", uint32(deviceID)).
				Msg("rejected bundle")
			return fmt.Errorf("%w: %v", domain.ErrInvalidBundle, err)
		}
		return fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	s.log.Info().Str("identity", identity).Uint32("device", uint32(deviceID)).Msg("session started")
	return nil
}

var _ domain.SessionOracle = (*Service)(nil)
