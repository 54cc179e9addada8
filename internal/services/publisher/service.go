package publisher

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"omemo/internal/domain"
)

const (
	// DefaultThreshold is the one-time pre-key count below which the bundle is refreshed.
	DefaultThreshold = 20
	// DefaultTarget is the supply a refresh tops up to.
	DefaultTarget = 100
)

// Config tunes pre-key replenishment.
type Config struct {
	Threshold int
	Target    int
}

// Service is the bundle publisher for one local account.
type Service struct {
	engine   domain.RatchetEngine
	bundles  domain.BundleStore
	identity string
	cfg      Config
	log      zerolog.Logger
}

// New returns a publisher for the bare identity. Zero config values fall back
// to the defaults.
func New(
	engine domain.RatchetEngine,
	bundles domain.BundleStore,
	identity string,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Target < cfg.Threshold {
		cfg.Target = max(DefaultTarget, cfg.Threshold)
	}
	return &Service{
		engine:   engine,
		bundles:  bundles,
		identity: identity,
		cfg:      cfg,
		log:      log.With().Str("component", "publisher").Logger(),
	}
}

// CurrentOrNewBundle returns the cached bundle while it still describes the
// engine's keys and the pre-key supply is healthy. A healthy bundle whose
// pre-keys were consumed since caching is rebuilt from the engine. Otherwise
// it replenishes or regenerates. Any new bundle is cached as unpublished.
func (s *Service) CurrentOrNewBundle() (domain.SessionKeyBundle, error) {
	cached, ok, err := s.bundles.LoadBundle()
	if err != nil {
		return domain.SessionKeyBundle{}, err
	}
	current, err := s.matchesEngine(cached, ok)
	if err != nil {
		return domain.SessionKeyBundle{}, err
	}
	count, err := s.engine.PreKeyCount()
	if err != nil {
		return domain.SessionKeyBundle{}, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}

	var bundle domain.SessionKeyBundle
	switch {
	case current && count >= s.cfg.Threshold:
		if count == len(cached.Bundle.OneTimePreKeys) {
			return cached.Bundle, nil
		}
		bundle, err = s.engine.CurrentBundle(s.identity)
		s.log.Debug().Int("pre_keys", count).Msg("bundle rebuilt after pre-key use")
	case current:
		if err := s.engine.ReplenishPreKeys(s.cfg.Target - count); err != nil {
			return domain.SessionKeyBundle{}, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
		}
		bundle, err = s.engine.CurrentBundle(s.identity)
		s.log.Info().Int("pre_keys", s.cfg.Target).Msg("pre-keys replenished")
	default:
		bundle, err = s.engine.GenerateBundle(s.identity, s.cfg.Target)
		s.log.Info().Msg("bundle generated")
	}
	if err != nil {
		return domain.SessionKeyBundle{}, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	if err := s.bundles.SaveBundle(domain.PublishedBundle{Bundle: bundle}); err != nil {
		return domain.SessionKeyBundle{}, err
	}
	return bundle, nil
}

// NeedsPublication reports whether the discovery service lacks an up-to-date
// bundle: never published, stale keys, or a pre-key supply below threshold.
func (s *Service) NeedsPublication() (bool, error) {
	cached, ok, err := s.bundles.LoadBundle()
	if err != nil {
		return false, err
	}
	if !ok || !cached.Published {
		return true, nil
	}
	current, err := s.matchesEngine(cached, ok)
	if err != nil {
		return false, err
	}
	if !current {
		return true, nil
	}
	count, err := s.engine.PreKeyCount()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	return count < s.cfg.Threshold, nil
}

// MarkPublished records that bundle reached the discovery service.
func (s *Service) MarkPublished(bundle domain.SessionKeyBundle) error {
	return s.bundles.SaveBundle(domain.PublishedBundle{
		Bundle:       bundle,
		Published:    true,
		PublishedUTC: time.Now().Unix(),
	})
}

// matchesEngine reports whether the cached bundle carries the engine's
// current registration id and identity key.
func (s *Service) matchesEngine(cached domain.PublishedBundle, ok bool) (bool, error) {
	if !ok {
		return false, nil
	}
	regID, err := s.engine.RegistrationID()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	id, err := s.engine.EnsureIdentity()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	return cached.Bundle.RegistrationID == regID && cached.Bundle.IdentityKey == id.XPub, nil
}

var _ domain.BundlePublisher = (*Service)(nil)
