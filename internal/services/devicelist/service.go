package devicelist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"omemo/internal/domain"
	"omemo/internal/metrics"
)

const (
	// DefaultFetchTimeout bounds the own device-list fetch in SelfCheck.
	DefaultFetchTimeout = 5 * time.Second
	// DefaultRepublishInterval is the steady-state spacing between republishes.
	DefaultRepublishInterval = 10 * time.Second
	// DefaultRepublishBurst is how many republishes may happen back to back.
	DefaultRepublishBurst = 3
	// DefaultEchoWindow is how long a pushed copy of the list we just healed
	// is treated as a stale echo of the pre-heal state.
	DefaultEchoWindow = 2 * time.Second
)

// Config tunes the synchronizer.
type Config struct {
	FetchTimeout      time.Duration
	RepublishInterval time.Duration
	RepublishBurst    int
	EchoWindow        time.Duration
	Metrics           *metrics.Metrics
}

// Service is the device list synchronizer for one local account.
type Service struct {
	account domain.JID
	devices domain.DeviceStore
	oracle  domain.SessionOracle
	cfg     Config
	limiter *rate.Limiter
	log     zerolog.Logger

	mu     sync.Mutex
	module domain.DiscoveryModule
	// inFlight is the list being published right now.
	inFlight domain.DeviceSet
	// healed is the last list we republished; pushes of the same pre-heal
	// list before healedUntil are echoes and do not publish again.
	healed      domain.DeviceSet
	healedUntil time.Time
}

// New returns a synchronizer for account. Zero config values fall back to the
// defaults.
func New(
	account domain.JID,
	devices domain.DeviceStore,
	oracle domain.SessionOracle,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.RepublishInterval <= 0 {
		cfg.RepublishInterval = DefaultRepublishInterval
	}
	if cfg.RepublishBurst <= 0 {
		cfg.RepublishBurst = DefaultRepublishBurst
	}
	if cfg.EchoWindow <= 0 {
		cfg.EchoWindow = DefaultEchoWindow
	}
	return &Service{
		account: account.BareJID(),
		devices: devices,
		oracle:  oracle,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.RepublishInterval), cfg.RepublishBurst),
		log:     log.With().Str("component", "devicelist").Str("account", account.Bare()).Logger(),
	}
}

// Bind attaches the discovery module used to publish and fetch our own list.
func (s *Service) Bind(module domain.DiscoveryModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.module = module
}

// ApplyDeviceList records a device list published by from.
//
// A remote list replaces the stored one. Our own list is stored as received
// when it contains our registration id. Otherwise the id is added, the healed
// list stored, and republished once; a repeat of the same list while that
// republish is being sent, or shortly after it, is only stored.
func (s *Service) ApplyDeviceList(ctx context.Context, from domain.JID, ids domain.DeviceSet) (domain.Outcome, error) {
	if !from.BareEqual(s.account) {
		if err := s.devices.RecordBuddyDevices(ctx, from.Bare(), ids); err != nil {
			return domain.OutcomeIgnored, fmt.Errorf("record devices of %s: %w", from.Bare(), err)
		}
		s.log.Debug().Str("from", from.Bare()).Int("devices", ids.Len()).Msg("device list stored")
		return domain.OutcomeStored, nil
	}
	return s.applyOwn(ctx, ids, false)
}

// applyOwn stores our own list, healing it when our id is missing. fetched
// marks a list read back from the server, which is current by definition and
// never treated as an echo.
func (s *Service) applyOwn(ctx context.Context, ids domain.DeviceSet, fetched bool) (domain.Outcome, error) {
	regID, err := s.oracle.OwnRegistrationID()
	if err != nil {
		return domain.OutcomeIgnored, err
	}
	own := domain.DeviceID(regID)

	if ids.Contains(own) {
		if err := s.devices.RecordOwnDevices(ctx, ids); err != nil {
			return domain.OutcomeIgnored, fmt.Errorf("record own devices: %w", err)
		}
		s.mu.Lock()
		s.healed = nil
		s.mu.Unlock()
		return domain.OutcomeStored, nil
	}

	healed := ids.Clone()
	healed.Add(own)
	if err := s.devices.RecordOwnDevices(ctx, healed); err != nil {
		return domain.OutcomeIgnored, fmt.Errorf("record own devices: %w", err)
	}
	s.log.Info().Uint32("device", regID).Ints("received", toInts(ids)).
		Msg("own device missing from published list")
	return s.republish(ctx, healed, fetched)
}

// ApplyOwnNotification handles a device-list event seen on the stream. Only
// events for the device-list node published by the stream's own bare address
// are applied; others are reported as ignored or foreign.
func (s *Service) ApplyOwnNotification(
	ctx context.Context,
	stream domain.JID,
	n domain.Notification,
) (domain.Outcome, error) {
	if n.Node != domain.NSDeviceList {
		return domain.OutcomeIgnored, nil
	}
	if stream.IsZero() || !n.From.BareEqual(stream) {
		return domain.OutcomeForeign, nil
	}
	return s.ApplyDeviceList(ctx, n.From, domain.DeviceSetFromSlice(n.DeviceIDs))
}

// SelfCheck fetches our own published list and heals it. A list that was
// never published is created with just our device. A fetch that times out is
// left to the next push.
func (s *Service) SelfCheck(ctx context.Context) (domain.Outcome, error) {
	module := s.boundModule()
	if module == nil {
		return domain.OutcomeIgnored, domain.ErrNotConfigured
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	ids, err := module.FetchDeviceIDs(fetchCtx, s.account)
	switch {
	case errors.Is(err, domain.ErrNodeNotFound):
		regID, err := s.oracle.OwnRegistrationID()
		if err != nil {
			return domain.OutcomeIgnored, err
		}
		fresh := domain.NewDeviceSet(domain.DeviceID(regID))
		if err := s.devices.RecordOwnDevices(ctx, fresh); err != nil {
			return domain.OutcomeIgnored, fmt.Errorf("record own devices: %w", err)
		}
		s.log.Info().Msg("no device list published yet")
		return s.republish(ctx, fresh, true)
	case errors.Is(err, context.DeadlineExceeded):
		s.cfg.Metrics.FetchTimedOut(domain.NSDeviceList)
		s.log.Warn().Dur("timeout", s.cfg.FetchTimeout).Msg("own device list fetch timed out, waiting for push")
		return domain.OutcomePending, nil
	case err != nil:
		return domain.OutcomePending, fmt.Errorf("fetch own device list: %w", err)
	}
	return s.applyOwn(ctx, domain.DeviceSetFromSlice(ids), true)
}

// republish publishes list unless the same list is being published, was
// published within the echo window, or the rate limit is exhausted. A fetched
// list skips the echo window.
func (s *Service) republish(ctx context.Context, list domain.DeviceSet, fetched bool) (domain.Outcome, error) {
	s.mu.Lock()
	module := s.module
	if s.inFlight != nil && s.inFlight.Equal(list) {
		s.mu.Unlock()
		s.log.Debug().Msg("republish already in flight")
		return domain.OutcomeStored, nil
	}
	if !fetched && s.healed != nil && s.healed.Equal(list) && time.Now().Before(s.healedUntil) {
		s.mu.Unlock()
		s.log.Debug().Msg("echo of the list before our republish")
		return domain.OutcomeStored, nil
	}
	if module == nil {
		s.mu.Unlock()
		return domain.OutcomeStored, domain.ErrNotConfigured
	}
	if !s.limiter.Allow() {
		s.mu.Unlock()
		s.log.Warn().Msg("republish rate limited")
		return domain.OutcomePending, nil
	}
	s.inFlight = list.Clone()
	s.mu.Unlock()

	err := module.PublishDeviceIDs(ctx, list.Sorted())
	s.mu.Lock()
	s.inFlight = nil
	if err == nil {
		s.healed = list.Clone()
		s.healedUntil = time.Now().Add(s.cfg.EchoWindow)
	}
	s.mu.Unlock()
	if err != nil {
		return domain.OutcomeStored, fmt.Errorf("publish device list: %w", err)
	}
	s.log.Info().Ints("devices", toInts(list)).Msg("device list republished")
	return domain.OutcomeRepublished, nil
}

func (s *Service) boundModule() domain.DiscoveryModule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.module
}

func toInts(ids domain.DeviceSet) []int {
	out := make([]int, 0, ids.Len())
	for _, id := range ids.Sorted() {
		out = append(out, int(id))
	}
	return out
}

var _ domain.DeviceListApplier = (*Service)(nil)
