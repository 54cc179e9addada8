package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omemo/internal/domain"
	"omemo/internal/metrics"
)

const (
	// DefaultFetchTimeout bounds every discovery fetch.
	DefaultFetchTimeout = 5 * time.Second
	defaultQueueSize    = 256
)

// Synchronizer is the device-list synchronizer as the coordinator drives it.
type Synchronizer interface {
	domain.DeviceListApplier
	Bind(module domain.DiscoveryModule)
}

// Options tunes a Coordinator.
type Options struct {
	FetchTimeout time.Duration
	QueueSize    int
	Metrics      *metrics.Metrics
}

// Coordinator is the facade the discovery module and the stream call into.
type Coordinator struct {
	account   domain.JID
	devices   domain.DeviceStore
	oracle    domain.SessionOracle
	publisher domain.BundlePublisher
	lists     Synchronizer

	q       *queue
	bundles *tracker[domain.SessionKeyBundle]
	metrics *metrics.Metrics
	log     zerolog.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// module is written on the worker and read by fetch goroutines.
	mu     sync.RWMutex
	module domain.DiscoveryModule
}

// New starts a coordinator for account. Close must be called to stop its worker.
func New(
	account domain.JID,
	devices domain.DeviceStore,
	oracle domain.SessionOracle,
	publisher domain.BundlePublisher,
	lists Synchronizer,
	opts Options,
	log zerolog.Logger,
) *Coordinator {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	log = log.With().Str("component", "coordinator").Str("account", account.Bare()).Logger()
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		account:   account.BareJID(),
		devices:   devices,
		oracle:    oracle,
		publisher: publisher,
		lists:     lists,
		q:         newQueue(opts.QueueSize, log, opts.Metrics),
		bundles:   newTracker[domain.SessionKeyBundle](),
		metrics:   opts.Metrics,
		log:       log,
		timeout:   opts.FetchTimeout,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Close cancels outstanding work and stops the worker.
func (c *Coordinator) Close() {
	c.cancel()
	c.q.close()
}

// Configure attaches the discovery module. The coordinator does not own it.
func (c *Coordinator) Configure(module domain.DiscoveryModule) bool {
	err := c.q.do(c.ctx, func() {
		c.mu.Lock()
		c.module = module
		c.mu.Unlock()
		c.lists.Bind(module)
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("configure failed")
		return false
	}
	c.log.Debug().Msg("discovery module configured")
	return true
}

// OnDeviceListUpdate applies a device list pushed by the discovery module.
func (c *Coordinator) OnDeviceListUpdate(from domain.JID, ids []domain.DeviceID) {
	set := domain.DeviceSetFromSlice(ids)
	c.dispatch("device list update", func() {
		if c.currentModule() == nil {
			c.log.Debug().Str("from", from.Bare()).Msg("device list before configure, dropped")
			return
		}
		c.applyDeviceList(from, set)
	})
}

// DeviceIDsFor returns the stored devices of jid's bare address in ascending
// order. Unknown addresses and store faults yield an empty slice.
func (c *Coordinator) DeviceIDsFor(jid domain.JID) []domain.DeviceID {
	out := []domain.DeviceID{}
	err := c.q.do(c.ctx, func() {
		set, err := c.devices.DevicesFor(c.ctx, jid.Bare())
		if err != nil {
			c.log.Warn().Err(err).Str("jid", jid.Bare()).Msg("device lookup failed")
			return
		}
		out = set.Sorted()
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("device lookup not run")
	}
	return out
}

// OwnDeviceID returns this device's id, or 0 if the engine cannot supply it.
func (c *Coordinator) OwnDeviceID() domain.DeviceID {
	var id uint32
	err := c.q.do(c.ctx, func() {
		var err error
		if id, err = c.oracle.OwnRegistrationID(); err != nil {
			c.log.Error().Err(err).Msg("registration id unavailable")
		}
	})
	if err != nil {
		return 0
	}
	return domain.DeviceID(id)
}

// IsSessionValid reports whether a session with (jid's bare address, deviceID) exists.
func (c *Coordinator) IsSessionValid(jid domain.JID, deviceID domain.DeviceID) bool {
	var ok bool
	if err := c.q.do(c.ctx, func() { ok = c.oracle.HasValidSession(jid.Bare(), deviceID) }); err != nil {
		return false
	}
	return ok
}

// Features lists the capabilities to advertise so peers push device lists.
func (c *Coordinator) Features() []string {
	return domain.Features()
}

// OnAuthenticated runs the post-login routine in the background: publish our
// bundle if needed, then fetch and heal our own device list.
func (c *Coordinator) OnAuthenticated() {
	c.dispatch("authenticated", func() {
		if _, err := c.refresh(c.ctx); err != nil {
			c.log.Warn().Err(err).Msg("post-authentication refresh failed")
		}
	})
}

// Refresh is OnAuthenticated run synchronously. It returns the outcome of the
// own device-list check.
func (c *Coordinator) Refresh(ctx context.Context) (domain.Outcome, error) {
	var (
		out domain.Outcome
		err error
	)
	if qerr := c.q.do(ctx, func() { out, err = c.refresh(ctx) }); qerr != nil {
		return domain.OutcomeIgnored, qerr
	}
	return out, err
}

// OnMessageReceived inspects a stanza for device-list events. Only events
// published by our own account are applied; contacts' lists arrive through
// OnDeviceListUpdate, so an event from anyone else is dropped.
func (c *Coordinator) OnMessageReceived(msg domain.Message) {
	if msg.Event == nil {
		return
	}
	event := *msg.Event
	c.dispatch("message received", func() {
		module := c.currentModule()
		if module == nil {
			return
		}
		stream, ok := module.StreamJID()
		if !ok {
			c.log.Debug().Msg("event before stream authenticated, dropped")
			return
		}
		out, err := c.lists.ApplyOwnNotification(c.ctx, stream, event)
		if out == domain.OutcomeForeign {
			c.log.Debug().Str("from", event.From.Bare()).Msg("device list event from another account, ignored")
		}
		c.record(out, err)
	})
}

// PrepareRecipients returns the devices of jid that have a usable session,
// starting sessions where a valid bundle can be fetched. Devices whose bundle
// is missing, invalid or slow are left out. Our own device is never returned.
func (c *Coordinator) PrepareRecipients(ctx context.Context, jid domain.JID) ([]domain.DeviceID, error) {
	bare := jid.Bare()

	var (
		ready   []domain.DeviceID
		missing []domain.DeviceID
		ownID   uint32
		jobErr  error
	)
	err := c.q.do(ctx, func() {
		if c.currentModule() == nil {
			jobErr = domain.ErrNotConfigured
			return
		}
		set, err := c.devices.DevicesFor(ctx, bare)
		if err != nil {
			jobErr = err
			return
		}
		if jid.BareEqual(c.account) {
			if ownID, err = c.oracle.OwnRegistrationID(); err != nil {
				jobErr = err
				return
			}
		}
		for _, id := range set.Sorted() {
			switch {
			case ownID != 0 && id == domain.DeviceID(ownID):
			case c.oracle.HasValidSession(bare, id):
				ready = append(ready, id)
			default:
				missing = append(missing, id)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if jobErr != nil {
		return nil, jobErr
	}

	bundles := c.fetchBundles(ctx, jid.BareJID(), missing)

	err = c.q.do(ctx, func() {
		for _, id := range missing {
			bundle, ok := bundles[id]
			if !ok {
				continue
			}
			if err := c.oracle.EnsureSession(bare, id, bundle); err != nil {
				if errors.Is(err, domain.ErrInvalidBundle) {
					c.metrics.BundleRejected()
				}
				c.log.Warn().Err(err).Str("jid", bare).Uint32("device", uint32(id)).Msg("session not started")
				continue
			}
			c.metrics.SessionStarted()
			ready = append(ready, id)
		}
	})
	if err != nil {
		return nil, err
	}
	return domain.DeviceSetFromSlice(ready).Sorted(), nil
}

// fetchBundles fetches the bundles of ids concurrently. Only successful
// fetches are returned.
func (c *Coordinator) fetchBundles(
	ctx context.Context,
	owner domain.JID,
	ids []domain.DeviceID,
) map[domain.DeviceID]domain.SessionKeyBundle {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[domain.DeviceID]domain.SessionKeyBundle, len(ids))
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id domain.DeviceID) {
			defer wg.Done()
			bundle, err := c.fetchBundle(ctx, owner, id)
			if err != nil {
				c.log.Info().Err(err).Str("jid", owner.Bare()).Uint32("device", uint32(id)).
					Msg("bundle unavailable")
				return
			}
			mu.Lock()
			out[id] = bundle
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return out
}

// fetchBundle fetches one bundle, sharing the query with any caller already
// waiting on the same device.
func (c *Coordinator) fetchBundle(
	ctx context.Context,
	owner domain.JID,
	id domain.DeviceID,
) (domain.SessionKeyBundle, error) {
	key := fetchKey{node: domain.NSBundles + ":" + strconv.FormatUint(uint64(id), 10), identity: owner.Bare()}
	f, leader := c.bundles.join(key)
	if !leader {
		select {
		case <-f.done:
			return f.result, f.err
		case <-ctx.Done():
			return domain.SessionKeyBundle{}, ctx.Err()
		}
	}

	module := c.currentModule()
	if module == nil {
		c.bundles.finish(key, f, domain.SessionKeyBundle{}, domain.ErrNotConfigured)
		return domain.SessionKeyBundle{}, domain.ErrNotConfigured
	}
	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debug().Str("query", f.id).Str("node", key.node).Str("jid", key.identity).Msg("fetching bundle")
	bundle, err := module.FetchBundle(fctx, owner, id)
	if errors.Is(err, context.DeadlineExceeded) {
		c.metrics.FetchTimedOut(domain.NSBundles)
	}
	c.bundles.finish(key, f, bundle, err)
	return bundle, err
}

// refresh publishes our bundle when needed and checks our own device list.
// It runs on the worker.
func (c *Coordinator) refresh(ctx context.Context) (domain.Outcome, error) {
	module := c.currentModule()
	if module == nil {
		return domain.OutcomeIgnored, domain.ErrNotConfigured
	}
	if err := c.publishBundle(ctx, module); err != nil {
		// The device-list check does not depend on the bundle.
		c.log.Warn().Err(err).Msg("bundle publication failed")
	}
	out, err := c.lists.SelfCheck(ctx)
	c.record(out, err)
	return out, err
}

func (c *Coordinator) publishBundle(ctx context.Context, module domain.DiscoveryModule) error {
	need, err := c.publisher.NeedsPublication()
	if err != nil {
		return err
	}
	if !need {
		return nil
	}
	bundle, err := c.publisher.CurrentOrNewBundle()
	if err != nil {
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := module.PublishBundle(pctx, bundle); err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}
	if err := c.publisher.MarkPublished(bundle); err != nil {
		return err
	}
	c.metrics.BundlePublished()
	c.log.Info().Uint32("device", uint32(bundle.DeviceID)).Int("pre_keys", len(bundle.OneTimePreKeys)).
		Msg("bundle published")
	return nil
}

func (c *Coordinator) applyDeviceList(from domain.JID, set domain.DeviceSet) {
	out, err := c.lists.ApplyDeviceList(c.ctx, from, set)
	c.record(out, err)
}

func (c *Coordinator) record(out domain.Outcome, err error) {
	c.metrics.Outcome(out.String())
	if err != nil {
		c.log.Warn().Err(err).Stringer("outcome", out).Msg("device list not applied cleanly")
		return
	}
	c.log.Debug().Stringer("outcome", out).Msg("device list applied")
}

func (c *Coordinator) dispatch(what string, job func()) {
	if err := c.q.dispatch(job); err != nil {
		c.log.Debug().Err(err).Str("job", what).Msg("dropped")
	}
}

func (c *Coordinator) currentModule() domain.DiscoveryModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.module
}

// Outstanding reports how many bundle queries are in flight.
func (c *Coordinator) Outstanding() int {
	return c.bundles.outstanding()
}

var (
	_ domain.ModuleDelegate = (*Coordinator)(nil)
	_ domain.StreamDelegate = (*Coordinator)(nil)
)
