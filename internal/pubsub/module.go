package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"omemo/internal/domain"
)

const (
	// DeviceListBucket holds one device list per bare JID.
	DeviceListBucket = "omemo_devicelist"
	// BundleBucket holds one bundle per (bare JID, device).
	BundleBucket = "omemo_bundles"
)

// Config holds connection settings.
type Config struct {
	URL             string
	CredentialsFile string
	Timeout         time.Duration
}

// Module implements domain.DiscoveryModule over JetStream KV.
type Module struct {
	conn    *nats.Conn
	lists   nats.KeyValue
	bundles nats.KeyValue
	stream  domain.JID
	log     zerolog.Logger
}

// Connect dials NATS, creates the buckets if needed and returns a module
// acting for stream.
func Connect(cfg Config, stream domain.JID, log zerolog.Logger) (*Module, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	log = log.With().Str("component", "pubsub").Logger()

	opts := []nats.Option{
		nats.Name("omemo-" + stream.Bare()),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredentialsFile))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream(nats.MaxWait(cfg.Timeout))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	lists, err := bucket(js, DeviceListBucket)
	if err != nil {
		conn.Close()
		return nil, err
	}
	bundles, err := bucket(js, BundleBucket)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Module{conn: conn, lists: lists, bundles: bundles, stream: stream, log: log}, nil
}

func bucket(js nats.JetStreamContext, name string) (nats.KeyValue, error) {
	kv, err := js.KeyValue(name)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: name, History: 1})
	}
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", name, err)
	}
	return kv, nil
}

// Close closes the NATS connection.
func (m *Module) Close() {
	m.conn.Close()
}

// StreamJID returns the address this module publishes as. It is known once
// the connection is up.
func (m *Module) StreamJID() (domain.JID, bool) {
	return m.stream, m.conn.IsConnected()
}

// PublishDeviceIDs replaces our device list.
func (m *Module) PublishDeviceIDs(ctx context.Context, ids []domain.DeviceID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := encode(deviceListRecord{
		Owner:       m.stream.Bare(),
		Publisher:   m.stream.String(),
		Devices:     ids,
		PublishedAt: time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	if _, err := m.lists.Put(deviceListKey(m.stream.Bare()), b); err != nil {
		return fmt.Errorf("publish device list: %w", err)
	}
	return nil
}

// FetchDeviceIDs reads owner's device list.
func (m *Module) FetchDeviceIDs(ctx context.Context, owner domain.JID) ([]domain.DeviceID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := m.lists.Get(deviceListKey(owner.Bare()))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, domain.ErrNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch device list: %w", err)
	}
	var rec deviceListRecord
	if err := decode(entry.Value(), &rec); err != nil {
		return nil, err
	}
	return rec.Devices, nil
}

// PublishBundle stores our bundle under its device id.
func (m *Module) PublishBundle(ctx context.Context, bundle domain.SessionKeyBundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := encode(bundleRecord{Owner: m.stream.Bare(), Bundle: bundle, PublishedAt: time.Now().Unix()})
	if err != nil {
		return err
	}
	if _, err := m.bundles.Put(bundleKey(m.stream.Bare(), bundle.DeviceID), b); err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}
	return nil
}

// FetchBundle reads the bundle of one of owner's devices.
func (m *Module) FetchBundle(
	ctx context.Context,
	owner domain.JID,
	deviceID domain.DeviceID,
) (domain.SessionKeyBundle, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionKeyBundle{}, err
	}
	entry, err := m.bundles.Get(bundleKey(owner.Bare(), deviceID))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return domain.SessionKeyBundle{}, domain.ErrNodeNotFound
	}
	if err != nil {
		return domain.SessionKeyBundle{}, fmt.Errorf("fetch bundle: %w", err)
	}
	var rec bundleRecord
	if err := decode(entry.Value(), &rec); err != nil {
		return domain.SessionKeyBundle{}, err
	}
	return rec.Bundle, nil
}

// Delegate receives watched device-list updates. Our own account's updates
// arrive as stream events; contacts' lists go to the module hook.
type Delegate interface {
	OnDeviceListUpdate(from domain.JID, ids []domain.DeviceID)
	OnMessageReceived(msg domain.Message)
}

// Listen delivers every device-list put to d until ctx is done.
func (m *Module) Listen(ctx context.Context, d Delegate) error {
	w, err := m.lists.WatchAll(nats.Context(ctx), nats.UpdatesOnly())
	if err != nil {
		return fmt.Errorf("watch device lists: %w", err)
	}
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-w.Updates():
			if !ok {
				return nil
			}
			if entry == nil || entry.Operation() != nats.KeyValuePut {
				continue
			}
			msg, err := notification(entry.Key(), entry.Value(), m.stream)
			if err != nil {
				m.log.Warn().Err(err).Str("key", entry.Key()).Msg("skipping device list update")
				continue
			}
			route(m.stream, msg, d)
		}
	}
}

// route hands an update from our own bare address to the stream side and any
// other to the module side, mirroring a +notify subscription.
func route(stream domain.JID, msg domain.Message, d Delegate) {
	if msg.Event == nil {
		return
	}
	if msg.Event.From.BareEqual(stream) {
		d.OnMessageReceived(msg)
		return
	}
	d.OnDeviceListUpdate(msg.Event.From, msg.Event.DeviceIDs)
}

// notification turns a stored device-list record into the event the
// coordinator sees. The key's owner wins over the record's claim.
func notification(key string, value []byte, to domain.JID) (domain.Message, error) {
	var rec deviceListRecord
	if err := decode(value, &rec); err != nil {
		return domain.Message{}, err
	}
	owner, err := ownerFromKey(key)
	if err != nil {
		return domain.Message{}, err
	}
	from, err := domain.ParseJID(rec.Publisher)
	if err != nil || from.Bare() != owner {
		if from, err = domain.ParseJID(owner); err != nil {
			return domain.Message{}, err
		}
	}
	return domain.Message{
		From: from,
		To:   to,
		Event: &domain.Notification{
			From:      from,
			Node:      domain.NSDeviceList,
			DeviceIDs: rec.Devices,
		},
	}, nil
}

var _ domain.DiscoveryModule = (*Module)(nil)
