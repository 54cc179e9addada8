package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"omemo/internal/coordinator"
	"omemo/internal/domain"
	"omemo/internal/engine"
	"omemo/internal/metrics"
	"omemo/internal/pubsub"
	"omemo/internal/relay"
	"omemo/internal/services/devicelist"
	"omemo/internal/services/oracle"
	"omemo/internal/services/publisher"
	"omemo/internal/store"
)

const deviceDB = "devices.db"

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config      Config
	Account     domain.JID
	Engine      *engine.Engine
	Devices     *store.DeviceSQLiteStore
	Oracle      *oracle.Service
	Publisher   *publisher.Service
	Lists       *devicelist.Service
	Coordinator *coordinator.Coordinator
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Log         zerolog.Logger

	// Module is set by Connect.
	Module domain.DiscoveryModule
	nats   *pubsub.Module
}

// NewWire constructs the dependency graph from cfg. It does not touch the
// network; call Connect for that.
func NewWire(cfg Config, log zerolog.Logger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	account, err := domain.ParseJID(cfg.Account)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}
	kdf := store.DefaultKDFParams
	if cfg.KDF != nil {
		kdf = *cfg.KDF
	}

	devices, err := store.OpenDeviceStore(filepath.Join(cfg.Home, deviceDB), account.Bare())
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	eng := engine.Open(cfg.Home, kdf, account.Bare(), cfg.Passphrase, log)
	orc := oracle.New(eng, log)
	pub := publisher.New(eng, store.NewBundleFileStore(cfg.Home), account.Bare(),
		publisher.Config{Threshold: cfg.PreKeys.Threshold, Target: cfg.PreKeys.Target}, log)
	lists := devicelist.New(account, devices, orc, devicelist.Config{
		FetchTimeout:      cfg.FetchTimeout,
		RepublishInterval: cfg.Republish.Interval,
		RepublishBurst:    cfg.Republish.Burst,
		Metrics:           m,
	}, log)
	coord := coordinator.New(account, devices, orc, pub, lists,
		coordinator.Options{FetchTimeout: cfg.FetchTimeout, Metrics: m}, log)

	return &Wire{
		Config:      cfg,
		Account:     account,
		Engine:      eng,
		Devices:     devices,
		Oracle:      orc,
		Publisher:   pub,
		Lists:       lists,
		Coordinator: coord,
		Registry:    reg,
		Metrics:     m,
		Log:         log,
	}, nil
}

// Connect builds the configured discovery transport and hands it to the
// coordinator.
func (w *Wire) Connect() error {
	switch w.Config.Transport {
	case TransportNATS:
		m, err := pubsub.Connect(pubsub.Config{
			URL:             w.Config.NATS.URL,
			CredentialsFile: w.Config.NATS.CredentialsFile,
			Timeout:         w.Config.FetchTimeout,
		}, w.Account, w.Log)
		if err != nil {
			return err
		}
		w.nats = m
		w.Module = m
	default:
		httpClient := w.Config.HTTP
		if httpClient == nil {
			httpClient = &http.Client{Timeout: w.Config.FetchTimeout}
		}
		w.Module = relay.NewHTTP(w.Config.Relay.URL, w.Account, httpClient)
	}
	if !w.Coordinator.Configure(w.Module) {
		return fmt.Errorf("coordinator refused the %s transport", w.Config.Transport)
	}
	return nil
}

// PubSub returns the NATS module when that transport is connected.
func (w *Wire) PubSub() (*pubsub.Module, bool) {
	return w.nats, w.nats != nil
}

// Close stops the coordinator and releases the transport and the device store.
func (w *Wire) Close() error {
	w.Coordinator.Close()
	if w.nats != nil {
		w.nats.Close()
	}
	return w.Devices.Close()
}
