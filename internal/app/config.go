package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"omemo/internal/domain"
	"omemo/internal/store"
)

// Transports a Config may select.
const (
	TransportHTTP = "http"
	TransportNATS = "nats"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home      string `yaml:"home"`      // state directory, e.g. $HOME/.omemo
	Account   string `yaml:"account"`   // full JID of this device, e.g. me@example.com/laptop
	Transport string `yaml:"transport"` // "http" or "nats"
	LogLevel  string `yaml:"log_level"`

	Relay     RelayConfig     `yaml:"relay"`
	NATS      NATSConfig      `yaml:"nats"`
	PreKeys   PreKeyConfig    `yaml:"pre_keys"`
	Republish RepublishConfig `yaml:"republish"`

	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	MetricsAddr  string        `yaml:"metrics_addr"`

	// Never read from the config file.
	Passphrase string           `yaml:"-"`
	HTTP       *http.Client     `yaml:"-"` // optional; defaults to a client with FetchTimeout
	KDF        *store.KDFParams `yaml:"-"` // optional; defaults to store.DefaultKDFParams
}

// RelayConfig holds HTTP relay settings.
type RelayConfig struct {
	URL string `yaml:"url"`
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL             string `yaml:"url"`
	CredentialsFile string `yaml:"credentials_file"`
}

// PreKeyConfig holds one-time pre-key replenishment settings.
type PreKeyConfig struct {
	Threshold int `yaml:"threshold"`
	Target    int `yaml:"target"`
}

// RepublishConfig limits own device-list republication.
type RepublishConfig struct {
	Interval time.Duration `yaml:"interval"`
	Burst    int           `yaml:"burst"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportHTTP,
		LogLevel:  "info",
		Relay:     RelayConfig{URL: "http://127.0.0.1:8080"},
		NATS:      NATSConfig{URL: "nats://127.0.0.1:4222"},
		PreKeys: PreKeyConfig{
			Threshold: 20,
			Target:    100,
		},
		Republish: RepublishConfig{
			Interval: 10 * time.Second,
			Burst:    3,
		},
		FetchTimeout: 5 * time.Second,
	}
}

// LoadConfig loads configuration from a YAML file over the defaults. A missing
// file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings a Wire needs.
func (c *Config) Validate() error {
	if c.Home == "" {
		return errors.New("config: home is required")
	}
	jid, err := domain.ParseJID(c.Account)
	if err != nil {
		return fmt.Errorf("config: account: %w", err)
	}
	if jid.Local == "" {
		return fmt.Errorf("config: account %q has no local part", c.Account)
	}
	switch c.Transport {
	case TransportHTTP:
		if c.Relay.URL == "" {
			return errors.New("config: relay.url is required for the http transport")
		}
	case TransportNATS:
		if c.NATS.URL == "" {
			return errors.New("config: nats.url is required for the nats transport")
		}
	default:
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	if c.FetchTimeout <= 0 {
		return errors.New("config: fetch_timeout must be positive")
	}
	if c.PreKeys.Threshold <= 0 || c.PreKeys.Target < c.PreKeys.Threshold {
		return errors.New("config: pre_keys.target must be at least pre_keys.threshold > 0")
	}
	return nil
}
