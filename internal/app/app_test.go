package app_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"omemo/internal/app"
	"omemo/internal/domain"
	"omemo/internal/relay"
	"omemo/internal/store"
)

func TestLoadConfig_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := app.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport != app.TransportHTTP || cfg.FetchTimeout != 5*time.Second || cfg.PreKeys.Threshold != 20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "omemo.yaml")
	data := []byte(`
account: me@example.com/laptop
transport: nats
nats:
  url: nats://10.0.0.1:4222
fetch_timeout: 2s
pre_keys:
  threshold: 10
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport != app.TransportNATS || cfg.NATS.URL != "nats://10.0.0.1:4222" {
		t.Fatalf("transport not overridden: %+v", cfg)
	}
	if cfg.FetchTimeout != 2*time.Second || cfg.PreKeys.Threshold != 10 || cfg.PreKeys.Target != 100 {
		t.Fatalf("tuning not merged: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	base := func() *app.Config {
		cfg := app.DefaultConfig()
		cfg.Home = t.TempDir()
		cfg.Account = "me@example.com/laptop"
		return cfg
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := map[string]func(*app.Config){
		"no home":          func(c *app.Config) { c.Home = "" },
		"no account":       func(c *app.Config) { c.Account = "" },
		"domain only":      func(c *app.Config) { c.Account = "example.com" },
		"bad transport":    func(c *app.Config) { c.Transport = "carrier-pigeon" },
		"no relay":         func(c *app.Config) { c.Relay.URL = "" },
		"zero timeout":     func(c *app.Config) { c.FetchTimeout = 0 },
		"target too small": func(c *app.Config) { c.PreKeys.Target = 1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("accepted")
			}
		})
	}
}

func TestWire_OverRelay(t *testing.T) {
	srv := httptest.NewServer(relay.NewServer(relay.ServerConfig{}, zerolog.Nop()).Handler())
	defer srv.Close()

	kdf := store.KDFParams{N: 1 << 10, R: 8, P: 1}
	cfg := app.DefaultConfig()
	cfg.Home = t.TempDir()
	cfg.Account = "me@example.com/laptop"
	cfg.Passphrase = "Correct-Horse-Battery-9"
	cfg.Relay.URL = srv.URL
	cfg.HTTP = srv.Client()
	cfg.KDF = &kdf
	cfg.PreKeys = app.PreKeyConfig{Threshold: 2, Target: 3}

	w, err := app.NewWire(*cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	defer w.Close()
	if err := w.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx := context.Background()
	out, err := w.Coordinator.Refresh(ctx)
	if err != nil || out != domain.OutcomeRepublished {
		t.Fatalf("refresh: outcome=%v err=%v", out, err)
	}

	own := w.Coordinator.OwnDeviceID()
	ids, err := w.Module.FetchDeviceIDs(ctx, w.Account)
	if err != nil || !slices.Equal(ids, []domain.DeviceID{own}) {
		t.Fatalf("published list %v err=%v, want [%d]", ids, err, own)
	}
	bundle, err := w.Module.FetchBundle(ctx, w.Account, own)
	if err != nil || len(bundle.OneTimePreKeys) != 3 {
		t.Fatalf("published bundle: %+v err=%v", bundle, err)
	}
}
