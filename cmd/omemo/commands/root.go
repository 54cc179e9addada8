package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"omemo/internal/app"
)

var (
	configPath   string
	home         string
	account      string
	passphrase   string
	transport    string
	relayURL     string
	natsURL      string
	logLevel     string
	fetchTimeout time.Duration

	wire *app.Wire
	log  zerolog.Logger
)

func Execute() error {
	root := &cobra.Command{
		Use:           "omemo",
		Short:         "OMEMO multi-device coordination CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log = newLogger(cfg.LogLevel)
			wire, err = app.NewWire(*cfg, log)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			return wire.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default <home>/config.yaml)")
	pf.StringVar(&home, "home", "", "state dir (default ~/.omemo)")
	pf.StringVar(&account, "account", "", "this device's JID, e.g. me@example.com/laptop")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys (or $OMEMO_PASSPHRASE)")
	pf.StringVar(&transport, "transport", "", "discovery transport: http or nats")
	pf.StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	pf.StringVar(&natsURL, "nats", "", "NATS server URL (e.g. nats://127.0.0.1:4222)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.DurationVar(&fetchTimeout, "fetch-timeout", 0, "timeout for each discovery fetch")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		rotateIdentityCmd(),
		registerCmd(),
		devicesCmd(),
		sessionCmd(),
		listenCmd(),
	)
	return root.Execute()
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*app.Config, error) {
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		home = filepath.Join(dir, ".omemo")
	}
	if configPath == "" {
		configPath = filepath.Join(home, "config.yaml")
	}
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Home == "" || cmd.Flags().Changed("home") {
		cfg.Home = home
	}

	flags := cmd.Flags()
	if flags.Changed("account") {
		cfg.Account = account
	}
	if flags.Changed("transport") {
		cfg.Transport = transport
	}
	if flags.Changed("relay") {
		cfg.Relay.URL = relayURL
	}
	if flags.Changed("nats") {
		cfg.NATS.URL = natsURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("fetch-timeout") {
		cfg.FetchTimeout = fetchTimeout
	}

	cfg.Passphrase = passphrase
	if cfg.Passphrase == "" {
		cfg.Passphrase = os.Getenv("OMEMO_PASSPHRASE")
	}
	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("passphrase required (-p or $OMEMO_PASSPHRASE)")
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// connect attaches the discovery transport.
func connect() error {
	if err := wire.Connect(); err != nil {
		return fmt.Errorf("connect %s transport: %w", wire.Config.Transport, err)
	}
	return nil
}

// commandContext bounds a one-shot command.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 4*wire.Config.FetchTimeout)
}
