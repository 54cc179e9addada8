package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"omemo/internal/relay"
)

func main() {
	var (
		addr  string
		rps   float64
		burst int
		debug bool
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "In-memory device-list and bundle relay for development",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			level := zerolog.InfoLevel
			if debug {
				level = zerolog.DebugLevel
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

			srv := &http.Server{
				Addr:              addr,
				Handler:           relay.NewServer(relay.ServerConfig{RatePerSecond: rps, Burst: burst}, log).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			log.Info().Str("addr", addr).Msg("relay listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().Float64Var(&rps, "rate", 20, "requests per second allowed per client address (0 disables)")
	cmd.Flags().IntVar(&burst, "burst", 40, "request burst allowed per client address")
	cmd.Flags().BoolVar(&debug, "debug", false, "log every request")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
