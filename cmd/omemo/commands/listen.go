package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"omemo/internal/metrics"
)

// listenCmd keeps the device connected: it runs the post-login routine, then
// applies device-list events as they arrive (NATS) or polls for them (relay).
func listenCmd() *cobra.Command {
	var (
		metricsAddr string
		poll        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stay connected and keep device lists in sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := connect(); err != nil {
				return err
			}
			if metricsAddr == "" {
				metricsAddr = wire.Config.MetricsAddr
			}
			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(wire.Registry)}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error().Err(err).Msg("metrics server stopped")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				log.Info().Str("addr", metricsAddr).Msg("serving metrics")
			}

			wire.Coordinator.OnAuthenticated()
			log.Info().Str("account", wire.Account.String()).Str("transport", wire.Config.Transport).
				Msg("listening")

			if ps, ok := wire.PubSub(); ok {
				return ps.Listen(ctx, wire.Coordinator)
			}

			if poll <= 0 {
				poll = 30 * time.Second
			}
			ticker := time.NewTicker(poll)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					wire.Coordinator.OnAuthenticated()
				}
			}
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&poll, "poll", 30*time.Second, "own device-list check interval for the relay transport")
	return cmd
}
