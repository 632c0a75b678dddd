package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/savak1990/my-dogs/internal/router"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var purgeInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a, purgeInterval)
		},
	}
	cmd.Flags().DurationVar(&purgeInterval, "purge-interval", time.Minute, "how often expired PENDING images are removed (0 disables)")
	return cmd
}

func serve(ctx context.Context, a *app, purgeInterval time.Duration) error {
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           router.New(a.newHandler(), a.metrics).Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		a.logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", zap.Error(err))
			return err
		}
		return nil
	})

	if purgeInterval > 0 {
		eg.Go(func() error {
			purgeExpired(ctx, a, purgeInterval)
			return nil
		})
	}

	return eg.Wait()
}

// purgeExpired removes PENDING images past their expiry until ctx is done.
func purgeExpired(ctx context.Context, a *app, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.db.PurgeExpired(ctx, time.Now())
			if err != nil {
				a.logger.Warn("purging expired images", zap.Error(err))
				continue
			}
			if n > 0 {
				a.logger.Info("purged expired images", zap.Int64("count", n))
			}
		}
	}
}
