// Command coordinator runs the Jubatus control plane: it registers
// worker nodes, tracks which nodes host which model instances, monitors
// node health, and drives periodic MIX rounds across every instance's
// peer set.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:   "coordinator",
		Short: "Run the Jubatus cluster coordinator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCoordinator(v)
		},
	}
	bindCoordinatorFlags(root, v)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCoordinator(v *viper.Viper) error {
	cfg, err := loadCoordinatorConfig(v)
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck
	log = log.Named("coordinator")

	s := newServer(cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go s.health.Start(ctx, s.snapshotNodes)
	go runMixLoop(ctx, s, cfg.MixInterval, log)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := &http.Server{Addr: cfg.MetricsListen, Handler: promhttp.Handler()}

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	go func() { errCh <- metricsSrv.ListenAndServe() }()

	log.Info("coordinator listening", zap.String("listen", cfg.Listen), zap.String("metrics_listen", cfg.MetricsListen))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
		}
	}

	log.Info("stopping health monitor")
	s.health.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	return nil
}

// runMixLoop drives a MIX round across every known model instance every
// interval, until ctx is canceled.
func runMixLoop(ctx context.Context, s *server, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("mix round driver started", zap.Duration("interval", interval))
	for {
		select {
		case <-ticker.C:
			s.mixDriver.RunRound(ctx)
		case <-ctx.Done():
			log.Info("mix round driver stopping")
			return
		}
	}
}
