// Command node runs a Jubatus worker process: it hosts a fixed set of
// named model instances configured at startup, serves their train/predict
// and MIX endpoints over HTTP, and registers itself with a coordinator so
// it can be included in periodic MIX rounds.
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

	"github.com/dreamware/jubatus/internal/cluster"
	"github.com/dreamware/jubatus/internal/version"
)

// logFatal is a package var so tests can intercept a fatal exit instead of
// actually terminating the process.
var logFatal = func(log *zap.Logger, msg string, fields ...zap.Field) {
	log.Fatal(msg, fields...)
}

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:   "node",
		Short: "Run a Jubatus worker node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNode(cmd, v)
		},
	}
	bindNodeFlags(root, v)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := loadNodeConfig(cmd, v)
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck
	log = log.Named("node").With(zap.String("node_id", cfg.NodeID))

	handles, err := buildHandles(version.Owner(cfg.NodeID), cfg.Instances)
	if err != nil {
		return fmt.Errorf("build instances: %w", err)
	}
	log.Info("hosting model instances", zap.Int("count", len(handles)))

	srv := newServer(cfg.NodeID, handles, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := registerWithCoordinator(ctx, cfg, log); err != nil {
		logFatal(log, "registration with coordinator failed", zap.Error(err))
		return err
	}

	httpSrv := &http.Server{Addr: cfg.Listen, Handler: srv.routes()}
	metricsSrv := &http.Server{Addr: cfg.MetricsListen, Handler: promhttp.Handler()}

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	go func() { errCh <- metricsSrv.ListenAndServe() }()

	log.Info("node listening", zap.String("listen", cfg.Listen), zap.String("metrics_listen", cfg.MetricsListen))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	return nil
}

// registerWithCoordinator announces this node to the coordinator, retrying
// with a fixed backoff since the coordinator may still be starting up.
func registerWithCoordinator(ctx context.Context, cfg *NodeConfig, log *zap.Logger) error {
	const (
		maxAttempts = 10
		backoff     = 400 * time.Millisecond
	)

	req := &cluster.RegisterRequest{Node: cluster.NodeInfo{ID: cfg.NodeID, Addr: cfg.PublicAddr}}
	url := cfg.CoordinatorAddr + "/cluster/register"

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := cluster.PostJSON(callCtx, url, req, nil)
		cancel()
		if err == nil {
			log.Info("registered with coordinator", zap.String("coordinator_addr", cfg.CoordinatorAddr))
			return nil
		}
		lastErr = err
		log.Warn("registration attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("registration with %s failed after %d attempts: %w", cfg.CoordinatorAddr, maxAttempts, lastErr)
}
