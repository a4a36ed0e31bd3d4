// Command registry runs the netring registry service: membership store
// endpoints, topology ingestion, missing-member analysis, and the
// dashboard APIs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/netring-mesh/netring/internal/config"
	"github.com/netring-mesh/netring/internal/live"
	"github.com/netring-mesh/netring/internal/logging"
	"github.com/netring-mesh/netring/internal/metrics"
	"github.com/netring-mesh/netring/internal/missing"
	"github.com/netring-mesh/netring/internal/registrysvc"
	"github.com/netring-mesh/netring/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (falls back to NETRING_ env vars when empty)")
	devLogs := flag.Bool("dev", false, "use development (console) log encoding")
	flag.Parse()

	if err := run(*configPath, *devLogs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, devLogs bool) error {
	logCfg := logging.DefaultConfig("registry")
	logCfg.Development = devLogs
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	fullCfg, err := config.LoadRegistry(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := fullCfg.Registry

	redisStore := store.NewRedisStore(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB, cfg.Redis.Password)
	defer redisStore.Close()

	reg := metrics.NewRegistry()
	registryMetrics := metrics.NewRegistryMetrics(reg)

	var detector *missing.Detector
	if cfg.ExpectedMembers.EnableMissingDetection && cfg.ExpectedMembers.ConfigFile != "" {
		descriptor, err := missing.LoadDescriptor(cfg.ExpectedMembers.ConfigFile)
		if err != nil {
			return fmt.Errorf("load expected-topology descriptor: %w", err)
		}
		detector = missing.New(descriptor)
		logger.Info("missing-member detection enabled", zap.String("config_file", cfg.ExpectedMembers.ConfigFile))
	}

	hub := live.NewHub(logger)

	svc := registrysvc.New(
		redisStore,
		logger,
		registryMetrics,
		hub,
		detector,
		config.Duration(cfg.MemberTTL),
		config.Duration(cfg.CleanupInterval),
	)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: svc.Handler(reg.Handler()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Start(ctx.Done())
	go svc.RunCleanup(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("registry http surface listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}

	return nil
}
