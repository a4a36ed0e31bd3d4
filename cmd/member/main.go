// Command member runs one netring member agent: it registers with the
// registry, runs the six supervised probe loops, and serves the member
// HTTP surface (/health, /metrics, /bandwidth_test).
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
	"github.com/netring-mesh/netring/internal/logging"
	"github.com/netring-mesh/netring/internal/memberagent"
	"github.com/netring-mesh/netring/internal/metrics"
	"github.com/netring-mesh/netring/internal/selfip"
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
	logCfg := logging.DefaultConfig("member")
	logCfg.Development = devLogs
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadMember(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ip, err := selfip.Resolve(cfg.Server.AdvertiseIP)
	if err != nil {
		return fmt.Errorf("resolve self ip: %w", err)
	}
	logger.Info("resolved advertise ip", zap.String("ip", ip))

	reg := metrics.NewRegistry()
	agent := memberagent.New(cfg, logger, reg, ip)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: agent.Handler(reg),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("member http surface listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	agentDone := make(chan error, 1)
	go func() {
		agentDone <- agent.Run(ctx)
	}()

	var runErr error
	select {
	case err := <-errCh:
		stop()
		<-agentDone
		runErr = fmt.Errorf("http server: %w", err)
	case err := <-agentDone:
		// A failed initial registration lands here; exit non-zero rather
		// than idling until a signal arrives.
		stop()
		if err != nil {
			runErr = fmt.Errorf("agent: %w", err)
		}
	case <-ctx.Done():
		if err := <-agentDone; err != nil {
			logger.Error("agent run returned error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}

	return runErr
}
