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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/api"
	"github.com/skvil/piertotum/internal/console"
	"github.com/skvil/piertotum/internal/metrics"
	"github.com/skvil/piertotum/internal/reaper"
	"github.com/skvil/piertotum/internal/state"
	"github.com/skvil/piertotum/internal/wsstatus"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	port      string
	logLevel  string
	consoleOn bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "skvil-broker [port]",
		Short: "Skvil-Piertotum broker — central coordination hub for coding-agent workers",
		Long: `The broker holds all shared state: registered agents, their bounded
message queues, and a shared key-value context store. Workers register,
heartbeat, send, and poll against it over HTTP.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.port = args[0]
			}
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.port, "port", envOrDefault("BROKER_PORT", "4800"), "listen port")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&cfg.consoleOn, "console", envOrDefault("BROKER_CONSOLE", "true") == "true", "run the interactive operator console on stdin")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("skvil-broker %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting skvil-piertotum broker",
		zap.String("version", version),
		zap.String("port", cfg.port),
		zap.String("log_level", cfg.logLevel),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- 1. State engine ---
	engine := state.New(logger)

	// --- 2. Live status hub ---
	hub := wsstatus.NewHub()
	go hub.Run(ctx)

	// --- 3. Reaper ---
	rpr, err := reaper.New(engine, hub, logger)
	if err != nil {
		return fmt.Errorf("failed to create reaper: %w", err)
	}
	if err := rpr.Start(); err != nil {
		return fmt.Errorf("failed to start reaper: %w", err)
	}
	defer func() {
		if err := rpr.Stop(); err != nil {
			logger.Warn("reaper shutdown error", zap.Error(err))
		}
	}()

	// --- 4. Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewEngineCollector(engine))

	// --- 5. Operator console ---
	if cfg.consoleOn {
		cons := console.New(engine, os.Stdin, os.Stdout, logger)
		go cons.Run(ctx)
	}

	// --- 6. HTTP server ---
	router := api.NewRouter(api.RouterConfig{
		Engine:   engine,
		Hub:      hub,
		Registry: registry,
		Logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down skvil-piertotum broker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("skvil-piertotum broker stopped")
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
