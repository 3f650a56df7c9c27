// Package main is the entry point for the skvil-worker binary. It wires
// the RPC client, lifecycle manager, and autonomous loop together and
// runs until SIGINT/SIGTERM, then drains and deregisters.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/worker/autoloop"
	"github.com/skvil/piertotum/internal/worker/client"
	"github.com/skvil/piertotum/internal/worker/lifecycle"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	brokerURL    string
	agentID      string
	agentName    string
	projectName  string
	autoProcess  bool
	pollInterval int
	logLevel     string
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
		Use:   "skvil-worker",
		Short: "Skvil-Piertotum worker — coding-agent sidecar speaking to the broker",
		Long: `The worker embeds in a coding-agent terminal. It registers with the
broker, heartbeats, and — when enabled — polls its queue and processes
messages autonomously via the host's sampling capability.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	hostname, _ := os.Hostname()

	root.PersistentFlags().StringVar(&cfg.brokerURL, "broker-url", envOrDefault("BROKER_URL", "http://localhost:4800"), "broker base URL")
	root.PersistentFlags().StringVar(&cfg.agentID, "agent-id", envOrDefault("AGENT_ID", hostname), "this agent's id (sanitized to [a-z0-9-])")
	root.PersistentFlags().StringVar(&cfg.agentName, "agent-name", envOrDefault("AGENT_NAME", ""), "this agent's display name (default SP-{id})")
	root.PersistentFlags().StringVar(&cfg.projectName, "project-name", envOrDefault("PROJECT_NAME", "unknown"), "the project this agent is working on")
	root.PersistentFlags().BoolVar(&cfg.autoProcess, "auto-process", envOrDefault("AUTO_PROCESS", "false") == "true", "enable the autonomous processing loop")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	pollMS, _ := strconv.Atoi(envOrDefault("POLL_INTERVAL_MS", "10000"))
	root.PersistentFlags().IntVar(&cfg.pollInterval, "poll-interval-ms", pollMS, "autonomous loop poll interval in ms (minimum 1000, clamped)")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("skvil-worker %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

var idSanitizer = regexp.MustCompile(`[^a-z0-9-]`)

// sanitizeID lowercases id and replaces any character outside
// [a-z0-9-] with "-" so it is safe to use as an agent id.
func sanitizeID(id string) string {
	return idSanitizer.ReplaceAllString(strings.ToLower(id), "-")
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	u, err := url.Parse(cfg.brokerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid BROKER_URL %q: scheme must be http or https", cfg.brokerURL)
	}

	agentID := sanitizeID(cfg.agentID)
	agentName := cfg.agentName
	if agentName == "" {
		agentName = "SP-" + agentID
	}

	pollInterval := cfg.pollInterval
	if pollInterval < 1000 {
		pollInterval = 10000
	}

	logger.Info("starting skvil-piertotum worker",
		zap.String("version", version),
		zap.String("broker_url", cfg.brokerURL),
		zap.String("agent_id", agentID),
		zap.Bool("auto_process", cfg.autoProcess),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rpc := client.New(cfg.brokerURL, logger)

	lifecycleCfg := lifecycle.Config{
		AgentID: agentID,
		Name:    agentName,
		Project: cfg.projectName,
		Path:    ".",
	}
	mgr := lifecycle.New(lifecycleCfg, rpc, logger)
	mgr.Start(ctx)

	var loop *autoloop.Loop
	var extra []func(context.Context) error
	if cfg.autoProcess {
		loop = autoloop.New(autoloop.Config{
			AgentID:      agentID,
			PollInterval: time.Duration(pollInterval) * time.Millisecond,
		}, rpc, noopSampler{}, logger)
		extra = append(extra, loop.Run)
	}

	err = mgr.RunGroup(ctx, extra...)

	var drainer lifecycle.Drainer
	if loop != nil {
		drainer = loop
	}
	mgr.Shutdown(drainer)
	logger.Info("skvil-piertotum worker stopped")
	return err
}

// noopSampler is the default sampling backend when no host integration
// is wired in: it never advertises support, so the autonomous loop
// self-disables cleanly on its first tick rather than erroring. Real
// deployments inject a host-provided autoloop.Sampler here; sampling
// itself is provided by the coding-agent host, not this binary.
type noopSampler struct{}

func (noopSampler) SupportsSampling(ctx context.Context) bool { return false }
func (noopSampler) Sample(ctx context.Context, prompt, system string, maxTokens int) (autoloop.SampleResult, error) {
	return autoloop.SampleResult{}, fmt.Errorf("does not support sampling")
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
