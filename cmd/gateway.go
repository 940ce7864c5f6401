package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/napclaw/internal/agent"
	"github.com/nextlevelbuilder/napclaw/internal/bus"
	"github.com/nextlevelbuilder/napclaw/internal/channels"
	"github.com/nextlevelbuilder/napclaw/internal/channels/qq"
	"github.com/nextlevelbuilder/napclaw/internal/config"
	"github.com/nextlevelbuilder/napclaw/internal/store"
	"github.com/nextlevelbuilder/napclaw/internal/telemetry"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the gateway (same as the bare command)",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
}

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}

	sessionStore, err := store.Open(config.ExpandHome(cfg.Sessions.Storage))
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		os.Exit(1)
	}

	msgBus := bus.New()
	manager := channels.NewManager(msgBus, cfg.Gateway.RateLimitRPM)
	manager.Register(qq.New(cfg, msgBus))

	responder := agent.NewClient(cfg.Agent)
	consumer := newConsumer(cfg, msgBus, manager, sessionStore, responder)

	if err := manager.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
		os.Exit(1)
	}
	go consumer.run(ctx)
	go watchConfig(ctx, cfgPath)

	slog.Info("gateway running",
		"config", cfgPath,
		"channels", manager.Names(),
		"agent_endpoint", cfg.Agent.Endpoint,
	)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx := context.Background()
	manager.StopAll(shutdownCtx)
	msgBus.Close()
	sessionStore.Close()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown failed", "error", err)
	}
}

// watchConfig logs when the config file changes on disk. Channels hold
// resolved config snapshots, so changes need a restart to apply; the log
// line tells the operator that.
func watchConfig(ctx context.Context, cfgPath string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("config watch unavailable", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(cfgPath); err != nil {
		slog.Debug("config watch unavailable", "path", cfgPath, "error", err)
		return
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				slog.Info("config file changed, restart to apply", "path", cfgPath)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Debug("config watch error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}
