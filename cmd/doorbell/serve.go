package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartdoor/orchestrator/internal/action"
	"github.com/smartdoor/orchestrator/internal/assets"
	"github.com/smartdoor/orchestrator/internal/cleanup"
	"github.com/smartdoor/orchestrator/internal/config"
	"github.com/smartdoor/orchestrator/internal/decision"
	"github.com/smartdoor/orchestrator/internal/eventbus"
	"github.com/smartdoor/orchestrator/internal/intelligence"
	"github.com/smartdoor/orchestrator/internal/notify"
	"github.com/smartdoor/orchestrator/internal/orchestrator"
	"github.com/smartdoor/orchestrator/internal/perception"
	"github.com/smartdoor/orchestrator/internal/store"
	"github.com/smartdoor/orchestrator/internal/telemetry"
	transporthttp "github.com/smartdoor/orchestrator/internal/transport/http"
	"github.com/smartdoor/orchestrator/internal/transport/ws"
	"github.com/smartdoor/orchestrator/internal/tts"
	"github.com/smartdoor/orchestrator/internal/workpool"
)

// Exit codes per spec §6.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitStoreCorrupt  = 2
	exitPipelineCrash = 3
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket ingress server and pipeline scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	return cmd
}

func runServe(ctx context.Context, configPath, addr string) error {
	logger := slog.Default().With("component", "main")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(exitConfigError)
	}

	assetsStore, err := assets.New(cfg.System.DataDir)
	if err != nil {
		logger.Error("failed to initialize asset tree", "error", err)
		os.Exit(exitConfigError)
	}

	st, err := store.Open(store.DefaultConfig(cfg.System.DBPath))
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(exitStoreCorrupt)
	}
	defer st.Close()

	bus := eventbus.New()

	tel, err := telemetry.New("doorbell-orchestrator")
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(exitConfigError)
	}
	defer tel.Shutdown(context.Background())

	var perceptionProvider perception.Provider = perception.StubProvider{}
	percAdapter := perception.NewAdapterWithBudget(perceptionProvider, cfg.System.ProviderTimeout)

	intelEngine := intelligence.NewEngine()

	policy := decision.Policy{AutoReplyEnabledByDevice: cfg.AutoReplyPolicy}

	notifyService := notify.New(notify.Config{Token: cfg.SlackToken, Channel: cfg.Slack.Channel})

	actionExecutor := &action.Executor{
		TTS:     tts.StubSynthesizer{},
		Notify:  notifyService,
		Assets:  assetsStore,
		Bus:     bus,
		Timeout: cfg.System.ActionTimeout,
	}

	pool := workpool.New(cfg.System.WorkerPoolSize)

	orchCfg := orchestrator.Config{
		MaxConcurrentSessions:   cfg.System.MaxConcurrentSessions,
		SessionQueueSize:        cfg.System.SessionQueueSize,
		SemaphoreAcquireTimeout: cfg.System.SemaphoreAcquireTimeout,
		SessionIdleTimeout:      cfg.System.SessionIdleTimeout,
	}
	orch := orchestrator.New(orchCfg, st, assetsStore, bus, percAdapter, intelEngine, policy, actionExecutor, pool, tel)

	cleanupSvc := cleanup.New(assetsStore)
	if err := cleanupSvc.Start("@every 1h"); err != nil {
		logger.Error("failed to start cleanup service", "error", err)
		os.Exit(exitConfigError)
	}
	defer cleanupSvc.Stop(context.Background())

	hub := ws.NewHub(bus)
	httpServer := transporthttp.New(orch, st, bus, intelEngine, hub, 20).
		WithProviders(perceptionProvider, tts.StubSynthesizer{}, assetsStore)

	srv := &http.Server{Addr: addr, Handler: httpServer.Router()}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http server crashed", "error", err)
			os.Exit(exitPipelineCrash)
		}
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, draining sessions")
		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		orch.Shutdown(drainCtx)

		httpCtx, cancelHTTP := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelHTTP()
		if err := srv.Shutdown(httpCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	return nil
}
