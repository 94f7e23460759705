package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/iTrooz/ask-relay/internal/cache"
	"github.com/iTrooz/ask-relay/internal/config"
	"github.com/iTrooz/ask-relay/internal/llm"
	"github.com/iTrooz/ask-relay/internal/logging"
	"github.com/iTrooz/ask-relay/internal/relay"
	"github.com/iTrooz/ask-relay/internal/server"
	"github.com/iTrooz/ask-relay/internal/telemetry"
	"github.com/iTrooz/ask-relay/internal/upstream"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logrus.Fatalf("Failed to load .env: %v", err)
	}

	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging.Setup(cfg.Log); err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}
	logrus.Debugf("Loaded configuration: %s", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logrus.Fatalf("Failed to set up tracing: %v", err)
	}

	store, err := cache.New(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to create cache: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		logrus.Fatalf("Failed to initialize cache: %v", err)
	}

	fetchTimeout, _ := cfg.GetFetchTimeout()
	llmTimeout, _ := cfg.GetLLMTimeout()
	shutdownTimeout, _ := cfg.GetShutdownTimeout()

	completer, err := llm.NewOpenAI(ctx, cfg.LLM, llmTimeout)
	if err != nil {
		logrus.Fatalf("Failed to create model client: %v", err)
	}

	rules := upstream.NewRules(cfg.Rules)
	service := relay.New(
		store,
		cfg.Cache.Namespace,
		upstream.NewClient(fetchTimeout, cfg.Fetch.MaxBodyBytes, rules),
		rules,
		completer,
	)

	srv, err := server.New(cfg, service)
	if err != nil {
		logrus.Fatalf("Failed to create relay server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logrus.Errorf("Server failed: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("Failed to shut down cleanly: %v", err)
		}
	}

	if err := store.Close(); err != nil {
		logrus.Errorf("Failed to close cache: %v", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logrus.Errorf("Failed to flush traces: %v", err)
	}
}
