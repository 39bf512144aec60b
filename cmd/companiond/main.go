package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/roadsense/companiond/internal/brain"
	"github.com/roadsense/companiond/internal/capability"
	"github.com/roadsense/companiond/internal/config"
	"github.com/roadsense/companiond/internal/devices"
	"github.com/roadsense/companiond/internal/eventlog"
	"github.com/roadsense/companiond/internal/httpapi"
	"github.com/roadsense/companiond/internal/observability"
	"github.com/roadsense/companiond/internal/session"
	"github.com/roadsense/companiond/internal/transcript"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	deviceStore, err := devices.NewStore(cfg.DeviceStorePath, cfg.RememberedDeviceCap)
	if err != nil {
		log.Fatalf("device store init failed: %v", err)
	}
	defer deviceStore.Close()

	transcriptStore, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("transcript store init failed: %v", err)
	}
	defer transcriptStore.Close()

	var brainClient brain.Client
	brainMode := strings.ToLower(strings.TrimSpace(cfg.BrainProvider))
	if brainMode == "" {
		brainMode = "auto"
	}
	switch brainMode {
	case "mock":
		brainClient = brain.NewMockClient()
		log.Printf("brain provider: mock")
	case "openrouter", "auto":
		// The client is constructed even without a key so a missing
		// credential surfaces as an auth failure on the first turn, spoken
		// back to the driver, rather than a refusal to boot.
		brainClient = brain.NewOpenRouterClient(brain.OpenRouterConfig{
			Endpoint: cfg.OpenRouterBaseURL,
			APIKey:   cfg.OpenRouterAPIKey,
			Model:    cfg.ChatModel,
			Referer:  cfg.HTTPReferer,
			Title:    cfg.AppTitle,
			Timeout:  cfg.ChatTimeout,
		})
		if cfg.OpenRouterAPIKey == "" {
			log.Printf("brain provider: openrouter (no API key configured)")
		} else {
			log.Printf("brain provider: openrouter")
		}
	default:
		log.Fatalf("invalid BRAIN_PROVIDER: %q (expected auto|openrouter|mock)", cfg.BrainProvider)
	}
	cfg.BrainProvider = brainMode

	// Hardware-adjacent capabilities run against the simulated bridge until a
	// client-side device transport lands; the controller is provider-agnostic.
	bridge := capability.NewMockDeviceBridge()
	recognizer := capability.NewMockRecognizer()
	speaker := capability.NewMockSpeaker()

	controller := session.NewController(
		bridge,
		recognizer,
		speaker,
		brainClient,
		deviceStore,
		transcriptStore,
		eventlog.New(cfg.EventLogCap),
		metrics,
		cfg.SystemPrompt,
	)
	defer controller.Dispose()

	api := httpapi.New(cfg, controller)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
