// Supportd is the Aven customer support daemon.
//
// This binary starts the support HTTP server with full service
// initialization: Qdrant-backed knowledge retrieval, web search
// fallback, the tool-calling chat loop, voice platform integration,
// and meeting scheduling.
//
// Configuration is loaded from an optional YAML file plus environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	supportd
//
//	# Configure via file and environment
//	SERVER_PORT=9090 supportd -config supportd.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/agent"
	"github.com/avenhq/supportd/internal/cache"
	"github.com/avenhq/supportd/internal/calendar"
	"github.com/avenhq/supportd/internal/chat"
	"github.com/avenhq/supportd/internal/config"
	"github.com/avenhq/supportd/internal/embeddings"
	"github.com/avenhq/supportd/internal/knowledge"
	"github.com/avenhq/supportd/internal/llm"
	"github.com/avenhq/supportd/internal/logging"
	"github.com/avenhq/supportd/internal/server"
	"github.com/avenhq/supportd/internal/session"
	"github.com/avenhq/supportd/internal/telemetry"
	"github.com/avenhq/supportd/internal/tools"
	"github.com/avenhq/supportd/internal/vectorstore"
	"github.com/avenhq/supportd/internal/voice"
	"github.com/avenhq/supportd/internal/websearch"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  supportd           Start the support daemon\n")
			fmt.Fprintf(os.Stderr, "  supportd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("supportd by Aven\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the support daemon and blocks until context cancellation.
//
// Missing credentials degrade individual components rather than failing
// startup: the server always comes up and reports availability through
// /health, matching how the support surface is deployed.
func run(ctx context.Context, configPath string) error {
	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting supportd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	tel, err := telemetry.New(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry disabled", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.ShutdownTimeout)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	// Retrieval stack. Typed nils must not leak into interface fields,
	// hence the explicit interface variables.
	var embedder embeddings.Embedder
	embedCache, err := cache.New[[]float32]("embeddings", cfg.Cache.EmbeddingCapacity)
	if err != nil {
		logger.Warn("embedding cache disabled", zap.Error(err))
	}
	if embedSvc, err := embeddings.New(cfg.Embeddings, embedCache); err != nil {
		logger.Warn("embedding service unavailable", zap.Error(err))
	} else {
		embedder = embedSvc
	}

	var index vectorstore.Index
	if qdrantIdx, err := vectorstore.NewQdrantIndex(cfg.Qdrant); err != nil {
		logger.Warn("vector index unavailable", zap.Error(err))
	} else {
		index = qdrantIdx
		defer func() {
			_ = qdrantIdx.Close()
		}()
	}

	searcher := knowledge.NewSearcher(embedder, index, cfg.Retrieval, logger)

	webCache, err := cache.New[string]("websearch", cfg.Cache.WebCapacity)
	if err != nil {
		logger.Warn("web search cache disabled", zap.Error(err))
	}
	web := websearch.New(cfg.Serper, cfg.Retrieval, webCache, logger)

	var model llm.ChatModel
	if chatModel, err := llm.New(cfg.LLM); err != nil {
		logger.Warn("chat model unavailable", zap.Error(err))
	} else {
		model = chatModel
	}

	supportAgent := agent.New(searcher, web, model, cfg.Retrieval, logger)

	scheduler := calendar.New(ctx, cfg.Calendar, logger)
	registry := tools.NewRegistry(searcher, web, scheduler, logger)

	sessions := session.NewStore(cfg.Session, logger)
	go sessions.Run(ctx)

	chatSvc := chat.New(model, registry, sessions, cfg.Chat, logger)

	voiceClient := voice.NewClient(cfg.Vapi, registry.Schemas(), logger)
	webhooks := voice.NewWebhookHandler(registry, supportAgent, logger)

	srv, err := server.New(supportAgent, chatSvc, sessions, voiceClient, webhooks, cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logger.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.Bool("embeddings_ready", embedder != nil),
		zap.Bool("vector_index_ready", index != nil),
		zap.Bool("llm_ready", model != nil),
		zap.Bool("voice_ready", voiceClient.Available()),
		zap.Bool("calendar_ready", scheduler.Available()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
