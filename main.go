// clipforge/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clipforge/api"
	"clipforge/config"
	"clipforge/logging"
	"clipforge/providers"
	"clipforge/state"
	"clipforge/subtitle"
	"clipforge/task"
	"clipforge/video"
)

var log = logging.GetLogger()

func main() {
	// .env is optional, real deployments use the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded .env file")
	}

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := os.MkdirAll(cfg.TaskDir, 0o755); err != nil {
		log.Fatalf("Failed to create task directory %s: %v", cfg.TaskDir, err)
	}

	// 2. Pick the task state backend, once, at startup
	var store state.Store
	switch cfg.StateBackend {
	case "redis":
		store, err = state.NewRedisStore(state.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		log.Infof("Using redis state store at %s", cfg.RedisAddr)
	default:
		store = state.NewMemoryStore()
		log.Info("Using in-memory state store")
	}

	// 3. Initialize the media assembly engine
	engine, err := video.NewEngine(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize assembly engine: %v", err)
	}

	// 4. Wire the pipeline collaborators
	llm := providers.NewLLMClient(cfg)
	speech := providers.NewEdgeSpeech(cfg)
	orc := task.NewOrchestrator(cfg, store, engine,
		llm,
		llm,
		speech,
		speech,
		providers.NewWhisperTranscriber(cfg),
		subtitle.Corrector{},
		providers.NewPexelsClient(cfg),
	)

	// 5. Set up router and server
	router := api.SetupRouter(api.NewHandler(orc, store, cfg), cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s", err)
		}
	}()

	// 6. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	stop()
	log.Info("Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exiting")
}
