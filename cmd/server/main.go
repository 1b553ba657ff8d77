package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agenthands/relate/internal/config"
	"github.com/agenthands/relate/internal/core"
	"github.com/agenthands/relate/internal/core/resolve"
	"github.com/agenthands/relate/internal/driver"
	"github.com/agenthands/relate/internal/llm"
	"github.com/agenthands/relate/internal/server"
	"github.com/agenthands/relate/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("could not load config file, using defaults", zap.String("path", cfgPath), zap.Error(err))
		cfg = config.Default()
	}

	// Env overrides win over the config file.
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		cfg.Memgraph.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		cfg.Memgraph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		cfg.Memgraph.Password = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	ctx := context.Background()

	var st store.Store
	if os.Getenv("STORE_BACKEND") == "memory" {
		logger.Info("using in-memory store")
		st = store.NewMemoryStore()
	} else {
		d, err := driver.NewMemgraphDriver(cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger)
		if err != nil {
			logger.Fatal("failed to connect to graph store", zap.Error(err))
		}
		defer d.Close(ctx)
		if err := d.BuildIndices(ctx); err != nil {
			logger.Warn("failed to build indices", zap.Error(err))
		}
		st = store.NewGraphStore(d, logger)
	}

	var arbiter resolve.Arbiter
	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("failed to initialize llm client", zap.Error(err))
	}
	if llmClient != nil {
		arbiter = resolve.NewLLMArbiter(llmClient)
		logger.Info("external arbitration enabled", zap.String("provider", cfg.LLM.Provider))
	} else {
		logger.Info("external arbitration disabled, deterministic strategies only")
	}

	engine := core.NewEngine(st, cfg, arbiter, logger)
	srv := server.New(engine, logger)
	r := srv.SetupRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("starting server", zap.String("port", port))
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
