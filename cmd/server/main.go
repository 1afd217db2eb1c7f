package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/omis-2025/strangerwave-sub000/internal/config"
	"github.com/omis-2025/strangerwave-sub000/internal/database"
	"github.com/omis-2025/strangerwave-sub000/internal/handlers"
	"github.com/omis-2025/strangerwave-sub000/internal/matching"
	"github.com/omis-2025/strangerwave-sub000/internal/middleware"
	"github.com/omis-2025/strangerwave-sub000/internal/moderation"
	"github.com/omis-2025/strangerwave-sub000/internal/queue"
	"github.com/omis-2025/strangerwave-sub000/internal/registry"
	"github.com/omis-2025/strangerwave-sub000/internal/relay"
	"github.com/omis-2025/strangerwave-sub000/internal/repositories"
	"github.com/omis-2025/strangerwave-sub000/internal/scoring"
	"github.com/omis-2025/strangerwave-sub000/internal/services"
	"github.com/omis-2025/strangerwave-sub000/internal/session"
	"github.com/omis-2025/strangerwave-sub000/internal/store"
	"github.com/omis-2025/strangerwave-sub000/internal/supervisor"
	"github.com/omis-2025/strangerwave-sub000/internal/translation"
	"github.com/omis-2025/strangerwave-sub000/internal/websocket"
	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
	"github.com/omis-2025/strangerwave-sub000/telegram"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize logger
	logger.Init()
	defer logger.Sync()

	logger.Info("Starting chat server...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", err)
	}

	// Validate production security settings
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
		logger.Info("Production security validation passed")
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open store", err)
	}

	mod, err := moderation.FromConfig(cfg)
	if err != nil {
		logger.Fatal("Failed to build moderation gate", err)
	}
	translator := translation.FromConfig(cfg)

	// Core
	reg := registry.New()
	sessions := session.NewManager(st, st, reg)
	engine := matching.NewEngine(queue.New(), sessions, st, st, reg, matching.Options{
		DefaultWeights: defaultWeights(cfg),
		ProfileTTL:     cfg.GetProfileCacheTTL(),
		RescanInterval: cfg.GetRescanInterval(),
	})
	limiter := middleware.NewRateLimiter(
		cfg.MessageRatePerMinute, cfg.MessageRateBurst,
		cfg.ConnectRatePerMinute, cfg.ConnectRateBurst,
	)
	interests := services.NewInterestService(st, nil, cfg.InterestWorkers)
	rl := relay.New(sessions, st, st, reg, mod, translator, limiter, interests, relay.Options{
		MaxMessageLength: cfg.MaxMessageLength,
		SuppressFlagged:  cfg.ModerationSuppressFlagged,
	})
	mgr := handlers.NewHandlerManager(reg, engine, sessions, rl, st)

	// The tree outlives the signal so sessions can be closed before the
	// transports go away.
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	treeCtx, cancelTree := context.WithCancel(context.Background())
	defer cancelTree()

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddCoreService(engine)
	tree.AddCoreService(interests)
	tree.AddCoreService(limiter)

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           newRouter(websocket.NewServer(treeCtx, mgr, cfg.JWTSecret, cfg.AllowedOrigins), limiter, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddTransportService(supervisor.NewHTTPServerService(server, shutdownTimeout))

	if cfg.BotToken != "" {
		bot, err := telegram.InitBot(cfg, mgr, st)
		if err != nil {
			logger.Fatal("Failed to initialize bot", err)
		}
		tree.AddTransportService(bot)
	}

	done := tree.ServeBackground(treeCtx)
	logger.Info("Server started", "env", cfg.AppEnv, "port", cfg.AppPort, "store", cfg.StoreDriver)

	select {
	case <-sigCtx.Done():
	case err := <-done:
		logger.Error("Supervisor stopped unexpectedly", "error", err)
		return
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	mgr.Shutdown(shutdownCtx)

	cancelTree()
	<-done
	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logger.Warn("Services did not stop in time", "services", report)
	}
	logger.Info("Server stopped")
}

// openStore connects the configured backend. Database backends are migrated
// and seeded with a default algorithm row.
func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	st := repositories.NewStore(db)
	seeded, err := st.SeedDefault(context.Background(), defaultWeights(cfg))
	if err != nil {
		logger.Warn("Failed to seed matching algorithm", "error", err)
	} else if seeded {
		logger.Info("Seeded default matching algorithm")
	}
	return st, nil
}

func defaultWeights(cfg *config.Config) scoring.Weights {
	return scoring.Weights{
		Interest: cfg.ScoreWeightInterest,
		Time:     cfg.ScoreWeightTime,
		Duration: cfg.ScoreWeightDuration,
	}
}
