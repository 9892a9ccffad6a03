// Cardwise - Card selection and rewards optimization engine.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/metapayd/cardwise/internal/api"
	"github.com/metapayd/cardwise/internal/bus"
	"github.com/metapayd/cardwise/internal/cache"
	"github.com/metapayd/cardwise/internal/catalog"
	"github.com/metapayd/cardwise/internal/domain"
	"github.com/metapayd/cardwise/internal/engine"
	"github.com/metapayd/cardwise/internal/insights"
	"github.com/metapayd/cardwise/internal/repository"
	"github.com/metapayd/cardwise/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Local overrides from .env, ignored when absent
	_ = godotenv.Load()

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("CARDWISE_MODE") == string(domain.ModeDistributed) {
		cfg = domain.DistributedConfig()
	}
	applyEnvOverrides(cfg)

	// Initialize structured logger
	setupLogger(cfg.Logging)

	// Log startup
	slog.Info("starting cardwise",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"mode", cfg.Mode,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize merchant category catalog from database
	// (no embedded defaults - seed via POST /catalog entries or migrations)
	cat, err := catalog.Load(ctx, repo)
	if err != nil {
		slog.Warn("failed to load catalog from database, starting empty", "error", err)
		cat = catalog.New(nil)
	}
	slog.Info("catalog initialized", "entries", cat.Count())

	// Initialize Policy Set
	policies, err := engine.NewPolicySet()
	if err != nil {
		slog.Error("failed to initialize policy set", "error", err)
		os.Exit(1)
	}

	// Load policies from database (no hardcoded defaults - configure via API)
	if err := loadPoliciesFromDatabase(ctx, repo, policies); err != nil {
		slog.Error("failed to load policies", "error", err)
		os.Exit(1)
	}
	slog.Info("policy set initialized", "policies_count", policies.Count())

	// Initialize Selection Engine
	eng := engine.New(cat, policies)

	// Initialize Insights Analyzer
	analyzer := insights.NewAnalyzer(cat, eng, insights.TipConfig{
		BaselineRate: cfg.Insights.BaselineRate,
	})
	slog.Info("analyzer initialized", "baseline_rate", cfg.Insights.BaselineRate)

	// Initialize async analysis Worker
	var asyncWorker *worker.Worker
	if cfg.Mode == domain.ModeDistributed || os.Getenv("CARDWISE_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, analyzer)

		var userIDs []string
		if envUsers := os.Getenv("CARDWISE_USERS"); envUsers != "" {
			userIDs = strings.Split(envUsers, ",")
		}

		workerCfg := worker.Config{
			UserIDs:     userIDs,
			AnalysisTTL: time.Duration(cfg.Insights.AnalysisTTL) * time.Second,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "user_count", len(userIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, eng, policies, analyzer, cat, cfg.Insights, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("cardwise is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("cardwise shutdown complete")
}

// setupLogger installs the default slog logger per configuration.
func setupLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if os.Getenv("CARDWISE_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// applyEnvOverrides layers CARDWISE_* environment variables over the
// mode defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("CARDWISE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CARDWISE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CARDWISE_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("CARDWISE_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("CARDWISE_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("CARDWISE_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("CARDWISE_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("CARDWISE_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("CARDWISE_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("CARDWISE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CARDWISE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CARDWISE_BASELINE_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate > 0 {
			cfg.Insights.BaselineRate = rate
		}
	}
}

// loadPoliciesFromDatabase loads selection policies into the policy set.
// All policies are configured via POST /policies - no hardcoded defaults.
func loadPoliciesFromDatabase(ctx context.Context, repo domain.Repository, policies *engine.PolicySet) error {
	dbPolicies, err := repo.ListPolicies(ctx)
	if err != nil {
		slog.Warn("failed to list policies from database", "error", err)
		return nil // Start with empty policies - they can be added via API
	}

	if len(dbPolicies) > 0 {
		slog.Info("loading policies from database", "count", len(dbPolicies))
		return policies.LoadAll(dbPolicies)
	}

	slog.Info("no policies in database - configure via POST /policies API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                 CARDWISE")
	fmt.Println("     Card Selection & Rewards Optimization")
	fmt.Println("      The right card for every purchase.")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Mode:     %s\n", cfg.Mode)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /recommendations      - Recommend a card for a purchase")
	fmt.Println("    GET  /recommendations/{id} - Get recommendation by ID")
	fmt.Println("    GET  /cards                - List wallet cards")
	fmt.Println("    GET  /cards/{id}           - Get card by ID")
	fmt.Println("    POST /cards                - Add a card")
	fmt.Println("    GET  /transactions         - List recent transactions")
	fmt.Println("    GET  /transactions/{id}    - Get transaction by ID")
	fmt.Println("    POST /transactions         - Record a transaction")
	fmt.Println("    GET  /analysis             - Spending analysis and tips")
	fmt.Println("    GET  /categories/{code}    - Look up a category code")
	fmt.Println("    POST /catalog/reload       - Hot-reload the catalog")
	fmt.Println("    GET  /policies             - List selection policies")
	fmt.Println("    POST /policies             - Create a selection policy")
	fmt.Println("    DELETE /policies/{id}      - Delete a selection policy")
	fmt.Println("    POST /policies/reload      - Hot-reload policies")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
