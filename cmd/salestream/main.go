package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/salestream-lab/salestream/internal/aggregate"
	"github.com/salestream-lab/salestream/internal/cache"
	"github.com/salestream-lab/salestream/internal/catalog"
	"github.com/salestream-lab/salestream/internal/config"
	"github.com/salestream-lab/salestream/internal/core/retry"
	"github.com/salestream-lab/salestream/internal/core/storage/postgres"
	"github.com/salestream-lab/salestream/internal/generator"
	"github.com/salestream-lab/salestream/internal/ingest"
	"github.com/salestream-lab/salestream/internal/migrations"
	"github.com/salestream-lab/salestream/internal/query"
	"github.com/salestream-lab/salestream/internal/server"
)

func main() {
	configPath := flag.String("config", "salestream.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 2. Initialize Storage (PostgreSQL)
	connectRetry := retry.Policy{
		MaxAttempts: cfg.Database.ConnectAttempts,
		Backoff:     retry.LinearBackoff(cfg.Database.ConnectBackoffDuration()),
	}
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		connectRetry,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Aggregate Store
	store := aggregate.NewStore(dbAdapter)

	// 4. Load Product Catalog (category enrichment + generator prices)
	cat := catalog.Empty()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Load(cfg.Catalog.Path)
		if err != nil {
			slog.Error("Failed to load product catalog", "path", cfg.Catalog.Path, "error", err)
			os.Exit(1)
		}
		slog.Info("Loaded product catalog", "path", cfg.Catalog.Path, "products", cat.Len())
	} else {
		slog.Warn("No product catalog configured, all products are uncategorized")
	}

	// 5. Initialize Cache (read-through, invalidated by the engine)
	var bucketReader query.BucketReader = store
	var invalidator ingest.Invalidator
	if cfg.Cache.Enabled {
		aggCache := cache.New(store.GetBucket, cfg.Cache.CacheTTL())
		bucketReader = aggCache
		invalidator = aggCache
		slog.Info("Aggregate cache enabled", "ttl", cfg.Cache.CacheTTL())
	} else {
		slog.Info("Aggregate cache disabled, queries read the store directly")
	}

	// 6. Initialize Ingestion (queue -> engine -> store)
	queue := ingest.NewQueue(cfg.Ingestion.QueueSize)

	var deadLetterQueue *ingest.Queue
	var deadLetter ingest.DeadLetter = ingest.LogDeadLetter{}
	if cfg.Ingestion.DeadLetterQueueSize > 0 {
		deadLetterQueue = ingest.NewQueue(cfg.Ingestion.DeadLetterQueueSize)
		deadLetter = ingest.NewQueueDeadLetter(deadLetterQueue)
	}

	engine := ingest.NewEngine(queue, deadLetter, store, invalidator, cat, cfg.Ingestion.Workers)
	edge := ingest.NewHTTPEdge(queue, deadLetterQueue, cfg.Server.MaxBodySizeMB)

	// 7. Initialize Query Service (metrics API)
	querySvc := query.NewService(bucketReader, store, store)

	// 8. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	edge.RegisterRoutes(srv.Engine)
	querySvc.RegisterRoutes(srv.Engine)

	// 9. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := engine.Run(ctx); err != nil {
			slog.Error("Ingestion engine stopped with error", "error", err)
			cancel()
		}
	}()

	sweeper := ingest.NewRetentionSweeper(
		cfg.Retention.SweepIntervalDuration(),
		cfg.Retention.LedgerWindowDuration(),
		dbAdapter,
	)
	go func() {
		if err := sweeper.Start(ctx); err != nil {
			slog.Error("Retention sweeper stopped with error", "error", err)
		}
	}()

	if cfg.Generator.Enabled {
		gen := generator.New(cat, cfg.Generator.Customers, cfg.Generator.Seed)
		go gen.Run(ctx, queue, cfg.Generator.GeneratorInterval())
	}

	// Signal handler -> triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	queue.Close()
	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
