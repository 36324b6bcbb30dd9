package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/stagedoor/seat-inventory/internal/adapters/crdb"
	mongoadapter "github.com/stagedoor/seat-inventory/internal/adapters/mongo"
	redisadapter "github.com/stagedoor/seat-inventory/internal/adapters/redis"
	"github.com/stagedoor/seat-inventory/internal/config"
	httphandler "github.com/stagedoor/seat-inventory/internal/http"
	"github.com/stagedoor/seat-inventory/internal/idempotency"
	"github.com/stagedoor/seat-inventory/internal/inventory"
	"github.com/stagedoor/seat-inventory/internal/observability"
	"github.com/stagedoor/seat-inventory/internal/ratelimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	if err := crdb.EnsureSchema(context.Background(), pool); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("seatinv")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := ratelimit.NewRateLimiter(cache)

	// Rabbit is only dialed to fail fast on misconfiguration; the API
	// itself writes the outbox and leaves publishing to the drain worker.
	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()

	holds := inventory.NewHoldManager(repo, logger, cfg.HoldTTL, cfg.MaxSeatsPerHold).
		WithSeatLocker(cache).
		WithCatalog(catalog).
		WithInvalidator(cache)
	reconciler := inventory.NewReconciler(repo, logger, cfg.HoldTTL).
		WithSeatLockMover(cache).
		WithInvalidator(cache)
	ledger := inventory.NewLedger(repo, logger).
		WithSeatLocker(cache).
		WithAuditor(audit).
		WithInvalidator(cache)
	blocks := inventory.NewBlockManager(repo, logger).
		WithAuditor(audit).
		WithInvalidator(cache)
	index := inventory.NewIndex(repo, logger).WithCache(cache)

	handlers := httphandler.NewHandlers(cfg, holds, reconciler, ledger, blocks, index, idemp, logger)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
