package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/stagedoor/seat-inventory/internal/adapters/crdb"
	"github.com/stagedoor/seat-inventory/internal/adapters/rabbit"
	redisadapter "github.com/stagedoor/seat-inventory/internal/adapters/redis"
	"github.com/stagedoor/seat-inventory/internal/config"
	"github.com/stagedoor/seat-inventory/internal/domain"
	"github.com/stagedoor/seat-inventory/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	worker := NewExpiryWorker(repo, cache, rabbitPub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, cfg.SweepInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

// ExpiryWorker is the only actor that removes timed-out holds. The sweep
// marks lapsed rows EXPIRED, drops their redis fast-path locks and
// publishes hold.expired so interested consumers can refresh seat maps.
// Holds that were converted to bookings are invisible to it.
type ExpiryWorker struct {
	repo   *crdb.Repository
	cache  *redisadapter.Cache
	pub    *rabbit.Publisher
	logger observability.Logger
}

func NewExpiryWorker(repo *crdb.Repository, cache *redisadapter.Cache, pub *rabbit.Publisher, logger observability.Logger) *ExpiryWorker {
	return &ExpiryWorker{repo: repo, cache: cache, pub: pub, logger: logger}
}

func (w *ExpiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweepWithRetry(ctx); err != nil {
				w.logger.Error("sweep failed after retries: ", err)
			}
		}
	}
}

func (w *ExpiryWorker) sweepWithRetry(ctx context.Context) error {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		expired, err := w.repo.SweepExpired(ctx, time.Now().UTC())
		if err != nil {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		w.finish(ctx, expired)
		return nil
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}

func (w *ExpiryWorker) finish(ctx context.Context, expired []domain.Hold) {
	if len(expired) == 0 {
		return
	}
	observability.HoldsExpired.Add(float64(len(expired)))

	events := make(map[uuid.UUID]struct{})
	for _, hold := range expired {
		events[hold.EventID] = struct{}{}
		if err := w.cache.UnlockSeat(ctx, hold.EventID.String(), hold.SeatID); err != nil {
			w.logger.Warn("failed to drop seat lock: ", err)
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"event_id": hold.EventID,
			"seat_id":  hold.SeatID,
		})
		msg := amqp.Publishing{
			MessageId:   uuid.New().String(),
			ContentType: "application/json",
			Body:        payload,
		}
		if err := w.pub.Publish(ctx, "hold.expired", msg); err != nil {
			w.logger.Warn("failed to publish hold.expired: ", err)
		}
	}
	for eventID := range events {
		if err := w.cache.InvalidateAvailability(ctx, eventID.String()); err != nil {
			w.logger.Warn("availability cache invalidation failed: ", err)
		}
	}
	w.logger.WithField("count", len(expired)).Info("expired holds swept")
}
