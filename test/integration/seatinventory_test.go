package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
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
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestIntegration_HoldCommitRefundRehold(t *testing.T) {
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForExec([]string{"mongo", "--eval", "db.runCommand('ping').ok"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	crdbHost, err := crdbContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	crdbPort, err := crdbContainer.MappedPort(ctx, "26257")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		CRDBDSN:         "postgresql://root@" + crdbHost + ":" + crdbPort.Port() + "/seatinv?sslmode=disable",
		MongoURI:        "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:       redisHost + ":" + redisPort.Port(),
		AdminToken:      "integration-admin-token",
		HoldTTL:         15 * time.Minute,
		MaxSeatsPerHold: 10,
		ListenAddr:      ":8090",
	}

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, `CREATE DATABASE IF NOT EXISTS seatinv`); err != nil {
		t.Fatal(err)
	}
	if err := crdb.EnsureSchema(ctx, pool); err != nil {
		t.Fatal(err)
	}
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	mongoDB := mongoClient.Database("seatinv")
	logger := observability.NewLogger()
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := ratelimit.NewRateLimiter(cache)

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

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped: ", err)
		}
	}()
	defer srv.Shutdown(ctx)
	time.Sleep(200 * time.Millisecond)

	base := "http://localhost:8090"
	eventID := uuid.New()

	event := mongoadapter.EventDoc{
		ID:    eventID,
		Name:  "Opening Night",
		Venue: "Main Stage",
		Date:  time.Now().UTC().Add(48 * time.Hour),
		Seats: []mongoadapter.SeatDoc{
			{ID: "A1-1", Section: "A", Row: 1, Number: 1, Tier: "premium"},
			{ID: "A1-2", Section: "A", Row: 1, Number: 2, Tier: "premium"},
		},
	}
	if err := catalog.CreateEvent(ctx, event); err != nil {
		t.Fatal(err)
	}

	// New session.
	resp := doPost(t, base+"/v1/sessions", nil, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("session create failed: %d", resp.StatusCode)
	}
	var sessResp struct {
		SessionID string `json:"session_id"`
	}
	json.NewDecoder(resp.Body).Decode(&sessResp)

	// Hold both seats.
	resp = doPost(t, base+"/v1/holds", map[string]interface{}{
		"event_id":   eventID.String(),
		"seats":      []string{"A1-1", "A1-2"},
		"session_id": sessResp.SessionID,
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("hold failed: %d", resp.StatusCode)
	}
	var holdResp struct {
		HeldSeats []string `json:"held_seats"`
	}
	json.NewDecoder(resp.Body).Decode(&holdResp)
	if len(holdResp.HeldSeats) != 2 {
		t.Fatalf("expected both seats held, got %v", holdResp.HeldSeats)
	}

	// A second session asking for a held seat is told no.
	resp = doPost(t, base+"/v1/holds", map[string]interface{}{
		"event_id":   eventID.String(),
		"seats":      []string{"A1-1"},
		"session_id": "second-session-0123456789abcdef",
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for contested seat, got %d", resp.StatusCode)
	}

	// Commit the booking.
	resp = doPost(t, base+"/v1/bookings", map[string]interface{}{
		"event_id":       eventID.String(),
		"seats":          []string{"A1-1", "A1-2"},
		"session_id":     sessResp.SessionID,
		"order_id":       1001,
		"customer_email": "buyer@example.com",
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("commit failed: %d", resp.StatusCode)
	}

	// Availability shows the seats as booked.
	getResp, err := http.Get(base + "/v1/events/" + eventID.String() + "/availability")
	if err != nil {
		t.Fatal(err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("availability failed: %d", getResp.StatusCode)
	}
	var avResp struct {
		Booked []string `json:"booked"`
	}
	json.NewDecoder(getResp.Body).Decode(&avResp)
	if len(avResp.Booked) != 2 {
		t.Errorf("expected 2 booked seats, got %v", avResp.Booked)
	}

	// Full refund releases the whole order.
	adminHeaders := map[string]string{"Authorization": "Bearer " + cfg.AdminToken}
	resp = doPost(t, base+"/v1/refunds/full", map[string]interface{}{
		"order_id":       1001,
		"order_total":    120.0,
		"refunded_total": 120.0,
		"reason":         "refunded",
	}, adminHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("full refund failed: %d", resp.StatusCode)
	}
	var refundResp struct {
		ReleasedSeats []string `json:"released_seats"`
	}
	json.NewDecoder(resp.Body).Decode(&refundResp)
	if len(refundResp.ReleasedSeats) != 2 {
		t.Fatalf("expected 2 released seats, got %v", refundResp.ReleasedSeats)
	}

	// Duplicate refund webhook is a no-op.
	resp = doPost(t, base+"/v1/refunds/full", map[string]interface{}{
		"order_id":       1001,
		"order_total":    120.0,
		"refunded_total": 120.0,
		"reason":         "refunded",
	}, adminHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat refund failed: %d", resp.StatusCode)
	}
	json.NewDecoder(resp.Body).Decode(&refundResp)
	if len(refundResp.ReleasedSeats) != 0 {
		t.Errorf("expected repeat refund to release nothing, got %v", refundResp.ReleasedSeats)
	}

	// The released seats can be held again by a fresh session.
	resp = doPost(t, base+"/v1/holds", map[string]interface{}{
		"event_id":   eventID.String(),
		"seats":      []string{"A1-1", "A1-2"},
		"session_id": "third-session-0123456789abcdef0",
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("re-hold after refund failed: %d", resp.StatusCode)
	}
	json.NewDecoder(resp.Body).Decode(&holdResp)
	if len(holdResp.HeldSeats) != 2 {
		t.Errorf("expected released seats to be holdable, got %v", holdResp.HeldSeats)
	}
}

func doPost(t *testing.T, url string, body map[string]interface{}, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}
