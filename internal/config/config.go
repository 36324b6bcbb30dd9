package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CRDBDSN         string
	MongoURI        string
	RedisAddr       string
	RabbitURL       string
	AdminToken      string
	HoldTTL         time.Duration
	MaxSeatsPerHold int
	SweepInterval   time.Duration
	OTLPEndpoint    string
	ListenAddr      string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	// One canonical hold duration. The legacy system carried two competing
	// defaults (900s and 600s) across components; 900s is authoritative here.
	holdTTL, _ := time.ParseDuration(os.Getenv("HOLD_TTL"))
	if holdTTL == 0 {
		holdTTL = 15 * time.Minute
	}

	sweep, _ := time.ParseDuration(os.Getenv("SWEEP_INTERVAL"))
	if sweep == 0 {
		sweep = time.Minute
	}

	maxSeats, _ := strconv.Atoi(os.Getenv("MAX_SEATS_PER_HOLD"))
	if maxSeats == 0 {
		maxSeats = 10
	}

	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = ":8080"
	}

	return &Config{
		CRDBDSN:         os.Getenv("CRDB_DSN"),
		MongoURI:        os.Getenv("MONGO_URI"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RabbitURL:       os.Getenv("RABBIT_URL"),
		AdminToken:      os.Getenv("ADMIN_TOKEN"),
		HoldTTL:         holdTTL,
		MaxSeatsPerHold: maxSeats,
		SweepInterval:   sweep,
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ListenAddr:      listen,
	}, nil
}
