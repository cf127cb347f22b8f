package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr   string
	PGDSN        string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	HoldTTL      time.Duration
	SweepEvery   time.Duration
	OTLPEndpoint string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	holdTTL, _ := time.ParseDuration(os.Getenv("HOLD_TTL"))
	if holdTTL == 0 {
		holdTTL = 10 * time.Minute
	}

	sweepEvery, _ := time.ParseDuration(os.Getenv("HOLD_SWEEP_INTERVAL"))
	if sweepEvery == 0 {
		sweepEvery = time.Minute
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return &Config{
		ListenAddr:   addr,
		PGDSN:        os.Getenv("PG_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		HoldTTL:      holdTTL,
		SweepEvery:   sweepEvery,
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
