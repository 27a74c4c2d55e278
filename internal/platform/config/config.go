package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures everything the server needs from the environment so main
// stays lean.
type Config struct {
	Addr string `env:"BESTIARY_ADDR" envDefault:":8080"`

	// DatabaseURL selects the Postgres stores; empty runs on in-memory
	// stores (dev/tests only).
	DatabaseURL string `env:"DATABASE_URL"`

	// RedisURL enables the price-quote cache when set.
	RedisURL      string        `env:"REDIS_URL"`
	QuoteCacheTTL time.Duration `env:"QUOTE_CACHE_TTL" envDefault:"30s"`

	// KafkaBrokers enables the audit outbox relay when set (requires
	// DatabaseURL for the outbox).
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string   `env:"AUDIT_TOPIC" envDefault:"bestiary.audit"`

	// OwnerJWTKey verifies the owner tokens gating the admin endpoints.
	OwnerJWTKey string `env:"OWNER_JWT_KEY,required"`

	// Collaborator base URLs.
	BeaconURL      string `env:"BEACON_URL,required"`
	PriceOracleURL string `env:"PRICE_ORACLE_URL,required"`
	RendererURL    string `env:"RENDERER_URL,required"`
	RegistryURL    string `env:"REGISTRY_URL,required"`
	ChainURL       string `env:"CHAIN_URL,required"`

	// Issuance context.
	CohortID  uint64 `env:"COHORT_ID,required"`
	QuotePair string `env:"QUOTE_PAIR" envDefault:"ETH-USD"`
}

// Load builds the Config from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
