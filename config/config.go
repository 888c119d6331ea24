// Package config loads relay settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the relay process.
type Config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Store selects the persistence backend: sqlite, mongo or memory.
	StoreDriver   string        `env:"STORE_DRIVER" envDefault:"sqlite"`
	DBPath        string        `env:"DB_PATH" envDefault:"chat.db"`
	DBDebug       bool          `env:"DB_DEBUG" envDefault:"false"`
	MongoURI      string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string        `env:"MONGO_DATABASE" envDefault:"chat"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// An empty RedisAddr keeps the tip ledger in process memory.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	TipKeyPrefix  string `env:"TIP_KEY_PREFIX" envDefault:"chat:tips:"`

	ReadPromotionDelay time.Duration `env:"READ_PROMOTION_DELAY" envDefault:"2s"`
	PersistRetries     int           `env:"PERSIST_RETRIES" envDefault:"2"`
	PersistRetryDelay  time.Duration `env:"PERSIST_RETRY_DELAY" envDefault:"100ms"`
	HistoryLimit       int           `env:"HISTORY_LIMIT" envDefault:"50"`
	MessageIndexSize   int           `env:"MESSAGE_INDEX_SIZE" envDefault:"10000"`

	SendQueueSize  int           `env:"SEND_QUEUE_SIZE" envDefault:"64"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	MaxMessageSize int           `env:"MAX_MESSAGE_LENGTH" envDefault:"5000"`
	RateLimit      float64       `env:"WS_RATE_LIMIT" envDefault:"10"`
	RateBurst      int           `env:"WS_RATE_BURST" envDefault:"20"`

	VAPIDPublicKey  string        `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string        `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string        `env:"VAPID_SUBSCRIBER" envDefault:"mailto:admin@example.com"`
	PushWorkers     int           `env:"PUSH_WORKERS" envDefault:"4"`
	PushQueueSize   int           `env:"PUSH_QUEUE_SIZE" envDefault:"256"`
	PushTimeout     time.Duration `env:"PUSH_TIMEOUT" envDefault:"10s"`
	PushIcon        string        `env:"PUSH_ICON" envDefault:"/icon.png"`
}

// Load parses Config from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the relay cannot run with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite", "mongo", "memory":
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want sqlite, mongo or memory", c.StoreDriver)
	}
	if c.ReadPromotionDelay <= 0 {
		return fmt.Errorf("READ_PROMOTION_DELAY must be positive, got %s", c.ReadPromotionDelay)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("SEND_QUEUE_SIZE must be positive, got %d", c.SendQueueSize)
	}
	if c.PushWorkers <= 0 {
		return fmt.Errorf("PUSH_WORKERS must be positive, got %d", c.PushWorkers)
	}
	if c.PersistRetries < 0 {
		return fmt.Errorf("PERSIST_RETRIES must not be negative, got %d", c.PersistRetries)
	}
	return nil
}
