package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Nsabwe/Cchat/modules/relay"
	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

// ErrNotStarted is returned by ledger calls made before Start.
var ErrNotStarted = errors.New("tip ledger not started")

// Config holds the ledger connection settings. An empty RedisAddr keeps
// totals in process memory.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
}

// Module owns the tip ledger. It implements relay.TipLedger by delegating to
// Redis when configured and to an in-memory ledger otherwise.
type Module struct {
	cfg    Config
	mu     sync.RWMutex
	client *redis.Client
	redis  *RedisTipLedger
	ledger relay.TipLedger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)
var _ relay.TipLedger = (*Module)(nil)

// NewModule creates a new cache module.
func NewModule(cfg Config) *Module {
	if cfg.Prefix == "" {
		cfg.Prefix = "chat:tips:"
	}
	return &Module{cfg: cfg}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// Start connects to Redis, or falls back to memory when no address is set.
func (m *Module) Start(ctx context.Context) error {
	if m.cfg.RedisAddr == "" {
		m.mu.Lock()
		m.ledger = relay.NewMemoryTipLedger()
		m.mu.Unlock()
		log.Println("[cache] REDIS_ADDR not set, tip totals are kept in memory")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         m.cfg.RedisAddr,
		Password:     m.cfg.RedisPassword,
		DB:           m.cfg.RedisDB,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ledger := NewRedisTipLedger(client, m.cfg.Prefix)
	m.mu.Lock()
	m.client = client
	m.redis = ledger
	m.ledger = ledger
	m.mu.Unlock()

	log.Printf("[cache] Connected to Redis at %s (prefix: %s)", m.cfg.RedisAddr, m.cfg.Prefix)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.redis = nil
	m.ledger = nil
	m.mu.Unlock()

	if client != nil {
		if err := client.Close(); err != nil {
			log.Printf("[cache] Error closing Redis connection: %v", err)
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	log.Println("[cache] Module stopped")
	return nil
}

// Health verifies the Redis connection when one is configured.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	m.mu.RLock()
	ledger, rl := m.ledger, m.redis
	m.mu.RUnlock()

	if ledger == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	if rl == nil {
		return mono.HealthStatus{Healthy: true, Message: "operational", Details: map[string]any{"backend": "memory"}}
	}
	if err := rl.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error(), Details: map[string]any{"backend": "redis"}}
	}
	stats := rl.GetStats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"backend": "redis",
			"credits": stats.Credits,
			"reads":   stats.Reads,
			"errors":  stats.Errors,
		},
	}
}

// Credit implements relay.TipLedger.
func (m *Module) Credit(ctx context.Context, recipientUserID string, amount float64) (float64, error) {
	l, err := m.current()
	if err != nil {
		return 0, err
	}
	return l.Credit(ctx, recipientUserID, amount)
}

// Total implements relay.TipLedger.
func (m *Module) Total(ctx context.Context, recipientUserID string) (float64, error) {
	l, err := m.current()
	if err != nil {
		return 0, err
	}
	return l.Total(ctx, recipientUserID)
}

func (m *Module) current() (relay.TipLedger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ledger == nil {
		return nil, ErrNotStarted
	}
	return m.ledger, nil
}
