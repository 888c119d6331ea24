// Package cache keeps the tip ledger in Redis so that totals survive restarts
// and are shared between relay instances.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// RedisTipLedger stores one running total per recipient under prefix+userID.
// INCRBYFLOAT makes each credit atomic on the server.
type RedisTipLedger struct {
	client *redis.Client
	prefix string
	stats  *Stats
}

// Stats tracks ledger operations.
type Stats struct {
	Credits uint64 `json:"credits"`
	Reads   uint64 `json:"reads"`
	Errors  uint64 `json:"errors"`
}

// NewRedisTipLedger creates a ledger on an existing client.
func NewRedisTipLedger(client *redis.Client, prefix string) *RedisTipLedger {
	return &RedisTipLedger{
		client: client,
		prefix: prefix,
		stats:  &Stats{},
	}
}

// Credit adds amount to the recipient's total and returns the new total.
func (l *RedisTipLedger) Credit(ctx context.Context, recipientUserID string, amount float64) (float64, error) {
	total, err := l.client.IncrByFloat(ctx, l.prefix+recipientUserID, amount).Result()
	if err != nil {
		atomic.AddUint64(&l.stats.Errors, 1)
		return 0, fmt.Errorf("ledger credit error: %w", err)
	}
	atomic.AddUint64(&l.stats.Credits, 1)
	return total, nil
}

// Total returns the recipient's current total. Unknown recipients have zero.
func (l *RedisTipLedger) Total(ctx context.Context, recipientUserID string) (float64, error) {
	raw, err := l.client.Get(ctx, l.prefix+recipientUserID).Result()
	if errors.Is(err, redis.Nil) {
		atomic.AddUint64(&l.stats.Reads, 1)
		return 0, nil
	}
	if err != nil {
		atomic.AddUint64(&l.stats.Errors, 1)
		return 0, fmt.Errorf("ledger get error: %w", err)
	}

	total, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		atomic.AddUint64(&l.stats.Errors, 1)
		return 0, fmt.Errorf("ledger value for %s is not a number: %w", recipientUserID, err)
	}
	atomic.AddUint64(&l.stats.Reads, 1)
	return total, nil
}

// GetStats returns a snapshot of the counters.
func (l *RedisTipLedger) GetStats() Stats {
	return Stats{
		Credits: atomic.LoadUint64(&l.stats.Credits),
		Reads:   atomic.LoadUint64(&l.stats.Reads),
		Errors:  atomic.LoadUint64(&l.stats.Errors),
	}
}

// Ping checks if the Redis connection is healthy.
func (l *RedisTipLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
