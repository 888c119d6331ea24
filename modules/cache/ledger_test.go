package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
)

// Tests against Redis require it running on localhost:6379.
const testRedisAddr = "localhost:6379"

func setupTestLedger(t *testing.T, prefix string) *RedisTipLedger {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	cleanupKeys(ctx, client, prefix+"*")
	t.Cleanup(func() {
		cleanupKeys(ctx, client, prefix+"*")
		client.Close()
	})
	return NewRedisTipLedger(client, prefix)
}

func cleanupKeys(ctx context.Context, client *redis.Client, pattern string) {
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
}

func TestRedisTipLedger_CreditIsOrderIndependent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		amounts []float64
		want    float64
	}{
		{name: "5 then 3", amounts: []float64{5, 3}, want: 8},
		{name: "3 then 5", amounts: []float64{3, 5}, want: 8},
		{name: "fractions", amounts: []float64{0.5, 0.25}, want: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := setupTestLedger(t, "test:tips:order:")
			var last float64
			for _, a := range tt.amounts {
				total, err := l.Credit(ctx, "bob", a)
				if err != nil {
					t.Fatalf("Credit() unexpected error: %v", err)
				}
				last = total
			}
			if last != tt.want {
				t.Errorf("last Credit() = %v, want %v", last, tt.want)
			}
			got, err := l.Total(ctx, "bob")
			if err != nil {
				t.Fatalf("Total() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Total() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRedisTipLedger_TotalOfUnknownRecipient(t *testing.T) {
	l := setupTestLedger(t, "test:tips:unknown:")

	got, err := l.Total(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Total() unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("Total() = %v, want 0", got)
	}
	if l.GetStats().Reads != 1 {
		t.Errorf("Reads = %d, want 1", l.GetStats().Reads)
	}
}

func TestRedisTipLedger_ConcurrentCredits(t *testing.T) {
	ctx := context.Background()
	l := setupTestLedger(t, "test:tips:concurrent:")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Credit(ctx, "bob", 2); err != nil {
				t.Errorf("Credit() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got, _ := l.Total(ctx, "bob"); got != 100 {
		t.Errorf("Total() = %v, want 100", got)
	}
	if l.GetStats().Credits != 50 {
		t.Errorf("Credits = %d, want 50", l.GetStats().Credits)
	}
}

func TestModule_MemoryFallback(t *testing.T) {
	ctx := context.Background()
	m := NewModule(Config{})

	if _, err := m.Credit(ctx, "bob", 1); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Credit() before Start error = %v, want ErrNotStarted", err)
	}
	if h := m.Health(ctx); h.Healthy {
		t.Error("Health() before Start should be unhealthy")
	}

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	m.Credit(ctx, "bob", 5)
	m.Credit(ctx, "bob", 3)
	if got, _ := m.Total(ctx, "bob"); got != 8 {
		t.Errorf("Total() = %v, want 8", got)
	}
	if h := m.Health(ctx); !h.Healthy || h.Details["backend"] != "memory" {
		t.Errorf("Health() = %+v, want healthy memory backend", h)
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() unexpected error: %v", err)
	}
	if _, err := m.Total(ctx, "bob"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Total() after Stop error = %v, want ErrNotStarted", err)
	}
}

func TestModule_Redis(t *testing.T) {
	setupTestLedger(t, "test:tips:module:")
	ctx := context.Background()

	m := NewModule(Config{RedisAddr: testRedisAddr, Prefix: "test:tips:module:"})
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	defer m.Stop(ctx)

	if _, err := m.Credit(ctx, "bob", 4); err != nil {
		t.Fatalf("Credit() unexpected error: %v", err)
	}
	if h := m.Health(ctx); !h.Healthy || h.Details["backend"] != "redis" {
		t.Errorf("Health() = %+v, want healthy redis backend", h)
	}
}
