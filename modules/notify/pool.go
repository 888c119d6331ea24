package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nsabwe/Cchat/domain/chat"
	"golang.org/x/sync/errgroup"
)

// ErrQueueFull is returned by Enqueue when every worker is busy and the queue is full.
var ErrQueueFull = errors.New("push queue full")

// ErrPoolStopped is returned by Enqueue when the pool is not running.
var ErrPoolStopped = errors.New("push pool not running")

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	NumWorkers  int
	QueueSize   int
	PushTimeout time.Duration
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers:  4,
		QueueSize:   256,
		PushTimeout: 10 * time.Second,
	}
}

// ExpiredFunc is called by a worker when the push service reports that a
// subscription no longer exists.
type ExpiredFunc func(ctx context.Context, sub chat.PushSubscription)

type delivery struct {
	sub     chat.PushSubscription
	payload []byte
}

// Pool pushes queued notifications with a fixed number of workers.
type Pool struct {
	config  PoolConfig
	pusher  Pusher
	expired ExpiredFunc
	jobs    chan delivery
	group   *errgroup.Group
	cancel  context.CancelFunc
	mu      sync.RWMutex
	running bool

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
	pruned  atomic.Uint64
}

// NewPool creates a new push pool.
func NewPool(cfg PoolConfig, pusher Pusher) *Pool {
	def := DefaultPoolConfig()
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = def.NumWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = def.PushTimeout
	}
	return &Pool{config: cfg, pusher: pusher}
}

// OnExpired sets the handler for expired subscriptions. It must be called
// before Start.
func (p *Pool) OnExpired(fn ExpiredFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = fn
}

// Start starts the workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pool is already running")
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, groupCtx := errgroup.WithContext(workerCtx)
	p.cancel = cancel
	p.group = group
	p.jobs = make(chan delivery, p.config.QueueSize)

	jobs := p.jobs
	for i := 0; i < p.config.NumWorkers; i++ {
		workerID := fmt.Sprintf("push-worker-%d", i+1)
		group.Go(func() error {
			p.work(groupCtx, workerID, jobs)
			return nil
		})
	}
	p.running = true

	log.Printf("[notify] Push pool started with %d workers", p.config.NumWorkers)
	return nil
}

// Enqueue queues a notification without blocking.
func (p *Pool) Enqueue(sub chat.PushSubscription, payload []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		p.dropped.Add(1)
		return ErrPoolStopped
	}

	select {
	case p.jobs <- delivery{sub: sub, payload: payload}:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Stop drains the queue. In-flight pushes are cancelled if ctx expires first.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.jobs)
	group, cancel := p.group, p.cancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		log.Println("[notify] All push workers stopped gracefully")
		return nil
	case <-ctx.Done():
		cancel()
		log.Println("[notify] Timeout waiting for push workers to stop")
		return ctx.Err()
	}
}

func (p *Pool) work(ctx context.Context, workerID string, jobs <-chan delivery) {
	for d := range jobs {
		if ctx.Err() != nil {
			p.failed.Add(1)
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, p.config.PushTimeout)
		err := p.pusher.Push(pushCtx, d.sub, d.payload)
		cancel()

		if errors.Is(err, ErrSubscriptionExpired) {
			p.failed.Add(1)
			if p.expired != nil {
				pruneCtx, cancel := context.WithTimeout(ctx, p.config.PushTimeout)
				p.expired(pruneCtx, d.sub)
				cancel()
				p.pruned.Add(1)
			}
			continue
		}
		if err != nil {
			p.failed.Add(1)
			log.Printf("[%s] Push to %s failed: %v", workerID, d.sub.UserID, err)
			continue
		}
		p.sent.Add(1)
	}
}

// PoolStats is a snapshot of the pool counters.
type PoolStats struct {
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
	Pruned  uint64 `json:"pruned"`
	Queued  int    `json:"queued"`
}

// Stats returns the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	queued := 0
	if p.running {
		queued = len(p.jobs)
	}
	p.mu.RUnlock()
	return PoolStats{
		Sent:    p.sent.Load(),
		Failed:  p.failed.Load(),
		Dropped: p.dropped.Load(),
		Pruned:  p.pruned.Load(),
		Queued:  queued,
	}
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}
