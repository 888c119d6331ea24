// Package relay is the connection and session coordination engine of the chat
// relay. It binds connections to users, tracks room membership and typing
// state, and turns client frames into state transitions and fan-out.
//
// Lock discipline: Engine.mu guards the Directory, the Registry, the
// TypingTracker, the connection table and the messages held in the in-flight
// index. No store, ledger or transport call is made while it is held. Fan-out
// targets are snapshotted under the lock and written after it is released.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/Nsabwe/Cchat/modules/store"
	"github.com/go-monolith/mono/pkg/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// maxPromotionDelay bounds the auto-read timer.
const maxPromotionDelay = 5 * time.Minute

// Config holds engine tunables.
type Config struct {
	// PromotionDelay is how long a message stays sent before it is promoted
	// to read. It stands in for per-recipient acknowledgments.
	PromotionDelay    time.Duration
	PersistRetries    int
	PersistRetryDelay time.Duration
	StoreTimeout      time.Duration
	HistoryLimit      int
	MessageIndexSize  int
	MaxMessageLength  int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		PromotionDelay:    2 * time.Second,
		PersistRetries:    2,
		PersistRetryDelay: 100 * time.Millisecond,
		StoreTimeout:      5 * time.Second,
		HistoryLimit:      50,
		MessageIndexSize:  10000,
		MaxMessageLength:  5000,
	}
}

// ConnState is the lifecycle state of a connection.
type ConnState string

const (
	StateAnonymous      ConnState = "anonymous"
	StateJoinedGlobal   ConnState = "joined_global"
	StateJoinedPairwise ConnState = "joined_pairwise"
	StateDisconnected   ConnState = "disconnected"
)

type connection struct {
	id     string
	state  ConnState
	selfID string
}

// Deps are the collaborators of the engine.
type Deps struct {
	Sender Sender
	Store  store.Store
	Ledger TipLedger
	Events EventPublisher
	Logger types.Logger
}

// Engine is the process-wide relay state. Create it with NewEngine and tear it
// down with Close after the transport has drained its connections.
type Engine struct {
	mu        sync.Mutex
	conns     map[string]*connection
	directory *Directory
	rooms     *Registry
	typing    *TypingTracker
	closed    bool

	messages   *lru.Cache[string, *chat.Message]
	promotions *promotionScheduler
	history    singleflight.Group

	sender Sender
	store  store.Store
	ledger TipLedger
	events EventPublisher
	logger types.Logger
	cfg    Config
	now    func() time.Time
}

// NewEngine creates an Engine. Sender, Store and Logger are required.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Sender == nil {
		return nil, fmt.Errorf("relay: sender is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("relay: store is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("relay: logger is required")
	}
	if deps.Ledger == nil {
		deps.Ledger = NewMemoryTipLedger()
	}
	if deps.Events == nil {
		deps.Events = nopPublisher{}
	}

	def := DefaultConfig()
	if cfg.PromotionDelay <= 0 {
		cfg.PromotionDelay = def.PromotionDelay
	}
	if cfg.PromotionDelay > maxPromotionDelay {
		cfg.PromotionDelay = maxPromotionDelay
	}
	if cfg.PersistRetries < 0 {
		cfg.PersistRetries = 0
	}
	if cfg.PersistRetryDelay <= 0 {
		cfg.PersistRetryDelay = def.PersistRetryDelay
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.MessageIndexSize <= 0 {
		cfg.MessageIndexSize = def.MessageIndexSize
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = def.MaxMessageLength
	}

	messages, err := lru.New[string, *chat.Message](cfg.MessageIndexSize)
	if err != nil {
		return nil, fmt.Errorf("relay: failed to create message index: %w", err)
	}

	return &Engine{
		conns:      make(map[string]*connection),
		directory:  NewDirectory(),
		rooms:      NewRegistry(),
		typing:     NewTypingTracker(),
		messages:   messages,
		promotions: newPromotionScheduler(),
		sender:     deps.Sender,
		store:      deps.Store,
		ledger:     deps.Ledger,
		events:     deps.Events,
		logger:     deps.Logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Restore loads known users from the store as offline sessions so that they
// are recognized as senders before they reconnect.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	users, err := e.store.ListUsers(callCtx)
	if err != nil {
		return 0, fmt.Errorf("%w: list users: %w", ErrPersistenceUnavailable, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	restored := 0
	for _, u := range users {
		if e.directory.Register(u) {
			restored++
		}
	}
	return restored, nil
}

// Close cancels pending promotions and rejects further operations.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.promotions.stop()
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Connections       int `json:"connections"`
	KnownUsers        int `json:"known_users"`
	OnlineUsers       int `json:"online_users"`
	Rooms             int `json:"rooms"`
	PendingPromotions int `json:"pending_promotions"`
	IndexedMessages   int `json:"indexed_messages"`
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := Stats{
		Connections: len(e.conns),
		KnownUsers:  e.directory.Len(),
		OnlineUsers: len(e.directory.ListOnline()),
		Rooms:       e.rooms.RoomCount(),
	}
	e.mu.Unlock()
	s.PendingPromotions = e.promotions.pending()
	s.IndexedMessages = e.messages.Len()
	return s
}

// ListOnline returns the online sessions.
func (e *Engine) ListOnline() []*chat.UserSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.directory.ListOnline()
}

// State returns the lifecycle state of a connection.
func (e *Engine) State(connectionID string) ConnState {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.conns[connectionID]
	if !ok {
		return StateDisconnected
	}
	return c.state
}

// fanout writes frame to every target. A failed write is logged and skipped.
func (e *Engine) fanout(targets []string, frame Frame) int {
	delivered := 0
	for _, id := range targets {
		if err := e.sender.Send(id, frame); err != nil {
			e.logger.Warn("Dropped frame",
				"connectionID", id,
				"type", frame.Type,
				"error", fmt.Errorf("%w: %w", ErrDeliveryFailure, err))
			continue
		}
		delivered++
	}
	return delivered
}

// sendTo writes frame to a single connection.
func (e *Engine) sendTo(connectionID string, frame Frame) {
	e.fanout([]string{connectionID}, frame)
}

// SendError reports a connection-local failure to that connection.
func (e *Engine) SendError(connectionID string, err error) {
	e.sendTo(connectionID, Frame{
		Type:    TypeError,
		Payload: ErrorPayload{Code: errorCode(err), Message: err.Error()},
	})
}

// persist runs op against the store with a per-attempt timeout and bounded
// exponential backoff between attempts. ErrNotFound is not retried.
func (e *Engine) persist(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= e.cfg.PersistRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(e.retryDelay(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("%w: %s: %w", ErrPersistenceUnavailable, op, ctx.Err())
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if isNotFound(err) {
			return err
		}
	}

	e.logger.Error("Persistence unavailable",
		"op", op,
		"attempts", e.cfg.PersistRetries+1,
		"error", err)
	return fmt.Errorf("%w: %s: %w", ErrPersistenceUnavailable, op, err)
}

// retryDelay is PersistRetryDelay * 2^(attempt-1), capped at one second.
func (e *Engine) retryDelay(attempt int) time.Duration {
	delay := float64(e.cfg.PersistRetryDelay) * math.Pow(2, float64(attempt-1))
	if time.Duration(delay) > time.Second {
		return time.Second
	}
	return time.Duration(delay)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// background returns a context detached from the caller's cancellation, used
// for durable side effects that should finish after the triggering frame.
func background(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
