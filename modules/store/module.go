package store

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/go-monolith/mono"
)

// Config selects and configures the backend.
type Config struct {
	Driver        string
	DBPath        string
	DBDebug       bool
	MongoURI      string
	MongoDatabase string
	Timeout       time.Duration
}

// StoreModule owns the persistence backend and exposes it as a Store.
// Calls made before Start or after Stop fail with ErrUnavailable.
type StoreModule struct {
	cfg     Config
	mu      sync.RWMutex
	backend backend
}

// Compile-time interface checks.
var _ mono.Module = (*StoreModule)(nil)
var _ mono.HealthCheckableModule = (*StoreModule)(nil)
var _ Store = (*StoreModule)(nil)

// NewModule creates a new StoreModule.
func NewModule(cfg Config) *StoreModule {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &StoreModule{cfg: cfg}
}

// Name returns the module name.
func (m *StoreModule) Name() string {
	return "store"
}

// Start opens the configured backend.
func (m *StoreModule) Start(ctx context.Context) error {
	var (
		b   backend
		err error
	)
	switch m.cfg.Driver {
	case "memory":
		b = NewMemoryStore()
	case "mongo":
		log.Printf("[store] Connecting to MongoDB: %s/%s", m.cfg.MongoURI, m.cfg.MongoDatabase)
		connectCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
		b, err = OpenMongo(connectCtx, m.cfg.MongoURI, m.cfg.MongoDatabase, m.cfg.Timeout)
	case "sqlite", "":
		log.Printf("[store] Connecting to SQLite database: %s", m.cfg.DBPath)
		b, err = OpenSQLite(m.cfg.DBPath, m.cfg.DBDebug)
	default:
		return fmt.Errorf("unknown store driver %q", m.cfg.Driver)
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.backend = b
	m.mu.Unlock()

	log.Printf("[store] Module started (driver=%s)", b.Driver())
	return nil
}

// Stop closes the backend.
func (m *StoreModule) Stop(ctx context.Context) error {
	m.mu.Lock()
	b := m.backend
	m.backend = nil
	m.mu.Unlock()

	if b == nil {
		return nil
	}
	log.Println("[store] Closing database connection...")
	if err := b.Close(ctx); err != nil {
		return fmt.Errorf("failed to close %s store: %w", b.Driver(), err)
	}
	log.Println("[store] Database connection closed")
	return nil
}

// Health pings the backend.
func (m *StoreModule) Health(ctx context.Context) mono.HealthStatus {
	b, err := m.current()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: "store not initialized"}
	}
	if err := b.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("%s ping failed: %v", b.Driver(), err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"driver": b.Driver()},
	}
}

func (m *StoreModule) current() (backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.backend == nil {
		return nil, ErrUnavailable
	}
	return m.backend, nil
}

func (m *StoreModule) CreateMessage(ctx context.Context, msg *chat.Message) error {
	b, err := m.current()
	if err != nil {
		return err
	}
	return b.CreateMessage(ctx, msg)
}

func (m *StoreModule) FindMessage(ctx context.Context, id string) (*chat.Message, error) {
	b, err := m.current()
	if err != nil {
		return nil, err
	}
	return b.FindMessage(ctx, id)
}

func (m *StoreModule) UpdateMessage(ctx context.Context, msg *chat.Message) error {
	b, err := m.current()
	if err != nil {
		return err
	}
	return b.UpdateMessage(ctx, msg)
}

func (m *StoreModule) DeleteMessage(ctx context.Context, id string) error {
	b, err := m.current()
	if err != nil {
		return err
	}
	return b.DeleteMessage(ctx, id)
}

func (m *StoreModule) ListMessages(ctx context.Context, room chat.RoomKey, viewerID string, limit int) ([]*chat.Message, error) {
	b, err := m.current()
	if err != nil {
		return nil, err
	}
	return b.ListMessages(ctx, room, viewerID, limit)
}

func (m *StoreModule) SaveUser(ctx context.Context, user *chat.UserSession) error {
	b, err := m.current()
	if err != nil {
		return err
	}
	return b.SaveUser(ctx, user)
}

func (m *StoreModule) FindUser(ctx context.Context, id string) (*chat.UserSession, error) {
	b, err := m.current()
	if err != nil {
		return nil, err
	}
	return b.FindUser(ctx, id)
}

func (m *StoreModule) ListUsers(ctx context.Context) ([]*chat.UserSession, error) {
	b, err := m.current()
	if err != nil {
		return nil, err
	}
	return b.ListUsers(ctx)
}

func (m *StoreModule) SavePushSubscription(ctx context.Context, sub chat.PushSubscription) error {
	b, err := m.current()
	if err != nil {
		return err
	}
	return b.SavePushSubscription(ctx, sub)
}

func (m *StoreModule) FindPushSubscription(ctx context.Context, userID string) (*chat.PushSubscription, error) {
	b, err := m.current()
	if err != nil {
		return nil, err
	}
	return b.FindPushSubscription(ctx, userID)
}

func (m *StoreModule) DeletePushSubscription(ctx context.Context, userID, endpoint string) error {
	b, err := m.current()
	if err != nil {
		return err
	}
	return b.DeletePushSubscription(ctx, userID, endpoint)
}
