package relay

import (
	"context"
	"fmt"

	"github.com/Nsabwe/Cchat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module hosts the Engine inside the mono application. It publishes engine
// facts on the event bus and serves read and registration requests.
type Module struct {
	engine   *Engine
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventBusAwareModule = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the relay module and its engine.
func NewModule(cfg Config, deps Deps) (*Module, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("relay: logger is required")
	}
	m := &Module{logger: deps.Logger.WithModule("relay")}
	deps.Logger = m.logger
	deps.Events = &busPublisher{module: m}

	engine, err := NewEngine(cfg, deps)
	if err != nil {
		return nil, err
	}
	m.engine = engine
	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Engine returns the engine for the transport to drive.
func (m *Module) Engine() *Engine {
	return m.engine
}

// SetEventBus receives the event bus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessagePostedV1.ToBase(),
		events.MessageDeletedV1.ToBase(),
		events.PresenceChangedV1.ToBase(),
		events.TipCreditedV1.ToBase(),
	}
}

// Start restores known users from the store.
func (m *Module) Start(ctx context.Context) error {
	if m.eventBus == nil {
		m.logger.Warn("Event bus not set, events will not be published")
	}
	restored, err := m.engine.Restore(ctx)
	if err != nil {
		m.logger.Warn("Could not restore users", "error", err)
	}
	m.logger.Info("Relay module started", "restoredUsers", restored)
	return nil
}

// Stop cancels pending promotions. Connections are drained by the transport.
func (m *Module) Stop(_ context.Context) error {
	stats := m.engine.Stats()
	m.engine.Close()
	m.logger.Info("Relay module stopped", "connections", stats.Connections, "cancelledPromotions", stats.PendingPromotions)
	return nil
}

// Health reports engine counters.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	stats := m.engine.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections":        stats.Connections,
			"known_users":        stats.KnownUsers,
			"online_users":       stats.OnlineUsers,
			"rooms":              stats.Rooms,
			"pending_promotions": stats.PendingPromotions,
		},
	}
}

// busPublisher publishes engine facts on the mono event bus. Publishing is
// best-effort; failures are logged.
type busPublisher struct {
	module *Module
}

func (p *busPublisher) MessagePosted(evt events.MessagePostedEvent) {
	if bus := p.module.eventBus; bus != nil {
		if err := events.MessagePostedV1.Publish(bus, evt, nil); err != nil {
			p.module.logger.Warn("Failed to publish MessagePosted event", "messageID", evt.MessageID, "error", err)
		}
	}
}

func (p *busPublisher) MessageDeleted(evt events.MessageDeletedEvent) {
	if bus := p.module.eventBus; bus != nil {
		if err := events.MessageDeletedV1.Publish(bus, evt, nil); err != nil {
			p.module.logger.Warn("Failed to publish MessageDeleted event", "messageID", evt.MessageID, "error", err)
		}
	}
}

func (p *busPublisher) PresenceChanged(evt events.PresenceChangedEvent) {
	if bus := p.module.eventBus; bus != nil {
		if err := events.PresenceChangedV1.Publish(bus, evt, nil); err != nil {
			p.module.logger.Warn("Failed to publish PresenceChanged event", "userID", evt.UserID, "error", err)
		}
	}
}

func (p *busPublisher) TipCredited(evt events.TipCreditedEvent) {
	if bus := p.module.eventBus; bus != nil {
		if err := events.TipCreditedV1.Publish(bus, evt, nil); err != nil {
			p.module.logger.Warn("Failed to publish TipCredited event", "recipientUserID", evt.RecipientUserID, "error", err)
		}
	}
}
