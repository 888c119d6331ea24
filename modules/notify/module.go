package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"unicode/utf8"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/Nsabwe/Cchat/events"
	"github.com/Nsabwe/Cchat/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// maxBodyRunes bounds the message preview in a notification.
const maxBodyRunes = 120

// SubscriptionSource looks up push subscriptions and forgets expired ones.
type SubscriptionSource interface {
	FindPushSubscription(ctx context.Context, userID string) (*chat.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, userID, endpoint string) error
}

// Config holds the notify module configuration.
type Config struct {
	VAPID VAPIDConfig
	Pool  PoolConfig
	Icon  string
}

// Module pushes notifications to users who were offline for a message or tip.
type Module struct {
	cfg           Config
	subscriptions SubscriptionSource
	pool          *Pool
	enabled       bool
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a notify module that delivers through Web Push. Without
// VAPID keys the module consumes events but sends nothing.
func NewModule(cfg Config, subscriptions SubscriptionSource) *Module {
	return NewModuleWithPusher(cfg, subscriptions, NewWebPusher(cfg.VAPID), cfg.VAPID.Enabled())
}

// NewModuleWithPusher creates a notify module with a custom Pusher.
func NewModuleWithPusher(cfg Config, subscriptions SubscriptionSource, pusher Pusher, enabled bool) *Module {
	m := &Module{
		cfg:           cfg,
		subscriptions: subscriptions,
		pool:          NewPool(cfg.Pool, pusher),
		enabled:       enabled,
	}
	m.pool.OnExpired(m.forget)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "notify"
}

// Start starts the push pool.
func (m *Module) Start(ctx context.Context) error {
	if !m.enabled {
		log.Println("[notify] VAPID keys not set, push notifications disabled")
		return nil
	}
	if err := m.pool.Start(ctx); err != nil {
		return err
	}
	log.Println("[notify] Module started")
	return nil
}

// Stop drains the push pool.
func (m *Module) Stop(ctx context.Context) error {
	if err := m.pool.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop push pool: %w", err)
	}
	log.Println("[notify] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if !m.enabled {
		return mono.HealthStatus{Healthy: true, Message: "disabled"}
	}
	stats := m.pool.Stats()
	return mono.HealthStatus{
		Healthy: m.pool.IsRunning(),
		Message: "operational",
		Details: map[string]any{
			"sent":    stats.Sent,
			"failed":  stats.Failed,
			"dropped": stats.Dropped,
			"pruned":  stats.Pruned,
			"queued":  stats.Queued,
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessagePostedV1, m.handleMessagePosted, m,
	); err != nil {
		return fmt.Errorf("failed to register MessagePosted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.TipCreditedV1, m.handleTipCredited, m,
	); err != nil {
		return fmt.Errorf("failed to register TipCredited consumer: %w", err)
	}

	log.Println("[notify] Registered event consumers: MessagePosted, TipCredited")
	return nil
}

func (m *Module) handleMessagePosted(ctx context.Context, event events.MessagePostedEvent, _ *mono.Msg) error {
	if !m.enabled || len(event.OfflineRecipients) == 0 {
		return nil
	}

	body := preview(event.Content)
	if body == "" && event.MediaRef != "" {
		body = "Sent an attachment"
	}
	n := Notification{
		Title:    "New message from " + event.SenderDisplayName,
		Body:     body,
		Icon:     m.cfg.Icon,
		Tag:      "chat-" + event.RoomKey,
		Renotify: true,
	}
	for _, userID := range event.OfflineRecipients {
		m.notify(ctx, userID, n)
	}
	return nil
}

func (m *Module) handleTipCredited(ctx context.Context, event events.TipCreditedEvent, _ *mono.Msg) error {
	if !m.enabled || event.RecipientOnline {
		return nil
	}

	from := event.SenderID
	if from == "" {
		from = "Someone"
	}
	m.notify(ctx, event.RecipientUserID, Notification{
		Title: "You received a tip",
		Body: fmt.Sprintf("%s tipped you %s. Your total is %s.",
			from, formatAmount(event.Amount), formatAmount(event.NewTotal)),
		Icon: m.cfg.Icon,
		Tag:  "tip",
	})
	return nil
}

// notify looks up the user's subscription and queues the push. Users without
// a subscription are skipped.
func (m *Module) notify(ctx context.Context, userID string, n Notification) {
	sub, err := m.subscriptions.FindPushSubscription(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("[notify] Warning: failed to load push subscription for %s: %v", userID, err)
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("[notify] Warning: failed to encode notification: %v", err)
		return
	}
	if err := m.pool.Enqueue(*sub, payload); err != nil {
		log.Printf("[notify] Warning: push to %s dropped: %v", userID, err)
	}
}

// forget removes a subscription the push service no longer accepts. A user
// who subscribed again in the meantime keeps the new subscription.
func (m *Module) forget(ctx context.Context, sub chat.PushSubscription) {
	err := m.subscriptions.DeletePushSubscription(ctx, sub.UserID, sub.Endpoint)
	switch {
	case err == nil:
		log.Printf("[notify] Removed expired push subscription of %s", sub.UserID)
	case errors.Is(err, store.ErrNotFound):
	default:
		log.Printf("[notify] Warning: failed to remove expired subscription of %s: %v", sub.UserID, err)
	}
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= maxBodyRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxBodyRunes-1]) + "…"
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
