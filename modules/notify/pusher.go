// Package notify sends Web Push notifications to users who were offline when
// something happened to them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Nsabwe/Cchat/domain/chat"
	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrSubscriptionExpired is returned when the push service no longer knows
// the subscription.
var ErrSubscriptionExpired = errors.New("push subscription expired")

// Notification is the payload the browser service worker renders.
type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Icon     string `json:"icon,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Renotify bool   `json:"renotify,omitempty"`
}

// Pusher delivers one encoded notification to one subscription.
type Pusher interface {
	Push(ctx context.Context, sub chat.PushSubscription, payload []byte) error
}

// VAPIDConfig holds the application server keys.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	TTL        int
}

// Enabled reports whether both keys are set.
func (c VAPIDConfig) Enabled() bool {
	return c.PublicKey != "" && c.PrivateKey != ""
}

// WebPusher sends notifications through the subscription's push service.
type WebPusher struct {
	cfg    VAPIDConfig
	client *http.Client
}

// NewWebPusher creates a WebPusher.
func NewWebPusher(cfg VAPIDConfig) *WebPusher {
	if cfg.TTL <= 0 {
		cfg.TTL = 60
	}
	return &WebPusher{cfg: cfg, client: &http.Client{}}
}

// Push sends payload to sub.
func (p *WebPusher) Push(ctx context.Context, sub chat.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      p.client,
		Subscriber:      p.cfg.Subscriber,
		VAPIDPublicKey:  p.cfg.PublicKey,
		VAPIDPrivateKey: p.cfg.PrivateKey,
		TTL:             p.cfg.TTL,
	})
	if err != nil {
		return fmt.Errorf("push to %s failed: %w", sub.UserID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrSubscriptionExpired, sub.UserID)
	case resp.StatusCode >= 400:
		return fmt.Errorf("push to %s rejected with status %d", sub.UserID, resp.StatusCode)
	}
	return nil
}
