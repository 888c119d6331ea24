package relay

import (
	"context"

	"github.com/Nsabwe/Cchat/events"
)

// Sender delivers one frame to one live connection. Implementations must not
// block on a slow peer; the engine calls Send after releasing its lock.
type Sender interface {
	Send(connectionID string, frame any) error
}

// TipLedger accumulates tips per recipient. Credit must be atomic per recipient.
type TipLedger interface {
	Credit(ctx context.Context, recipientUserID string, amount float64) (float64, error)
	Total(ctx context.Context, recipientUserID string) (float64, error)
}

// EventPublisher forwards engine facts to secondary consumers.
type EventPublisher interface {
	MessagePosted(events.MessagePostedEvent)
	MessageDeleted(events.MessageDeletedEvent)
	PresenceChanged(events.PresenceChangedEvent)
	TipCredited(events.TipCreditedEvent)
}

type nopPublisher struct{}

func (nopPublisher) MessagePosted(events.MessagePostedEvent)     {}
func (nopPublisher) MessageDeleted(events.MessageDeletedEvent)   {}
func (nopPublisher) PresenceChanged(events.PresenceChangedEvent) {}
func (nopPublisher) TipCredited(events.TipCreditedEvent)         {}
