package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessagePostedEvent is emitted after a message has been fanned out to its room.
type MessagePostedEvent struct {
	MessageID         string    `json:"message_id"`
	RoomKey           string    `json:"room_key"`
	SenderID          string    `json:"sender_id"`
	SenderDisplayName string    `json:"sender_display_name"`
	Content           string    `json:"content"`
	MediaRef          string    `json:"media_ref,omitempty"`
	Persisted         bool      `json:"persisted"`
	// OfflineRecipients are the users of the room that had no live connection at post time.
	OfflineRecipients []string  `json:"offline_recipients,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// MessagePostedV1 is the typed event definition for posted messages.
// Subject: events.relay.v1.message-posted
var MessagePostedV1 = helper.EventDefinition[MessagePostedEvent](
	"relay", "MessagePosted", "v1",
)

// MessageDeletedEvent is emitted when a message is removed for everyone.
type MessageDeletedEvent struct {
	MessageID   string    `json:"message_id"`
	RoomKey     string    `json:"room_key"`
	RequesterID string    `json:"requester_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// MessageDeletedV1 is the typed event definition for deleted messages.
// Subject: events.relay.v1.message-deleted
var MessageDeletedV1 = helper.EventDefinition[MessageDeletedEvent](
	"relay", "MessageDeleted", "v1",
)

// PresenceChangedEvent is emitted when a user goes online or offline.
type PresenceChangedEvent struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Online      bool      `json:"online"`
	OnlineCount int       `json:"online_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// PresenceChangedV1 is the typed event definition for presence changes.
// Subject: events.relay.v1.presence-changed
var PresenceChangedV1 = helper.EventDefinition[PresenceChangedEvent](
	"relay", "PresenceChanged", "v1",
)

// TipCreditedEvent is emitted when a tip is credited to a recipient.
type TipCreditedEvent struct {
	RecipientUserID string    `json:"recipient_user_id"`
	SenderID        string    `json:"sender_id,omitempty"`
	Amount          float64   `json:"amount"`
	NewTotal        float64   `json:"new_total"`
	RecipientOnline bool      `json:"recipient_online"`
	Timestamp       time.Time `json:"timestamp"`
}

// TipCreditedV1 is the typed event definition for tip credits.
// Subject: events.relay.v1.tip-credited
var TipCreditedV1 = helper.EventDefinition[TipCreditedEvent](
	"relay", "TipCredited", "v1",
)
