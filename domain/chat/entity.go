package chat

import (
	"slices"
	"time"
)

// Status is the delivery state of a message.
type Status string

const (
	StatusSent Status = "sent"
	// StatusDelivered is reserved until clients acknowledge receipt.
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Profile carries the client-supplied identity fields of a join.
type Profile struct {
	DisplayName string `json:"displayName"`
	ProfileRef  string `json:"profileRef,omitempty"`
}

// UserSession is the durable identity of a user plus its live connection binding.
type UserSession struct {
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	ProfileRef   string    `json:"profileRef,omitempty"`
	ConnectionID string    `json:"connectionId,omitempty"`
	Online       bool      `json:"online"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

// Clone returns a copy safe to hand out of a lock.
func (u *UserSession) Clone() *UserSession {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// HistoryEntry is one superseded version of a message's content.
type HistoryEntry struct {
	Content  string    `json:"content"`
	EditedAt time.Time `json:"editedAt"`
}

// Message is a chat message in a room.
type Message struct {
	ID                string         `json:"id"`
	RoomKey           RoomKey        `json:"roomKey"`
	SenderID          string         `json:"senderId"`
	SenderDisplayName string         `json:"senderDisplayName"`
	SenderProfileRef  string         `json:"senderProfileRef,omitempty"`
	Content           string         `json:"content"`
	MediaRef          string         `json:"mediaRef,omitempty"`
	Status            Status         `json:"status"`
	CreatedAt         time.Time      `json:"createdAt"`
	History           []HistoryEntry `json:"history,omitempty"`
	DeletedFor        []string       `json:"deletedFor,omitempty"`
	ReadBy            []string       `json:"readBy,omitempty"`
}

// Edit replaces the content, keeping the previous version in History.
func (m *Message) Edit(content string, at time.Time) {
	m.History = append(m.History, HistoryEntry{Content: m.Content, EditedAt: at})
	m.Content = content
}

// MarkReadBy records a read receipt and promotes the status to read.
// It reports whether the reader was newly added.
func (m *Message) MarkReadBy(readerID string) bool {
	m.Status = StatusRead
	if readerID == "" || slices.Contains(m.ReadBy, readerID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, readerID)
	return true
}

// HideFor soft-deletes the message for one viewer.
func (m *Message) HideFor(userID string) bool {
	if slices.Contains(m.DeletedFor, userID) {
		return false
	}
	m.DeletedFor = append(m.DeletedFor, userID)
	return true
}

// VisibleTo reports whether the viewer has not hidden the message.
func (m *Message) VisibleTo(userID string) bool {
	return userID == "" || !slices.Contains(m.DeletedFor, userID)
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.History = slices.Clone(m.History)
	c.DeletedFor = slices.Clone(m.DeletedFor)
	c.ReadBy = slices.Clone(m.ReadBy)
	return &c
}

// PushSubscription is a browser Web Push subscription registered for a user.
type PushSubscription struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}
