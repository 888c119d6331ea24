package store

import (
	"time"

	"github.com/Nsabwe/Cchat/domain/chat"
	"gorm.io/gorm"
)

// MessageRecord is the persisted form of a chat message.
type MessageRecord struct {
	ID                string              `gorm:"primarykey;size:36"`
	RoomKey           string              `gorm:"size:255;not null;index:idx_messages_room_created,priority:1"`
	SenderID          string              `gorm:"size:100;not null"`
	SenderDisplayName string              `gorm:"size:100"`
	SenderProfileRef  string              `gorm:"size:500"`
	Content           string              `gorm:"type:text"`
	MediaRef          string              `gorm:"size:500"`
	Status            string              `gorm:"size:16;not null;default:sent"`
	History           []chat.HistoryEntry `gorm:"serializer:json"`
	DeletedFor        []string            `gorm:"serializer:json"`
	ReadBy            []string            `gorm:"serializer:json"`
	CreatedAt         time.Time           `gorm:"index:idx_messages_room_created,priority:2"`
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for MessageRecord.
func (MessageRecord) TableName() string {
	return "messages"
}

// UserRecord is the persisted form of a user session.
type UserRecord struct {
	ID           string `gorm:"primarykey;size:100"`
	DisplayName  string `gorm:"size:100"`
	ProfileRef   string `gorm:"size:500"`
	ConnectionID string `gorm:"size:36"`
	Online       bool   `gorm:"not null;default:false"`
	LastSeenAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for UserRecord.
func (UserRecord) TableName() string {
	return "users"
}

// PushSubscriptionRecord is the persisted Web Push subscription of a user.
type PushSubscriptionRecord struct {
	UserID    string `gorm:"primarykey;size:100"`
	Endpoint  string `gorm:"type:text;not null"`
	P256dh    string `gorm:"size:255"`
	Auth      string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for PushSubscriptionRecord.
func (PushSubscriptionRecord) TableName() string {
	return "push_subscriptions"
}

func toMessageRecord(m *chat.Message) *MessageRecord {
	return &MessageRecord{
		ID:                m.ID,
		RoomKey:           m.RoomKey.String(),
		SenderID:          m.SenderID,
		SenderDisplayName: m.SenderDisplayName,
		SenderProfileRef:  m.SenderProfileRef,
		Content:           m.Content,
		MediaRef:          m.MediaRef,
		Status:            string(m.Status),
		History:           m.History,
		DeletedFor:        m.DeletedFor,
		ReadBy:            m.ReadBy,
		CreatedAt:         m.CreatedAt,
	}
}

func (r *MessageRecord) toDomain() *chat.Message {
	return &chat.Message{
		ID:                r.ID,
		RoomKey:           chat.RoomKey(r.RoomKey),
		SenderID:          r.SenderID,
		SenderDisplayName: r.SenderDisplayName,
		SenderProfileRef:  r.SenderProfileRef,
		Content:           r.Content,
		MediaRef:          r.MediaRef,
		Status:            chat.Status(r.Status),
		History:           r.History,
		DeletedFor:        r.DeletedFor,
		ReadBy:            r.ReadBy,
		CreatedAt:         r.CreatedAt,
	}
}

func toUserRecord(u *chat.UserSession) *UserRecord {
	return &UserRecord{
		ID:           u.UserID,
		DisplayName:  u.DisplayName,
		ProfileRef:   u.ProfileRef,
		ConnectionID: u.ConnectionID,
		Online:       u.Online,
		LastSeenAt:   u.LastSeenAt,
	}
}

func (r *UserRecord) toDomain() *chat.UserSession {
	return &chat.UserSession{
		UserID:       r.ID,
		DisplayName:  r.DisplayName,
		ProfileRef:   r.ProfileRef,
		ConnectionID: r.ConnectionID,
		Online:       r.Online,
		LastSeenAt:   r.LastSeenAt,
	}
}
