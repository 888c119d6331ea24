// Package store persists users, messages and push subscriptions.
package store

import (
	"context"
	"errors"

	"github.com/Nsabwe/Cchat/domain/chat"
)

// Errors returned by every backend.
var (
	ErrNotFound    = errors.New("record not found")
	ErrUnavailable = errors.New("store not available")
)

// Store is the persistence collaborator of the relay.
type Store interface {
	CreateMessage(ctx context.Context, msg *chat.Message) error
	FindMessage(ctx context.Context, id string) (*chat.Message, error)
	UpdateMessage(ctx context.Context, msg *chat.Message) error
	DeleteMessage(ctx context.Context, id string) error
	// ListMessages returns the latest limit messages of room, oldest first,
	// skipping messages hidden for viewerID.
	ListMessages(ctx context.Context, room chat.RoomKey, viewerID string, limit int) ([]*chat.Message, error)

	SaveUser(ctx context.Context, user *chat.UserSession) error
	FindUser(ctx context.Context, id string) (*chat.UserSession, error)
	ListUsers(ctx context.Context) ([]*chat.UserSession, error)

	SavePushSubscription(ctx context.Context, sub chat.PushSubscription) error
	FindPushSubscription(ctx context.Context, userID string) (*chat.PushSubscription, error)
	// DeletePushSubscription removes the subscription of userID only while it
	// still points at endpoint, so a newer subscription survives.
	DeletePushSubscription(ctx context.Context, userID, endpoint string) error
}

// backend is a Store that owns a connection.
type backend interface {
	Store
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	Driver() string
}
