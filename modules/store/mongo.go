package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Nsabwe/Cchat/domain/chat"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	messagesCollection      = "messages"
	usersCollection         = "users"
	subscriptionsCollection = "push_subscriptions"
)

type messageDoc struct {
	ID                string              `bson:"_id"`
	RoomKey           string              `bson:"roomKey"`
	SenderID          string              `bson:"senderId"`
	SenderDisplayName string              `bson:"senderName"`
	SenderProfileRef  string              `bson:"senderProfile,omitempty"`
	Content           string              `bson:"content"`
	MediaRef          string              `bson:"mediaRef,omitempty"`
	Status            string              `bson:"status"`
	History           []chat.HistoryEntry `bson:"history,omitempty"`
	DeletedFor        []string            `bson:"deletedFor,omitempty"`
	ReadBy            []string            `bson:"readBy,omitempty"`
	CreatedAt         time.Time           `bson:"createdAt"`
}

type userDoc struct {
	ID           string    `bson:"_id"`
	DisplayName  string    `bson:"name"`
	ProfileRef   string    `bson:"profile,omitempty"`
	ConnectionID string    `bson:"socketId,omitempty"`
	Online       bool      `bson:"online"`
	LastSeenAt   time.Time `bson:"lastSeenAt"`
}

type subscriptionDoc struct {
	UserID   string `bson:"_id"`
	Endpoint string `bson:"endpoint"`
	P256dh   string `bson:"p256dh"`
	Auth     string `bson:"auth"`
}

// MongoStore is the MongoDB backed Store.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ backend = (*MongoStore)(nil)

// OpenMongo connects to uri, selects database and ensures indexes.
func OpenMongo(ctx context.Context, uri, database string, timeout time.Duration) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName("cchat").
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	_, err = s.db.Collection(messagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "roomKey", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create message index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) messages() *mongo.Collection { return s.db.Collection(messagesCollection) }
func (s *MongoStore) users() *mongo.Collection    { return s.db.Collection(usersCollection) }
func (s *MongoStore) subs() *mongo.Collection     { return s.db.Collection(subscriptionsCollection) }

// CreateMessage saves a new message.
func (s *MongoStore) CreateMessage(ctx context.Context, msg *chat.Message) error {
	if _, err := s.messages().InsertOne(ctx, toMessageDoc(msg)); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// FindMessage retrieves a message by its ID.
func (s *MongoStore) FindMessage(ctx context.Context, id string) (*chat.Message, error) {
	var doc messageDoc
	if err := s.messages().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return doc.toDomain(), nil
}

// UpdateMessage replaces an existing message.
func (s *MongoStore) UpdateMessage(ctx context.Context, msg *chat.Message) error {
	result, err := s.messages().ReplaceOne(ctx, bson.M{"_id": msg.ID}, toMessageDoc(msg))
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage removes a message by ID.
func (s *MongoStore) DeleteMessage(ctx context.Context, id string) error {
	result, err := s.messages().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMessages returns the latest limit messages of room, oldest first.
func (s *MongoStore) ListMessages(ctx context.Context, room chat.RoomKey, viewerID string, limit int) ([]*chat.Message, error) {
	filter := bson.M{"roomKey": room.String()}
	if viewerID != "" {
		filter["deletedFor"] = bson.M{"$ne": viewerID}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.messages().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	msgs := make([]*chat.Message, 0, len(docs))
	for i := range docs {
		msgs = append(msgs, docs[i].toDomain())
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// SaveUser upserts a user session.
func (s *MongoStore) SaveUser(ctx context.Context, user *chat.UserSession) error {
	doc := userDoc{
		ID:           user.UserID,
		DisplayName:  user.DisplayName,
		ProfileRef:   user.ProfileRef,
		ConnectionID: user.ConnectionID,
		Online:       user.Online,
		LastSeenAt:   user.LastSeenAt,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.users().ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// FindUser retrieves a user session by user ID.
func (s *MongoStore) FindUser(ctx context.Context, id string) (*chat.UserSession, error) {
	var doc userDoc
	if err := s.users().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return doc.toDomain(), nil
}

// ListUsers retrieves every known user.
func (s *MongoStore) ListUsers(ctx context.Context) ([]*chat.UserSession, error) {
	cur, err := s.users().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	users := make([]*chat.UserSession, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toDomain())
	}
	return users, nil
}

// SavePushSubscription upserts the push subscription of a user.
func (s *MongoStore) SavePushSubscription(ctx context.Context, sub chat.PushSubscription) error {
	doc := subscriptionDoc{UserID: sub.UserID, Endpoint: sub.Endpoint, P256dh: sub.P256dh, Auth: sub.Auth}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.subs().ReplaceOne(ctx, bson.M{"_id": doc.UserID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}

// FindPushSubscription retrieves the push subscription of a user.
func (s *MongoStore) FindPushSubscription(ctx context.Context, userID string) (*chat.PushSubscription, error) {
	var doc subscriptionDoc
	if err := s.subs().FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find push subscription: %w", err)
	}
	return &chat.PushSubscription{UserID: doc.UserID, Endpoint: doc.Endpoint, P256dh: doc.P256dh, Auth: doc.Auth}, nil
}

// DeletePushSubscription removes the subscription of userID registered for endpoint.
func (s *MongoStore) DeletePushSubscription(ctx context.Context, userID, endpoint string) error {
	result, err := s.subs().DeleteOne(ctx, bson.M{"_id": userID, "endpoint": endpoint})
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the server connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Driver returns the backend name.
func (s *MongoStore) Driver() string {
	return "mongo"
}

func toMessageDoc(m *chat.Message) messageDoc {
	return messageDoc{
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

func (d *messageDoc) toDomain() *chat.Message {
	return &chat.Message{
		ID:                d.ID,
		RoomKey:           chat.RoomKey(d.RoomKey),
		SenderID:          d.SenderID,
		SenderDisplayName: d.SenderDisplayName,
		SenderProfileRef:  d.SenderProfileRef,
		Content:           d.Content,
		MediaRef:          d.MediaRef,
		Status:            chat.Status(d.Status),
		History:           d.History,
		DeletedFor:        d.DeletedFor,
		ReadBy:            d.ReadBy,
		CreatedAt:         d.CreatedAt,
	}
}

func (d *userDoc) toDomain() *chat.UserSession {
	return &chat.UserSession{
		UserID:       d.ID,
		DisplayName:  d.DisplayName,
		ProfileRef:   d.ProfileRef,
		ConnectionID: d.ConnectionID,
		Online:       d.Online,
		LastSeenAt:   d.LastSeenAt,
	}
}
