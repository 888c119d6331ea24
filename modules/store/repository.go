package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Nsabwe/Cchat/domain/chat"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Repository is the GORM backed Store.
type Repository struct {
	db   *gorm.DB
	path string
}

var _ backend = (*Repository)(nil)

// OpenSQLite opens (or creates) the SQLite database at path and migrates it.
func OpenSQLite(path string, debug bool) (*Repository, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := NewRepository(db)
	repo.path = path
	if err := repo.Migrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

// NewRepository wraps an open GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the schema.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&MessageRecord{}, &UserRecord{}, &PushSubscriptionRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CreateMessage saves a new message.
func (r *Repository) CreateMessage(ctx context.Context, msg *chat.Message) error {
	if err := r.db.WithContext(ctx).Create(toMessageRecord(msg)).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// FindMessage retrieves a message by its ID.
func (r *Repository) FindMessage(ctx context.Context, id string) (*chat.Message, error) {
	var rec MessageRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return rec.toDomain(), nil
}

// UpdateMessage writes the mutable fields of an existing message.
func (r *Repository) UpdateMessage(ctx context.Context, msg *chat.Message) error {
	rec := toMessageRecord(msg)
	result := r.db.WithContext(ctx).
		Model(&MessageRecord{}).
		Where("id = ?", msg.ID).
		Select("content", "media_ref", "status", "history", "deleted_for", "read_by").
		Updates(rec)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage removes a message by ID (soft delete).
func (r *Repository) DeleteMessage(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&MessageRecord{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMessages returns the latest limit messages of room, oldest first.
func (r *Repository) ListMessages(ctx context.Context, room chat.RoomKey, viewerID string, limit int) ([]*chat.Message, error) {
	q := r.db.WithContext(ctx).
		Where("room_key = ?", room.String()).
		Order("created_at DESC").
		Order("id DESC")
	if viewerID != "" {
		pattern, err := deletedForPattern(viewerID)
		if err != nil {
			return nil, err
		}
		q = q.Where("deleted_for IS NULL OR deleted_for NOT LIKE ? ESCAPE '\\'", pattern)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []*MessageRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs := make([]*chat.Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, rec.toDomain())
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// deletedForPattern builds a LIKE pattern matching viewerID inside the JSON
// encoded deleted_for column.
func deletedForPattern(viewerID string) (string, error) {
	quoted, err := json.Marshal(viewerID)
	if err != nil {
		return "", fmt.Errorf("failed to encode viewer id: %w", err)
	}
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + escaper.Replace(string(quoted)) + "%", nil
}

// SaveUser upserts a user session.
func (r *Repository) SaveUser(ctx context.Context, user *chat.UserSession) error {
	rec := toUserRecord(user)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "profile_ref", "connection_id", "online", "last_seen_at", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// FindUser retrieves a user session by user ID.
func (r *Repository) FindUser(ctx context.Context, id string) (*chat.UserSession, error) {
	var rec UserRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return rec.toDomain(), nil
}

// ListUsers retrieves every known user.
func (r *Repository) ListUsers(ctx context.Context) ([]*chat.UserSession, error) {
	var recs []*UserRecord
	if err := r.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]*chat.UserSession, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toDomain())
	}
	return users, nil
}

// SavePushSubscription upserts the push subscription of a user.
func (r *Repository) SavePushSubscription(ctx context.Context, sub chat.PushSubscription) error {
	rec := &PushSubscriptionRecord{
		UserID:   sub.UserID,
		Endpoint: sub.Endpoint,
		P256dh:   sub.P256dh,
		Auth:     sub.Auth,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"endpoint", "p256dh", "auth", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}

// FindPushSubscription retrieves the push subscription of a user.
func (r *Repository) FindPushSubscription(ctx context.Context, userID string) (*chat.PushSubscription, error) {
	var rec PushSubscriptionRecord
	if err := r.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find push subscription: %w", err)
	}
	return &chat.PushSubscription{
		UserID:   rec.UserID,
		Endpoint: rec.Endpoint,
		P256dh:   rec.P256dh,
		Auth:     rec.Auth,
	}, nil
}

// DeletePushSubscription removes the subscription of userID registered for endpoint.
func (r *Repository) DeletePushSubscription(ctx context.Context, userID, endpoint string) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&PushSubscriptionRecord{})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (r *Repository) Close(_ context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Driver returns the backend name.
func (r *Repository) Driver() string {
	return "sqlite"
}
