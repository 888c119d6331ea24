package relay

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/Nsabwe/Cchat/events"
	"github.com/google/uuid"
)

// PostMessage records a message from senderID, persists it, fans it out to
// the room and schedules its promotion to read. A persistence failure is
// returned wrapped in ErrPersistenceUnavailable together with the message,
// which has still been broadcast.
func (e *Engine) PostMessage(ctx context.Context, room chat.RoomKey, senderID, content, mediaRef string) (*chat.Message, error) {
	if err := e.validateContent(content, mediaRef); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	sender, ok := e.directory.Lookup(senderID)
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownSender, senderID)
	}
	msg := &chat.Message{
		ID:                uuid.NewString(),
		RoomKey:           room,
		SenderID:          sender.UserID,
		SenderDisplayName: sender.DisplayName,
		SenderProfileRef:  sender.ProfileRef,
		Content:           content,
		MediaRef:          mediaRef,
		Status:            chat.StatusSent,
		CreatedAt:         e.now(),
	}
	e.messages.Add(msg.ID, msg)
	snapshot := msg.Clone()
	e.mu.Unlock()

	persistErr := e.persist(background(ctx), "create message", func(ctx context.Context) error {
		return e.store.CreateMessage(ctx, snapshot)
	})

	e.mu.Lock()
	_, live := e.messages.Peek(snapshot.ID)
	targets := e.rooms.MembersOf(room)
	offline := e.offlineRecipientsLocked(room, sender.UserID)
	e.mu.Unlock()

	if !live {
		return snapshot, persistErr
	}

	e.fanout(targets, Frame{Type: TypeNewMessage, Payload: snapshot})
	e.promotions.schedule(snapshot.ID, e.cfg.PromotionDelay, func() {
		e.promote(snapshot.ID)
	})

	e.events.MessagePosted(events.MessagePostedEvent{
		MessageID:         snapshot.ID,
		RoomKey:           room.String(),
		SenderID:          snapshot.SenderID,
		SenderDisplayName: snapshot.SenderDisplayName,
		Content:           snapshot.Content,
		MediaRef:          snapshot.MediaRef,
		Persisted:         persistErr == nil,
		OfflineRecipients: offline,
		Timestamp:         snapshot.CreatedAt,
	})
	return snapshot, persistErr
}

// promote is the delayed sent to read transition. It is a no-op once the
// message has been deleted or has left the in-flight index.
func (e *Engine) promote(messageID string) {
	e.mu.Lock()
	msg, ok := e.messages.Peek(messageID)
	if !ok || e.closed || msg.Status == chat.StatusRead {
		e.mu.Unlock()
		return
	}
	msg.Status = chat.StatusRead
	snapshot := msg.Clone()
	e.mu.Unlock()

	err := e.persist(context.Background(), "promote message", func(ctx context.Context) error {
		return e.store.UpdateMessage(ctx, snapshot)
	})
	if err != nil && !isNotFound(err) {
		e.logger.Warn("Status promotion not persisted", "messageID", messageID, "error", err)
	}

	e.mu.Lock()
	_, live := e.messages.Peek(messageID)
	targets := e.rooms.MembersOf(snapshot.RoomKey)
	e.mu.Unlock()
	if !live {
		return
	}

	e.fanout(targets, Frame{Type: TypeStatusUpdated, Payload: StatusPayload{
		MessageID: snapshot.ID,
		Status:    snapshot.Status,
		ReadBy:    snapshot.ReadBy,
	}})
}

// DeleteMessage removes a message for everyone and notifies its room.
func (e *Engine) DeleteMessage(ctx context.Context, messageID, requesterID string) error {
	msg, err := e.resolveMessage(ctx, messageID)
	if err != nil {
		return err
	}
	e.promotions.cancel(messageID)

	e.mu.Lock()
	e.messages.Remove(messageID)
	e.mu.Unlock()

	persistErr := e.persist(background(ctx), "delete message", func(ctx context.Context) error {
		return e.store.DeleteMessage(ctx, messageID)
	})
	if isNotFound(persistErr) {
		persistErr = nil
	}

	e.mu.Lock()
	targets := e.rooms.MembersOf(msg.RoomKey)
	e.mu.Unlock()

	e.fanout(targets, Frame{Type: TypeMessageDeleted, Payload: MessageIDPayload{MessageID: messageID}})
	e.events.MessageDeleted(events.MessageDeletedEvent{
		MessageID:   messageID,
		RoomKey:     msg.RoomKey.String(),
		RequesterID: requesterID,
		Timestamp:   e.now(),
	})
	e.logger.Info("Message deleted", "messageID", messageID, "room", msg.RoomKey, "requesterID", requesterID)
	return persistErr
}

// HideMessage soft-deletes a message for one viewer and notifies only that
// viewer's connection.
func (e *Engine) HideMessage(ctx context.Context, messageID, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidIdentity
	}
	if _, err := e.resolveMessage(ctx, messageID); err != nil {
		return err
	}

	e.mu.Lock()
	msg, ok := e.messages.Peek(messageID)
	if !ok {
		e.mu.Unlock()
		return ErrMessageNotFound
	}
	msg.HideFor(userID)
	snapshot := msg.Clone()
	var target string
	if s, ok := e.directory.Lookup(userID); ok {
		target = s.ConnectionID
	}
	e.mu.Unlock()

	persistErr := e.persist(background(ctx), "hide message", func(ctx context.Context) error {
		return e.store.UpdateMessage(ctx, snapshot)
	})
	if isNotFound(persistErr) {
		persistErr = nil
	}

	if target != "" {
		e.sendTo(target, Frame{Type: TypeMessageDeleted, Payload: MessageIDPayload{MessageID: messageID}})
	}
	return persistErr
}

// EditMessage replaces a message's content, keeping the previous content in
// its history, and broadcasts the edited message to the room.
func (e *Engine) EditMessage(ctx context.Context, messageID, editorID, content string) (*chat.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidPayload)
	}
	if err := e.validateContent(content, ""); err != nil {
		return nil, err
	}
	if _, err := e.resolveMessage(ctx, messageID); err != nil {
		return nil, err
	}

	e.mu.Lock()
	msg, ok := e.messages.Peek(messageID)
	if !ok {
		e.mu.Unlock()
		return nil, ErrMessageNotFound
	}
	msg.Edit(content, e.now())
	snapshot := msg.Clone()
	targets := e.rooms.MembersOf(msg.RoomKey)
	e.mu.Unlock()

	persistErr := e.persist(background(ctx), "edit message", func(ctx context.Context) error {
		return e.store.UpdateMessage(ctx, snapshot)
	})
	if isNotFound(persistErr) {
		persistErr = nil
	}

	e.fanout(targets, Frame{Type: TypeMessageEdited, Payload: snapshot})
	e.logger.Debug("Message edited", "messageID", messageID, "editorID", editorID, "edits", len(snapshot.History))
	return snapshot, persistErr
}

// MarkRead records a read receipt, settles the status to read and broadcasts
// the update to the room.
func (e *Engine) MarkRead(ctx context.Context, messageID, readerID string) (*chat.Message, error) {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return nil, ErrInvalidIdentity
	}
	if _, err := e.resolveMessage(ctx, messageID); err != nil {
		return nil, err
	}
	e.promotions.cancel(messageID)

	e.mu.Lock()
	msg, ok := e.messages.Peek(messageID)
	if !ok {
		e.mu.Unlock()
		return nil, ErrMessageNotFound
	}
	msg.MarkReadBy(readerID)
	snapshot := msg.Clone()
	targets := e.rooms.MembersOf(msg.RoomKey)
	e.mu.Unlock()

	persistErr := e.persist(background(ctx), "mark read", func(ctx context.Context) error {
		return e.store.UpdateMessage(ctx, snapshot)
	})
	if isNotFound(persistErr) {
		persistErr = nil
	}

	e.fanout(targets, Frame{Type: TypeStatusUpdated, Payload: StatusPayload{
		MessageID: snapshot.ID,
		Status:    snapshot.Status,
		ReadBy:    snapshot.ReadBy,
	}})
	return snapshot, persistErr
}

// resolveMessage finds a message in the in-flight index, falling back to the
// store and indexing what it finds.
func (e *Engine) resolveMessage(ctx context.Context, messageID string) (*chat.Message, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, fmt.Errorf("%w: messageId is required", ErrInvalidPayload)
	}

	e.mu.Lock()
	if msg, ok := e.messages.Get(messageID); ok {
		c := msg.Clone()
		e.mu.Unlock()
		return c, nil
	}
	e.mu.Unlock()

	var found *chat.Message
	err := e.persist(background(ctx), "find message", func(ctx context.Context) error {
		m, err := e.store.FindMessage(ctx, messageID)
		found = m
		return err
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.messages.Peek(messageID); ok {
		return existing.Clone(), nil
	}
	e.messages.Add(messageID, found)
	return found.Clone(), nil
}

// offlineRecipientsLocked lists the users of room without a live connection,
// excluding the sender. e.mu must be held.
func (e *Engine) offlineRecipientsLocked(room chat.RoomKey, senderID string) []string {
	if a, b, ok := room.Participants(); ok {
		other := a
		if other == senderID {
			other = b
		}
		if other == senderID || e.directory.IsOnline(other) {
			return nil
		}
		return []string{other}
	}
	if room != chat.Global {
		return nil
	}

	var offline []string
	for _, id := range e.directory.Offline() {
		if id != senderID {
			offline = append(offline, id)
		}
	}
	return offline
}

func (e *Engine) validateContent(content, mediaRef string) error {
	if strings.TrimSpace(content) == "" && mediaRef == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidPayload)
	}
	if utf8.RuneCountInString(content) > e.cfg.MaxMessageLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidPayload, e.cfg.MaxMessageLength)
	}
	return nil
}
