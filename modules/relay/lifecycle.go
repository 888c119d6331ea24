package relay

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/Nsabwe/Cchat/events"
)

// Connect registers a new anonymous connection and greets it.
func (e *Engine) Connect(connectionID string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if _, ok := e.conns[connectionID]; !ok {
		e.conns[connectionID] = &connection{id: connectionID, state: StateAnonymous}
	}
	e.mu.Unlock()

	e.sendTo(connectionID, Frame{Type: TypeConnected, Payload: ConnectedPayload{ConnectionID: connectionID}})
	e.logger.Debug("Connection registered", "connectionID", connectionID)
	return nil
}

// JoinGlobal binds the user to the connection, subscribes it to the global
// room and re-broadcasts presence. An invalid join leaves the connection as it was.
func (e *Engine) JoinGlobal(ctx context.Context, connectionID, userID string, profile chat.Profile) (*chat.UserSession, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	c, ok := e.conns[connectionID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrUnknownConnection
	}
	session, released, err := e.directory.Bind(connectionID, userID, profile, e.now())
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.rooms.Subscribe(chat.Global, connectionID)
	c.state = StateJoinedGlobal
	presence, targets := e.presenceLocked()
	onlineCount := len(presence.Payload.(PresencePayload).Users)
	e.mu.Unlock()

	e.fanout(targets, presence)

	if released != nil {
		e.events.PresenceChanged(presenceEvent(released, onlineCount))
		e.saveUser(ctx, released)
	}
	e.events.PresenceChanged(presenceEvent(session, onlineCount))
	e.saveUser(ctx, session)

	e.deliverHistory(ctx, connectionID, chat.Global, session.UserID)

	e.logger.Info("User joined", "userID", session.UserID, "connectionID", connectionID)
	return session, nil
}

// JoinPrivate subscribes the connection to the pairwise room of selfID and
// otherID and sends that room's history to this connection only.
func (e *Engine) JoinPrivate(ctx context.Context, connectionID, selfID, otherID string) (chat.RoomKey, error) {
	selfID = strings.TrimSpace(selfID)
	otherID = strings.TrimSpace(otherID)
	if selfID == "" || otherID == "" {
		return "", fmt.Errorf("%w: selfId and otherId are required", ErrInvalidIdentity)
	}
	if !chat.ValidUserID(selfID) || !chat.ValidUserID(otherID) {
		return "", fmt.Errorf("%w: user ids must not contain %q", ErrInvalidIdentity, "|")
	}
	room := chat.PairwiseKey(selfID, otherID)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrEngineClosed
	}
	c, ok := e.conns[connectionID]
	if !ok {
		e.mu.Unlock()
		return "", ErrUnknownConnection
	}
	e.rooms.Subscribe(room, connectionID)
	c.selfID = selfID
	if c.state == StateAnonymous {
		c.state = StateJoinedPairwise
	}
	e.mu.Unlock()

	e.deliverHistory(ctx, connectionID, room, selfID)

	e.logger.Debug("Joined private room", "room", room, "connectionID", connectionID)
	return room, nil
}

// Disconnect unwinds everything the connection held: identity binding, room
// subscriptions and typing entries. Presence is re-broadcast when a user went
// offline.
func (e *Engine) Disconnect(ctx context.Context, connectionID string) {
	e.mu.Lock()
	if _, ok := e.conns[connectionID]; !ok {
		e.mu.Unlock()
		return
	}
	delete(e.conns, connectionID)

	session := e.directory.Unbind(connectionID, e.now())
	e.rooms.UnsubscribeAll(connectionID)

	type typingUpdate struct {
		targets []string
		frame   Frame
	}
	var updates []typingUpdate
	for _, room := range e.typing.ClearAll(connectionID) {
		updates = append(updates, typingUpdate{
			targets: e.rooms.MembersOf(room),
			frame:   Frame{Type: TypeTypingSnapshot, Payload: e.typing.Snapshot(room)},
		})
	}

	var (
		presence Frame
		targets  []string
	)
	if session != nil {
		presence, targets = e.presenceLocked()
	}
	e.mu.Unlock()

	for _, u := range updates {
		e.fanout(u.targets, u.frame)
	}

	if session == nil {
		e.logger.Debug("Anonymous connection closed", "connectionID", connectionID)
		return
	}

	e.fanout(targets, presence)
	e.events.PresenceChanged(presenceEvent(session, len(presence.Payload.(PresencePayload).Users)))
	e.saveUser(ctx, session)
	e.logger.Info("User left", "userID", session.UserID, "connectionID", connectionID)
}

// RegisterUser creates an offline session for a new user id.
func (e *Engine) RegisterUser(ctx context.Context, userID string, profile chat.Profile) (*chat.UserSession, error) {
	userID = strings.TrimSpace(userID)
	if !chat.ValidUserID(userID) {
		return nil, ErrInvalidIdentity
	}

	var existing *chat.UserSession
	err := e.persist(ctx, "find user", func(ctx context.Context) error {
		u, err := e.store.FindUser(ctx, userID)
		existing = u
		return err
	})
	switch {
	case err == nil:
		e.mu.Lock()
		e.directory.Register(existing)
		e.mu.Unlock()
		return nil, ErrUserExists
	case !isNotFound(err):
		return nil, err
	}

	session := &chat.UserSession{
		UserID:      userID,
		DisplayName: profile.DisplayName,
		ProfileRef:  profile.ProfileRef,
		LastSeenAt:  e.now(),
	}

	e.mu.Lock()
	added := e.directory.Register(session)
	if added {
		session, _ = e.directory.Lookup(userID)
	}
	e.mu.Unlock()
	if !added {
		return nil, ErrUserExists
	}

	if err := e.persist(ctx, "save user", func(ctx context.Context) error {
		return e.store.SaveUser(ctx, session)
	}); err != nil {
		return session, err
	}
	return session, nil
}

// History returns up to limit recent messages of room visible to viewerID.
func (e *Engine) History(ctx context.Context, room chat.RoomKey, viewerID string, limit int) ([]*chat.Message, error) {
	if limit <= 0 {
		limit = e.cfg.HistoryLimit
	}
	return e.loadHistory(ctx, room, viewerID, limit)
}

// loadHistory collapses concurrent identical loads into one store query.
func (e *Engine) loadHistory(ctx context.Context, room chat.RoomKey, viewerID string, limit int) ([]*chat.Message, error) {
	key := room.String() + "\x00" + viewerID + "\x00" + strconv.Itoa(limit)
	v, err, _ := e.history.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(background(ctx), e.cfg.StoreTimeout)
		defer cancel()
		return e.store.ListMessages(callCtx, room, viewerID, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", ErrPersistenceUnavailable, err)
	}
	return v.([]*chat.Message), nil
}

// deliverHistory sends a room's history to one connection. A store failure
// is logged and answered with an empty history.
func (e *Engine) deliverHistory(ctx context.Context, connectionID string, room chat.RoomKey, viewerID string) {
	msgs, err := e.loadHistory(ctx, room, viewerID, e.cfg.HistoryLimit)
	if err != nil {
		e.logger.Warn("History unavailable", "room", room, "error", err)
		msgs = []*chat.Message{}
	}
	e.sendTo(connectionID, Frame{Type: TypeHistory, Payload: HistoryPayload{RoomKey: room, Messages: msgs}})
}

// presenceLocked builds the presence frame and its global targets. e.mu must be held.
func (e *Engine) presenceLocked() (Frame, []string) {
	online := e.directory.ListOnline()
	for _, u := range online {
		u.ConnectionID = ""
	}
	frame := Frame{Type: TypePresence, Payload: PresencePayload{Users: online, Count: len(online)}}
	return frame, e.rooms.MembersOf(chat.Global)
}

// saveUser persists a session best-effort.
func (e *Engine) saveUser(ctx context.Context, session *chat.UserSession) {
	_ = e.persist(background(ctx), "save user", func(ctx context.Context) error {
		return e.store.SaveUser(ctx, session)
	})
}

func presenceEvent(s *chat.UserSession, onlineCount int) events.PresenceChangedEvent {
	return events.PresenceChangedEvent{
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		Online:      s.Online,
		OnlineCount: onlineCount,
		Timestamp:   s.LastSeenAt,
	}
}

// SubscribePush stores the Web Push subscription of a user, replacing any
// previous one.
func (e *Engine) SubscribePush(ctx context.Context, sub chat.PushSubscription) error {
	sub.UserID = strings.TrimSpace(sub.UserID)
	if sub.UserID == "" {
		return ErrInvalidIdentity
	}
	if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
		return fmt.Errorf("%w: endpoint and keys are required", ErrInvalidPayload)
	}
	return e.persist(ctx, "save push subscription", func(ctx context.Context) error {
		return e.store.SavePushSubscription(ctx, sub)
	})
}
