package relay

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Nsabwe/Cchat/domain/chat"
)

// Directory maps user ids to sessions and connections to the user bound on them.
// It is not safe for concurrent use; the Engine serializes access.
type Directory struct {
	users  map[string]*chat.UserSession
	byConn map[string]string
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		users:  make(map[string]*chat.UserSession),
		byConn: make(map[string]string),
	}
}

// Bind associates userID with connectionID, creating the session on first use.
// A different user previously bound to the connection is released and returned.
// If the user was bound to another connection, that connection loses the binding.
func (d *Directory) Bind(connectionID, userID string, profile chat.Profile, now time.Time) (*chat.UserSession, *chat.UserSession, error) {
	userID = strings.TrimSpace(userID)
	if !chat.ValidUserID(userID) {
		return nil, nil, ErrInvalidIdentity
	}

	var released *chat.UserSession
	if prev, ok := d.byConn[connectionID]; ok && prev != userID {
		released = d.Unbind(connectionID, now)
	}

	session, ok := d.users[userID]
	if !ok {
		session = &chat.UserSession{UserID: userID}
		d.users[userID] = session
	}
	if session.ConnectionID != "" && session.ConnectionID != connectionID {
		delete(d.byConn, session.ConnectionID)
	}

	if profile.DisplayName != "" {
		session.DisplayName = profile.DisplayName
	} else if session.DisplayName == "" {
		session.DisplayName = userID
	}
	if profile.ProfileRef != "" {
		session.ProfileRef = profile.ProfileRef
	}
	session.ConnectionID = connectionID
	session.Online = true
	session.LastSeenAt = now
	d.byConn[connectionID] = userID

	return session.Clone(), released, nil
}

// Unbind marks the user bound to connectionID offline. It returns nil when the
// connection carried no identity.
func (d *Directory) Unbind(connectionID string, now time.Time) *chat.UserSession {
	userID, ok := d.byConn[connectionID]
	if !ok {
		return nil
	}
	delete(d.byConn, connectionID)

	session, ok := d.users[userID]
	if !ok {
		panic(fmt.Sprintf("relay: connection %s bound to missing user %s", connectionID, userID))
	}
	session.ConnectionID = ""
	session.Online = false
	session.LastSeenAt = now
	return session.Clone()
}

// Register adds an offline session if the user is unknown. It reports whether
// the session was added.
func (d *Directory) Register(session *chat.UserSession) bool {
	if session == nil || session.UserID == "" {
		return false
	}
	if _, ok := d.users[session.UserID]; ok {
		return false
	}
	s := session.Clone()
	s.ConnectionID = ""
	s.Online = false
	if s.DisplayName == "" {
		s.DisplayName = s.UserID
	}
	d.users[s.UserID] = s
	return true
}

// Lookup returns a copy of the user's session.
func (d *Directory) Lookup(userID string) (*chat.UserSession, bool) {
	s, ok := d.users[userID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// SessionOf returns the session bound to connectionID.
func (d *Directory) SessionOf(connectionID string) (*chat.UserSession, bool) {
	userID, ok := d.byConn[connectionID]
	if !ok {
		return nil, false
	}
	return d.Lookup(userID)
}

// ListOnline returns the online sessions ordered by user id.
func (d *Directory) ListOnline() []*chat.UserSession {
	online := make([]*chat.UserSession, 0, len(d.byConn))
	for _, s := range d.users {
		if s.Online {
			online = append(online, s.Clone())
		}
	}
	sort.Slice(online, func(i, j int) bool { return online[i].UserID < online[j].UserID })
	return online
}

// Offline returns the ids of known users without a live connection.
func (d *Directory) Offline() []string {
	var ids []string
	for id, s := range d.users {
		if !s.Online {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IsOnline reports whether the user currently has a bound connection.
func (d *Directory) IsOnline(userID string) bool {
	s, ok := d.users[userID]
	return ok && s.Online
}

// Len returns the number of known users.
func (d *Directory) Len() int {
	return len(d.users)
}
