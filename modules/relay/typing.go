package relay

import (
	"sort"

	"github.com/Nsabwe/Cchat/domain/chat"
)

// TypingTracker records which connections are typing in which room.
// It is not safe for concurrent use; the Engine serializes access.
type TypingTracker struct {
	rooms  map[chat.RoomKey]map[string]string
	byConn map[string]map[chat.RoomKey]struct{}
}

// NewTypingTracker creates an empty TypingTracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		rooms:  make(map[chat.RoomKey]map[string]string),
		byConn: make(map[string]map[chat.RoomKey]struct{}),
	}
}

// SetTyping marks connectionID as typing in room under displayName.
func (t *TypingTracker) SetTyping(room chat.RoomKey, connectionID, displayName string) {
	typing, ok := t.rooms[room]
	if !ok {
		typing = make(map[string]string)
		t.rooms[room] = typing
	}
	typing[connectionID] = displayName

	in, ok := t.byConn[connectionID]
	if !ok {
		in = make(map[chat.RoomKey]struct{})
		t.byConn[connectionID] = in
	}
	in[room] = struct{}{}
}

// ClearTyping removes connectionID's typing entry in room.
func (t *TypingTracker) ClearTyping(room chat.RoomKey, connectionID string) bool {
	typing, ok := t.rooms[room]
	if !ok {
		return false
	}
	if _, ok := typing[connectionID]; !ok {
		return false
	}
	delete(typing, connectionID)
	if len(typing) == 0 {
		delete(t.rooms, room)
	}

	if in, ok := t.byConn[connectionID]; ok {
		delete(in, room)
		if len(in) == 0 {
			delete(t.byConn, connectionID)
		}
	}
	return true
}

// ClearAll removes every typing entry of connectionID and returns the affected rooms.
func (t *TypingTracker) ClearAll(connectionID string) []chat.RoomKey {
	in := t.byConn[connectionID]
	rooms := make([]chat.RoomKey, 0, len(in))
	for room := range in {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		t.ClearTyping(room, connectionID)
	}
	sortRooms(rooms)
	return rooms
}

// Snapshot returns the display names typing in room, deduplicated by name.
func (t *TypingTracker) Snapshot(room chat.RoomKey) TypingSnapshot {
	seen := make(map[string]struct{})
	names := make([]string, 0, len(t.rooms[room]))
	for _, name := range t.rooms[room] {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return TypingSnapshot{RoomKey: room, Count: len(names), DisplayNames: names}
}
