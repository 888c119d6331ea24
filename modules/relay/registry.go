package relay

import (
	"sort"

	"github.com/Nsabwe/Cchat/domain/chat"
)

// Registry maps rooms to subscribed connections, with a reverse index from
// connection to rooms kept in step with the forward map. Rooms stay as empty
// entries after their last member leaves.
// It is not safe for concurrent use; the Engine serializes access.
type Registry struct {
	rooms  map[chat.RoomKey]map[string]struct{}
	byConn map[string]map[chat.RoomKey]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[chat.RoomKey]map[string]struct{}),
		byConn: make(map[string]map[chat.RoomKey]struct{}),
	}
}

// Subscribe adds connectionID to room. It reports whether the connection was newly added.
func (r *Registry) Subscribe(room chat.RoomKey, connectionID string) bool {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	if _, ok := members[connectionID]; ok {
		return false
	}
	members[connectionID] = struct{}{}

	joined, ok := r.byConn[connectionID]
	if !ok {
		joined = make(map[chat.RoomKey]struct{})
		r.byConn[connectionID] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Unsubscribe removes connectionID from room.
func (r *Registry) Unsubscribe(room chat.RoomKey, connectionID string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[connectionID]; !ok {
		return false
	}
	delete(members, connectionID)

	if joined, ok := r.byConn[connectionID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.byConn, connectionID)
		}
	}
	return true
}

// UnsubscribeAll removes connectionID from every room and returns those rooms.
func (r *Registry) UnsubscribeAll(connectionID string) []chat.RoomKey {
	joined := r.byConn[connectionID]
	left := make([]chat.RoomKey, 0, len(joined))
	for room := range joined {
		delete(r.rooms[room], connectionID)
		left = append(left, room)
	}
	delete(r.byConn, connectionID)
	sortRooms(left)
	return left
}

// MembersOf returns the connections subscribed to room. Unknown rooms are empty.
func (r *Registry) MembersOf(room chat.RoomKey) []string {
	members := r.rooms[room]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomsOf returns the rooms connectionID is subscribed to.
func (r *Registry) RoomsOf(connectionID string) []chat.RoomKey {
	joined := r.byConn[connectionID]
	rooms := make([]chat.RoomKey, 0, len(joined))
	for room := range joined {
		rooms = append(rooms, room)
	}
	sortRooms(rooms)
	return rooms
}

// IsMember reports whether connectionID is subscribed to room.
func (r *Registry) IsMember(room chat.RoomKey, connectionID string) bool {
	_, ok := r.rooms[room][connectionID]
	return ok
}

// RoomCount returns the number of known rooms, empty ones included.
func (r *Registry) RoomCount() int {
	return len(r.rooms)
}

func sortRooms(rooms []chat.RoomKey) {
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
}
