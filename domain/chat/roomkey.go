// Package chat holds the relay's domain types.
package chat

import "strings"

// RoomKey identifies a broadcast domain.
type RoomKey string

// Global is the singleton public room every joined connection belongs to.
const Global RoomKey = "global"

const (
	pairwisePrefix    = "dm:"
	pairwiseSeparator = "|"
)

// ValidUserID reports whether id can name a user. Ids must be non-empty and
// must not contain the pairwise separator, so that every pairwise key maps
// back to exactly one pair.
func ValidUserID(id string) bool {
	return id != "" && !strings.Contains(id, pairwiseSeparator)
}

// PairwiseKey derives the private room shared by two users. The result is
// the same for either argument order. Both ids must satisfy ValidUserID.
func PairwiseKey(a, b string) RoomKey {
	if b < a {
		a, b = b, a
	}
	return RoomKey(pairwisePrefix + a + pairwiseSeparator + b)
}

// ParseRoomKey normalizes a client-supplied room key. Empty means Global.
func ParseRoomKey(s string) RoomKey {
	s = strings.TrimSpace(s)
	if s == "" {
		return Global
	}
	return RoomKey(s)
}

// IsPairwise reports whether k is a private two-party room.
func (k RoomKey) IsPairwise() bool {
	return strings.HasPrefix(string(k), pairwisePrefix)
}

// Participants returns both user ids of a pairwise room.
func (k RoomKey) Participants() (string, string, bool) {
	if !k.IsPairwise() {
		return "", "", false
	}
	a, b, ok := strings.Cut(strings.TrimPrefix(string(k), pairwisePrefix), pairwiseSeparator)
	if !ok || !ValidUserID(a) || !ValidUserID(b) {
		return "", "", false
	}
	return a, b, true
}

// String returns the raw key.
func (k RoomKey) String() string {
	return string(k)
}
