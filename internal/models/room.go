package models

import "strings"

const (
	directRoomPrefix = "dm:"
	teamRoomPrefix   = "team:"
	roomSep          = ":"
)

// DirectRoomID returns the room shared by two users. The ids are ordered
// so both participants derive the same room without a lookup.
func DirectRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return directRoomPrefix + a + roomSep + b
}

// IsDirectRoom reports whether room names a direct-message room.
func IsDirectRoom(room string) bool {
	return strings.HasPrefix(room, directRoomPrefix)
}

// DirectRoomPeer returns the other participant of a direct room when
// userID is one of its two members.
func DirectRoomPeer(room, userID string) (string, bool) {
	rest, ok := strings.CutPrefix(room, directRoomPrefix)
	if !ok {
		return "", false
	}
	if other, ok := strings.CutPrefix(rest, userID+roomSep); ok && DirectRoomID(userID, other) == room {
		return other, true
	}
	if other, ok := strings.CutSuffix(rest, roomSep+userID); ok && DirectRoomID(userID, other) == room {
		return other, true
	}
	return "", false
}

// TeamRoom is the pseudo-room used to label team-wide events.
func TeamRoom(teamID string) string {
	return teamRoomPrefix + teamID
}

// TargetForRoom converts a room joined by userID back into a message target.
// Direct rooms yield the peer; any other room is treated as a group id.
func TargetForRoom(room, userID string) (Target, bool) {
	if IsDirectRoom(room) {
		peer, ok := DirectRoomPeer(room, userID)
		if !ok {
			return Target{}, false
		}
		return DirectTarget(peer), true
	}
	if room == "" || strings.HasPrefix(room, teamRoomPrefix) {
		return Target{}, false
	}
	return GroupTarget(room), true
}
