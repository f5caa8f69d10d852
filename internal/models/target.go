package models

import "errors"

// TargetKind distinguishes direct and group addressing.
type TargetKind string

const (
	TargetDirect TargetKind = "direct"
	TargetGroup  TargetKind = "group"
)

var ErrInvalidTarget = errors.New("exactly one of recipient_id or group_id is required")

// Target addresses a message to a single recipient or to a group, never both.
// The zero value is invalid.
type Target struct {
	kind TargetKind
	id   string
}

func DirectTarget(recipientID string) Target {
	return Target{kind: TargetDirect, id: recipientID}
}

func GroupTarget(groupID string) Target {
	return Target{kind: TargetGroup, id: groupID}
}

// ParseTarget builds a Target from the optional pair used on the wire.
func ParseTarget(recipientID, groupID string) (Target, error) {
	switch {
	case recipientID != "" && groupID == "":
		return DirectTarget(recipientID), nil
	case groupID != "" && recipientID == "":
		return GroupTarget(groupID), nil
	default:
		return Target{}, ErrInvalidTarget
	}
}

func (t Target) Kind() TargetKind { return t.kind }
func (t Target) ID() string       { return t.id }
func (t Target) IsDirect() bool   { return t.kind == TargetDirect }
func (t Target) IsGroup() bool    { return t.kind == TargetGroup }
func (t Target) Valid() bool      { return t.kind != "" && t.id != "" }

// Room returns the broadcast room for this target as seen by userID.
func (t Target) Room(userID string) string {
	if t.IsGroup() {
		return t.id
	}
	return DirectRoomID(userID, t.id)
}
