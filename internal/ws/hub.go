package ws

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"collab-service/internal/models"
	"collab-service/internal/observability"
)

const (
	presenceOnline  = "online"
	presenceOffline = "offline"
)

// Hub tracks connected clients by room, team and user. Every broadcast runs
// under the hub lock, so clients in a room receive events in the order the
// broadcasts were issued.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]struct{}
	teams map[string]map[*Client]struct{}
	users map[string]map[*Client]struct{}

	onLastDisconnect func(teamID, userID string)
	logger           *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		teams:  make(map[string]map[*Client]struct{}),
		users:  make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// OnLastDisconnect registers a callback fired after a user's final client
// leaves. It runs outside the hub lock.
func (h *Hub) OnLastDisconnect(fn func(teamID, userID string)) {
	h.mu.Lock()
	h.onLastDisconnect = fn
	h.mu.Unlock()
}

func addMember(index map[string]map[*Client]struct{}, key string, c *Client) {
	set, ok := index[key]
	if !ok {
		set = make(map[*Client]struct{})
		index[key] = set
	}
	set[c] = struct{}{}
}

func removeMember(index map[string]map[*Client]struct{}, key string, c *Client) {
	if set, ok := index[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

// Register adds a connected client. The first client of a user announces
// the user online to the team.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	addMember(h.teams, c.info.TeamID, c)
	addMember(h.users, c.info.UserID, c)
	clients := len(h.users[c.info.UserID])
	if clients == 1 {
		h.presenceLocked(c.info.TeamID, c.info.UserID, presenceOnline)
	}
	h.mu.Unlock()

	h.logger.Debug("ws client registered",
		zap.String("conn_id", c.info.ConnID),
		zap.String("user_id", c.info.UserID),
		zap.Int("user_clients", clients))
	if clients == 1 {
		publishPresence(c.info.TeamID, c.info.UserID, presenceOnline)
	}
}

// Unregister removes the client from every room and closes its send buffer.
// Calling it twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	last := h.removeLocked(c)
	hook := h.onLastDisconnect
	h.mu.Unlock()

	if last {
		h.userGone(hook, c)
	}
}

func (h *Hub) userGone(hook func(teamID, userID string), c *Client) {
	publishPresence(c.info.TeamID, c.info.UserID, presenceOffline)
	if hook != nil {
		hook(c.info.TeamID, c.info.UserID)
	}
}

// removeLocked drops c and reports whether it was its user's last client.
func (h *Hub) removeLocked(c *Client) bool {
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)

	for room := range c.rooms {
		removeMember(h.rooms, room, c)
	}
	c.rooms = nil
	removeMember(h.teams, c.info.TeamID, c)
	removeMember(h.users, c.info.UserID, c)

	if _, stillOnline := h.users[c.info.UserID]; stillOnline {
		return false
	}
	h.presenceLocked(c.info.TeamID, c.info.UserID, presenceOffline)
	return true
}

// Join subscribes the client to room. Joining twice is a no-op.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	if c.rooms == nil {
		c.rooms = make(map[string]struct{})
	}
	c.rooms[room] = struct{}{}
	addMember(h.rooms, room, c)
}

// Leave unsubscribes the client from room. Leaving a room not joined is a no-op.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.rooms, room)
	removeMember(h.rooms, room, c)
}

// InRoom reports whether the client has joined room.
func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

// Broadcast delivers evt to every client in room except exclude.
func (h *Hub) Broadcast(room string, evt *Event, exclude *Client) {
	h.deliver(evt, func() map[*Client]struct{} { return h.rooms[room] }, exclude)
}

// BroadcastWithUsers delivers evt to the room plus every client of the
// given users, each client at most once.
func (h *Hub) BroadcastWithUsers(room string, evt *Event, userIDs ...string) {
	h.deliver(evt, func() map[*Client]struct{} {
		targets := make(map[*Client]struct{}, len(h.rooms[room]))
		for c := range h.rooms[room] {
			targets[c] = struct{}{}
		}
		for _, userID := range userIDs {
			for c := range h.users[userID] {
				targets[c] = struct{}{}
			}
		}
		return targets
	}, nil)
}

// BroadcastTeam delivers evt to every connected client of the team.
func (h *Hub) BroadcastTeam(teamID string, evt *Event) {
	h.deliver(evt, func() map[*Client]struct{} { return h.teams[teamID] }, nil)
}

// Send enqueues evt for a single client.
func (h *Hub) Send(c *Client, evt *Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("ws marshal failed", zap.String("type", evt.Type), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !c.closed {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) deliver(evt *Event, targets func() map[*Client]struct{}, exclude *Client) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("ws marshal failed", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	var dropped []*Client
	for c := range targets() {
		if c == exclude || c.closed {
			continue
		}
		select {
		case c.send <- data:
		default:
			dropped = append(dropped, c)
		}
	}

	var gone []*Client
	for _, c := range dropped {
		h.logger.Warn("ws send buffer full, dropping client",
			zap.String("conn_id", c.info.ConnID),
			zap.String("user_id", c.info.UserID))
		observability.IncWSDropped()
		if h.removeLocked(c) {
			gone = append(gone, c)
		}
	}
	hook := h.onLastDisconnect
	h.mu.Unlock()

	for _, c := range gone {
		h.userGone(hook, c)
	}
}

// presenceLocked enqueues a presence event to the rest of the team. Clients
// whose buffer is full simply miss it; the next regular broadcast drops them.
func (h *Hub) presenceLocked(teamID, userID, status string) {
	eventType := EventUserOnline
	if status == presenceOffline {
		eventType = EventUserOffline
	}
	room := models.TeamRoom(teamID)
	evt, err := NewEvent(eventType, room, PresencePayload{Room: room, UserID: userID, Status: status})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for c := range h.teams[teamID] {
		if c.info.UserID == userID || c.closed {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

func publishPresence(teamID, userID, status string) {
	_ = observability.PublishEvent(context.Background(), "presence."+status, observability.EventEnvelope{
		EventType: "presence",
		EventName: status,
		TeamID:    teamID,
		Payload:   map[string]string{"user_id": userID},
	})
}

// OnlineUsers returns the sorted ids of the team's connected users.
func (h *Hub) OnlineUsers(teamID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[string]struct{})
	for c := range h.teams[teamID] {
		seen[c.info.UserID] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// IsOnline reports whether the user has at least one connected client.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.users[userID]
	return ok
}
