package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collab-service/internal/models"
)

func newTestClient(h *Hub, userID, teamID string) *Client {
	return NewClient(h, nil, ConnInfo{ConnID: userID + "-conn", UserID: userID, TeamID: teamID})
}

// drain returns every queued event without blocking.
func drain(t *testing.T, c *Client) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var evt Event
			require.NoError(t, json.Unmarshal(data, &evt))
			out = append(out, evt)
		default:
			return out
		}
	}
}

func types(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func mustEvent(t *testing.T, eventType, room string, payload any) *Event {
	t.Helper()
	evt, err := NewEvent(eventType, room, payload)
	require.NoError(t, err)
	return evt
}

func TestPresenceOnFirstAndLastConnection(t *testing.T) {
	h := NewHub(zap.NewNop())
	watcher := newTestClient(h, "u1", "t1")
	h.Register(watcher)

	tab1 := newTestClient(h, "u2", "t1")
	tab2 := newTestClient(h, "u2", "t1")
	outsider := newTestClient(h, "u9", "t2")
	h.Register(outsider)
	h.Register(tab1)
	h.Register(tab2)

	assert.Equal(t, []string{EventUserOnline}, types(drain(t, watcher)))
	assert.Empty(t, drain(t, outsider))
	assert.Equal(t, []string{"u1", "u2"}, h.OnlineUsers("t1"))

	h.Unregister(tab1)
	assert.Empty(t, drain(t, watcher))
	assert.True(t, h.IsOnline("u2"))

	h.Unregister(tab2)
	events := drain(t, watcher)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserOffline, events[0].Type)
	assert.Equal(t, models.TeamRoom("t1"), events[0].Room)
	assert.False(t, h.IsOnline("u2"))
	assert.Equal(t, []string{"u1"}, h.OnlineUsers("t1"))
}

func TestUnregisterTwiceIsHarmless(t *testing.T) {
	h := NewHub(zap.NewNop())
	var calls int
	h.OnLastDisconnect(func(teamID, userID string) { calls++ })

	c := newTestClient(h, "u1", "t1")
	h.Register(c)
	h.Join(c, "g1")
	h.Unregister(c)
	assert.NotPanics(t, func() { h.Unregister(c) })
	assert.Equal(t, 1, calls)
	assert.Empty(t, h.rooms)
}

func TestJoinLeaveIdempotent(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := newTestClient(h, "u1", "t1")
	h.Register(c)

	h.Join(c, "g1")
	h.Join(c, "g1")
	assert.True(t, h.InRoom(c, "g1"))
	assert.Len(t, h.rooms["g1"], 1)

	h.Leave(c, "g1")
	h.Leave(c, "g1")
	h.Leave(c, "never-joined")
	assert.False(t, h.InRoom(c, "g1"))
	assert.Empty(t, h.rooms)
}

func TestBroadcastReachesRoomExceptExcluded(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := newTestClient(h, "u1", "t1")
	b := newTestClient(h, "u2", "t1")
	other := newTestClient(h, "u3", "t1")
	clients := []*Client{a, b, other}
	for _, c := range clients {
		h.Register(c)
	}
	// later registrations announce presence to earlier clients
	for _, c := range clients {
		drain(t, c)
	}
	h.Join(a, "g1")
	h.Join(b, "g1")

	h.Broadcast("g1", mustEvent(t, EventMessageSent, "g1", map[string]string{"id": "m1"}), a)

	assert.Empty(t, drain(t, a))
	events := drain(t, b)
	require.Len(t, events, 1)
	assert.Equal(t, "g1", events[0].Room)
	assert.Empty(t, drain(t, other))
}

func TestBroadcastPreservesOrder(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := newTestClient(h, "u1", "t1")
	h.Register(c)
	h.Join(c, "g1")

	for i := 0; i < 50; i++ {
		h.Broadcast("g1", mustEvent(t, EventMessageSent, "g1", map[string]int{"n": i}), nil)
	}

	events := drain(t, c)
	require.Len(t, events, 50)
	for i, evt := range events {
		var payload map[string]int
		require.NoError(t, json.Unmarshal(evt.Payload, &payload))
		assert.Equal(t, i, payload["n"])
	}
}

func TestSlowClientIsDroppedWithoutFailingBroadcast(t *testing.T) {
	h := NewHub(zap.NewNop())
	var gone []string
	h.OnLastDisconnect(func(teamID, userID string) { gone = append(gone, userID) })

	fast := newTestClient(h, "u1", "t1")
	slow := newTestClient(h, "u2", "t1")
	h.Register(fast)
	h.Register(slow)
	drain(t, fast)
	h.Join(fast, "g1")
	h.Join(slow, "g1")

	for i := 0; i < sendBufSize; i++ {
		slow.send <- []byte(`{}`)
	}

	h.Broadcast("g1", mustEvent(t, EventMessageSent, "g1", nil), nil)

	assert.Equal(t, []string{EventMessageSent, EventUserOffline}, types(drain(t, fast)))
	assert.True(t, slow.closed)
	assert.False(t, h.IsOnline("u2"))
	assert.Equal(t, []string{"u2"}, gone)
	assert.NotContains(t, h.rooms["g1"], slow)
}

func TestBroadcastWithUsersDeliversOnce(t *testing.T) {
	h := NewHub(zap.NewNop())
	sender := newTestClient(h, "u1", "t1")
	inRoom := newTestClient(h, "u2", "t1")
	elsewhere := newTestClient(h, "u2", "t1")
	for _, c := range []*Client{sender, inRoom, elsewhere} {
		h.Register(c)
	}
	room := models.DirectRoomID("u1", "u2")
	h.Join(sender, room)
	h.Join(inRoom, room)
	for _, c := range []*Client{sender, inRoom, elsewhere} {
		drain(t, c)
	}

	h.BroadcastWithUsers(room, mustEvent(t, EventMessageSent, room, nil), "u2")

	assert.Len(t, drain(t, sender), 1)
	assert.Len(t, drain(t, inRoom), 1)
	assert.Len(t, drain(t, elsewhere), 1)
}

func TestBroadcastTeamScoped(t *testing.T) {
	h := NewHub(zap.NewNop())
	mine := newTestClient(h, "u1", "t1")
	theirs := newTestClient(h, "u2", "t2")
	h.Register(mine)
	h.Register(theirs)

	h.BroadcastTeam("t1", mustEvent(t, EventQueueChanged, models.TeamRoom("t1"), nil))

	assert.Equal(t, []string{EventQueueChanged}, types(drain(t, mine)))
	assert.Empty(t, drain(t, theirs))
}

func TestConcurrentRegisterAndBroadcast(t *testing.T) {
	h := NewHub(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newTestClient(h, fmt.Sprintf("u%d", i), "t1")
			h.Register(c)
			h.Join(c, "g1")
			h.Broadcast("g1", &Event{Type: EventMessageSent, Room: "g1"}, c)
			h.Unregister(c)
		}(i)
	}
	wg.Wait()
	assert.Empty(t, h.OnlineUsers("t1"))
	assert.Empty(t, h.rooms)
}

func TestNotifierDirectMessageReachesRecipientOutsideRoom(t *testing.T) {
	h := NewHub(zap.NewNop())
	n := NewHubNotifier(h, zap.NewNop())
	recipient := newTestClient(h, "u2", "t1")
	h.Register(recipient)
	drain(t, recipient)

	to := "u2"
	n.NotifyMessageSent(context.Background(), models.Message{ID: "m1", TeamID: "t1", SenderID: "u1", RecipientID: &to, Content: "hi"})

	events := drain(t, recipient)
	require.Len(t, events, 1)
	assert.Equal(t, EventMessageSent, events[0].Type)
	assert.Equal(t, models.DirectRoomID("u1", "u2"), events[0].Room)
}

func TestNotifierTypingCarriesRoom(t *testing.T) {
	h := NewHub(zap.NewNop())
	n := NewHubNotifier(h, zap.NewNop())
	c := newTestClient(h, "u2", "t1")
	h.Register(c)
	h.Join(c, "g1")

	n.NotifyTyping(context.Background(), models.TypingIndicator{UserID: "u1", ChatID: "g1", ChatType: models.TargetGroup, SenderName: "Ana"}, true)

	events := drain(t, c)
	require.Len(t, events, 1)
	var payload TypingPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, TypingPayload{Room: "g1", UserID: "u1", SenderName: "Ana", ChatType: "group", Active: true}, payload)
}
