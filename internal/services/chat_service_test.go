package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collab-service/internal/apperr"
	"collab-service/internal/memstore"
	"collab-service/internal/mocks"
	"collab-service/internal/models"
	"collab-service/internal/repositories"
	"collab-service/internal/typing"
)

const team = "t1"

type chatFixture struct {
	store  *memstore.Store
	svc    *ChatService
	notes  *recorder
	clock  *testClock
	typing *typing.Store
}

func newChatFixture(t *testing.T, users ...string) *chatFixture {
	t.Helper()
	f := &chatFixture{store: memstore.New(), notes: &recorder{}, clock: newTestClock()}
	for _, id := range users {
		require.NoError(t, f.store.UpsertUser(context.Background(), models.User{ID: id, TeamID: team, Name: strings.ToUpper(id), Role: models.RoleMember}))
	}
	f.typing = typing.NewStore(typing.DefaultTTL, typing.WithClock(f.clock.Now))
	f.svc = NewChatService(f.store, f.store, f.store, f.typing,
		WithChatNotifier(f.notes),
		WithChatClock(f.clock.Now))
	return f
}

func TestSendDirectMessageAndListBothDirections(t *testing.T) {
	f := newChatFixture(t, "u1", "u2")
	ctx := context.Background()

	first, err := f.svc.Send(ctx, team, "u1", "  hello  ", models.DirectTarget("u2"))
	require.NoError(t, err)
	assert.Equal(t, "hello", first.Content)
	assert.Equal(t, "U1", first.SenderName)
	f.clock.Advance(time.Second)
	_, err = f.svc.Send(ctx, team, "u2", "hi back", models.DirectTarget("u1"))
	require.NoError(t, err)

	fromA, err := f.svc.List(ctx, team, "u1", models.DirectTarget("u2"))
	require.NoError(t, err)
	fromB, err := f.svc.List(ctx, team, "u2", models.DirectTarget("u1"))
	require.NoError(t, err)

	require.Len(t, fromA, 2)
	assert.Equal(t, fromA, fromB)
	assert.Equal(t, "hello", fromA[0].Content)
	assert.Equal(t, "hi back", fromA[1].Content)

	require.Len(t, f.notes.sent, 2)
	assert.Equal(t, models.DirectRoomID("u1", "u2"), f.notes.sent[0].Room())
}

func TestSendRejectsBadInput(t *testing.T) {
	f := newChatFixture(t, "u1", "u2", "u3")
	ctx := context.Background()
	group, err := f.svc.GetOrCreateTeamChat(ctx, team, "u1")
	require.NoError(t, err)

	cases := []struct {
		name    string
		sender  string
		content string
		target  models.Target
		kind    apperr.Kind
	}{
		{"blank content", "u1", "   ", models.DirectTarget("u2"), apperr.KindValidation},
		{"too long", "u1", strings.Repeat("x", MaxMessageLength+1), models.DirectTarget("u2"), apperr.KindValidation},
		{"no target", "u1", "hi", models.Target{}, apperr.KindValidation},
		{"to self", "u1", "hi", models.DirectTarget("u1"), apperr.KindValidation},
		{"unknown recipient", "u1", "hi", models.DirectTarget("ghost"), apperr.KindNotFound},
		{"unknown sender", "ghost", "hi", models.DirectTarget("u1"), apperr.KindNotFound},
		{"not a member", "u3", "hi", models.GroupTarget(group.ID), apperr.KindPermission},
		{"unknown group", "u1", "hi", models.GroupTarget("nope"), apperr.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Send(ctx, team, tc.sender, tc.content, tc.target)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
	assert.Empty(t, f.notes.sent)
}

func TestListKeepsLatestInAscendingOrder(t *testing.T) {
	f := newChatFixture(t, "u1")
	f.svc.listLimit = 3
	ctx := context.Background()
	group, err := f.svc.GetOrCreateTeamChat(ctx, team, "u1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.svc.Send(ctx, team, "u1", fmt.Sprintf("m%d", i), models.GroupTarget(group.ID))
		require.NoError(t, err)
	}

	msgs, err := f.svc.List(ctx, team, "u1", models.GroupTarget(group.ID))
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m2", "m3", "m4"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestEditAndDeleteAreSenderOnly(t *testing.T) {
	f := newChatFixture(t, "u1", "u2")
	ctx := context.Background()
	msg, err := f.svc.Send(ctx, team, "u1", "draft", models.DirectTarget("u2"))
	require.NoError(t, err)

	_, err = f.svc.Edit(ctx, team, "u2", msg.ID, "hijack")
	assert.True(t, apperr.Is(err, apperr.KindPermission))
	_, err = f.svc.Delete(ctx, team, "u2", msg.ID)
	assert.True(t, apperr.Is(err, apperr.KindPermission))

	f.clock.Advance(time.Minute)
	edited, err := f.svc.Edit(ctx, team, "u1", msg.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", edited.Content)
	require.NotNil(t, edited.EditedAt)
	assert.Equal(t, f.clock.Now(), *edited.EditedAt)
	assert.Len(t, f.notes.edited, 1)

	_, err = f.svc.Edit(ctx, team, "u1", "missing", "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteIsSoftAndIdempotent(t *testing.T) {
	f := newChatFixture(t, "u1", "u2")
	ctx := context.Background()
	msg, err := f.svc.Send(ctx, team, "u1", "oops", models.DirectTarget("u2"))
	require.NoError(t, err)

	deleted, err := f.svc.Delete(ctx, team, "u1", msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Empty(t, deleted.Content)

	again, err := f.svc.Delete(ctx, team, "u1", msg.ID)
	require.NoError(t, err)
	assert.True(t, again.Deleted)
	assert.Len(t, f.notes.deleted, 1)

	msgs, err := f.svc.List(ctx, team, "u2", models.DirectTarget("u1"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Deleted)
	assert.Empty(t, msgs[0].Content)

	_, err = f.svc.Edit(ctx, team, "u1", msg.ID, "revive")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newChatFixture(t, "u1", "u2", "u3")
	ctx := context.Background()
	msg, err := f.svc.Send(ctx, team, "u1", "ping", models.DirectTarget("u2"))
	require.NoError(t, err)

	changed, err := f.svc.MarkRead(ctx, team, "u2", msg.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.svc.MarkRead(ctx, team, "u2", msg.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = f.svc.MarkRead(ctx, team, "u3", msg.ID)
	assert.True(t, apperr.Is(err, apperr.KindPermission))

	require.Len(t, f.notes.read, 1)
	assert.Equal(t, readEvent{Room: models.DirectRoomID("u1", "u2"), ReaderID: "u2", IDs: []string{msg.ID}}, f.notes.read[0])

	stored, err := f.store.GetMessage(ctx, team, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, []string(stored.ReadBy))
}

func TestSenderMarksOwnMessageReadOnce(t *testing.T) {
	f := newChatFixture(t, "u1", "u2")
	ctx := context.Background()
	msg, err := f.svc.Send(ctx, team, "u1", "note to self", models.DirectTarget("u2"))
	require.NoError(t, err)

	changed, err := f.svc.MarkRead(ctx, team, "u1", msg.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.svc.MarkRead(ctx, team, "u1", msg.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := f.store.GetMessage(ctx, team, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, []string(stored.ReadBy))

	counts, err := f.svc.UnreadCounts(ctx, team, "u1")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestUnreadCountsAndMarkChatRead(t *testing.T) {
	f := newChatFixture(t, "u1", "u2", "u3")
	ctx := context.Background()
	group, err := f.svc.GetOrCreateTeamChat(ctx, team, "u1")
	require.NoError(t, err)
	_, err = f.svc.GetOrCreateTeamChat(ctx, team, "u2")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Send(ctx, team, "u1", "direct", models.DirectTarget("u2"))
		require.NoError(t, err)
	}
	_, err = f.svc.Send(ctx, team, "u1", "to group", models.GroupTarget(group.ID))
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, team, "u3", "from u3", models.DirectTarget("u2"))
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, team, "u2", "mine", models.DirectTarget("u1"))
	require.NoError(t, err)

	counts, err := f.svc.UnreadCounts(ctx, team, "u2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.UnreadCount{
		{ChatID: "u1", Kind: models.TargetDirect, Count: 3},
		{ChatID: "u3", Kind: models.TargetDirect, Count: 1},
		{ChatID: group.ID, Kind: models.TargetGroup, Count: 1},
	}, counts)

	ids, err := f.svc.MarkChatRead(ctx, team, "u2", models.DirectTarget("u1"))
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	require.Len(t, f.notes.read, 1)
	assert.Equal(t, models.DirectRoomID("u1", "u2"), f.notes.read[0].Room)

	ids, err = f.svc.MarkChatRead(ctx, team, "u2", models.DirectTarget("u1"))
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Len(t, f.notes.read, 1)

	counts, err = f.svc.UnreadCounts(ctx, team, "u2")
	require.NoError(t, err)
	assert.Len(t, counts, 2)
}

func TestGetOrCreateTeamChatConcurrent(t *testing.T) {
	users := make([]string, 20)
	for i := range users {
		users[i] = fmt.Sprintf("u%02d", i)
	}
	f := newChatFixture(t, users...)

	var wg sync.WaitGroup
	ids := make([]string, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			g, err := f.svc.GetOrCreateTeamChat(context.Background(), team, u)
			if assert.NoError(t, err) {
				ids[i] = g.ID
			}
		}(i, u)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	group, err := f.store.GetGroup(context.Background(), team, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.TeamChatName, group.Name)
	assert.ElementsMatch(t, users, []string(group.Members))
}

func TestAddGroupMember(t *testing.T) {
	f := newChatFixture(t, "u1", "u2", "u3")
	ctx := context.Background()
	group, err := f.svc.GetOrCreateTeamChat(ctx, team, "u1")
	require.NoError(t, err)

	_, err = f.svc.AddGroupMember(ctx, team, "u3", group.ID, "u2")
	assert.True(t, apperr.Is(err, apperr.KindPermission))
	_, err = f.svc.AddGroupMember(ctx, team, "u1", group.ID, "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	updated, err := f.svc.AddGroupMember(ctx, team, "u1", group.ID, "u2")
	require.NoError(t, err)
	assert.True(t, updated.HasMember("u2"))

	again, err := f.svc.AddGroupMember(ctx, team, "u1", group.ID, "u2")
	require.NoError(t, err)
	assert.Len(t, again.Members, 2)
}

func TestEnrollTeamMember(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	err := f.svc.EnrollTeamMember(ctx, models.User{ID: "new", TeamID: team, Name: "Newbie", Role: models.RoleMember})
	require.NoError(t, err)

	user, err := f.store.GetUser(ctx, team, "new")
	require.NoError(t, err)
	assert.Equal(t, "Newbie", user.Name)

	group, err := f.store.FindGroupByName(ctx, team, models.TeamChatName)
	require.NoError(t, err)
	assert.True(t, group.HasMember("new"))

	err = f.svc.EnrollTeamMember(ctx, models.User{ID: "x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAuthorizeRoom(t *testing.T) {
	f := newChatFixture(t, "u1", "u2", "u3")
	ctx := context.Background()
	group, err := f.svc.GetOrCreateTeamChat(ctx, team, "u1")
	require.NoError(t, err)

	assert.NoError(t, f.svc.AuthorizeRoom(ctx, team, "u1", group.ID))
	assert.NoError(t, f.svc.AuthorizeRoom(ctx, team, "u1", models.DirectRoomID("u1", "u2")))

	err = f.svc.AuthorizeRoom(ctx, team, "u3", group.ID)
	assert.True(t, apperr.Is(err, apperr.KindPermission))
	err = f.svc.AuthorizeRoom(ctx, team, "u3", models.DirectRoomID("u1", "u2"))
	assert.True(t, apperr.Is(err, apperr.KindPermission))
	err = f.svc.AuthorizeRoom(ctx, team, "u1", models.TeamRoom(team))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestTypingIndicators(t *testing.T) {
	f := newChatFixture(t, "u1", "u2")
	ctx := context.Background()
	target := models.DirectTarget("u2")

	require.NoError(t, f.svc.SetTyping(ctx, team, "u1", target, true))

	mine, err := f.svc.Typing(ctx, team, "u1", target)
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err := f.svc.Typing(ctx, team, "u2", models.DirectTarget("u1"))
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "U1", theirs[0].SenderName)
	assert.Equal(t, models.TargetDirect, theirs[0].ChatType)

	f.clock.Advance(typing.DefaultTTL + time.Second)
	theirs, err = f.svc.Typing(ctx, team, "u2", models.DirectTarget("u1"))
	require.NoError(t, err)
	assert.Empty(t, theirs)

	err = f.svc.SetTyping(ctx, team, "u1", models.GroupTarget("nope"), true)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSendClearsSenderTyping(t *testing.T) {
	f := newChatFixture(t, "u1", "u2")
	ctx := context.Background()
	target := models.DirectTarget("u2")

	require.NoError(t, f.svc.SetTyping(ctx, team, "u1", target, true))
	_, err := f.svc.Send(ctx, team, "u1", "done typing", target)
	require.NoError(t, err)

	assert.Empty(t, f.typing.Get(target.Room("u1")))
	require.Len(t, f.notes.typing, 2)
	assert.True(t, f.notes.typing[0].Active)
	assert.False(t, f.notes.typing[1].Active)
}

func TestHandleDisconnectClearsTyping(t *testing.T) {
	f := newChatFixture(t, "u1", "u2")
	ctx := context.Background()
	group, err := f.svc.GetOrCreateTeamChat(ctx, team, "u1")
	require.NoError(t, err)

	require.NoError(t, f.svc.SetTyping(ctx, team, "u1", models.DirectTarget("u2"), true))
	require.NoError(t, f.svc.SetTyping(ctx, team, "u1", models.GroupTarget(group.ID), true))

	f.svc.HandleDisconnect(team, "u1")

	assert.Empty(t, f.typing.Get(group.ID))
	inactive := 0
	for _, evt := range f.notes.typing {
		if !evt.Active {
			inactive++
		}
	}
	assert.Equal(t, 2, inactive)
}

func TestStoreFailureIsTransport(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, team, "u1").Return(models.User{}, errors.New("connection refused"))
	store := memstore.New()
	svc := NewChatService(users, store, store, typing.NewStore(typing.DefaultTTL))

	_, err := svc.Send(context.Background(), team, "u1", "hi", models.DirectTarget("u2"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindTransport, apperr.KindOf(err))
	assert.Equal(t, "load sender", apperr.Message(err))
	users.AssertExpectations(t)
}

func TestEditLosingRaceWithDeleteIsValidation(t *testing.T) {
	store := memstore.New()
	messages := new(mocks.MessageRepositoryMock)
	to := "u2"
	messages.On("GetMessage", mock.Anything, team, "m1").
		Return(models.Message{ID: "m1", TeamID: team, SenderID: "u1", RecipientID: &to, Content: "old"}, nil)
	messages.On("UpdateContent", mock.Anything, team, "m1", "new", mock.Anything).
		Return(nil, repositories.ErrMessageDeleted)
	notes := &recorder{}
	svc := NewChatService(store, messages, store, typing.NewStore(typing.DefaultTTL), WithChatNotifier(notes))

	_, err := svc.Edit(context.Background(), team, "u1", "m1", "new")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, notes.edited)
	messages.AssertExpectations(t)
}

func TestConcurrentSendsBroadcastInWriteOrder(t *testing.T) {
	f := newChatFixture(t, "u1", "u2")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender, to := "u1", "u2"
			if i%2 == 1 {
				sender, to = "u2", "u1"
			}
			_, err := f.svc.Send(ctx, team, sender, fmt.Sprintf("msg %d", i), models.DirectTarget(to))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, f.notes.sent, 40)
	for i := 1; i < len(f.notes.sent); i++ {
		assert.Less(t, f.notes.sent[i-1].Seq, f.notes.sent[i].Seq)
	}
}
