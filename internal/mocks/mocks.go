package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collab-service/internal/models"
	"collab-service/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, teamID string, userID string) (models.User, error) {
	args := m.Called(ctx, teamID, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UpsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) message(args mock.Arguments) (models.Message, error) {
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) messages(args mock.Arguments) ([]models.Message, error) {
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	return m.message(m.Called(ctx, msg))
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, teamID string, messageID string) (models.Message, error) {
	return m.message(m.Called(ctx, teamID, messageID))
}

func (m *MessageRepositoryMock) ListDirectMessages(ctx context.Context, teamID string, userA string, userB string, limit int) ([]models.Message, error) {
	return m.messages(m.Called(ctx, teamID, userA, userB, limit))
}

func (m *MessageRepositoryMock) ListGroupMessages(ctx context.Context, teamID string, groupID string, limit int) ([]models.Message, error) {
	return m.messages(m.Called(ctx, teamID, groupID, limit))
}

func (m *MessageRepositoryMock) UpdateContent(ctx context.Context, teamID string, messageID string, content string, editedAt time.Time) (models.Message, error) {
	return m.message(m.Called(ctx, teamID, messageID, content, editedAt))
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, teamID string, messageID string, deletedAt time.Time) (models.Message, error) {
	return m.message(m.Called(ctx, teamID, messageID, deletedAt))
}

func (m *MessageRepositoryMock) AddReader(ctx context.Context, teamID string, messageID string, userID string) (bool, error) {
	args := m.Called(ctx, teamID, messageID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) MarkChatRead(ctx context.Context, teamID string, target models.Target, userID string) ([]string, error) {
	args := m.Called(ctx, teamID, target, userID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) CountUnread(ctx context.Context, teamID string, userID string, groupIDs []string) ([]models.UnreadCount, error) {
	args := m.Called(ctx, teamID, userID, groupIDs)
	var counts []models.UnreadCount
	if val := args.Get(0); val != nil {
		counts = val.([]models.UnreadCount)
	}
	return counts, args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) group(args mock.Arguments) (models.ChatGroup, error) {
	var group models.ChatGroup
	if val := args.Get(0); val != nil {
		group = val.(models.ChatGroup)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, group models.ChatGroup) (models.ChatGroup, error) {
	return m.group(m.Called(ctx, group))
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, teamID string, groupID string) (models.ChatGroup, error) {
	return m.group(m.Called(ctx, teamID, groupID))
}

func (m *GroupRepositoryMock) FindGroupByName(ctx context.Context, teamID string, name string) (models.ChatGroup, error) {
	return m.group(m.Called(ctx, teamID, name))
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, teamID string, groupID string, userID string) (models.ChatGroup, error) {
	return m.group(m.Called(ctx, teamID, groupID, userID))
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, teamID string, userID string) ([]models.ChatGroup, error) {
	args := m.Called(ctx, teamID, userID)
	var groups []models.ChatGroup
	if val := args.Get(0); val != nil {
		groups = val.([]models.ChatGroup)
	}
	return groups, args.Error(1)
}

type ClaimRepositoryMock struct {
	mock.Mock
}

func (m *ClaimRepositoryMock) AddQueuedItems(ctx context.Context, items []models.QueuedItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *ClaimRepositoryMock) CountQueued(ctx context.Context, teamID string) (int, error) {
	args := m.Called(ctx, teamID)
	return args.Int(0), args.Error(1)
}

func (m *ClaimRepositoryMock) ListQueued(ctx context.Context, teamID string, limit int) ([]models.QueuedItem, error) {
	args := m.Called(ctx, teamID, limit)
	var items []models.QueuedItem
	if val := args.Get(0); val != nil {
		items = val.([]models.QueuedItem)
	}
	return items, args.Error(1)
}

func (m *ClaimRepositoryMock) ClaimQueued(ctx context.Context, teamID string, limit int, claimant models.Claimant, claimedAt time.Time, cooldownUntil time.Time) ([]models.ClaimedItem, error) {
	args := m.Called(ctx, teamID, limit, claimant, claimedAt, cooldownUntil)
	var items []models.ClaimedItem
	if val := args.Get(0); val != nil {
		items = val.([]models.ClaimedItem)
	}
	return items, args.Error(1)
}

func (m *ClaimRepositoryMock) ListClaimed(ctx context.Context, teamID string, userID string) ([]models.ClaimedItem, error) {
	args := m.Called(ctx, teamID, userID)
	var items []models.ClaimedItem
	if val := args.Get(0); val != nil {
		items = val.([]models.ClaimedItem)
	}
	return items, args.Error(1)
}

func (m *ClaimRepositoryMock) LatestCooldown(ctx context.Context, teamID string, userID string) (time.Time, bool, error) {
	args := m.Called(ctx, teamID, userID)
	var until time.Time
	if val := args.Get(0); val != nil {
		until = val.(time.Time)
	}
	return until, args.Bool(1), args.Error(2)
}

func (m *ClaimRepositoryMock) ReleaseClaimed(ctx context.Context, teamID string, userID string, ids []string) (int, error) {
	args := m.Called(ctx, teamID, userID, ids)
	return args.Int(0), args.Error(1)
}

func (m *ClaimRepositoryMock) ListHistory(ctx context.Context, teamID string, limit int) ([]models.HistoryEntry, error) {
	args := m.Called(ctx, teamID, limit)
	var entries []models.HistoryEntry
	if val := args.Get(0); val != nil {
		entries = val.([]models.HistoryEntry)
	}
	return entries, args.Error(1)
}

func (m *ClaimRepositoryMock) RemoveClaimedFromQueue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type SettingsRepositoryMock struct {
	mock.Mock
}

func (m *SettingsRepositoryMock) GetOrCreateSettings(ctx context.Context, defaults models.ClaimSettings) (models.ClaimSettings, error) {
	args := m.Called(ctx, defaults)
	var settings models.ClaimSettings
	if val := args.Get(0); val != nil {
		settings = val.(models.ClaimSettings)
	}
	return settings, args.Error(1)
}

func (m *SettingsRepositoryMock) UpsertSettings(ctx context.Context, settings models.ClaimSettings) (models.ClaimSettings, error) {
	args := m.Called(ctx, settings)
	var out models.ClaimSettings
	if val := args.Get(0); val != nil {
		out = val.(models.ClaimSettings)
	}
	return out, args.Error(1)
}

var (
	_ repositories.UserRepository     = (*UserRepositoryMock)(nil)
	_ repositories.MessageRepository  = (*MessageRepositoryMock)(nil)
	_ repositories.GroupRepository    = (*GroupRepositoryMock)(nil)
	_ repositories.ClaimRepository    = (*ClaimRepositoryMock)(nil)
	_ repositories.SettingsRepository = (*SettingsRepositoryMock)(nil)
)
