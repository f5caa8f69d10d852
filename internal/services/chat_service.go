package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
	"collab-service/internal/observability"
	"collab-service/internal/repositories"
	"collab-service/internal/typing"
)

const (
	DefaultMessageListLimit = 100
	MaxMessageLength        = 4000
)

// ChatService owns message, group and typing semantics for a team.
type ChatService struct {
	users     repositories.UserRepository
	messages  repositories.MessageRepository
	groups    repositories.GroupRepository
	typing    *typing.Store
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
	listLimit int
	rooms     roomLocks
}

// ChatOption configures a ChatService.
type ChatOption func(*ChatService)

func WithChatNotifier(n Notifier) ChatOption {
	return func(s *ChatService) { s.notifier = n }
}

func WithChatLogger(l *zap.Logger) ChatOption {
	return func(s *ChatService) { s.logger = l }
}

func WithChatClock(now func() time.Time) ChatOption {
	return func(s *ChatService) { s.now = now }
}

// WithListLimit caps how many messages List returns.
func WithListLimit(n int) ChatOption {
	return func(s *ChatService) {
		if n > 0 {
			s.listLimit = n
		}
	}
}

func NewChatService(users repositories.UserRepository, messages repositories.MessageRepository, groups repositories.GroupRepository, typingStore *typing.Store, opts ...ChatOption) *ChatService {
	s := &ChatService{
		users:     users,
		messages:  messages,
		groups:    groups,
		typing:    typingStore,
		notifier:  nopNotifier{},
		logger:    zap.NewNop(),
		now:       time.Now,
		listLimit: DefaultMessageListLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Validation("content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", apperr.Validation("content is too long")
	}
	return content, nil
}

// checkAccess verifies that userID may read and write in the chat named by target.
func (s *ChatService) checkAccess(ctx context.Context, teamID, userID string, target models.Target) (*models.ChatGroup, error) {
	if !target.Valid() {
		return nil, apperr.Validation(models.ErrInvalidTarget.Error())
	}
	if target.IsGroup() {
		group, err := s.groups.GetGroup(ctx, teamID, target.ID())
		if err != nil {
			return nil, repoError(err, "load group")
		}
		if !group.HasMember(userID) {
			return nil, apperr.Permission("not a member of this group")
		}
		return &group, nil
	}
	if target.ID() == userID {
		return nil, apperr.Validation("cannot message yourself")
	}
	if _, err := s.users.GetUser(ctx, teamID, target.ID()); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperr.NotFound("recipient not found")
		}
		return nil, repoError(err, "load recipient")
	}
	return nil, nil
}

// Send persists a message and notifies the room once the write succeeded.
func (s *ChatService) Send(ctx context.Context, teamID, senderID, content string, target models.Target) (models.Message, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return models.Message{}, err
	}
	if !target.Valid() {
		return models.Message{}, apperr.Validation(models.ErrInvalidTarget.Error())
	}

	sender, err := s.users.GetUser(ctx, teamID, senderID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.Message{}, apperr.NotFound("sender not found")
		}
		return models.Message{}, repoError(err, "load sender")
	}
	if _, err := s.checkAccess(ctx, teamID, senderID, target); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		ID:           uuid.NewString(),
		TeamID:       teamID,
		SenderID:     senderID,
		SenderName:   sender.Name,
		SenderAvatar: sender.AvatarURL,
		Content:      content,
		CreatedAt:    s.now().UTC(),
		ReadBy:       pq.StringArray{},
	}
	id := target.ID()
	if target.IsGroup() {
		msg.GroupID = &id
	} else {
		msg.RecipientID = &id
	}

	unlock := s.rooms.lock(msg.Room())
	stored, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		unlock()
		return models.Message{}, repoError(err, "store message")
	}
	s.notifier.NotifyMessageSent(ctx, stored)
	unlock()
	observability.IncMessageSent(string(target.Kind()))

	s.clearTyping(ctx, senderID, stored.Room(), target.Kind())
	return stored, nil
}

// List returns the latest messages of a chat, oldest first. Deleted
// messages are kept as tombstones with their content removed.
func (s *ChatService) List(ctx context.Context, teamID, requesterID string, target models.Target) ([]models.Message, error) {
	if _, err := s.checkAccess(ctx, teamID, requesterID, target); err != nil {
		return nil, err
	}

	var (
		msgs []models.Message
		err  error
	)
	if target.IsGroup() {
		msgs, err = s.messages.ListGroupMessages(ctx, teamID, target.ID(), s.listLimit)
	} else {
		msgs, err = s.messages.ListDirectMessages(ctx, teamID, requesterID, target.ID(), s.listLimit)
	}
	if err != nil {
		return nil, repoError(err, "list messages")
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	for i := range msgs {
		if msgs[i].Deleted {
			msgs[i].Content = ""
		}
	}
	return msgs, nil
}

// Edit replaces the content of the requester's own message.
func (s *ChatService) Edit(ctx context.Context, teamID, requesterID, messageID, content string) (models.Message, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return models.Message{}, err
	}
	msg, err := s.messages.GetMessage(ctx, teamID, messageID)
	if err != nil {
		return models.Message{}, repoError(err, "load message")
	}
	if msg.SenderID != requesterID {
		return models.Message{}, apperr.Permission("only the sender can edit a message")
	}
	if msg.Deleted {
		return models.Message{}, apperr.Validation("cannot edit a deleted message")
	}

	unlock := s.rooms.lock(msg.Room())
	defer unlock()
	updated, err := s.messages.UpdateContent(ctx, teamID, messageID, content, s.now().UTC())
	if err != nil {
		return models.Message{}, repoError(err, "update message")
	}
	s.notifier.NotifyMessageEdited(ctx, updated)
	return updated, nil
}

// Delete soft-deletes the requester's own message. Deleting again is a no-op.
func (s *ChatService) Delete(ctx context.Context, teamID, requesterID, messageID string) (models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, teamID, messageID)
	if err != nil {
		return models.Message{}, repoError(err, "load message")
	}
	if msg.SenderID != requesterID {
		return models.Message{}, apperr.Permission("only the sender can delete a message")
	}
	if msg.Deleted {
		msg.Content = ""
		return msg, nil
	}

	unlock := s.rooms.lock(msg.Room())
	defer unlock()
	deleted, err := s.messages.SoftDelete(ctx, teamID, messageID, s.now().UTC())
	if err != nil {
		return models.Message{}, repoError(err, "delete message")
	}
	deleted.Content = ""
	s.notifier.NotifyMessageDeleted(ctx, deleted)
	return deleted, nil
}

// MarkRead adds the requester to the message's readers. It reports whether
// the reader set changed; only a change is broadcast.
func (s *ChatService) MarkRead(ctx context.Context, teamID, requesterID, messageID string) (bool, error) {
	msg, err := s.messages.GetMessage(ctx, teamID, messageID)
	if err != nil {
		return false, repoError(err, "load message")
	}
	if msg.GroupID != nil {
		if _, err := s.checkAccess(ctx, teamID, requesterID, msg.Target()); err != nil {
			return false, err
		}
	} else if msg.SenderID != requesterID && (msg.RecipientID == nil || *msg.RecipientID != requesterID) {
		return false, apperr.Permission("message is not addressed to you")
	}
	if msg.ReadByUser(requesterID) {
		return false, nil
	}

	changed, err := s.messages.AddReader(ctx, teamID, messageID, requesterID)
	if err != nil {
		return false, repoError(err, "mark read")
	}
	if changed {
		s.notifier.NotifyMessagesRead(ctx, teamID, msg.Room(), requesterID, []string{msg.ID})
	}
	return changed, nil
}

// MarkChatRead marks every unread message of a chat as read by the requester.
func (s *ChatService) MarkChatRead(ctx context.Context, teamID, requesterID string, target models.Target) ([]string, error) {
	if _, err := s.checkAccess(ctx, teamID, requesterID, target); err != nil {
		return nil, err
	}
	ids, err := s.messages.MarkChatRead(ctx, teamID, target, requesterID)
	if err != nil {
		return nil, repoError(err, "mark chat read")
	}
	if len(ids) > 0 {
		s.notifier.NotifyMessagesRead(ctx, teamID, target.Room(requesterID), requesterID, ids)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// UnreadCounts returns per-chat unread totals for the user.
func (s *ChatService) UnreadCounts(ctx context.Context, teamID, userID string) ([]models.UnreadCount, error) {
	groups, err := s.groups.ListGroupsForUser(ctx, teamID, userID)
	if err != nil {
		return nil, repoError(err, "list groups")
	}
	groupIDs := make([]string, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}
	counts, err := s.messages.CountUnread(ctx, teamID, userID, groupIDs)
	if err != nil {
		return nil, repoError(err, "count unread")
	}
	if counts == nil {
		counts = []models.UnreadCount{}
	}
	return counts, nil
}

// GetOrCreateTeamChat returns the team's canonical group, creating it on
// first use and adding the requester as a member.
func (s *ChatService) GetOrCreateTeamChat(ctx context.Context, teamID, requesterID string) (models.ChatGroup, error) {
	group, err := s.groups.FindGroupByName(ctx, teamID, models.TeamChatName)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		group, err = s.groups.CreateGroup(ctx, models.ChatGroup{
			ID:        uuid.NewString(),
			TeamID:    teamID,
			Name:      models.TeamChatName,
			Members:   pq.StringArray{requesterID},
			CreatedAt: s.now().UTC(),
		})
		if errors.Is(err, repositories.ErrDuplicate) {
			// lost the creation race
			group, err = s.groups.FindGroupByName(ctx, teamID, models.TeamChatName)
		}
	}
	if err != nil {
		return models.ChatGroup{}, repoError(err, "load team chat")
	}
	if group.HasMember(requesterID) {
		return group, nil
	}

	group, err = s.groups.AddMember(ctx, teamID, group.ID, requesterID)
	if err != nil {
		return models.ChatGroup{}, repoError(err, "join team chat")
	}
	return group, nil
}

// AddGroupMember lets an existing member add another team user.
func (s *ChatService) AddGroupMember(ctx context.Context, teamID, requesterID, groupID, userID string) (models.ChatGroup, error) {
	if strings.TrimSpace(userID) == "" {
		return models.ChatGroup{}, apperr.Validation("user_id is required")
	}
	group, err := s.groups.GetGroup(ctx, teamID, groupID)
	if err != nil {
		return models.ChatGroup{}, repoError(err, "load group")
	}
	if !group.HasMember(requesterID) {
		return models.ChatGroup{}, apperr.Permission("not a member of this group")
	}
	if group.HasMember(userID) {
		return group, nil
	}
	if _, err := s.users.GetUser(ctx, teamID, userID); err != nil {
		return models.ChatGroup{}, repoError(err, "load user")
	}
	group, err = s.groups.AddMember(ctx, teamID, groupID, userID)
	if err != nil {
		return models.ChatGroup{}, repoError(err, "add member")
	}
	return group, nil
}

// EnrollTeamMember records a freshly created account and puts it in the
// team chat.
func (s *ChatService) EnrollTeamMember(ctx context.Context, user models.User) error {
	if user.ID == "" || user.TeamID == "" {
		return apperr.Validation("user id and team id are required")
	}
	if err := s.users.UpsertUser(ctx, user); err != nil {
		return repoError(err, "store user")
	}
	if _, err := s.GetOrCreateTeamChat(ctx, user.TeamID, user.ID); err != nil {
		return err
	}
	s.logger.Info("team member enrolled", zap.String("team_id", user.TeamID), zap.String("user_id", user.ID))
	return nil
}

// AuthorizeRoom decides whether a socket may join room.
func (s *ChatService) AuthorizeRoom(ctx context.Context, teamID, userID, room string) error {
	if models.IsDirectRoom(room) {
		if _, ok := models.DirectRoomPeer(room, userID); !ok {
			return apperr.Permission("not a participant of this chat")
		}
	}
	target, ok := models.TargetForRoom(room, userID)
	if !ok {
		return apperr.Validation("unknown room")
	}
	_, err := s.checkAccess(ctx, teamID, userID, target)
	return err
}

// SetTyping records or clears the user's typing indicator in a chat.
func (s *ChatService) SetTyping(ctx context.Context, teamID, userID string, target models.Target, active bool) error {
	if _, err := s.checkAccess(ctx, teamID, userID, target); err != nil {
		return err
	}
	room := target.Room(userID)
	if !active {
		s.clearTyping(ctx, userID, room, target.Kind())
		return nil
	}

	user, err := s.users.GetUser(ctx, teamID, userID)
	if err != nil {
		return repoError(err, "load user")
	}
	indicator := s.typing.Set(userID, room, target.Kind(), user.Name)
	s.notifier.NotifyTyping(ctx, indicator, true)
	return nil
}

// Typing returns who else is typing in the chat.
func (s *ChatService) Typing(ctx context.Context, teamID, userID string, target models.Target) ([]models.TypingIndicator, error) {
	if _, err := s.checkAccess(ctx, teamID, userID, target); err != nil {
		return nil, err
	}
	all := s.typing.Get(target.Room(userID))
	others := make([]models.TypingIndicator, 0, len(all))
	for _, indicator := range all {
		if indicator.UserID != userID {
			others = append(others, indicator)
		}
	}
	return others, nil
}

// HandleDisconnect clears every indicator of a user whose last socket closed.
func (s *ChatService) HandleDisconnect(teamID, userID string) {
	for _, indicator := range s.typing.ClearUser(userID) {
		s.notifier.NotifyTyping(context.Background(), indicator, false)
	}
	s.logger.Debug("user disconnected", zap.String("team_id", teamID), zap.String("user_id", userID))
}

func (s *ChatService) clearTyping(ctx context.Context, userID, room string, kind models.TargetKind) {
	if s.typing.Clear(userID, room) {
		s.notifier.NotifyTyping(ctx, models.TypingIndicator{
			UserID:    userID,
			ChatID:    room,
			ChatType:  kind,
			Timestamp: s.now().UTC(),
		}, false)
	}
}
