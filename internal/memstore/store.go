// Package memstore keeps every repository in process memory. It backs the
// "memory" store driver and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"collab-service/internal/models"
	"collab-service/internal/repositories"
)

// Store implements the repository interfaces behind one mutex.
type Store struct {
	mu sync.Mutex

	seq      int64
	users    map[string]models.User
	messages []models.Message
	groups   map[string]models.ChatGroup
	queued   []models.QueuedItem
	claimed  []models.ClaimedItem
	history  []models.HistoryEntry
	settings map[string]models.ClaimSettings

	// keyed by team and user; release leaves it in place
	cooldowns map[string]time.Time
}

var (
	_ repositories.UserRepository     = (*Store)(nil)
	_ repositories.MessageRepository  = (*Store)(nil)
	_ repositories.GroupRepository    = (*Store)(nil)
	_ repositories.ClaimRepository    = (*Store)(nil)
	_ repositories.SettingsRepository = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]models.User),
		groups:   make(map[string]models.ChatGroup),
		settings: make(map[string]models.ClaimSettings),

		cooldowns: make(map[string]time.Time),
	}
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// users

func (s *Store) GetUser(_ context.Context, teamID string, userID string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok || user.TeamID != teamID {
		return models.User{}, repositories.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) UpsertUser(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

// messages

func cloneMessage(m models.Message) models.Message {
	m.ReadBy = append(pq.StringArray{}, m.ReadBy...)
	return m
}

func (s *Store) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Seq = s.nextSeq()
	msg = cloneMessage(msg)
	s.messages = append(s.messages, msg)
	return cloneMessage(msg), nil
}

func (s *Store) findMessage(teamID, messageID string) int {
	for i, m := range s.messages {
		if m.ID == messageID && m.TeamID == teamID {
			return i
		}
	}
	return -1
}

func (s *Store) GetMessage(_ context.Context, teamID string, messageID string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findMessage(teamID, messageID)
	if i < 0 {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	return cloneMessage(s.messages[i]), nil
}

// recent keeps the newest limit messages matching keep, oldest first.
func (s *Store) recent(limit int, keep func(models.Message) bool) []models.Message {
	var out []models.Message
	for _, m := range s.messages {
		if keep(m) {
			out = append(out, cloneMessage(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (s *Store) ListDirectMessages(_ context.Context, teamID string, userA string, userB string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent(limit, func(m models.Message) bool {
		if m.TeamID != teamID || m.RecipientID == nil {
			return false
		}
		r := *m.RecipientID
		return (m.SenderID == userA && r == userB) || (m.SenderID == userB && r == userA)
	}), nil
}

func (s *Store) ListGroupMessages(_ context.Context, teamID string, groupID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent(limit, func(m models.Message) bool {
		return m.TeamID == teamID && m.GroupID != nil && *m.GroupID == groupID
	}), nil
}

func (s *Store) UpdateContent(_ context.Context, teamID string, messageID string, content string, editedAt time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findMessage(teamID, messageID)
	if i < 0 {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	if s.messages[i].Deleted {
		return models.Message{}, repositories.ErrMessageDeleted
	}
	s.messages[i].Content = content
	s.messages[i].EditedAt = &editedAt
	return cloneMessage(s.messages[i]), nil
}

func (s *Store) SoftDelete(_ context.Context, teamID string, messageID string, deletedAt time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findMessage(teamID, messageID)
	if i < 0 {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	s.messages[i].Deleted = true
	if s.messages[i].DeletedAt == nil {
		s.messages[i].DeletedAt = &deletedAt
	}
	return cloneMessage(s.messages[i]), nil
}

func (s *Store) AddReader(_ context.Context, teamID string, messageID string, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findMessage(teamID, messageID)
	if i < 0 || s.messages[i].ReadByUser(userID) {
		return false, nil
	}
	s.messages[i].ReadBy = append(s.messages[i].ReadBy, userID)
	return true, nil
}

// unreadFor reports whether m is an unread message addressed to userID.
func unreadFor(m models.Message, userID string) bool {
	return !m.Deleted && m.SenderID != userID && !m.ReadByUser(userID)
}

func (s *Store) MarkChatRead(_ context.Context, teamID string, target models.Target, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for i := range s.messages {
		m := &s.messages[i]
		if m.TeamID != teamID || !unreadFor(*m, userID) {
			continue
		}
		if target.IsGroup() {
			if m.GroupID == nil || *m.GroupID != target.ID() {
				continue
			}
		} else if m.RecipientID == nil || *m.RecipientID != userID || m.SenderID != target.ID() {
			continue
		}
		m.ReadBy = append(m.ReadBy, userID)
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *Store) CountUnread(_ context.Context, teamID string, userID string, groupIDs []string) ([]models.UnreadCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inGroup := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		inGroup[id] = true
	}
	direct := map[string]int{}
	group := map[string]int{}
	for _, m := range s.messages {
		if m.TeamID != teamID || !unreadFor(m, userID) {
			continue
		}
		switch {
		case m.RecipientID != nil && *m.RecipientID == userID:
			direct[m.SenderID]++
		case m.GroupID != nil && inGroup[*m.GroupID]:
			group[*m.GroupID]++
		}
	}
	counts := append(sortedCounts(direct, models.TargetDirect), sortedCounts(group, models.TargetGroup)...)
	return counts, nil
}

func sortedCounts(byChat map[string]int, kind models.TargetKind) []models.UnreadCount {
	out := make([]models.UnreadCount, 0, len(byChat))
	for id, n := range byChat {
		out = append(out, models.UnreadCount{ChatID: id, Kind: kind, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

// groups

func cloneGroup(g models.ChatGroup) models.ChatGroup {
	g.Members = append(pq.StringArray{}, g.Members...)
	return g
}

func (s *Store) CreateGroup(_ context.Context, group models.ChatGroup) (models.ChatGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.TeamID == group.TeamID && g.Name == group.Name {
			return models.ChatGroup{}, repositories.ErrDuplicate
		}
	}
	s.groups[group.ID] = cloneGroup(group)
	return cloneGroup(group), nil
}

func (s *Store) GetGroup(_ context.Context, teamID string, groupID string) (models.ChatGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok || g.TeamID != teamID {
		return models.ChatGroup{}, repositories.ErrGroupNotFound
	}
	return cloneGroup(g), nil
}

func (s *Store) FindGroupByName(_ context.Context, teamID string, name string) (models.ChatGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.TeamID == teamID && g.Name == name {
			return cloneGroup(g), nil
		}
	}
	return models.ChatGroup{}, repositories.ErrGroupNotFound
}

func (s *Store) AddMember(_ context.Context, teamID string, groupID string, userID string) (models.ChatGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok || g.TeamID != teamID {
		return models.ChatGroup{}, repositories.ErrGroupNotFound
	}
	if !g.HasMember(userID) {
		g.Members = append(g.Members, userID)
		s.groups[groupID] = g
	}
	return cloneGroup(g), nil
}

func (s *Store) ListGroupsForUser(_ context.Context, teamID string, userID string) ([]models.ChatGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatGroup
	for _, g := range s.groups {
		if g.TeamID == teamID && g.HasMember(userID) {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// claims

func (s *Store) AddQueuedItems(_ context.Context, items []models.QueuedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		item.Seq = s.nextSeq()
		s.queued = append(s.queued, item)
	}
	return nil
}

func (s *Store) CountQueued(_ context.Context, teamID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.queued {
		if item.TeamID == teamID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListQueued(_ context.Context, teamID string, limit int) ([]models.QueuedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueuedItem
	for _, item := range s.queued {
		if item.TeamID != teamID {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

// ClaimQueued mirrors the Postgres transaction: claimed and history records
// are appended before the queue rows are dropped, all under the store lock.
func (s *Store) ClaimQueued(_ context.Context, teamID string, limit int, claimant models.Claimant, claimedAt time.Time, cooldownUntil time.Time) ([]models.ClaimedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]bool)
	var claimed []models.ClaimedItem
	for _, item := range s.queued {
		if len(claimed) == limit {
			break
		}
		if item.TeamID != teamID {
			continue
		}
		c := models.ClaimedItem{
			ID:            uuid.NewString(),
			TeamID:        teamID,
			SourceItemID:  item.ID,
			Content:       item.Content,
			ClaimedBy:     claimant.UserID,
			ClaimedByName: claimant.Name,
			ClaimedAt:     claimedAt,
			CooldownUntil: cooldownUntil,
		}
		s.claimed = append(s.claimed, c)
		s.history = append(s.history, models.HistoryEntry{
			ID:              uuid.NewString(),
			TeamID:          teamID,
			SourceItemID:    item.ID,
			Content:         item.Content,
			ClaimedBy:       claimant.Name,
			ClaimedByUserID: claimant.UserID,
			ClaimedAt:       claimedAt,
		})
		claimed = append(claimed, c)
		taken[item.ID] = true
	}

	if len(taken) > 0 {
		s.queued = dropQueued(s.queued, func(item models.QueuedItem) bool { return taken[item.ID] })
		key := cooldownKey(teamID, claimant.UserID)
		if cooldownUntil.After(s.cooldowns[key]) {
			s.cooldowns[key] = cooldownUntil
		}
	}
	return claimed, nil
}

func dropQueued(items []models.QueuedItem, drop func(models.QueuedItem) bool) []models.QueuedItem {
	kept := items[:0]
	for _, item := range items {
		if !drop(item) {
			kept = append(kept, item)
		}
	}
	return kept
}

func (s *Store) ListClaimed(_ context.Context, teamID string, userID string) ([]models.ClaimedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ClaimedItem
	for _, c := range s.claimed {
		if c.TeamID == teamID && c.ClaimedBy == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func cooldownKey(teamID, userID string) string { return teamID + "/" + userID }

func (s *Store) LatestCooldown(_ context.Context, teamID string, userID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.cooldowns[cooldownKey(teamID, userID)]
	return until, ok, nil
}

func (s *Store) ReleaseClaimed(_ context.Context, teamID string, userID string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	kept := s.claimed[:0]
	released := 0
	for _, c := range s.claimed {
		if c.TeamID == teamID && c.ClaimedBy == userID && (len(ids) == 0 || wanted[c.ID]) {
			released++
			continue
		}
		kept = append(kept, c)
	}
	s.claimed = kept
	return released, nil
}

func (s *Store) ListHistory(_ context.Context, teamID string, limit int) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HistoryEntry
	for i := len(s.history) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if s.history[i].TeamID == teamID {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

func (s *Store) RemoveClaimedFromQueue(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded := make(map[string]bool, len(s.history))
	for _, h := range s.history {
		recorded[h.TeamID+"/"+h.SourceItemID] = true
	}
	before := len(s.queued)
	s.queued = dropQueued(s.queued, func(item models.QueuedItem) bool { return recorded[item.TeamID+"/"+item.ID] })
	return before - len(s.queued), nil
}

// InjectQueued places an item in the queue as-is. Used to simulate a crash
// between recording a claim and removing its queue row.
func (s *Store) InjectQueued(item models.QueuedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.Seq = s.nextSeq()
	s.queued = append(s.queued, item)
}

// settings

func (s *Store) GetOrCreateSettings(_ context.Context, defaults models.ClaimSettings) (models.ClaimSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.settings[defaults.TeamID]; ok {
		return existing, nil
	}
	s.settings[defaults.TeamID] = defaults
	return defaults, nil
}

func (s *Store) UpsertSettings(_ context.Context, settings models.ClaimSettings) (models.ClaimSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.TeamID] = settings
	return settings, nil
}
