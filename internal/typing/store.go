// Package typing holds ephemeral "is typing" indicators in memory.
package typing

import (
	"context"
	"sort"
	"sync"
	"time"

	"collab-service/internal/models"
)

// DefaultTTL is how long an indicator stays visible without a refresh.
const DefaultTTL = 8 * time.Second

// Store keeps the latest indicator per (chat, user).
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	chats map[string]map[string]models.TypingIndicator
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store whose entries expire after ttl. A non-positive
// ttl selects DefaultTTL.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		ttl:   ttl,
		now:   time.Now,
		chats: make(map[string]map[string]models.TypingIndicator),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured expiry.
func (s *Store) TTL() time.Duration { return s.ttl }

// Set records or refreshes the user's indicator for chatID.
func (s *Store) Set(userID, chatID string, chatType models.TargetKind, senderName string) models.TypingIndicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	indicator := models.TypingIndicator{
		UserID:     userID,
		ChatID:     chatID,
		ChatType:   chatType,
		SenderName: senderName,
		Timestamp:  s.now(),
	}
	users, ok := s.chats[chatID]
	if !ok {
		users = make(map[string]models.TypingIndicator)
		s.chats[chatID] = users
	}
	users[userID] = indicator
	return indicator
}

// Clear removes the user's indicator for chatID. It reports whether one existed.
func (s *Store) Clear(userID, chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.chats[chatID]
	if !ok {
		return false
	}
	_, existed := users[userID]
	delete(users, userID)
	if len(users) == 0 {
		delete(s.chats, chatID)
	}
	return existed
}

// ClearUser removes every indicator of the user and returns the cleared
// entries.
func (s *Store) ClearUser(userID string) []models.TypingIndicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cleared []models.TypingIndicator
	for chatID, users := range s.chats {
		if indicator, ok := users[userID]; ok {
			cleared = append(cleared, indicator)
			delete(users, userID)
		}
		if len(users) == 0 {
			delete(s.chats, chatID)
		}
	}
	return cleared
}

// Get returns live indicators for chatID, oldest first.
func (s *Store) Get(chatID string) []models.TypingIndicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	out := []models.TypingIndicator{}
	for _, indicator := range s.chats[chatID] {
		if indicator.Timestamp.After(cutoff) {
			out = append(out, indicator)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Sweep drops expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for chatID, users := range s.chats {
		for userID, indicator := range users {
			if !indicator.Timestamp.After(cutoff) {
				delete(users, userID)
				removed++
			}
		}
		if len(users) == 0 {
			delete(s.chats, chatID)
		}
	}
	return removed
}

// Run sweeps on every interval tick until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
