package services

import (
	"context"
	"sync"
	"time"

	"collab-service/internal/models"
	"collab-service/internal/telemetry"
)

type readEvent struct {
	Room     string
	ReaderID string
	IDs      []string
}

type typingEvent struct {
	Indicator models.TypingIndicator
	Active    bool
}

// recorder captures every notification in call order.
type recorder struct {
	mu      sync.Mutex
	sent    []models.Message
	edited  []models.Message
	deleted []models.Message
	read    []readEvent
	typing  []typingEvent
	queue   []models.QueueChange
}

func (r *recorder) NotifyMessageSent(_ context.Context, msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
}

func (r *recorder) NotifyMessageEdited(_ context.Context, msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edited = append(r.edited, msg)
}

func (r *recorder) NotifyMessageDeleted(_ context.Context, msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, msg)
}

func (r *recorder) NotifyMessagesRead(_ context.Context, _ string, room, readerID string, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.read = append(r.read, readEvent{Room: room, ReaderID: readerID, IDs: ids})
}

func (r *recorder) NotifyTyping(_ context.Context, indicator models.TypingIndicator, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing = append(r.typing, typingEvent{Indicator: indicator, Active: active})
}

func (r *recorder) NotifyQueueChanged(_ context.Context, change models.QueueChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, change)
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []telemetry.Entry
}

func (a *auditRecorder) Record(_ context.Context, entry telemetry.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
