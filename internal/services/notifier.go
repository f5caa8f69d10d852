package services

import (
	"context"

	"collab-service/internal/models"
	"collab-service/internal/telemetry"
)

// Notifier receives committed changes for real-time fan-out. Calls happen
// after the durable write succeeds; implementations must not block.
type Notifier interface {
	NotifyMessageSent(ctx context.Context, msg models.Message)
	NotifyMessageEdited(ctx context.Context, msg models.Message)
	NotifyMessageDeleted(ctx context.Context, msg models.Message)
	NotifyMessagesRead(ctx context.Context, teamID, room, readerID string, messageIDs []string)
	NotifyTyping(ctx context.Context, indicator models.TypingIndicator, active bool)
	NotifyQueueChanged(ctx context.Context, change models.QueueChange)
}

type nopNotifier struct{}

func (nopNotifier) NotifyMessageSent(context.Context, models.Message) {}
func (nopNotifier) NotifyMessageEdited(context.Context, models.Message) {}
func (nopNotifier) NotifyMessageDeleted(context.Context, models.Message) {}
func (nopNotifier) NotifyMessagesRead(context.Context, string, string, string, []string) {}
func (nopNotifier) NotifyTyping(context.Context, models.TypingIndicator, bool) {}
func (nopNotifier) NotifyQueueChanged(context.Context, models.QueueChange) {}

// Auditor records audit entries. *telemetry.AuditEmitter satisfies it.
type Auditor interface {
	Record(ctx context.Context, entry telemetry.Entry)
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, telemetry.Entry) {}
