package ws

import (
	"context"

	"go.uber.org/zap"

	"collab-service/internal/models"
	"collab-service/internal/observability"
)

// HubNotifier fans service events out to sockets and mirrors them on the broker.
type HubNotifier struct {
	hub    *Hub
	logger *zap.Logger
}

func NewHubNotifier(hub *Hub, logger *zap.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

func (n *HubNotifier) event(eventType, room string, payload any) *Event {
	evt, err := NewEvent(eventType, room, payload)
	if err != nil {
		n.logger.Error("ws notifier marshal failed", zap.String("type", eventType), zap.Error(err))
		return nil
	}
	return evt
}

func (n *HubNotifier) publish(ctx context.Context, routingKey, name, teamID string, payload any) {
	if err := observability.PublishEvent(ctx, routingKey, observability.EventEnvelope{
		EventType: "chat",
		EventName: name,
		TeamID:    teamID,
		Payload:   payload,
	}); err != nil {
		n.logger.Warn("event publish failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

// NotifyMessageSent reaches the room and, for direct messages, every client
// of the recipient so badges update even when the chat is not open.
func (n *HubNotifier) NotifyMessageSent(ctx context.Context, msg models.Message) {
	room := msg.Room()
	evt := n.event(EventMessageSent, room, msg)
	if evt == nil {
		return
	}
	if msg.RecipientID != nil {
		n.hub.BroadcastWithUsers(room, evt, *msg.RecipientID)
	} else {
		n.hub.Broadcast(room, evt, nil)
	}
	n.publish(ctx, "chat.message_sent", EventMessageSent, msg.TeamID, map[string]string{"id": msg.ID, "room": room, "sender_id": msg.SenderID})
}

func (n *HubNotifier) NotifyMessageEdited(ctx context.Context, msg models.Message) {
	room := msg.Room()
	if evt := n.event(EventMessageEdited, room, msg); evt != nil {
		n.hub.Broadcast(room, evt, nil)
	}
	n.publish(ctx, "chat.message_edited", EventMessageEdited, msg.TeamID, map[string]string{"id": msg.ID, "room": room})
}

func (n *HubNotifier) NotifyMessageDeleted(ctx context.Context, msg models.Message) {
	room := msg.Room()
	if evt := n.event(EventMessageDeleted, room, MessageDeletedPayload{ID: msg.ID, Room: room, DeletedAt: msg.DeletedAt}); evt != nil {
		n.hub.Broadcast(room, evt, nil)
	}
	n.publish(ctx, "chat.message_deleted", EventMessageDeleted, msg.TeamID, map[string]string{"id": msg.ID, "room": room})
}

func (n *HubNotifier) NotifyMessagesRead(ctx context.Context, teamID, room, readerID string, messageIDs []string) {
	if evt := n.event(EventMessageRead, room, MessageReadPayload{Room: room, ReaderID: readerID, MessageIDs: messageIDs}); evt != nil {
		n.hub.Broadcast(room, evt, nil)
	}
}

func (n *HubNotifier) NotifyTyping(_ context.Context, indicator models.TypingIndicator, active bool) {
	room := indicator.ChatID
	evt := n.event(EventTyping, room, TypingPayload{
		Room:       room,
		UserID:     indicator.UserID,
		SenderName: indicator.SenderName,
		ChatType:   string(indicator.ChatType),
		Active:     active,
	})
	if evt != nil {
		n.hub.Broadcast(room, evt, nil)
	}
}

func (n *HubNotifier) NotifyQueueChanged(ctx context.Context, change models.QueueChange) {
	if evt := n.event(EventQueueChanged, models.TeamRoom(change.TeamID), change); evt != nil {
		n.hub.BroadcastTeam(change.TeamID, evt)
	}
	n.publish(ctx, "claims.queue_changed", EventQueueChanged, change.TeamID, change)
}
