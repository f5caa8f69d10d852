package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"collab-service/internal/apperr"
	"collab-service/internal/auth"
	"collab-service/internal/models"
	"collab-service/internal/observability"
)

// TokenValidator resolves a bearer credential to an identity.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (auth.Identity, error)
}

// RoomService is what the socket layer needs from the chat service.
type RoomService interface {
	AuthorizeRoom(ctx context.Context, teamID, userID, room string) error
	SetTyping(ctx context.Context, teamID, userID string, target models.Target, active bool) error
}

// Handler upgrades authenticated requests and routes inbound socket events.
type Handler struct {
	hub       *Hub
	validator TokenValidator
	rooms     RoomService
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, validator TokenValidator, rooms RoomService, logger *zap.Logger) *Handler {
	return &Handler{
		hub:       hub,
		validator: validator,
		rooms:     rooms,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handle authenticates, upgrades and starts the client pumps.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("collab-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := tokenFromRequest(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": apperr.KindAuthentication, "message": "missing token"}})
		return
	}
	identity, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": apperr.KindAuthentication, "message": "invalid token"}})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      identity.UserID,
		TeamID:      identity.TeamID,
		Name:        identity.Name,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          c.ClientIP(),
		RequestID:   requestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(h.hub, conn, info)
	h.hub.Register(client)

	observability.IncWSActive("socket")
	publishConnEvent(ctx, info, "ws_connect", "")
	h.logger.Info("ws connected",
		zap.String("conn_id", info.ConnID),
		zap.String("user_id", info.UserID),
		zap.String("team_id", info.TeamID))

	go client.writePump()
	go func() {
		reason := client.readPump(h.dispatch)
		observability.DecWSActive("socket")
		publishConnEvent(context.Background(), info, "ws_disconnect", reason)
		h.logger.Info("ws disconnected", zap.String("conn_id", info.ConnID), zap.String("reason", reason))
	}()
}

// dispatch handles one inbound event from client.
func (h *Handler) dispatch(client *Client, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	info := client.Info()

	switch evt.Type {
	case EventJoin:
		if evt.Room == "" {
			client.sendError(apperr.KindValidation, "room is required")
			return
		}
		if err := h.rooms.AuthorizeRoom(ctx, info.TeamID, info.UserID, evt.Room); err != nil {
			client.sendError(apperr.KindOf(err), apperr.Message(err))
			return
		}
		h.hub.Join(client, evt.Room)

	case EventLeave:
		h.hub.Leave(client, evt.Room)

	case EventTyping, EventStopTyping:
		if !h.hub.InRoom(client, evt.Room) {
			client.sendError(apperr.KindPermission, "join the room first")
			return
		}
		target, ok := models.TargetForRoom(evt.Room, info.UserID)
		if !ok {
			client.sendError(apperr.KindValidation, "room does not accept typing events")
			return
		}
		if err := h.rooms.SetTyping(ctx, info.TeamID, info.UserID, target, evt.Type == EventTyping); err != nil {
			client.sendError(apperr.KindOf(err), apperr.Message(err))
		}

	case EventPing:
		pong, _ := NewEvent(EventPong, "", nil)
		h.hub.Send(client, pong)

	default:
		client.sendError("unknown_event", "unknown event type: "+evt.Type)
	}
	observability.IncWSEvent("socket", evt.Type)
}
