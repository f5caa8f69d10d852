package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"collab-service/internal/apperr"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// ConnInfo identifies a socket for presence and lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	TeamID      string
	Name        string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Client is one websocket connection. rooms and closed are guarded by the
// hub lock.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	info ConnInfo

	rooms  map[string]struct{}
	closed bool
	send   chan []byte
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		info:  info,
		rooms: make(map[string]struct{}),
		send:  make(chan []byte, sendBufSize),
	}
}

// Info returns the connection identity.
func (c *Client) Info() ConnInfo { return c.info }

// readPump decodes inbound frames and hands them to dispatch until the
// connection fails. It unregisters the client on exit.
func (c *Client) readPump(dispatch func(*Client, Event)) string {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Warn("ws read error", zap.String("conn_id", c.info.ConnID), zap.Error(err))
			}
			return err.Error()
		}
		// any inbound frame proves liveness
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			c.sendError("invalid_payload", "frame is not a valid event")
			continue
		}
		dispatch(c, evt)
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("ws write error", zap.String("conn_id", c.info.ConnID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(code apperr.Kind, message string) {
	evt, err := NewEvent(EventError, "", ErrorPayload{Code: string(code), Message: message})
	if err != nil {
		return
	}
	c.hub.Send(c, evt)
}
