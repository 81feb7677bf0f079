package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/tillpoint/pos-api/internal/auth"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/enum"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Origins are not checked: every connection must present a valid token.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// SessionValidator confirms the token's session is still open.
// Satisfied by *service.StaffService.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (database.StaffSession, error)
}

// Client is one subscriber connection on a single topic.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	topic string
	send  chan []byte
}

// readLoop discards inbound frames and keeps the read deadline alive on
// pongs. It returns when the peer goes away, then leaves the hub.
func (c *Client) readLoop() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.hub.logger.WithError(err).WithField("topic", c.topic).Warn("websocket read error")
		}
		return
	}
}

// writeLoop drains send onto the connection, batching whatever is queued
// into one frame, and pings the peer between events.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeBatch(message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// writeBatch writes first plus every message already queued, newline
// separated.
func (c *Client) writeBatch(first []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	w.Write(first)
	for queued := len(c.send); queued > 0; queued-- {
		w.Write([]byte{'\n'})
		w.Write(<-c.send)
	}
	return w.Close()
}

// canSubscribe reports whether role may listen on topic. Staff activity is
// limited to supervisors and above.
func canSubscribe(role, topic string) bool {
	if topic != enum.TopicStaff {
		return true
	}
	switch role {
	case enum.StaffRoleSupervisor, enum.StaffRoleManager, enum.StaffRoleAdmin:
		return true
	}
	return false
}

// ServeWS upgrades GET /ws/{topic}?token=JWT after checking the token, its
// session and the caller's access to topic.
func ServeWS(hub *Hub, jwtSecret string, sessions SessionValidator, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	session, err := sessions.ValidateSession(r.Context(), claims.SessionID)
	if err != nil || session.StaffID != claims.StaffID {
		http.Error(w, "session expired or revoked", http.StatusUnauthorized)
		return
	}

	topic := chi.URLParam(r, "topic")
	if !Topics[topic] {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}
	if !canSubscribe(claims.Role, topic) {
		http.Error(w, "topic access denied", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:   hub,
		conn:  conn,
		topic: topic,
		send:  make(chan []byte, sendBuffer),
	}
	if !hub.join(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writeLoop()
	go client.readLoop()
}
