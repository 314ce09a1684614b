package session

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sevenatma743-beep/streetconnect/internal/infrastructure/realtime"
	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
)

// Hub tracks one live client per user. A user reconnecting from another tab
// or device replaces the previous client, which keeps both the websocket and
// the change-feed subscription exclusive.
type Hub struct {
	deps Deps

	mu      sync.Mutex
	clients map[string]*Client
}

func NewHub(deps Deps) *Hub {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Hub{
		deps:    deps,
		clients: make(map[string]*Client),
	}
}

// Attach registers a connection for userID, displacing any previous client.
func (h *Hub) Attach(userID string, conn *realtime.Connection) *Client {
	client := &Client{
		userID: userID,
		conn:   conn,
		deps:   h.deps,
	}

	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = client
	h.mu.Unlock()

	if prev != nil {
		prev.shutdown(websocket.ClosePolicyViolation, "superseded by a newer connection")
	}
	return client
}

// Detach removes the client if it is still the current one for its user.
func (h *Hub) Detach(client *Client) {
	h.mu.Lock()
	if current, ok := h.clients[client.userID]; ok && current == client {
		delete(h.clients, client.userID)
	}
	h.mu.Unlock()
	client.shutdown(websocket.CloseNormalClosure, "detached")
}

// CloseAll terminates every client; used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown(websocket.CloseGoingAway, "server shutdown")
	}
}

// Client binds a user's websocket connection to their at-most-one open
// conversation session. Session events flow out through the connection.
type Client struct {
	userID string
	conn   *realtime.Connection
	deps   Deps

	mu      sync.Mutex
	session *Session
}

// OpenConversation switches the client to conversationID. Any previously
// open session is closed first, releasing its subscription before the new
// one is acquired.
func (c *Client) OpenConversation(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	prev := c.session
	next := New(c.userID, c.deps, func(ev Event) {
		if err := c.conn.SendJSON(ev); err != nil {
			c.deps.Log.Warn("dropping session event",
				zap.String("user_id", c.userID),
				zap.Error(err))
		}
	})
	c.session = next
	c.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	if err := next.Open(ctx, conversationID); err != nil {
		c.mu.Lock()
		if c.session == next {
			c.session = nil
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// Send forwards text to the open session and returns the confirmed message.
func (c *Client) Send(ctx context.Context, text string) (*messaging.Message, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil, ErrSessionNotOpen
	}
	return sess.Send(ctx, text)
}

// CloseConversation ends the open session, if any, keeping the connection up.
func (c *Client) CloseConversation() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

func (c *Client) shutdown(code int, reason string) {
	c.CloseConversation()
	c.conn.Close(code, reason)
}
