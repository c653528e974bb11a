package server

import (
	"context"
	"time"

	"options-observer/src/models"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	id     string
	hub    *FastAPIServer
	conn   *websocket.Conn
	send   chan *models.MServerEvent
	ctx    context.Context
	cancel context.CancelFunc

	// owned by the hub goroutine
	symbols map[string]struct{}
	expiry  string
}

// -----------------------------------------------------------------------------

func newClient(hub *FastAPIServer, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		send:    make(chan *models.MServerEvent, sendBuffer),
		ctx:     ctx,
		cancel:  cancel,
		symbols: make(map[string]struct{}),
	}
}

// -----------------------------------------------------------------------------

// accepts reports whether a broadcast for symbol passes the client's filter.
// A client without subscriptions receives everything.
func (c *Client) accepts(symbol string) bool {
	if len(c.symbols) == 0 || symbol == "" {
		return true
	}
	_, ok := c.symbols[symbol]
	return ok
}

// -----------------------------------------------------------------------------

// touch records client activity and extends the read deadline. Only called
// from the read pump.
func (c *Client) touch() {
	c.hub.lastActivity.Store(c.hub.now().UnixMilli())
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Warning("WebSocket error for %s: %v", c.id, err)
			}
			break
		}
		c.hub.HandleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := sonic.Marshal(event)
			if err != nil {
				c.hub.Logger.Error("Encoding %s for %s: %v", event.Event, c.id, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.Logger.Warning("Write error for %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
