package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"options-observer/src/models"
	"options-observer/src/utils"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// commandTimeout bounds the upstream work behind one client command.
const commandTimeout = 30 * time.Second

type outbound struct {
	client *Client
	expiry string
	event  *models.MServerEvent
}

type subscription struct {
	client  *Client
	symbols []string
	add     bool
}

type watchRequest struct {
	client *Client
	expiry string
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the hub loop. It alone touches the client registry and
// each client's filters.
func (s *FastAPIServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				s.drop(client)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.subscribers.Store(int64(len(s.clients)))
			s.Logger.Info("Client %s connected (%d total)", client.id, len(s.clients))
			s.deliver(client, &models.MServerEvent{
				Event: models.EventWelcome,
				Data: models.MWelcome{
					Message:    utils.WelcomeMessage,
					ClientID:   client.id,
					ServerTime: s.now().UTC().Format(time.RFC3339),
				},
			})

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.drop(client)
				s.Logger.Info("Client %s disconnected (%d left)", client.id, len(s.clients))
			}

		case sub := <-s.subscribe:
			if _, ok := s.clients[sub.client]; !ok {
				continue
			}
			event := models.EventSubscriptionSuccess
			for _, sym := range sub.symbols {
				if sub.add {
					sub.client.symbols[sym] = struct{}{}
				} else {
					delete(sub.client.symbols, sym)
				}
			}
			if !sub.add {
				event = models.EventUnsubscriptionSuccess
			}
			s.deliver(sub.client, &models.MServerEvent{
				Event: event,
				Data:  models.MSymbolsRequest{Symbols: sub.symbols},
			})

		case w := <-s.watch:
			if _, ok := s.clients[w.client]; ok {
				w.client.expiry = w.expiry
			}

		case reply := <-s.expiries:
			reply <- s.watchedExpiries()

		case msg := <-s.broadcast:
			for client := range s.clients {
				if msg.expiry != "" && client.expiry != msg.expiry {
					continue
				}
				if !client.accepts(msg.event.Symbol) {
					continue
				}
				s.deliver(client, msg.event)
			}

		case msg := <-s.direct:
			if _, ok := s.clients[msg.client]; ok {
				s.deliver(msg.client, msg.event)
			}
		}
	}
}

// -----------------------------------------------------------------------------

// deliver never blocks the hub. A client whose buffer is full is dropped.
func (s *FastAPIServer) deliver(client *Client, event *models.MServerEvent) {
	select {
	case client.send <- event:
	default:
		s.Logger.Warning("Client %s too slow, disconnecting", client.id)
		s.drop(client)
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) drop(client *Client) {
	delete(s.clients, client)
	s.subscribers.Store(int64(len(s.clients)))
	close(client.send)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) watchedExpiries() []string {
	seen := make(map[string]struct{})
	for client := range s.clients {
		if client.expiry != "" {
			seen[client.expiry] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

func (s *FastAPIServer) Broadcast(event *models.MServerEvent) {
	select {
	case s.broadcast <- outbound{event: event}:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) BroadcastChain(expiry string, event *models.MServerEvent) {
	select {
	case s.broadcast <- outbound{expiry: expiry, event: event}:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) SubscriberCount() int {
	return int(s.subscribers.Load())
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) WatchedExpiries() []string {
	reply := make(chan []string, 1)
	select {
	case s.expiries <- reply:
	case <-s.done:
		return nil
	}
	return <-reply
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) reply(client *Client, event string, data interface{}) {
	select {
	case s.direct <- outbound{client: client, event: &models.MServerEvent{Event: event, Data: data}}:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) replyError(client *Client, format string, args ...interface{}) {
	s.reply(client, models.EventError, models.MErrorMessage{Message: fmt.Sprintf(format, args...)})
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) handleWebSocket(c *gin.Context) {
	if s.stopped.Load() {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warning("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)
	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *FastAPIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := sonic.Unmarshal(message, &cmd); err != nil {
		s.replyError(client, "Invalid message: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(client.ctx, commandTimeout)
	defer cancel()

	switch cmd.Event {
	case models.CommandPing:
		client.touch()
		s.reply(client, models.EventPong, models.MPong{Timestamp: s.now().UnixMilli()})

	case models.CommandGetMarketData:
		snapshot, err := s.marketSnapshot(ctx)
		if err != nil {
			s.Logger.Warning("Client %s market data: %v", client.id, err)
			s.replyError(client, "Failed to fetch market data: %v", err)
			return
		}
		s.reply(client, models.EventMarketUpdate, snapshot)

	case models.CommandGetOptionsData:
		var req models.MExpiryRequest
		if !s.decodeData(client, cmd, &req) {
			return
		}
		if req.Expiry == "" {
			s.replyError(client, "Expiry date is required")
			return
		}
		chain, err := s.Market.OptionsChain(ctx, req.Expiry)
		if err != nil {
			s.Logger.Warning("Client %s options %s: %v", client.id, req.Expiry, err)
			s.replyError(client, "Failed to fetch options data: %v", err)
			return
		}
		// only expiries that assembled once are re-assembled on chain ticks
		select {
		case s.watch <- watchRequest{client: client, expiry: req.Expiry}:
		case <-s.done:
			return
		}
		s.reply(client, models.EventOptionsData, models.MOptionsData{Status: true, Data: chain})

	case models.CommandSubscribe, models.CommandUnsubscribe:
		var req models.MSymbolsRequest
		if !s.decodeData(client, cmd, &req) {
			return
		}
		symbols, ok := normalizeSymbols(req.Symbols)
		if !ok {
			s.replyError(client, "Invalid symbols")
			return
		}
		select {
		case s.subscribe <- subscription{client: client, symbols: symbols, add: cmd.Event == models.CommandSubscribe}:
		case <-s.done:
		}

	default:
		s.replyError(client, "Unknown event: %s", cmd.Event)
	}
}

// -----------------------------------------------------------------------------

// decodeData fills v from the command payload. An absent payload leaves v
// zero; a malformed one is answered with an error event.
func (s *FastAPIServer) decodeData(client *Client, cmd models.MClientCommand, v interface{}) bool {
	if len(cmd.Data) == 0 {
		return true
	}
	if err := sonic.Unmarshal(cmd.Data, v); err != nil {
		s.replyError(client, "Invalid %s data: %v", cmd.Event, err)
		return false
	}
	return true
}
