package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Websocket frames
// -----------------------------------------------------------------------------

// Server to client events.
const (
	EventWelcome               = "welcome"
	EventMarketUpdate          = "market_update"
	EventOptionsData           = "options_data"
	EventSubscriptionSuccess   = "subscription_success"
	EventUnsubscriptionSuccess = "unsubscription_success"
	EventPong                  = "pong"
	EventError                 = "error"
)

// Client to server events.
const (
	CommandGetMarketData  = "get_market_data"
	CommandGetOptionsData = "get_options_data"
	CommandSubscribe      = "subscribe"
	CommandUnsubscribe    = "unsubscribe"
	CommandPing           = "ping"
)

// MServerEvent is written to the socket as {"event": ..., "data": ...}.
// Symbol is used by the hub for subscription filtering and is not sent.
type MServerEvent struct {
	Event  string      `json:"event"`
	Data   interface{} `json:"data"`
	Symbol string      `json:"-"`
}

// MClientCommand is a decoded inbound frame. Data is decoded per event.
type MClientCommand struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type MWelcome struct {
	Message    string `json:"message"`
	ClientID   string `json:"clientId"`
	ServerTime string `json:"serverTime"`
}

type MExpiryRequest struct {
	Expiry string `json:"expiry"`
}

type MSymbolsRequest struct {
	Symbols []string `json:"symbols"`
}

type MOptionsData struct {
	Status bool          `json:"status"`
	Data   *MOptionChain `json:"data"`
}

type MPong struct {
	Timestamp int64 `json:"timestamp"`
}

type MErrorMessage struct {
	Message string `json:"message"`
}
