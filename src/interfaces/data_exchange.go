package interfaces

import (
	"context"
	"time"

	"options-observer/src/models"
)

// -----------------------------------------------------------------------------
// IDataExchanger is the fan-out side of the real-time channel.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast queues an event for every subscriber whose filter accepts it.
	Broadcast(event *models.MServerEvent)

	// -----------------------------------------------------------------------------
	// BroadcastChain queues an event for subscribers watching expiry.
	BroadcastChain(expiry string, event *models.MServerEvent)

	// -----------------------------------------------------------------------------
	// SubscriberCount is the number of live connections.
	SubscriberCount() int

	// -----------------------------------------------------------------------------
	// WatchedExpiries lists distinct expiries clients have asked for.
	WatchedExpiries() []string
}

// -----------------------------------------------------------------------------
// IMarketService is what the REST and websocket surfaces consume.
// -----------------------------------------------------------------------------

type IMarketService interface {
	MarketSnapshot(ctx context.Context) (*models.MMarketSnapshot, error)
	LatestMarketSnapshot() (*models.MMarketSnapshot, bool)
	OptionsChain(ctx context.Context, expiry string) (*models.MOptionChain, error)
	Dashboard(ctx context.Context) (*models.MDashboard, error)
}

// -----------------------------------------------------------------------------
// ISessionService is the login surface.
// -----------------------------------------------------------------------------

type ISessionService interface {
	Login(ctx context.Context, cred models.MCredential) (*models.MSessionTokens, error)
	Logout(ctx context.Context) error
	StateName() string
}

// -----------------------------------------------------------------------------
// IMarketCalendar answers calendar questions for the exchange.
// -----------------------------------------------------------------------------

type IMarketCalendar interface {
	ExpiryDates(now time.Time) []models.MExpiryDate
	IsMarketOpen(now time.Time) bool
}

// -----------------------------------------------------------------------------
// IPublisher forwards broadcast documents to an external bus.
// -----------------------------------------------------------------------------

type IPublisher interface {
	PublishMarket(snapshot *models.MMarketSnapshot) error
	PublishChain(chain *models.MOptionChain) error
	Close() error
}
