package interfaces

import (
	"context"

	"options-observer/src/models"
)

// -----------------------------------------------------------------------------
// IScripSource downloads the full instrument master.
// -----------------------------------------------------------------------------

type IScripSource interface {
	Fetch(ctx context.Context) ([]models.MInstrumentRecord, error)
}

// -----------------------------------------------------------------------------
// IBrokerAPI is the typed broker REST surface. Every call takes the access
// token explicitly; the session manager decides which one.
// -----------------------------------------------------------------------------

type IBrokerAPI interface {
	Login(ctx context.Context, clientCode, password, totp string) (*models.MSessionTokens, error)
	GenerateTokens(ctx context.Context, accessToken, refreshToken string) (*models.MSessionTokens, error)
	Logout(ctx context.Context, accessToken, clientCode string) error
	Profile(ctx context.Context, accessToken string) (*models.MProfile, error)
	Funds(ctx context.Context, accessToken string) (*models.MFunds, error)
	Quote(ctx context.Context, accessToken string, req models.MQuoteRequest) ([]models.MQuote, error)
}

// -----------------------------------------------------------------------------
// IQuoteSource fetches quotes on the current session.
// -----------------------------------------------------------------------------

type IQuoteSource interface {
	Quote(ctx context.Context, req models.MQuoteRequest) ([]models.MQuote, error)
}

// -----------------------------------------------------------------------------
// IAccountSource fetches account data on the current session.
// -----------------------------------------------------------------------------

type IAccountSource interface {
	Profile(ctx context.Context) (*models.MProfile, error)
	Funds(ctx context.Context) (*models.MFunds, error)
}

// -----------------------------------------------------------------------------
// ITokenStore persists the session token set across restarts.
// -----------------------------------------------------------------------------

type ITokenStore interface {

	// SaveTokens stores the set with a lifetime.
	SaveTokens(ctx context.Context, tokens *models.MSessionTokens) error

	// LoadTokens returns nil, nil when nothing is stored.
	LoadTokens(ctx context.Context) (*models.MSessionTokens, error)

	// ClearTokens removes the stored set.
	ClearTokens(ctx context.Context) error
}
