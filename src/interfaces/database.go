package interfaces

import "options-observer/src/models"

// -----------------------------------------------------------------------------
// IInstrumentStore defines the contract for the resolved-instrument store.
// -----------------------------------------------------------------------------

type IInstrumentStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and indexes.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveOptions upserts resolved option contracts in one transaction.
	SaveOptions(options []models.MResolvedOption) error

	// -----------------------------------------------------------------------------

	// GetOptionsByExpiry returns every contract for an expiry (YYYY-MM-DD).
	GetOptionsByExpiry(expiry string) ([]models.MResolvedOption, error)

	// -----------------------------------------------------------------------------

	// GetOptionsInStrikeRange returns contracts with min <= strike <= max.
	GetOptionsInStrikeRange(min, max float64) ([]models.MResolvedOption, error)

	// -----------------------------------------------------------------------------

	// GetAllExpiries lists distinct expiries in ascending order.
	GetAllExpiries() ([]string, error)

	// -----------------------------------------------------------------------------

	// GetOptionByToken returns nil, nil when the token is unknown.
	GetOptionByToken(token string) (*models.MResolvedOption, error)

	// -----------------------------------------------------------------------------

	// CleanupExpired removes contracts whose expiry is before the given date.
	CleanupExpired(before string) (int64, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
