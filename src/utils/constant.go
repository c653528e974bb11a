package utils

// Instrument constants for the NIFTY chain. Tokens are the broker's
// exchange tokens for the index rows.
const (
	NiftyUnderlying = "NIFTY"
	NiftySpotToken  = "26000"
	IndiaVIXToken   = "26017"
	ExchangeNSE     = "NSE"
	ExchangeNFO     = "NFO"
	NiftyStrikeStep = 50
	DefaultWindow   = 10
	MaxQuoteTokens  = 50
	AppVersion      = "1.0.0"
	WelcomeMessage  = "Connected to NIFTY Options Viewer"
)
