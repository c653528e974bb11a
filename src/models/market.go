package models

// MQuote is one row of the quote endpoint's "fetched" list.
type MQuote struct {
	Exchange      string  `json:"exchange"`
	TradingSymbol string  `json:"tradingSymbol"`
	SymbolToken   string  `json:"symbolToken" validate:"required"`
	LTP           float64 `json:"ltp"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	NetChange     float64 `json:"netChange"`
	PercentChange float64 `json:"percentChange"`
	TradeVolume   int64   `json:"tradeVolume"`
	OpenInterest  int64   `json:"opnInterest"`
}

// MQuoteRequest selects instruments per exchange, e.g. {"NFO": ["43210"]}.
type MQuoteRequest struct {
	Mode           string              `json:"mode"`
	ExchangeTokens map[string][]string `json:"exchangeTokens"`
}

// MMarketSnapshot is the payload of every market_update.
type MMarketSnapshot struct {
	NiftySpot   float64  `json:"niftySpot"`
	NiftyChange float64  `json:"niftyChange"`
	NiftyFuture float64  `json:"niftyFuture"`
	PCRRatio    *float64 `json:"pcrRatio"`
	IVIndex     float64  `json:"ivIndex"`
	Timestamp   string   `json:"timestamp"`
}

type MExpiryDate struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

type MSystemStatus struct {
	ServerTime   string `json:"serverTime"`
	ServerStatus string `json:"serverStatus"`
	MarketStatus string `json:"marketStatus"`
	Mode         string `json:"mode"`
	Version      string `json:"version"`
	SessionState string `json:"sessionState"`
}
