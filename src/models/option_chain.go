package models

// MOptionLeg is one side of one strike for a single cycle.
type MOptionLeg struct {
	OI     int64   `json:"oi"`
	Volume int64   `json:"volume"`
	LTP    float64 `json:"ltp"`
	Change string  `json:"change"`
}

// ZeroLeg is reported for strikes without a quote.
func ZeroLeg() MOptionLeg {
	return MOptionLeg{Change: "0"}
}

type MOptionStrike struct {
	Strike int        `json:"strike"`
	CE     MOptionLeg `json:"ce"`
	PE     MOptionLeg `json:"pe"`
}

// MOptionChain is assembled once per cycle and replaced wholesale by the next.
type MOptionChain struct {
	Expiry string          `json:"expiry"`
	Spot   float64         `json:"spot"`
	Data   []MOptionStrike `json:"data"`
}
