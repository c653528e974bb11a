package models

// MInstrumentRecord is one row of the scrip master. Every field arrives as a
// string upstream and is kept that way; parsing happens where it is needed.
type MInstrumentRecord struct {
	Token          string `json:"token"`
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	Expiry         string `json:"expiry"`
	Strike         string `json:"strike"`
	LotSize        string `json:"lotsize"`
	InstrumentType string `json:"instrumenttype"`
	ExchSeg        string `json:"exch_seg"`
	TickSize       string `json:"tick_size"`
}

// MTokenMap maps strikes to option tokens for one expiry. A missing key means
// no instrument matched that strike.
type MTokenMap struct {
	Calls map[int]string `json:"ce"`
	Puts  map[int]string `json:"pe"`
}

// NewTokenMap returns an empty map pair ready for filling.
func NewTokenMap() MTokenMap {
	return MTokenMap{
		Calls: make(map[int]string),
		Puts:  make(map[int]string),
	}
}

// Tokens returns every resolved token, calls first, in ascending strike order.
func (m MTokenMap) Tokens(strikes []int) []string {
	tokens := make([]string, 0, len(m.Calls)+len(m.Puts))
	for _, s := range strikes {
		if t, ok := m.Calls[s]; ok {
			tokens = append(tokens, t)
		}
	}
	for _, s := range strikes {
		if t, ok := m.Puts[s]; ok {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Option sides as they appear at the end of a trading symbol.
const (
	OptTypeCall = "CE"
	OptTypePut  = "PE"
)

// MResolvedOption is a resolved option contract as kept in the instrument store.
type MResolvedOption struct {
	Token    string  `json:"token"`
	Symbol   string  `json:"symbol"`
	Strike   float64 `json:"strike"`
	OptType  string  `json:"optType"`
	Expiry   string  `json:"expiry"`
	LotSize  int     `json:"lotSize"`
	TickSize float64 `json:"tickSize"`
}
