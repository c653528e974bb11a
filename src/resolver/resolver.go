package resolver

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	datasource "options-observer/src/data_source"
	"options-observer/src/helpers"
	"options-observer/src/models"

	"github.com/shopspring/decimal"
)

const (
	SegmentNFO        = "NFO"
	TypeOptionIndex   = "OPTIDX"
	TypeFutureIndex   = "FUTIDX"
	isoDateLayout     = "2006-01-02"
	expiryTagLayout   = "02Jan06"
	scripExpiryLayout = "02Jan2006"
)

var (
	patternMu sync.Mutex
	patterns  = map[string]*regexp.Regexp{}
)

// symbolPattern matches e.g. NIFTY29MAY2524950CE and captures strike and side.
func symbolPattern(underlying string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()

	if re, ok := patterns[underlying]; ok {
		return re
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(underlying) + `[0-9]{2}[A-Z]{3}[0-9]{2}(\d+)(CE|PE)$`)
	patterns[underlying] = re
	return re
}

// -----------------------------------------------------------------------------

// ExpiryTag converts YYYY-MM-DD to the DDMMMYY tag used in trading symbols.
func ExpiryTag(expiry string) (string, error) {
	t, err := time.Parse(isoDateLayout, expiry)
	if err != nil {
		return "", helpers.NewValidationError("invalid expiry %q, expected YYYY-MM-DD", expiry)
	}
	return strings.ToUpper(t.Format(expiryTagLayout)), nil
}

// -----------------------------------------------------------------------------

// Resolve maps requested strikes to call and put tokens for one expiry.
// Strikes without a matching instrument are absent from the result.
func Resolve(snap *datasource.ScripSnapshot, underlying, expiry string, strikes []int) (models.MTokenMap, error) {
	result := models.NewTokenMap()

	matches, err := match(snap, underlying, expiry, strikes)
	if err != nil {
		return result, err
	}
	for _, m := range matches {
		if m.optType == models.OptTypeCall {
			result.Calls[m.strike] = m.rec.Token
		} else {
			result.Puts[m.strike] = m.rec.Token
		}
	}
	return result, nil
}

// -----------------------------------------------------------------------------

// ResolveInstruments returns the matched contracts with lot and tick size,
// ordered by strike then side.
func ResolveInstruments(snap *datasource.ScripSnapshot, underlying, expiry string, strikes []int) ([]models.MResolvedOption, error) {
	matches, err := match(snap, underlying, expiry, strikes)
	if err != nil {
		return nil, err
	}

	out := make([]models.MResolvedOption, 0, len(matches))
	for _, m := range matches {
		lot, _ := strconv.Atoi(strings.TrimSpace(m.rec.LotSize))
		out = append(out, models.MResolvedOption{
			Token:    m.rec.Token,
			Symbol:   m.rec.Symbol,
			Strike:   float64(m.strike),
			OptType:  m.optType,
			Expiry:   expiry,
			LotSize:  lot,
			TickSize: tickSize(m.rec.TickSize),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Strike != out[j].Strike {
			return out[i].Strike < out[j].Strike
		}
		return out[i].OptType < out[j].OptType
	})
	return out, nil
}

// -----------------------------------------------------------------------------

// NearestFuture returns the index future with the earliest expiry on or after
// the day of now, or nil when there is none.
func NearestFuture(snap *datasource.ScripSnapshot, underlying string, now time.Time) *models.MInstrumentRecord {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var best *models.MInstrumentRecord
	var bestExpiry time.Time
	for _, rec := range snap.Filter(SegmentNFO, TypeFutureIndex, underlying) {
		exp, err := time.Parse(scripExpiryLayout, rec.Expiry)
		if err != nil || exp.Before(today) {
			continue
		}
		if best == nil || exp.Before(bestExpiry) {
			r := rec
			best, bestExpiry = &r, exp
		}
	}
	return best
}

// -----------------------------------------------------------------------------

type matched struct {
	rec     models.MInstrumentRecord
	strike  int
	optType string
}

func match(snap *datasource.ScripSnapshot, underlying, expiry string, strikes []int) ([]matched, error) {
	tag, err := ExpiryTag(expiry)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	wanted := make(map[int]bool, len(strikes))
	for _, s := range strikes {
		wanted[s] = true
	}

	re := symbolPattern(underlying)
	var out []matched
	for _, rec := range snap.Lookup(SegmentNFO, TypeOptionIndex, underlying, tag) {
		parts := re.FindStringSubmatch(rec.Symbol)
		if parts == nil {
			continue
		}
		strike, err := strconv.Atoi(parts[1])
		if err != nil || !wanted[strike] {
			continue
		}
		out = append(out, matched{rec: rec, strike: strike, optType: parts[2]})
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// tickSize converts the scrip master's paise value to rupees.
func tickSize(raw string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	f, _ := d.Div(decimal.NewFromInt(100)).Float64()
	return f
}
