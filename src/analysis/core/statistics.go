package core

import "options-observer/src/models"

// -----------------------------------------------------------------------------

// OpenInterestTotals sums call and put open interest across a chain.
func OpenInterestTotals(chain *models.MOptionChain) (calls, puts int64) {
	if chain == nil {
		return 0, 0
	}
	for _, row := range chain.Data {
		calls += row.CE.OI
		puts += row.PE.OI
	}
	return calls, puts
}

// -----------------------------------------------------------------------------

// PutCallRatio is total put OI over total call OI. ok is false when there is
// no call OI to divide by.
func PutCallRatio(chain *models.MOptionChain) (ratio float64, ok bool) {
	calls, puts := OpenInterestTotals(chain)
	if calls == 0 {
		return 0, false
	}
	return float64(puts) / float64(calls), true
}

// -----------------------------------------------------------------------------

// MaxOpenInterest returns the strikes carrying the largest call and put OI.
// Zero when the chain has no open interest on that side.
func MaxOpenInterest(chain *models.MOptionChain) (callStrike, putStrike int) {
	if chain == nil {
		return 0, 0
	}
	var maxCall, maxPut int64
	for _, row := range chain.Data {
		if row.CE.OI > maxCall {
			maxCall, callStrike = row.CE.OI, row.Strike
		}
		if row.PE.OI > maxPut {
			maxPut, putStrike = row.PE.OI, row.Strike
		}
	}
	return callStrike, putStrike
}
