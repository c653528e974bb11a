package core

import (
	"math"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// ATMStrike rounds spot to the nearest multiple of interval, halves upward.
func ATMStrike(spot float64, interval int) int {
	if interval <= 0 {
		return int(math.Floor(spot + 0.5))
	}
	return int(math.Floor(spot/float64(interval)+0.5)) * interval
}

// -----------------------------------------------------------------------------

// StrikeWindow returns atm-window*interval .. atm+window*interval ascending,
// 2*window+1 strikes in total.
func StrikeWindow(atm, interval, window int) []int {
	if window < 0 {
		window = 0
	}
	strikes := make([]int, 0, 2*window+1)
	for i := -window; i <= window; i++ {
		strikes = append(strikes, atm+i*interval)
	}
	return strikes
}

// -----------------------------------------------------------------------------

// ChunkTokens splits tokens into batches of at most size, preserving order.
func ChunkTokens(tokens []string, size int) [][]string {
	if len(tokens) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(tokens)
	}

	chunks := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tokens[start:end])
	}
	return chunks
}

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates percentage change.
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous * 100
}

// -----------------------------------------------------------------------------

// FormatChange renders a percent change with exactly two decimals.
func FormatChange(pct float64) string {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return "0.00"
	}
	return decimal.NewFromFloat(pct).StringFixed(2)
}
