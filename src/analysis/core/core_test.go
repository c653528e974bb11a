package core

import (
	"testing"

	"options-observer/src/models"

	"github.com/stretchr/testify/assert"
)

func TestATMStrike(t *testing.T) {
	tests := []struct {
		spot     float64
		interval int
		want     int
	}{
		{spot: 24944, interval: 50, want: 24950},
		{spot: 24924.99, interval: 50, want: 24900},
		{spot: 24925, interval: 50, want: 24950},
		{spot: 24950, interval: 50, want: 24950},
		{spot: 51234, interval: 100, want: 51200},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ATMStrike(tt.spot, tt.interval), "spot %v", tt.spot)
	}
}

func TestStrikeWindow(t *testing.T) {
	strikes := StrikeWindow(24950, 50, 10)
	assert.Len(t, strikes, 21)
	assert.Equal(t, 24450, strikes[0])
	assert.Equal(t, 24950, strikes[10])
	assert.Equal(t, 25450, strikes[20])

	assert.Equal(t, []int{24950}, StrikeWindow(24950, 50, 0))
}

func TestChunkTokens(t *testing.T) {
	tokens := make([]string, 42)
	for i := range tokens {
		tokens[i] = string(rune('a' + i%26))
	}

	tests := []struct {
		name  string
		in    []string
		size  int
		sizes []int
	}{
		{name: "full chain fits", in: tokens, size: 50, sizes: []int{42}},
		{name: "split", in: tokens, size: 20, sizes: []int{20, 20, 2}},
		{name: "exact", in: tokens[:40], size: 20, sizes: []int{20, 20}},
		{name: "empty", in: nil, size: 50, sizes: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkTokens(tt.in, tt.size)
			var got []int
			for _, c := range chunks {
				got = append(got, len(c))
				assert.LessOrEqual(t, len(c), tt.size)
			}
			assert.Equal(t, tt.sizes, got)
		})
	}
}

func TestFormatChange(t *testing.T) {
	assert.Equal(t, "-3.25", FormatChange(-3.25))
	assert.Equal(t, "1.23", FormatChange(1.234))
	assert.Equal(t, "0.00", FormatChange(0))
	assert.Equal(t, "12.50", FormatChange(12.5))
}

func TestPutCallRatio(t *testing.T) {
	chain := &models.MOptionChain{Data: []models.MOptionStrike{
		{Strike: 24900, CE: models.MOptionLeg{OI: 100}, PE: models.MOptionLeg{OI: 300}},
		{Strike: 24950, CE: models.MOptionLeg{OI: 300}, PE: models.MOptionLeg{OI: 100}},
	}}

	ratio, ok := PutCallRatio(chain)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, ratio, 1e-9)

	callStrike, putStrike := MaxOpenInterest(chain)
	assert.Equal(t, 24950, callStrike)
	assert.Equal(t, 24900, putStrike)

	_, ok = PutCallRatio(&models.MOptionChain{})
	assert.False(t, ok)
	_, ok = PutCallRatio(nil)
	assert.False(t, ok)
}
