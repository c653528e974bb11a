package analysis

import (
	"context"
	"fmt"

	"options-observer/src/analysis/core"
	"options-observer/src/helpers"
	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"
	"options-observer/src/resolver"
)

const defaultMaxTokensPerQuote = 50

// TokenResolver maps strikes of one expiry to option tokens.
type TokenResolver interface {
	Resolve(ctx context.Context, expiry string, strikes []int) (models.MTokenMap, error)
}

// ChainAssembler builds one options chain per call: spot, ATM window,
// token resolution and batched quotes.
type ChainAssembler struct {
	Chain     models.MChainConfig
	MaxTokens int
	Quotes    interfaces.IQuoteSource
	Resolver  TokenResolver
	Logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewChainAssembler(chain models.MChainConfig, maxTokens int, quotes interfaces.IQuoteSource, resolver TokenResolver, log *logger.Logger) *ChainAssembler {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokensPerQuote
	}
	return &ChainAssembler{
		Chain:     chain,
		MaxTokens: maxTokens,
		Quotes:    quotes,
		Resolver:  resolver,
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

// Assemble quotes the spot and builds the chain around it.
func (a *ChainAssembler) Assemble(ctx context.Context, expiry string) (*models.MOptionChain, error) {
	if _, err := resolver.ExpiryTag(expiry); err != nil {
		return nil, err
	}
	spot, err := a.Spot(ctx)
	if err != nil {
		return nil, err
	}
	return a.AssembleAt(ctx, expiry, spot)
}

// -----------------------------------------------------------------------------

// Spot returns the underlying's last traded price.
func (a *ChainAssembler) Spot(ctx context.Context) (float64, error) {
	quotes, err := a.Quotes.Quote(ctx, models.MQuoteRequest{
		Mode:           "FULL",
		ExchangeTokens: map[string][]string{a.Chain.SpotExchange: {a.Chain.SpotToken}},
	})
	if err != nil {
		return 0, fmt.Errorf("quoting %s spot: %w", a.Chain.Underlying, err)
	}

	for _, q := range quotes {
		if q.SymbolToken == a.Chain.SpotToken && q.LTP > 0 {
			return q.LTP, nil
		}
	}
	return 0, helpers.NewResolutionError("cannot fetch %s spot", a.Chain.Underlying)
}

// -----------------------------------------------------------------------------

// AssembleAt builds the chain around a known spot.
func (a *ChainAssembler) AssembleAt(ctx context.Context, expiry string, spot float64) (*models.MOptionChain, error) {
	atm := core.ATMStrike(spot, a.Chain.StrikeInterval)
	strikes := core.StrikeWindow(atm, a.Chain.StrikeInterval, a.Chain.Window)

	tokenMap, err := a.Resolver.Resolve(ctx, expiry, strikes)
	if err != nil {
		return nil, err
	}

	tokens := tokenMap.Tokens(strikes)
	if len(tokens) == 0 {
		return nil, helpers.NewResolutionError("no tokens found for expiry %s", expiry)
	}

	byToken := make(map[string]models.MQuote, len(tokens))
	for _, batch := range core.ChunkTokens(tokens, a.MaxTokens) {
		quotes, err := a.Quotes.Quote(ctx, models.MQuoteRequest{
			Mode:           "FULL",
			ExchangeTokens: map[string][]string{a.Chain.OptionExchange: batch},
		})
		if err != nil {
			return nil, fmt.Errorf("quoting %d options for %s: %w", len(batch), expiry, err)
		}
		for _, q := range quotes {
			byToken[q.SymbolToken] = q
		}
	}

	chain := &models.MOptionChain{
		Expiry: expiry,
		Spot:   spot,
		Data:   make([]models.MOptionStrike, 0, len(strikes)),
	}
	for _, strike := range strikes {
		chain.Data = append(chain.Data, models.MOptionStrike{
			Strike: strike,
			CE:     toLeg(byToken, tokenMap.Calls[strike]),
			PE:     toLeg(byToken, tokenMap.Puts[strike]),
		})
	}

	a.Logger.Debug("Assembled %s chain: spot %.2f, ATM %d, %d/%d legs quoted", expiry, spot, atm, len(byToken), len(tokens))
	return chain, nil
}

// -----------------------------------------------------------------------------

func toLeg(byToken map[string]models.MQuote, token string) models.MOptionLeg {
	if token == "" {
		return models.ZeroLeg()
	}
	q, ok := byToken[token]
	if !ok {
		return models.ZeroLeg()
	}
	return models.MOptionLeg{
		OI:     q.OpenInterest,
		Volume: q.TradeVolume,
		LTP:    q.LTP,
		Change: core.FormatChange(q.PercentChange),
	}
}
