package analysis

import (
	"context"
	"fmt"
	"time"

	"options-observer/src/analysis/core"
	"options-observer/src/cache"
	"options-observer/src/helpers"
	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"
	"options-observer/src/resolver"
)

const (
	CacheKeyMarket      = "market:snapshot"
	CacheKeyLatestChain = "chain:latest"
	cacheKeyChainPrefix = "chain:"
)

// AnalysisFacade is what the service surfaces call: market snapshot, options
// chain and account dashboard. Results are kept in the TTL cache.
type AnalysisFacade struct {
	Chain     models.MChainConfig
	Quotes    interfaces.IQuoteSource
	Account   interfaces.IAccountSource
	Assembler *ChainAssembler
	Scrips    resolver.SnapshotProvider
	Cache     *cache.TTLCache
	MarketTTL time.Duration
	ChainTTL  time.Duration
	Logger    *logger.Logger
	now       func() time.Time
}

// -----------------------------------------------------------------------------

func NewAnalysisFacade(
	cfg *models.MConfig,
	quotes interfaces.IQuoteSource,
	account interfaces.IAccountSource,
	assembler *ChainAssembler,
	scrips resolver.SnapshotProvider,
	store *cache.TTLCache,
	log *logger.Logger,
) *AnalysisFacade {
	return &AnalysisFacade{
		Chain:     cfg.Chain,
		Quotes:    quotes,
		Account:   account,
		Assembler: assembler,
		Scrips:    scrips,
		Cache:     store,
		MarketTTL: time.Duration(cfg.Broadcast.MarketIntervalSeconds) * time.Second,
		ChainTTL:  2 * time.Duration(cfg.Broadcast.ChainIntervalSeconds) * time.Second,
		Logger:    log,
		now:       time.Now,
	}
}

// -----------------------------------------------------------------------------

// MarketSnapshot quotes spot, volatility index and the nearest future in one
// request. PCR comes from the most recently assembled chain.
func (a *AnalysisFacade) MarketSnapshot(ctx context.Context) (*models.MMarketSnapshot, error) {
	now := a.now()

	req := models.MQuoteRequest{
		Mode:           "FULL",
		ExchangeTokens: map[string][]string{a.Chain.SpotExchange: {a.Chain.SpotToken}},
	}
	if a.Chain.VIXToken != "" {
		req.ExchangeTokens[a.Chain.SpotExchange] = append(req.ExchangeTokens[a.Chain.SpotExchange], a.Chain.VIXToken)
	}

	futureToken := a.futureToken(ctx, now)
	if futureToken != "" {
		req.ExchangeTokens[a.Chain.OptionExchange] = []string{futureToken}
	}

	quotes, err := a.Quotes.Quote(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("market snapshot: %w", err)
	}

	byToken := make(map[string]models.MQuote, len(quotes))
	for _, q := range quotes {
		byToken[q.SymbolToken] = q
	}

	spot, ok := byToken[a.Chain.SpotToken]
	if !ok || spot.LTP <= 0 {
		return nil, helpers.NewResolutionError("cannot fetch %s spot", a.Chain.Underlying)
	}

	snapshot := &models.MMarketSnapshot{
		NiftySpot:   spot.LTP,
		NiftyChange: spot.PercentChange,
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	if snapshot.NiftyChange == 0 && spot.Close > 0 {
		snapshot.NiftyChange = core.CalculateChangePercent(spot.LTP, spot.Close)
	}
	if q, ok := byToken[futureToken]; ok && futureToken != "" {
		snapshot.NiftyFuture = q.LTP
	}
	if q, ok := byToken[a.Chain.VIXToken]; ok {
		snapshot.IVIndex = q.LTP
	}
	if chain, ok := a.latestChain(); ok {
		if pcr, ok := core.PutCallRatio(chain); ok {
			snapshot.PCRRatio = &pcr
		}
	}

	if a.Cache != nil {
		a.Cache.Set(CacheKeyMarket, snapshot, a.MarketTTL)
	}
	return snapshot, nil
}

// -----------------------------------------------------------------------------

// LatestMarketSnapshot returns the cached snapshot while it is fresh.
func (a *AnalysisFacade) LatestMarketSnapshot() (*models.MMarketSnapshot, bool) {
	if a.Cache == nil {
		return nil, false
	}
	v, ok := a.Cache.Get(CacheKeyMarket)
	if !ok {
		return nil, false
	}
	snapshot, ok := v.(*models.MMarketSnapshot)
	return snapshot, ok
}

// -----------------------------------------------------------------------------

// OptionsChain assembles a fresh chain for expiry.
func (a *AnalysisFacade) OptionsChain(ctx context.Context, expiry string) (*models.MOptionChain, error) {
	if expiry == "" {
		return nil, helpers.NewValidationError("expiry date is required")
	}
	if _, err := resolver.ExpiryTag(expiry); err != nil {
		return nil, err
	}

	chain, err := a.Assembler.Assemble(ctx, expiry)
	if err != nil {
		return nil, fmt.Errorf("options chain %s: %w", expiry, err)
	}

	if a.Cache != nil {
		a.Cache.Set(cacheKeyChainPrefix+expiry, chain, a.ChainTTL)
		a.Cache.Set(CacheKeyLatestChain, chain, a.ChainTTL)
	}
	return chain, nil
}

// -----------------------------------------------------------------------------

// CachedChain returns the last chain assembled for expiry while it is fresh.
func (a *AnalysisFacade) CachedChain(expiry string) (*models.MOptionChain, bool) {
	if a.Cache == nil {
		return nil, false
	}
	v, ok := a.Cache.Get(cacheKeyChainPrefix + expiry)
	if !ok {
		return nil, false
	}
	chain, ok := v.(*models.MOptionChain)
	return chain, ok
}

// -----------------------------------------------------------------------------

func (a *AnalysisFacade) Dashboard(ctx context.Context) (*models.MDashboard, error) {
	profile, err := a.Account.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	funds, err := a.Account.Funds(ctx)
	if err != nil {
		return nil, fmt.Errorf("funds: %w", err)
	}
	return &models.MDashboard{Profile: profile, Funds: funds}, nil
}

// -----------------------------------------------------------------------------

func (a *AnalysisFacade) latestChain() (*models.MOptionChain, bool) {
	if a.Cache == nil {
		return nil, false
	}
	v, ok := a.Cache.Get(CacheKeyLatestChain)
	if !ok {
		return nil, false
	}
	chain, ok := v.(*models.MOptionChain)
	return chain, ok
}

// -----------------------------------------------------------------------------

func (a *AnalysisFacade) futureToken(ctx context.Context, now time.Time) string {
	if a.Scrips == nil {
		return ""
	}
	snap, err := a.Scrips.Snapshot(ctx)
	if err != nil {
		a.Logger.Warning("No scrip master for futures lookup: %v", err)
		return ""
	}
	fut := resolver.NearestFuture(snap, a.Chain.Underlying, now)
	if fut == nil {
		return ""
	}
	return fut.Token
}
