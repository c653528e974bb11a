package scheduler

import (
	"context"
	"sync"
	"time"

	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"
	"options-observer/src/utils"
)

const (
	DefaultMarketInterval = 5 * time.Second
	DefaultChainInterval  = 30 * time.Second
)

// -----------------------------------------------------------------------------

// Broadcaster pushes market snapshots and watched chains to the hub on two
// tickers. A tick with no connected subscriber makes no upstream call.
type Broadcaster struct {
	Market         interfaces.IMarketService
	Hub            interfaces.IDataExchanger
	Publisher      interfaces.IPublisher
	Metrics        *utils.MetricsManager
	Symbol         string
	MarketInterval time.Duration
	ChainInterval  time.Duration
	Logger         *logger.Logger

	now    func() time.Time
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewBroadcaster(
	cfg *models.MConfig,
	market interfaces.IMarketService,
	hub interfaces.IDataExchanger,
	publisher interfaces.IPublisher,
	metrics *utils.MetricsManager,
	log *logger.Logger,
) *Broadcaster {
	b := &Broadcaster{
		Market:         market,
		Hub:            hub,
		Publisher:      publisher,
		Metrics:        metrics,
		Symbol:         cfg.Chain.Underlying,
		MarketInterval: time.Duration(cfg.Broadcast.MarketIntervalSeconds) * time.Second,
		ChainInterval:  time.Duration(cfg.Broadcast.ChainIntervalSeconds) * time.Second,
		Logger:         log,
		now:            time.Now,
	}
	if b.MarketInterval <= 0 {
		b.MarketInterval = DefaultMarketInterval
	}
	if b.ChainInterval <= 0 {
		b.ChainInterval = DefaultChainInterval
	}
	return b
}

// -----------------------------------------------------------------------------

// Start runs the loop in the background until Stop.
func (b *Broadcaster) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.Run(ctx)
	}()
}

// -----------------------------------------------------------------------------

func (b *Broadcaster) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

// -----------------------------------------------------------------------------

// Run blocks until ctx is cancelled. A failed cycle is logged and recorded;
// the next tick tries again.
func (b *Broadcaster) Run(ctx context.Context) {
	marketTicker := time.NewTicker(b.MarketInterval)
	defer marketTicker.Stop()
	chainTicker := time.NewTicker(b.ChainInterval)
	defer chainTicker.Stop()

	b.Logger.Info("Broadcaster started (market every %s, chain every %s)", b.MarketInterval, b.ChainInterval)

	for {
		select {
		case <-ctx.Done():
			b.Logger.Info("Broadcaster stopped")
			return
		case <-marketTicker.C:
			b.TickMarket(ctx)
		case <-chainTicker.C:
			b.TickChains(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

// TickMarket sends one market_update to every subscriber.
func (b *Broadcaster) TickMarket(ctx context.Context) {
	started := b.now()
	subscribers := b.Hub.SubscriberCount()
	if subscribers == 0 {
		b.record(models.MCycleMetrics{Kind: models.CycleMarket, StartedAt: started, Skipped: true})
		return
	}

	snapshot, err := b.Market.MarketSnapshot(ctx)
	m := models.MCycleMetrics{
		Kind:            models.CycleMarket,
		StartedAt:       started,
		Subscribers:     subscribers,
		DurationSeconds: b.now().Sub(started).Seconds(),
	}
	if err != nil {
		m.Error = err.Error()
		b.record(m)
		b.Logger.Error("Market update failed: %v", err)
		return
	}
	b.record(m)

	b.Hub.Broadcast(&models.MServerEvent{
		Event:  models.EventMarketUpdate,
		Data:   snapshot,
		Symbol: b.Symbol,
	})

	if b.Publisher != nil {
		if err := b.Publisher.PublishMarket(snapshot); err != nil {
			b.Logger.Warning("Publishing market snapshot failed: %v", err)
		}
	}
}

// -----------------------------------------------------------------------------

// TickChains assembles each watched expiry once and sends it to the clients
// watching it.
func (b *Broadcaster) TickChains(ctx context.Context) {
	started := b.now()
	subscribers := b.Hub.SubscriberCount()
	if subscribers == 0 {
		b.record(models.MCycleMetrics{Kind: models.CycleChain, StartedAt: started, Skipped: true})
		return
	}

	for _, expiry := range b.Hub.WatchedExpiries() {
		if ctx.Err() != nil {
			return
		}
		b.tickChain(ctx, expiry, subscribers)
	}
}

// -----------------------------------------------------------------------------

func (b *Broadcaster) tickChain(ctx context.Context, expiry string, subscribers int) {
	started := b.now()
	chain, err := b.Market.OptionsChain(ctx, expiry)
	m := models.MCycleMetrics{
		Kind:            models.CycleChain,
		Expiry:          expiry,
		StartedAt:       started,
		Subscribers:     subscribers,
		DurationSeconds: b.now().Sub(started).Seconds(),
	}
	if err != nil {
		m.Error = err.Error()
		b.record(m)
		b.Logger.Error("Chain update for %s failed: %v", expiry, err)
		return
	}
	b.record(m)

	b.Hub.BroadcastChain(expiry, &models.MServerEvent{
		Event:  models.EventOptionsData,
		Data:   models.MOptionsData{Status: true, Data: chain},
		Symbol: b.Symbol,
	})

	if b.Publisher != nil {
		if err := b.Publisher.PublishChain(chain); err != nil {
			b.Logger.Warning("Publishing %s chain failed: %v", expiry, err)
		}
	}
}

// -----------------------------------------------------------------------------

func (b *Broadcaster) record(m models.MCycleMetrics) {
	if b.Metrics != nil {
		b.Metrics.Record(m)
	}
}
