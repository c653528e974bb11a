package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"options-observer/src/logger"
	"options-observer/src/models"
	"options-observer/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	mu          sync.Mutex
	marketCalls int
	chainCalls  []string
	marketErr   error
	chainErr    error
}

func (f *fakeMarket) MarketSnapshot(ctx context.Context) (*models.MMarketSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketCalls++
	if f.marketErr != nil {
		return nil, f.marketErr
	}
	return &models.MMarketSnapshot{NiftySpot: 24944}, nil
}

func (f *fakeMarket) LatestMarketSnapshot() (*models.MMarketSnapshot, bool) { return nil, false }

func (f *fakeMarket) OptionsChain(ctx context.Context, expiry string) (*models.MOptionChain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainCalls = append(f.chainCalls, expiry)
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return &models.MOptionChain{Expiry: expiry, Spot: 24944}, nil
}

func (f *fakeMarket) Dashboard(ctx context.Context) (*models.MDashboard, error) { return nil, nil }

func (f *fakeMarket) calls() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marketCalls, append([]string(nil), f.chainCalls...)
}

type sentChain struct {
	expiry string
	event  *models.MServerEvent
}

type fakeHub struct {
	mu          sync.Mutex
	subscribers int
	expiries    []string
	broadcasts  []*models.MServerEvent
	chains      []sentChain
}

func (h *fakeHub) Broadcast(event *models.MServerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, event)
}

func (h *fakeHub) BroadcastChain(expiry string, event *models.MServerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chains = append(h.chains, sentChain{expiry: expiry, event: event})
}

func (h *fakeHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribers
}

func (h *fakeHub) WatchedExpiries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.expiries
}

type fakePublisher struct {
	markets int
	chains  []string
}

func (p *fakePublisher) PublishMarket(snapshot *models.MMarketSnapshot) error {
	p.markets++
	return nil
}

func (p *fakePublisher) PublishChain(chain *models.MOptionChain) error {
	p.chains = append(p.chains, chain.Expiry)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newBroadcaster(market *fakeMarket, hub *fakeHub, pub *fakePublisher, metrics *utils.MetricsManager) *Broadcaster {
	cfg := &models.MConfig{
		Chain:     models.MChainConfig{Underlying: "NIFTY"},
		Broadcast: models.MBroadcastConfig{MarketIntervalSeconds: 5, ChainIntervalSeconds: 30},
	}
	b := NewBroadcaster(cfg, market, hub, nil, metrics, logger.NewNopLogger())
	if pub != nil {
		b.Publisher = pub
	}
	return b
}

// -----------------------------------------------------------------------------

func TestTick_NoSubscribersMakesNoCalls(t *testing.T) {
	market := &fakeMarket{}
	hub := &fakeHub{expiries: []string{"2025-05-29"}}
	metrics := utils.NewMetricsManager(10)
	b := newBroadcaster(market, hub, nil, metrics)

	for i := 0; i < 3; i++ {
		b.TickMarket(context.Background())
		b.TickChains(context.Background())
	}

	marketCalls, chainCalls := market.calls()
	assert.Zero(t, marketCalls)
	assert.Empty(t, chainCalls)
	assert.Empty(t, hub.broadcasts)
	assert.Empty(t, hub.chains)

	summary := metrics.Summary()
	assert.Equal(t, 3, summary.Skipped[models.CycleMarket])
	assert.Equal(t, 3, summary.Skipped[models.CycleChain])
}

func TestTickMarket_BroadcastsAndPublishes(t *testing.T) {
	market := &fakeMarket{}
	hub := &fakeHub{subscribers: 2}
	pub := &fakePublisher{}
	metrics := utils.NewMetricsManager(10)
	b := newBroadcaster(market, hub, pub, metrics)

	b.TickMarket(context.Background())

	require.Len(t, hub.broadcasts, 1)
	ev := hub.broadcasts[0]
	assert.Equal(t, models.EventMarketUpdate, ev.Event)
	assert.Equal(t, "NIFTY", ev.Symbol)
	assert.Equal(t, 24944.0, ev.Data.(*models.MMarketSnapshot).NiftySpot)
	assert.Equal(t, 1, pub.markets)

	latest := metrics.Latest(models.CycleMarket, 1)
	require.Len(t, latest, 1)
	assert.Equal(t, 2, latest[0].Subscribers)
	assert.False(t, latest[0].Skipped)
}

func TestTickChains_OncePerWatchedExpiry(t *testing.T) {
	market := &fakeMarket{}
	hub := &fakeHub{subscribers: 3, expiries: []string{"2025-05-29", "2025-06-05"}}
	pub := &fakePublisher{}
	b := newBroadcaster(market, hub, pub, utils.NewMetricsManager(10))

	b.TickChains(context.Background())

	_, chainCalls := market.calls()
	assert.Equal(t, []string{"2025-05-29", "2025-06-05"}, chainCalls)
	require.Len(t, hub.chains, 2)
	assert.Equal(t, "2025-06-05", hub.chains[1].expiry)
	data := hub.chains[1].event.Data.(models.MOptionsData)
	assert.True(t, data.Status)
	assert.Equal(t, "2025-06-05", data.Data.Expiry)
	assert.Equal(t, []string{"2025-05-29", "2025-06-05"}, pub.chains)
}

func TestTick_ErrorsAreRecorded(t *testing.T) {
	tests := []struct {
		name string
		run  func(b *Broadcaster)
		kind string
	}{
		{name: "market", run: func(b *Broadcaster) { b.TickMarket(context.Background()) }, kind: models.CycleMarket},
		{name: "chain", run: func(b *Broadcaster) { b.TickChains(context.Background()) }, kind: models.CycleChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			market := &fakeMarket{marketErr: errors.New("upstream down"), chainErr: errors.New("upstream down")}
			hub := &fakeHub{subscribers: 1, expiries: []string{"2025-05-29"}}
			metrics := utils.NewMetricsManager(10)
			b := newBroadcaster(market, hub, nil, metrics)

			tt.run(b)
			tt.run(b)

			assert.Empty(t, hub.broadcasts)
			assert.Empty(t, hub.chains)
			assert.Equal(t, 2, metrics.Summary().Failures[tt.kind])
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	market := &fakeMarket{}
	hub := &fakeHub{subscribers: 1, expiries: []string{"2025-05-29"}}
	b := newBroadcaster(market, hub, nil, utils.NewMetricsManager(10))
	b.MarketInterval = 10 * time.Millisecond
	b.ChainInterval = 15 * time.Millisecond

	b.Start()
	require.Eventually(t, func() bool {
		marketCalls, chainCalls := market.calls()
		return marketCalls >= 2 && len(chainCalls) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	b.Stop()

	marketCalls, _ := market.calls()
	time.Sleep(40 * time.Millisecond)
	after, _ := market.calls()
	assert.Equal(t, marketCalls, after)
}
