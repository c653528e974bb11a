package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"options-observer/src/helpers"
	"options-observer/src/logger"
	"options-observer/src/models"
	"options-observer/src/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls   atomic.Int32
	release chan struct{}
	mu      sync.Mutex
	records []models.MInstrumentRecord
	err     error
}

func (f *fakeSource) Fetch(ctx context.Context) ([]models.MInstrumentRecord, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, f.err
}

func (f *fakeSource) set(records []models.MInstrumentRecord, err error) {
	f.mu.Lock()
	f.records, f.err = records, err
	f.mu.Unlock()
}

var sampleRecords = []models.MInstrumentRecord{
	{Token: "43210", Symbol: "NIFTY29MAY2524950CE", Name: "NIFTY", Expiry: "29MAY2025", Strike: "2495000.000000", InstrumentType: "OPTIDX", ExchSeg: "NFO"},
	{Token: "43211", Symbol: "NIFTY29MAY2524950PE", Name: "NIFTY", Expiry: "29MAY2025", Strike: "2495000.000000", InstrumentType: "OPTIDX", ExchSeg: "NFO"},
	{Token: "50001", Symbol: "NIFTY29MAY25FUT", Name: "NIFTY", Expiry: "29MAY2025", InstrumentType: "FUTIDX", ExchSeg: "NFO"},
	{Token: "26000", Symbol: "Nifty 50", Name: "NIFTY", ExchSeg: "NSE"},
}

func newCache(src *fakeSource, ttl time.Duration, now *time.Time) *ScripMasterCache {
	c := NewScripMasterCache(src, ttl, time.Second, logger.NewNopLogger())
	if now != nil {
		c.SetClock(func() time.Time { return *now })
	}
	return c
}

func TestSnapshot_Index(t *testing.T) {
	snap := NewScripSnapshot(sampleRecords, time.Now())

	opts := snap.Lookup("NFO", "OPTIDX", "NIFTY", "29MAY25")
	require.Len(t, opts, 2)
	assert.Equal(t, "43210", opts[0].Token)

	assert.Len(t, snap.Lookup("NFO", "FUTIDX", "NIFTY", "29MAY25"), 1)
	assert.Empty(t, snap.Lookup("NFO", "OPTIDX", "NIFTY", "05JUN25"))
	assert.Len(t, snap.Filter("NFO", "FUTIDX", "NIFTY"), 1)
	assert.Equal(t, 4, snap.Len())
}

func TestGetAll_ConcurrentMissesShareOneFetch(t *testing.T) {
	src := &fakeSource{release: make(chan struct{}), records: sampleRecords}
	c := newCache(src, time.Hour, nil)

	var wg sync.WaitGroup
	results := make([][]models.MInstrumentRecord, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs, err := c.GetAll(context.Background())
			assert.NoError(t, err)
			results[i] = recs
		}(i)
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	// give the second caller time to join the in-flight fetch
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
	assert.Len(t, results[0], len(sampleRecords))
	assert.Len(t, results[1], len(sampleRecords))
}

func TestSnapshot_TTL(t *testing.T) {
	now := time.Date(2025, 5, 26, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{records: sampleRecords}
	c := newCache(src, time.Hour, &now)

	_, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())

	now = now.Add(time.Hour)
	_, err = c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestSnapshot_StaleFallback(t *testing.T) {
	now := time.Date(2025, 5, 26, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{records: sampleRecords}
	c := newCache(src, time.Hour, &now)

	first, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	src.set(nil, errors.New("connection reset"))

	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, snap)

	stats := c.Stats()
	assert.True(t, stats.Stale)
	assert.EqualValues(t, 2, stats.Fetches)
	assert.EqualValues(t, 1, stats.Failures)
	assert.Equal(t, len(sampleRecords), stats.Rows)
}

func TestSnapshot_BacksOffAfterFailure(t *testing.T) {
	now := time.Date(2025, 5, 26, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{records: sampleRecords}
	c := newCache(src, time.Hour, &now)

	first, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	src.set(nil, errors.New("connection reset"))
	_, err = c.Snapshot(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, src.calls.Load())

	// within the backoff the stale snapshot is served without a download
	now = now.Add(DefaultScripRetryAfter / 2)
	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, snap)
	assert.EqualValues(t, 2, src.calls.Load())

	// Refresh ignores the backoff
	_, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, src.calls.Load())

	now = now.Add(DefaultScripRetryAfter)
	src.set(sampleRecords, nil)
	snap, err = c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, snap)
	assert.EqualValues(t, 4, src.calls.Load())
	assert.False(t, c.Stats().Stale)
}

func TestSnapshot_NoPreviousSnapshotFails(t *testing.T) {
	src := &fakeSource{err: errors.New("timeout")}
	c := newCache(src, time.Hour, nil)

	_, err := c.Snapshot(context.Background())
	require.Error(t, err)

	var dsErr *helpers.DataSourceError
	assert.ErrorAs(t, err, &dsErr)
}

func TestRefresh_ForcesDownload(t *testing.T) {
	src := &fakeSource{records: sampleRecords}
	c := newCache(src, time.Hour, nil)

	_, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestHTTPScripSource(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLen int
		wantErr bool
	}{
		{name: "array", body: `[{"token":"43210","symbol":"NIFTY29MAY2524950CE","name":"NIFTY","expiry":"29MAY2025","strike":"2495000.000000","lotsize":"75","instrumenttype":"OPTIDX","exch_seg":"NFO","tick_size":"5.000000"}]`, wantLen: 1},
		{name: "empty", body: `[]`, wantErr: true},
		{name: "not an array", body: `{"error":"x"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			src := NewHTTPScripSource(srv.URL, network.NewAsyncNetworkManager("", 1, logger.NewNopLogger()))
			recs, err := src.Fetch(context.Background())
			if tt.wantErr {
				var decErr *helpers.DecodeError
				assert.ErrorAs(t, err, &decErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, recs, tt.wantLen)
			assert.Equal(t, "75", recs[0].LotSize)
			assert.Equal(t, "NFO", recs[0].ExchSeg)
		})
	}
}
