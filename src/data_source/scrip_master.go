package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"options-observer/src/helpers"
	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultScripTTL     = 24 * time.Hour
	DefaultScripTimeout = 20 * time.Second
	// DefaultScripRetryAfter spaces out downloads while a stale snapshot is served.
	DefaultScripRetryAfter = 5 * time.Minute

	expiryTagLen = len("02JAN06")
)

// -----------------------------------------------------------------------------
// Snapshot
// -----------------------------------------------------------------------------

type scripKey struct {
	exchSeg        string
	instrumentType string
	name           string
	tag            string
}

// ScripSnapshot is one immutable download of the scrip master.
type ScripSnapshot struct {
	Records   []models.MInstrumentRecord
	FetchedAt time.Time
	index     map[scripKey][]int
}

// NewScripSnapshot indexes records by segment, instrument type, name and the
// DDMMMYY tag that follows the name in the trading symbol.
func NewScripSnapshot(records []models.MInstrumentRecord, fetchedAt time.Time) *ScripSnapshot {
	s := &ScripSnapshot{
		Records:   records,
		FetchedAt: fetchedAt,
		index:     make(map[scripKey][]int),
	}

	for i, rec := range records {
		if rec.Name == "" || !strings.HasPrefix(rec.Symbol, rec.Name) {
			continue
		}
		rest := rec.Symbol[len(rec.Name):]
		if len(rest) < expiryTagLen {
			continue
		}
		key := scripKey{rec.ExchSeg, rec.InstrumentType, rec.Name, rest[:expiryTagLen]}
		s.index[key] = append(s.index[key], i)
	}
	return s
}

// Lookup returns the rows for one segment, type, name and expiry tag.
func (s *ScripSnapshot) Lookup(exchSeg, instrumentType, name, tag string) []models.MInstrumentRecord {
	idx := s.index[scripKey{exchSeg, instrumentType, name, tag}]
	out := make([]models.MInstrumentRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Records[i])
	}
	return out
}

// Filter returns rows matching segment, type and name regardless of expiry.
func (s *ScripSnapshot) Filter(exchSeg, instrumentType, name string) []models.MInstrumentRecord {
	var out []models.MInstrumentRecord
	for _, rec := range s.Records {
		if rec.ExchSeg == exchSeg && rec.InstrumentType == instrumentType && rec.Name == name {
			out = append(out, rec)
		}
	}
	return out
}

// Len is the number of rows.
func (s *ScripSnapshot) Len() int {
	return len(s.Records)
}

// -----------------------------------------------------------------------------
// Cache
// -----------------------------------------------------------------------------

// ScripStats is reported by the control plane.
type ScripStats struct {
	Rows      int       `json:"rows"`
	FetchedAt time.Time `json:"fetchedAt"`
	Fetches   int64     `json:"fetches"`
	Failures  int64     `json:"failures"`
	Stale     bool      `json:"stale"`
}

// ScripMasterCache keeps the latest snapshot. At most one download runs at a
// time; concurrent misses wait on it.
type ScripMasterCache struct {
	Source  interfaces.IScripSource
	TTL     time.Duration
	Timeout time.Duration
	Logger  *logger.Logger

	current  atomic.Pointer[ScripSnapshot]
	group    singleflight.Group
	now      func() time.Time
	fetches  atomic.Int64
	failures atomic.Int64
	failedAt atomic.Int64 // unix nanos of the last failed download, zero after a success

	// RetryAfter is how long a stale snapshot is served without another
	// download attempt once one has failed.
	RetryAfter time.Duration
}

// -----------------------------------------------------------------------------

func NewScripMasterCache(source interfaces.IScripSource, ttl, timeout time.Duration, log *logger.Logger) *ScripMasterCache {
	if ttl <= 0 {
		ttl = DefaultScripTTL
	}
	if timeout <= 0 {
		timeout = DefaultScripTimeout
	}
	return &ScripMasterCache{
		Source:     source,
		TTL:        ttl,
		Timeout:    timeout,
		Logger:     log,
		RetryAfter: DefaultScripRetryAfter,
		now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

// SetClock replaces the time source. Tests only.
func (c *ScripMasterCache) SetClock(now func() time.Time) {
	c.now = now
}

// -----------------------------------------------------------------------------

// GetAll returns every row of the current snapshot.
func (c *ScripMasterCache) GetAll(ctx context.Context) ([]models.MInstrumentRecord, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

// -----------------------------------------------------------------------------

// Snapshot returns the fresh snapshot, downloading when it is missing or past
// its TTL. A failed download falls back to the previous snapshot.
func (c *ScripMasterCache) Snapshot(ctx context.Context) (*ScripSnapshot, error) {
	snap := c.current.Load()
	if snap != nil && c.now().Sub(snap.FetchedAt) < c.TTL {
		return snap, nil
	}
	if snap != nil && c.backingOff() {
		return snap, nil
	}
	return c.load(ctx)
}

// -----------------------------------------------------------------------------

func (c *ScripMasterCache) backingOff() bool {
	failed := c.failedAt.Load()
	return failed != 0 && c.now().Sub(time.Unix(0, failed)) < c.RetryAfter
}

// -----------------------------------------------------------------------------

// Refresh downloads regardless of freshness.
func (c *ScripMasterCache) Refresh(ctx context.Context) (*ScripSnapshot, error) {
	return c.load(ctx)
}

// -----------------------------------------------------------------------------

func (c *ScripMasterCache) Stats() ScripStats {
	stats := ScripStats{
		Fetches:  c.fetches.Load(),
		Failures: c.failures.Load(),
	}
	if snap := c.current.Load(); snap != nil {
		stats.Rows = snap.Len()
		stats.FetchedAt = snap.FetchedAt
		stats.Stale = c.now().Sub(snap.FetchedAt) >= c.TTL
	}
	return stats
}

// -----------------------------------------------------------------------------

func (c *ScripMasterCache) load(ctx context.Context) (*ScripSnapshot, error) {
	// The shared download must outlive any single caller.
	ch := c.group.DoChan("scrip-master", func() (interface{}, error) {
		return c.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		if snap := c.current.Load(); snap != nil {
			return snap, nil
		}
		return nil, fmt.Errorf("waiting for scrip master: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ScripSnapshot), nil
	}
}

// -----------------------------------------------------------------------------

func (c *ScripMasterCache) fetch(ctx context.Context) (*ScripSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	c.fetches.Add(1)
	start := c.now()
	c.Logger.Info("Downloading scrip master")

	records, err := c.Source.Fetch(ctx)
	if err != nil {
		c.failures.Add(1)
		c.failedAt.Store(c.now().UnixNano())
		if stale := c.current.Load(); stale != nil {
			c.Logger.Warning("Scrip master download failed, serving snapshot from %s: %v",
				stale.FetchedAt.Format(time.RFC3339), err)
			return stale, nil
		}
		return nil, helpers.NewDataSourceError("scrip master unavailable", err)
	}

	snap := NewScripSnapshot(records, c.now())
	c.current.Store(snap)
	c.failedAt.Store(0)
	c.Logger.Info("Scrip master loaded: %d rows in %v", snap.Len(), c.now().Sub(start).Round(time.Millisecond))
	return snap, nil
}
