package resolver

import (
	"context"
	"fmt"

	datasource "options-observer/src/data_source"
	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"
)

// SnapshotProvider yields the current scrip master snapshot.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*datasource.ScripSnapshot, error)
}

// CachedResolver answers from the instrument store when it already holds
// every requested contract and falls back to the scrip master otherwise.
type CachedResolver struct {
	Underlying string
	Scrips     SnapshotProvider
	Store      interfaces.IInstrumentStore
	Logger     *logger.Logger
}

// -----------------------------------------------------------------------------

func NewCachedResolver(underlying string, scrips SnapshotProvider, store interfaces.IInstrumentStore, log *logger.Logger) *CachedResolver {
	return &CachedResolver{
		Underlying: underlying,
		Scrips:     scrips,
		Store:      store,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

func (r *CachedResolver) Resolve(ctx context.Context, expiry string, strikes []int) (models.MTokenMap, error) {
	if _, err := ExpiryTag(expiry); err != nil {
		return models.NewTokenMap(), err
	}

	if tokens, ok := r.fromStore(expiry, strikes); ok {
		return tokens, nil
	}

	snap, err := r.Scrips.Snapshot(ctx)
	if err != nil {
		return models.NewTokenMap(), fmt.Errorf("resolving %s: %w", expiry, err)
	}

	options, err := ResolveInstruments(snap, r.Underlying, expiry, strikes)
	if err != nil {
		return models.NewTokenMap(), err
	}

	if r.Store != nil && len(options) > 0 {
		if err := r.Store.SaveOptions(options); err != nil {
			r.Logger.Warning("Failed to persist %d contracts for %s: %v", len(options), expiry, err)
		}
	}

	return toTokenMap(options), nil
}

// -----------------------------------------------------------------------------

func (r *CachedResolver) fromStore(expiry string, strikes []int) (models.MTokenMap, bool) {
	if r.Store == nil {
		return models.MTokenMap{}, false
	}

	rows, err := r.Store.GetOptionsByExpiry(expiry)
	if err != nil {
		r.Logger.Warning("Instrument store read failed for %s: %v", expiry, err)
		return models.MTokenMap{}, false
	}

	wanted := make(map[int]bool, len(strikes))
	for _, s := range strikes {
		wanted[s] = true
	}

	var hits []models.MResolvedOption
	for _, row := range rows {
		if wanted[int(row.Strike)] {
			hits = append(hits, row)
		}
	}

	tokens := toTokenMap(hits)
	for _, s := range strikes {
		if tokens.Calls[s] == "" || tokens.Puts[s] == "" {
			return models.MTokenMap{}, false
		}
	}
	return tokens, true
}

// -----------------------------------------------------------------------------

func toTokenMap(options []models.MResolvedOption) models.MTokenMap {
	tokens := models.NewTokenMap()
	for _, o := range options {
		strike := int(o.Strike)
		switch o.OptType {
		case models.OptTypeCall:
			tokens.Calls[strike] = o.Token
		case models.OptTypePut:
			tokens.Puts[strike] = o.Token
		}
	}
	return tokens
}
