package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"options-observer/src/cache"
	"options-observer/src/helpers"
	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOptions() []models.MResolvedOption {
	return []models.MResolvedOption{
		{Token: "43650", Symbol: "NIFTY29MAY2524900CE", Strike: 24900, OptType: "CE", Expiry: "2025-05-29", LotSize: 75, TickSize: 0.05},
		{Token: "43651", Symbol: "NIFTY29MAY2524900PE", Strike: 24900, OptType: "PE", Expiry: "2025-05-29", LotSize: 75, TickSize: 0.05},
		{Token: "43660", Symbol: "NIFTY29MAY2525000CE", Strike: 25000, OptType: "CE", Expiry: "2025-05-29", LotSize: 75, TickSize: 0.05},
		{Token: "51200", Symbol: "NIFTY05JUN2525000PE", Strike: 25000, OptType: "PE", Expiry: "2025-06-05", LotSize: 75, TickSize: 0.05},
		{Token: "30001", Symbol: "NIFTY22MAY2524000CE", Strike: 24000, OptType: "CE", Expiry: "2025-05-22", LotSize: 75, TickSize: 0.05},
	}
}

func openSQLite(t *testing.T) *AsyncSQLiteDB {
	t.Helper()
	db := NewAsyncSQLiteDB(filepath.Join(t.TempDir(), "nested", "options.db"), logger.NewNopLogger())
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

type storeBackend struct {
	name string
	open func(t *testing.T) interfaces.IInstrumentStore
}

// backends lists the stores to run the shared cases against. Postgres runs
// only when DB_CONNECTION_STRING points at a server, in a throwaway schema.
func backends() []storeBackend {
	return []storeBackend{
		{name: "sqlite", open: func(t *testing.T) interfaces.IInstrumentStore { return openSQLite(t) }},
		{name: "postgres", open: func(t *testing.T) interfaces.IInstrumentStore { return openPostgres(t) }},
	}
}

func openPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("DB_CONNECTION_STRING not set")
	}
	db, err := NewPostgresDB(dsn, logger.NewNopLogger())
	require.NoError(t, err)
	db.Schema = fmt.Sprintf("options_observer_test_%d", time.Now().UnixNano())
	require.NoError(t, db.Initialize())
	t.Cleanup(func() {
		_, _ = db.DB.Exec(fmt.Sprintf(`DROP SCHEMA IF EXISTS "%s" CASCADE`, db.Schema))
		db.Close()
	})
	return db
}

func TestInstrumentStore_SaveAndQuery(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			db := b.open(t)
			require.NoError(t, db.SaveOptions(sampleOptions()))

			byExpiry, err := db.GetOptionsByExpiry("2025-05-29")
			require.NoError(t, err)
			require.Len(t, byExpiry, 3)
			assert.Equal(t, "43650", byExpiry[0].Token)
			assert.Equal(t, "43651", byExpiry[1].Token)
			assert.Equal(t, 75, byExpiry[0].LotSize)
			assert.InDelta(t, 0.05, byExpiry[0].TickSize, 1e-9)

			inRange, err := db.GetOptionsInStrikeRange(24900, 25000)
			require.NoError(t, err)
			assert.Len(t, inRange, 4)

			expiries, err := db.GetAllExpiries()
			require.NoError(t, err)
			assert.Equal(t, []string{"2025-05-22", "2025-05-29", "2025-06-05"}, expiries)

			opt, err := db.GetOptionByToken("51200")
			require.NoError(t, err)
			require.NotNil(t, opt)
			assert.Equal(t, "NIFTY05JUN2525000PE", opt.Symbol)

			missing, err := db.GetOptionByToken("nope")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestInstrumentStore_UpsertReplaces(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			db := b.open(t)
			require.NoError(t, db.SaveOptions(sampleOptions()))

			changed := sampleOptions()[0]
			changed.LotSize = 50
			require.NoError(t, db.SaveOptions([]models.MResolvedOption{changed}))

			opt, err := db.GetOptionByToken(changed.Token)
			require.NoError(t, err)
			assert.Equal(t, 50, opt.LotSize)

			all, err := db.GetOptionsInStrikeRange(0, 100000)
			require.NoError(t, err)
			assert.Len(t, all, 5)

			assert.NoError(t, db.SaveOptions(nil))
		})
	}
}

func TestInstrumentStore_CleanupExpired(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			db := b.open(t)
			require.NoError(t, db.SaveOptions(sampleOptions()))

			n, err := db.CleanupExpired("2025-05-29")
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			expiries, err := db.GetAllExpiries()
			require.NoError(t, err)
			assert.Equal(t, []string{"2025-05-29", "2025-06-05"}, expiries)
		})
	}
}

func TestPostgres_SchemaAndConnectFailure(t *testing.T) {
	db, err := NewPostgresDB("postgres://observer@127.0.0.1:1/options?sslmode=disable&connect_timeout=2", logger.NewNopLogger())
	require.NoError(t, err)
	assert.NotEmpty(t, db.Schema)

	db.Schema = "observer"
	assert.Equal(t, `"observer"."options"`, db.table())

	err = db.Initialize()
	require.Error(t, err)
	var dbErr *helpers.DatabaseError
	assert.ErrorAs(t, err, &dbErr)
	assert.Nil(t, db.DB)
	assert.NoError(t, db.Close())
}

func TestSQLite_ReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.db")
	db := NewAsyncSQLiteDB(path, logger.NewNopLogger())
	require.NoError(t, db.Initialize())
	require.NoError(t, db.SaveOptions(sampleOptions()))
	require.NoError(t, db.Close())

	again := NewAsyncSQLiteDB(path, logger.NewNopLogger())
	require.NoError(t, again.Initialize())
	defer again.Close()

	expiries, err := again.GetAllExpiries()
	require.NoError(t, err)
	assert.Len(t, expiries, 3)
}

// -----------------------------------------------------------------------------

func TestTokenStores(t *testing.T) {
	mr := miniredis.RunT(t)
	redisStore, err := NewRedisTokenStore("redis://"+mr.Addr()+"/0", "")
	require.NoError(t, err)
	t.Cleanup(func() { redisStore.Close() })

	memCache := cache.NewTTLCache(time.Hour, 0)
	t.Cleanup(memCache.Close)

	tests := []struct {
		name  string
		store interface {
			SaveTokens(context.Context, *models.MSessionTokens) error
			LoadTokens(context.Context) (*models.MSessionTokens, error)
			ClearTokens(context.Context) error
		}
	}{
		{name: "memory", store: NewMemoryTokenStore(memCache, "")},
		{name: "redis", store: redisStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			got, err := tt.store.LoadTokens(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)

			issued := time.Now().UTC().Truncate(time.Second)
			tokens := &models.MSessionTokens{
				AccessToken:  "jwt",
				RefreshToken: "refresh",
				FeedToken:    "feed",
				IssuedAt:     issued,
				ExpiresAt:    issued.Add(28 * time.Hour),
			}
			require.NoError(t, tt.store.SaveTokens(ctx, tokens))

			got, err = tt.store.LoadTokens(ctx)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "jwt", got.AccessToken)
			assert.Equal(t, "refresh", got.RefreshToken)
			assert.True(t, tokens.ExpiresAt.Equal(got.ExpiresAt))

			require.NoError(t, tt.store.ClearTokens(ctx))
			got, err = tt.store.LoadTokens(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestRedisTokenStore_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisTokenStore("redis://"+mr.Addr(), "tokens:test")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	now := time.Now()
	require.NoError(t, store.SaveTokens(ctx, &models.MSessionTokens{AccessToken: "jwt", ExpiresAt: now.Add(2 * time.Hour)}))
	ttl := mr.TTL("tokens:test")
	assert.Greater(t, ttl, time.Hour)
	assert.LessOrEqual(t, ttl, 2*time.Hour)

	mr.FastForward(3 * time.Hour)
	got, err := store.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// an already expired set is not stored
	require.NoError(t, store.SaveTokens(ctx, &models.MSessionTokens{AccessToken: "old", ExpiresAt: now.Add(-time.Minute)}))
	assert.False(t, mr.Exists("tokens:test"))
}

func TestRedisTokenStore_BadURL(t *testing.T) {
	_, err := NewRedisTokenStore("not-a-url://", "")
	assert.Error(t, err)
}
