package storage

import (
	"context"
	"errors"
	"time"

	"options-observer/src/cache"
	"options-observer/src/helpers"
	"options-observer/src/models"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
)

const DefaultTokenKey = "authTokens"

// tokenTTL is what remains of the set's lifetime, or SessionTokenTTL when the
// set carries no expiry.
func tokenTTL(tokens *models.MSessionTokens, now time.Time) time.Duration {
	if tokens.ExpiresAt.IsZero() {
		return cache.SessionTokenTTL
	}
	return tokens.ExpiresAt.Sub(now)
}

// -----------------------------------------------------------------------------

// MemoryTokenStore keeps the token set in the process TTL cache. It does not
// survive restarts.
type MemoryTokenStore struct {
	Cache *cache.TTLCache
	Key   string
	now   func() time.Time
}

func NewMemoryTokenStore(store *cache.TTLCache, key string) *MemoryTokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &MemoryTokenStore{Cache: store, Key: key, now: time.Now}
}

// -----------------------------------------------------------------------------

func (s *MemoryTokenStore) SaveTokens(ctx context.Context, tokens *models.MSessionTokens) error {
	ttl := tokenTTL(tokens, s.now())
	if ttl <= 0 {
		s.Cache.Delete(s.Key)
		return nil
	}
	cp := *tokens
	s.Cache.Set(s.Key, &cp, ttl)
	return nil
}

// -----------------------------------------------------------------------------

func (s *MemoryTokenStore) LoadTokens(ctx context.Context) (*models.MSessionTokens, error) {
	v, ok := s.Cache.Get(s.Key)
	if !ok {
		return nil, nil
	}
	tokens, ok := v.(*models.MSessionTokens)
	if !ok {
		return nil, nil
	}
	cp := *tokens
	return &cp, nil
}

// -----------------------------------------------------------------------------

func (s *MemoryTokenStore) ClearTokens(ctx context.Context) error {
	s.Cache.Delete(s.Key)
	return nil
}

// -----------------------------------------------------------------------------

// RedisTokenStore keeps the token set as JSON under one key with a matching
// expiration, so a restart inside the token lifetime skips the login.
type RedisTokenStore struct {
	Client *redis.Client
	Key    string
	now    func() time.Time
}

// NewRedisTokenStore parses a redis:// URL. The connection is lazy; call Ping
// to check it.
func NewRedisTokenStore(url, key string) (*RedisTokenStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, helpers.NewDatabaseError("parsing redis url", err)
	}
	if key == "" {
		key = DefaultTokenKey
	}
	return &RedisTokenStore{
		Client: redis.NewClient(opts),
		Key:    key,
		now:    time.Now,
	}, nil
}

// -----------------------------------------------------------------------------

func (s *RedisTokenStore) Ping(ctx context.Context) error {
	if err := s.Client.Ping(ctx).Err(); err != nil {
		return helpers.NewDatabaseError("redis ping", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *RedisTokenStore) SaveTokens(ctx context.Context, tokens *models.MSessionTokens) error {
	ttl := tokenTTL(tokens, s.now())
	if ttl <= 0 {
		return s.ClearTokens(ctx)
	}

	data, err := sonic.Marshal(tokens)
	if err != nil {
		return helpers.NewDecodeError("encoding tokens", err)
	}
	if err := s.Client.Set(ctx, s.Key, data, ttl).Err(); err != nil {
		return helpers.NewDatabaseError("redis set tokens", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *RedisTokenStore) LoadTokens(ctx context.Context) (*models.MSessionTokens, error) {
	data, err := s.Client.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, helpers.NewDatabaseError("redis get tokens", err)
	}

	var tokens models.MSessionTokens
	if err := sonic.Unmarshal(data, &tokens); err != nil {
		return nil, helpers.NewDecodeError("decoding stored tokens", err)
	}
	return &tokens, nil
}

// -----------------------------------------------------------------------------

func (s *RedisTokenStore) ClearTokens(ctx context.Context) error {
	if err := s.Client.Del(ctx, s.Key).Err(); err != nil {
		return helpers.NewDatabaseError("redis del tokens", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *RedisTokenStore) Close() error {
	return s.Client.Close()
}
