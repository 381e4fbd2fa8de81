// Package redis keeps the short-lived shared counters and tokens in Redis:
// the GoPlus daily scan counter and the GoPlus access token.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

const (
	defaultPrefix = "dexswipe:"
	dayLayout     = "2006-01-02"

	// dailyKeyRetention keeps a day's counter readable for a while after
	// UTC midnight.
	dailyKeyRetention = 48 * time.Hour
)

// reserveScript increments the counter only while it is below the limit.
// KEYS[1] counter key, ARGV[1] limit, ARGV[2] expire-at unix seconds.
var reserveScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
	return 0
end
redis.call('INCR', KEYS[1])
redis.call('EXPIREAT', KEYS[1], ARGV[2])
return 1
`)

type Store struct {
	client redis.UniversalClient
	prefix string
}

var (
	_ store.DailyUsageRepository = (*Store)(nil)
	_ store.AccessTokenCache     = (*Store)(nil)
)

// New connects to url and pings the server.
func New(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, defaultPrefix), nil
}

// NewWithClient wraps an existing client. Keys are namespaced by prefix.
func NewWithClient(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Check pings the server for health probes.
func (s *Store) Check(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (s *Store) dailyKey(day time.Time) string {
	return s.prefix + "goplus:daily:" + store.DayKey(day).Format(dayLayout)
}

func (s *Store) tokenKey(key string) string {
	return s.prefix + "token:" + key
}

func (s *Store) Reserve(ctx context.Context, day time.Time, limit uint) (bool, error) {
	if limit == 0 {
		return false, nil
	}
	expireAt := store.DayKey(day).Add(dailyKeyRetention).Unix()
	n, err := reserveScript.Run(ctx, s.client, []string{s.dailyKey(day)}, limit, expireAt).Int()
	if err != nil {
		return false, fmt.Errorf("reserve daily scan: %w", err)
	}
	return n == 1, nil
}

func (s *Store) Count(ctx context.Context, day time.Time) (uint, error) {
	n, err := s.client.Get(ctx, s.dailyKey(day)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count daily scans: %w", err)
	}
	return uint(n), nil
}

type tokenPayload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Store) GetToken(ctx context.Context, key string) (string, time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.tokenKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("get access token: %w", err)
	}
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", time.Time{}, false, fmt.Errorf("decode access token: %w", err)
	}
	return p.Token, p.ExpiresAt, true, nil
}

// SetToken stores the token until expiresAt. An already expired token is
// not written.
func (s *Store) SetToken(ctx context.Context, key, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(tokenPayload{Token: token, ExpiresAt: expiresAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode access token: %w", err)
	}
	if err := s.client.Set(ctx, s.tokenKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("set access token: %w", err)
	}
	return nil
}
