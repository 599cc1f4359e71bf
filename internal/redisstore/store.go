// Package redisstore implements the response cache and rate-limit counters
// on Redis, for deployments that run several relay instances in front of a
// shared key-value store.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// DefaultPrefix namespaces every key written by the relay.
const DefaultPrefix = "voicerelay"

// Open connects to Redis. url may be a redis:// or rediss:// URL or a bare
// host:port address.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("redis url is empty")
	}
	var rdb *redis.Client
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opt, err := redis.ParseURL(url)
		if err != nil {
			return nil, err
		}
		rdb = redis.NewClient(opt)
	} else {
		rdb = redis.NewClient(&redis.Options{Addr: url})
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Store implements the cache and counter stores.
type Store struct {
	rdb    redis.Cmdable
	prefix string
}

// New wraps rdb. An empty prefix uses DefaultPrefix.
func New(rdb redis.Cmdable, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) cacheKey(hash string) string {
	return s.prefix + ":cache:" + hash
}

func (s *Store) counterKey(user string, platform domain.Platform, windowStart time.Time) string {
	return fmt.Sprintf("%s:rl:%s:%s:%d", s.prefix, platform, user, windowStart.Unix())
}

// Cache hash fields.
const (
	fieldQuery   = "query"
	fieldReply   = "reply"
	fieldCreated = "created_at"
	fieldExpires = "expires_at"
	fieldHits    = "hits"
)

// GetCached returns the live entry for hash, or (nil, nil) on a miss.
func (s *Store) GetCached(ctx context.Context, hash string, now time.Time) (*domain.CachedResponse, error) {
	m, err := s.rdb.HGetAll(ctx, s.cacheKey(hash)).Result()
	if err != nil {
		return nil, err
	}
	return decodeEntry(hash, m, now), nil
}

// decodeEntry turns a cache hash into a record; it returns nil for missing,
// malformed or expired entries.
func decodeEntry(hash string, m map[string]string, now time.Time) *domain.CachedResponse {
	reply, ok := m[fieldReply]
	if !ok {
		return nil
	}
	expires, err := strconv.ParseInt(m[fieldExpires], 10, 64)
	if err != nil {
		return nil
	}
	exp := time.UnixMilli(expires).UTC()
	if !now.Before(exp) {
		return nil
	}
	created, _ := strconv.ParseInt(m[fieldCreated], 10, 64)
	hits, _ := strconv.Atoi(m[fieldHits])
	return &domain.CachedResponse{
		QueryHash:     hash,
		OriginalQuery: m[fieldQuery],
		ResponseText:  reply,
		CreatedAt:     time.UnixMilli(created).UTC(),
		ExpiresAt:     exp,
		HitCount:      hits,
	}
}

// touchScript bumps the hit counter only on a live entry, so a key that
// expired after the lookup is not recreated without a TTL.
var touchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
`)

// TouchCached increments the hit counter for hash. A missing entry is a no-op.
func (s *Store) TouchCached(ctx context.Context, hash string) error {
	return touchScript.Run(ctx, s.rdb, []string{s.cacheKey(hash)}, fieldHits).Err()
}

// PutCached replaces the entry for hash; Redis expires it after ttl.
func (s *Store) PutCached(ctx context.Context, hash, query, reply string, ttl time.Duration, now time.Time) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	key := s.cacheKey(hash)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			fieldQuery, query,
			fieldReply, reply,
			fieldCreated, now.UnixMilli(),
			fieldExpires, now.Add(ttl).UnixMilli(),
			fieldHits, 0,
		)
		p.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}

// admitScript increments the window counter only while it is below max and
// sets the window expiry on the first hit. Returns 1 when admitted.
var admitScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
  return 0
end
n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// CompareAndIncrement admits at most max requests per fixed window.
func (s *Store) CompareAndIncrement(ctx context.Context, user string, platform domain.Platform, max int, window time.Duration, now time.Time) (bool, error) {
	if max <= 0 {
		return false, nil
	}
	if window <= 0 {
		return false, errors.New("window must be positive")
	}
	start := now.UTC().Truncate(window)
	key := s.counterKey(user, platform, start)
	n, err := admitScript.Run(ctx, s.rdb, []string{key}, max, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
