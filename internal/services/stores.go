package services

import (
	"context"
	"time"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// CacheStore persists normalized-query replies keyed by hash.
// GetCached returns (nil, nil) on a miss or an expired entry.
type CacheStore interface {
	GetCached(ctx context.Context, hash string, now time.Time) (*domain.CachedResponse, error)
	TouchCached(ctx context.Context, hash string) error
	PutCached(ctx context.Context, hash, query, reply string, ttl time.Duration, now time.Time) error
}

// CounterStore performs the atomic "increment if below max" on a fixed window.
type CounterStore interface {
	CompareAndIncrement(ctx context.Context, user string, platform domain.Platform, max int, window time.Duration, now time.Time) (bool, error)
}

// SessionStore appends voice session records.
type SessionStore interface {
	CreateSession(ctx context.Context, rec *domain.VoiceSession) error
}

// LogStore appends operational error records.
type LogStore interface {
	CreateSystemLog(ctx context.Context, level, service, message string, metadata map[string]any) error
}

// DeliveryStore records webhook deliveries for duplicate suppression.
type DeliveryStore interface {
	ClaimDelivery(ctx context.Context, platform domain.Platform, key string, ttl time.Duration) (bool, error)
}
