package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// SQLStore adapts the repository free functions to the store contracts
// consumed by the service layer.
type SQLStore struct {
	DB *gorm.DB
}

// NewSQLStore wraps db.
func NewSQLStore(db *gorm.DB) *SQLStore { return &SQLStore{DB: db} }

// GetCached returns the live entry for hash, or (nil, nil) on a miss.
func (s *SQLStore) GetCached(ctx context.Context, hash string, now time.Time) (*domain.CachedResponse, error) {
	rec, err := GetCachedResponse(ctx, s.DB, hash, now)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// TouchCached increments the hit counter for hash.
func (s *SQLStore) TouchCached(ctx context.Context, hash string) error {
	return IncrementCacheHit(ctx, s.DB, hash)
}

// PutCached upserts the entry for hash with a fresh expiry.
func (s *SQLStore) PutCached(ctx context.Context, hash, query, reply string, ttl time.Duration, now time.Time) error {
	_, err := UpsertCachedResponse(ctx, s.DB, hash, query, reply, ttl, now)
	return err
}

// CompareAndIncrement proxies the conditional counter upsert.
func (s *SQLStore) CompareAndIncrement(ctx context.Context, user string, platform domain.Platform, max int, window time.Duration, now time.Time) (bool, error) {
	return CompareAndIncrement(ctx, s.DB, user, string(platform), max, window, now)
}

// CreateSession appends a voice session row.
func (s *SQLStore) CreateSession(ctx context.Context, rec *domain.VoiceSession) error {
	return CreateSession(ctx, s.DB, rec)
}

// CreateSystemLog writes an operational error record.
func (s *SQLStore) CreateSystemLog(ctx context.Context, level, service, message string, metadata map[string]any) error {
	_, err := CreateSystemLog(ctx, s.DB, level, service, message, metadata)
	return err
}

// ClaimDelivery reports whether (platform, key) was newly claimed.
func (s *SQLStore) ClaimDelivery(ctx context.Context, platform domain.Platform, key string, ttl time.Duration) (bool, error) {
	_, err := ClaimDelivery(ctx, s.DB, string(platform), key, ttl)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HasDelivery reports whether a live record exists for (platform, key).
func (s *SQLStore) HasDelivery(ctx context.Context, platform domain.Platform, key string, now time.Time) (bool, error) {
	_, err := GetDelivery(ctx, s.DB, string(platform), key, now)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListSessionsPage returns a page of sessions and the total count.
func (s *SQLStore) ListSessionsPage(ctx context.Context, platform string, offset, limit int) ([]domain.VoiceSession, int64, error) {
	total, err := CountSessions(ctx, s.DB, platform)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.VoiceSession{}, 0, nil
	}
	items, err := ListSessionsPage(ctx, s.DB, platform, offset, limit)
	return items, total, err
}

// Stats proxies SessionStats.
func (s *SQLStore) Stats(ctx context.Context, now time.Time) (*DashboardStats, error) {
	return SessionStats(ctx, s.DB, now)
}

// PurgeResult reports rows removed by Purge.
type PurgeResult struct {
	Cache      int64 `json:"cache"`
	RateLimits int64 `json:"rate_limits"`
	Deliveries int64 `json:"deliveries"`
}

// Purge removes expired cache entries and delivery records, and rate-limit
// windows that started more than keepWindows before now.
func (s *SQLStore) Purge(ctx context.Context, now time.Time, keepWindows time.Duration) (PurgeResult, error) {
	var out PurgeResult
	var err error
	if out.Cache, err = PurgeExpiredCache(ctx, s.DB, now); err != nil {
		return out, err
	}
	if out.RateLimits, err = PurgeRateWindows(ctx, s.DB, now.Add(-keepWindows)); err != nil {
		return out, err
	}
	if out.Deliveries, err = PurgeExpiredDeliveries(ctx, s.DB, now); err != nil {
		return out, err
	}
	return out, nil
}
