package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// GetCachedResponse returns the live entry for hash or ErrNotFound. Entries
// whose expires_at is not after now are treated as absent.
func GetCachedResponse(ctx context.Context, db *gorm.DB, hash string, now time.Time) (*domain.CachedResponse, error) {
	var rec domain.CachedResponse
	err := db.WithContext(ctx).
		Where("query_hash = ? AND expires_at > ?", hash, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// IncrementCacheHit bumps hit_count with a single UPDATE so concurrent hits
// are never lost.
func IncrementCacheHit(ctx context.Context, db *gorm.DB, hash string) error {
	res := db.WithContext(ctx).
		Model(&domain.CachedResponse{}).
		Where("query_hash = ?", hash).
		UpdateColumn("hit_count", gorm.Expr("hit_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertCachedResponse writes the entry for query_hash in one statement,
// replacing any previous (possibly expired) row and resetting hit_count.
func UpsertCachedResponse(ctx context.Context, db *gorm.DB, hash, query, reply string, ttl time.Duration, now time.Time) (*domain.CachedResponse, error) {
	rec := &domain.CachedResponse{
		ID:            uuid.NewString(),
		QueryHash:     hash,
		OriginalQuery: query,
		ResponseText:  reply,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		HitCount:      0,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "query_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"original_query", "response_text", "created_at", "expires_at", "hit_count",
		}),
	}).Create(rec).Error
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredCache deletes entries that expired at or before now.
func PurgeExpiredCache(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.CachedResponse{})
	return res.RowsAffected, res.Error
}
