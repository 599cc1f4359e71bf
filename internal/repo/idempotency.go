// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for WebhookDelivery,
// which suppresses re-processing of provider deliveries that were already
// accepted.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// GetDelivery returns a non-expired record or ErrNotFound.
func GetDelivery(ctx context.Context, db *gorm.DB, platform, key string, now time.Time) (*domain.WebhookDelivery, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.WebhookDelivery
	err := db.WithContext(ctx).
		Where("platform = ? AND delivery_key = ? AND expires_at > ?", platform, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// ClaimDelivery records (platform, key) and returns ErrDuplicate when a live
// record already exists. An expired record for the same key is replaced.
func ClaimDelivery(ctx context.Context, db *gorm.DB, platform, key string, ttl time.Duration) (*domain.WebhookDelivery, error) {
	now := time.Now().UTC()
	if err := db.WithContext(ctx).
		Where("platform = ? AND delivery_key = ? AND expires_at <= ?", platform, key, now).
		Delete(&domain.WebhookDelivery{}).Error; err != nil {
		return nil, err
	}
	rec := &domain.WebhookDelivery{
		ID:          uuid.NewString(),
		Platform:    platform,
		DeliveryKey: key,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredDeliveries removes records that expired at or before now.
func PurgeExpiredDeliveries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.WebhookDelivery{})
	return res.RowsAffected, res.Error
}
