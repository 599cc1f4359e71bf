package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// upsertCounterSQL admits and counts in one conditional write. When the row
// already holds max admissions the DO UPDATE predicate fails, no row is
// affected, and the request is denied. Works on SQLite >= 3.24 and PostgreSQL.
const upsertCounterSQL = `INSERT INTO rate_limits (user_identifier, platform, window_start, count, updated_at)
VALUES (?, ?, ?, 1, ?)
ON CONFLICT (user_identifier, platform, window_start)
DO UPDATE SET count = rate_limits.count + 1, updated_at = excluded.updated_at
WHERE rate_limits.count < ?`

// WindowStart returns the fixed window that contains now.
func WindowStart(now time.Time, window time.Duration) time.Time {
	return now.UTC().Truncate(window)
}

// CompareAndIncrement atomically admits one request for (user, platform) in
// the window containing now. It returns false once max admissions have been
// recorded for that window.
func CompareAndIncrement(ctx context.Context, db *gorm.DB, user, platform string, max int, window time.Duration, now time.Time) (bool, error) {
	if max <= 0 {
		return false, nil
	}
	if window <= 0 {
		return false, errors.New("rate-limit window must be positive")
	}
	ws := WindowStart(now, window)
	res := db.WithContext(ctx).Exec(upsertCounterSQL, user, platform, ws, now.UTC(), max)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetWindowCount reports the admissions recorded for the window containing now.
func GetWindowCount(ctx context.Context, db *gorm.DB, user, platform string, window time.Duration, now time.Time) (int, error) {
	var rec domain.RateLimitCounter
	err := db.WithContext(ctx).
		Where("user_identifier = ? AND platform = ? AND window_start = ?", user, platform, WindowStart(now, window)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}

// PurgeRateWindows deletes windows that started before cutoff.
func PurgeRateWindows(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("window_start < ?", cutoff.UTC()).Delete(&domain.RateLimitCounter{})
	return res.RowsAffected, res.Error
}
