package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// CreateSystemLog writes one operational error record.
func CreateSystemLog(ctx context.Context, db *gorm.DB, level, service, message string, metadata map[string]any) (*domain.SystemLog, error) {
	if level == "" {
		level = "error"
	}
	rec := &domain.SystemLog{
		ID:        uuid.NewString(),
		Level:     level,
		Service:   service,
		Message:   message,
		Metadata:  datatypes.JSONMap(metadata),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// CountSystemLogsSince counts records created at or after since.
func CountSystemLogsSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.SystemLog{}).Where("created_at >= ?", since.UTC()).Count(&n).Error
	return n, err
}
