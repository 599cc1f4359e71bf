package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// CreateSession appends one voice session row. ID and CreatedAt are filled in
// when the caller left them empty.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.VoiceSession) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(s).Error
}

// sessionScope narrows to one platform when platform is non-empty.
func sessionScope(ctx context.Context, db *gorm.DB, platform string) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.VoiceSession{})
	if p := strings.TrimSpace(platform); p != "" {
		q = q.Where("platform = ?", p)
	}
	return q
}

// CountSessions returns the number of sessions, optionally for one platform.
func CountSessions(ctx context.Context, db *gorm.DB, platform string) (int64, error) {
	var n int64
	err := sessionScope(ctx, db, platform).Count(&n).Error
	return n, err
}

// ListSessionsPage returns sessions newest first using offset/limit.
func ListSessionsPage(ctx context.Context, db *gorm.DB, platform string, offset, limit int) ([]domain.VoiceSession, error) {
	var out []domain.VoiceSession
	err := sessionScope(ctx, db, platform).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
