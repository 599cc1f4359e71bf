// Package services – AdminService
//
// AdminService backs the read-only dashboard API: paginated session history
// and aggregate statistics. It never mutates state.

package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-voice-relay/internal/domain"
	"github.com/tbourn/go-voice-relay/internal/repo"
	"github.com/tbourn/go-voice-relay/internal/utils"
)

// SessionReader is the query side of the session store.
type SessionReader interface {
	ListSessionsPage(ctx context.Context, platform string, offset, limit int) ([]domain.VoiceSession, int64, error)
	Stats(ctx context.Context, now time.Time) (*repo.DashboardStats, error)
}

// AdminService exposes session history and statistics.
type AdminService struct {
	Store SessionReader

	// MaxPageSize caps page_size; 100 when zero.
	MaxPageSize int
}

// ListSessions returns one page of sessions, newest first. An empty platform
// lists every channel; an unknown one is rejected.
func (s *AdminService) ListSessions(ctx context.Context, platform string, page, pageSize int) ([]domain.VoiceSession, int64, error) {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "ListSessions",
		trace.WithAttributes(
			attribute.String("platform", platform),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if platform != "" {
		p, err := domain.ParsePlatform(platform)
		if err != nil {
			return nil, 0, ErrUnknownPlatform
		}
		platform = string(p)
	}
	if page < 1 {
		page = 1
	}
	max := s.MaxPageSize
	if max <= 0 {
		max = 100
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > max {
		pageSize = max
	}
	return s.Store.ListSessionsPage(ctx, platform, utils.Offset(page, pageSize), pageSize)
}

// Stats returns dashboard aggregates as of now.
func (s *AdminService) Stats(ctx context.Context) (*repo.DashboardStats, error) {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "Stats")
	defer span.End()

	return s.Store.Stats(ctx, time.Now().UTC())
}
