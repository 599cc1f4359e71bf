// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries for the operations
// dashboard and the operator CLI.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// DashboardStats summarizes relay activity.
type DashboardStats struct {
	TotalSessions   int64            `json:"total_sessions"`
	ByPlatform      map[string]int64 `json:"by_platform"`
	CacheHitRuns    int64            `json:"cache_hit_runs"`
	AvgProcessingMs float64          `json:"avg_processing_ms"`
	TotalCostUSD    float64          `json:"total_cost_usd"`
	LiveCacheItems  int64            `json:"live_cache_entries"`
	CacheHits       int64            `json:"cache_hits"`
	ErrorsLast24h   int64            `json:"errors_last_24h"`
	LastSessionAt   *time.Time       `json:"last_session_at,omitempty"`
}

// SessionStats computes DashboardStats at time now.
//
// It runs a handful of lightweight queries; when no sessions exist the
// averages are zero and LastSessionAt is nil.
func SessionStats(ctx context.Context, db *gorm.DB, now time.Time) (*DashboardStats, error) {
	out := &DashboardStats{ByPlatform: map[string]int64{}}
	q := db.WithContext(ctx)

	if err := q.Model(&domain.VoiceSession{}).Count(&out.TotalSessions).Error; err != nil {
		return nil, err
	}

	var perPlatform []struct {
		Platform string
		N        int64
	}
	if err := q.Model(&domain.VoiceSession{}).
		Select("platform, COUNT(*) AS n").
		Group("platform").
		Scan(&perPlatform).Error; err != nil {
		return nil, err
	}
	for _, p := range perPlatform {
		out.ByPlatform[p.Platform] = p.N
	}

	if err := q.Model(&domain.VoiceSession{}).Where("cache_hit = ?", true).Count(&out.CacheHitRuns).Error; err != nil {
		return nil, err
	}

	var agg struct {
		AvgMs float64
		Cost  float64
	}
	if err := q.Model(&domain.VoiceSession{}).
		Select("COALESCE(AVG(processing_time_ms), 0) AS avg_ms, COALESCE(SUM(estimated_cost_usd), 0) AS cost").
		Scan(&agg).Error; err != nil {
		return nil, err
	}
	out.AvgProcessingMs = agg.AvgMs
	out.TotalCostUSD = agg.Cost

	if err := q.Model(&domain.CachedResponse{}).Where("expires_at > ?", now).Count(&out.LiveCacheItems).Error; err != nil {
		return nil, err
	}
	var hits struct{ Total int64 }
	if err := q.Model(&domain.CachedResponse{}).
		Select("COALESCE(SUM(hit_count), 0) AS total").
		Scan(&hits).Error; err != nil {
		return nil, err
	}
	out.CacheHits = hits.Total

	n, err := CountSystemLogsSince(ctx, db, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	out.ErrorsLast24h = n

	if out.TotalSessions > 0 {
		// Get latest created_at (avoid MAX() -> TEXT in SQLite)
		var row struct {
			CreatedAt time.Time
		}
		if err := q.Model(&domain.VoiceSession{}).Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
			return nil, err
		}
		out.LastSessionAt = &row.CreatedAt
	}
	return out, nil
}
