// Package domain defines the persistence models for the voice relay: cached
// completions, rate-limit windows, voice session logs and system error logs.
// These types are mapped with GORM and shared by the repository, store and
// service layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// CachedResponse is a prior completion keyed by the digest of a normalized
// query. At most one row exists per QueryHash; reads ignore rows whose
// ExpiresAt is in the past.
//
// Fields:
//   - QueryHash: hex digest of the lowercased, trimmed transcription.
//   - OriginalQuery: the normalized text the digest was computed from.
//   - ResponseText: the reply produced by the completion service.
//   - ExpiresAt: CreatedAt + cache TTL (indexed for purge sweeps).
//   - HitCount: number of times the entry was served from cache.
type CachedResponse struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	QueryHash     string    `json:"query_hash"     gorm:"type:varchar(64);not null;uniqueIndex:ux_cached_query_hash"`
	OriginalQuery string    `json:"original_query" gorm:"type:text;not null"`
	ResponseText  string    `json:"response_text"  gorm:"type:text;not null"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"     gorm:"not null;index"`
	HitCount      int       `json:"hit_count"      gorm:"not null;default:0"`
}

// TableName returns the database table name for CachedResponse.
func (CachedResponse) TableName() string { return "cached_responses" }

// RateLimitCounter counts admissions for one (user, platform) pair within a
// fixed window that starts at WindowStart.
type RateLimitCounter struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	UserIdentifier string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_rate_window,priority:1"`
	Platform       string    `gorm:"type:varchar(16);not null;uniqueIndex:ux_rate_window,priority:2"`
	WindowStart    time.Time `gorm:"not null;uniqueIndex:ux_rate_window,priority:3;index"`
	Count          int       `gorm:"not null;default:0"`
	UpdatedAt      time.Time
}

// TableName returns the database table name for RateLimitCounter.
func (RateLimitCounter) TableName() string { return "rate_limits" }

// VoiceSession is the append-only record of one completed pipeline run.
// Rows are written once and never updated by the pipeline.
type VoiceSession struct {
	ID                string    `json:"id"                     gorm:"type:char(36);primaryKey"`
	Platform          string    `json:"platform"               gorm:"type:varchar(16);not null;index:idx_sessions_platform_created,priority:1"`
	UserIdentifier    string    `json:"user_identifier"        gorm:"type:varchar(64);not null;index"`
	DisplayName       string    `json:"display_name"           gorm:"type:varchar(255)"`
	ChatIdentifier    string    `json:"chat_identifier"        gorm:"type:varchar(64);not null"`
	ProviderMessageID string    `json:"provider_message_id"    gorm:"type:varchar(128)"`
	AudioReference    string    `json:"audio_reference"        gorm:"type:text"`
	ArchiveURL        string    `json:"archive_url,omitempty"  gorm:"type:text"`
	TranscribedText   string    `json:"transcribed_text"       gorm:"type:text;not null"`
	ReplyText         string    `json:"reply_text"             gorm:"type:text;not null"`
	CacheHit          bool      `json:"cache_hit"              gorm:"not null;default:false"`
	ProcessingTimeMs  int64     `json:"processing_time_ms"     gorm:"not null"`
	AudioSizeBytes    int64     `json:"audio_size_bytes"       gorm:"not null"`
	DurationSeconds   int       `json:"duration_seconds"`
	TranscriptionCost float64   `json:"transcription_cost_usd" gorm:"column:transcription_cost_usd"`
	CompletionCost    float64   `json:"completion_cost_usd"    gorm:"column:completion_cost_usd"`
	EstimatedCostUSD  float64   `json:"estimated_cost_usd"     gorm:"column:estimated_cost_usd"`
	CreatedAt         time.Time `json:"created_at"             gorm:"index:idx_sessions_platform_created,priority:2"`
}

// TableName returns the database table name for VoiceSession.
func (VoiceSession) TableName() string { return "voice_sessions" }

// SystemLog is a write-only operational record of an unexpected failure.
type SystemLog struct {
	ID        string            `json:"id"         gorm:"type:char(36);primaryKey"`
	Level     string            `json:"level"      gorm:"type:varchar(16);not null;default:'error'"`
	Service   string            `json:"service"    gorm:"type:varchar(64);not null;index"`
	Message   string            `json:"message"    gorm:"type:text;not null"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for SystemLog.
func (SystemLog) TableName() string { return "system_logs" }
