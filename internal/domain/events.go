package domain

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies the messaging channel a voice event arrived on.
type Platform string

const (
	PlatformWhatsApp Platform = "whatsapp"
	PlatformTelegram Platform = "telegram"
)

// ParsePlatform maps a case-insensitive name to a known Platform.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformWhatsApp, PlatformTelegram:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

// VoiceEvent is one inbound voice note, normalized from a provider payload.
// It is immutable once built and consumed by exactly one pipeline run.
type VoiceEvent struct {
	Platform          Platform
	UserIdentifier    string // phone number (prefix stripped) or numeric user id
	ChatIdentifier    string // reply destination
	AudioReference    string // media URL or provider file id
	ContentType       string
	DurationSeconds   int // 0 when unknown
	DisplayName       string
	ProviderMessageID string
	ReceivedAt        time.Time
}

// TranscriptionResult is the transient output of the transcription step.
type TranscriptionResult struct {
	Text      string
	Succeeded bool
}

// Outcome is the terminal state of one pipeline run.
type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeRateLimited         Outcome = "rate_limited"
	OutcomeAudioTooLarge       Outcome = "audio_too_large"
	OutcomeTranscriptionFailed Outcome = "transcription_failed"
	OutcomeFailed              Outcome = "failed"
)

// PipelineEvent is published to live observers when a run finishes.
type PipelineEvent struct {
	Platform     Platform  `json:"platform"`
	Outcome      Outcome   `json:"outcome"`
	CacheHit     bool      `json:"cache_hit"`
	ProcessingMs int64     `json:"processing_ms"`
	SessionID    string    `json:"session_id,omitempty"`
	At           time.Time `json:"at"`
}
