// Package stt adapts speech-to-text upstreams to services.Transcriber.
package stt

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/tbourn/go-voice-relay/internal/services"
)

// serviceName tags upstream failures in reports.
const serviceName = "transcription"

// WhisperConfig configures the OpenAI-compatible transcription endpoint.
type WhisperConfig struct {
	APIKey      string
	BaseURL     string // empty = api.openai.com
	Model       string // default whisper-1
	Language    string // ISO-639-1 hint, default "en"
	Temperature float64
	MaxRetries  int
}

// Whisper transcribes audio through the audio/transcriptions endpoint.
type Whisper struct {
	client   openai.Client
	model    string
	language string
	temp     float64
}

// NewWhisper builds the adapter. httpClient may be nil.
func NewWhisper(cfg WhisperConfig, httpClient *http.Client) (*Whisper, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("whisper: api key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	w := &Whisper{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		language: cfg.Language,
		temp:     cfg.Temperature,
	}
	if w.model == "" {
		w.model = openai.AudioModelWhisper1
	}
	if w.language == "" {
		w.language = "en"
	}
	return w, nil
}

// Transcribe implements services.Transcriber.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "audio/ogg"
	}
	params := openai.AudioTranscriptionNewParams{
		File:        openai.File(bytes.NewReader(audio), "audio"+extFor(contentType), contentType),
		Model:       openai.AudioModel(w.model),
		Language:    openai.String(w.language),
		Temperature: openai.Float(w.temp),
	}
	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", normalize(serviceName, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// normalize maps SDK errors to services.ServiceError.
func normalize(service string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &services.ServiceError{Service: service, Status: apiErr.StatusCode, Message: apiErr.Message, Err: err}
	}
	return &services.ServiceError{Service: service, Err: err}
}

// extFor picks a filename extension the upstream will accept for ct.
func extFor(ct string) string {
	ct = strings.ToLower(ct)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(ct) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a", "audio/aac":
		return ".m4a"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/amr":
		return ".amr"
	default:
		return ".ogg"
	}
}
