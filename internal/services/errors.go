// Package services implements the voice relay: admission control, the
// response cache, upstream orchestration, delivery and session logging.
// This file centralizes the error values returned by the pipeline stages so
// callers can classify failures with errors.Is / errors.As.
//
// Translation into user-facing notices happens in the pipeline itself;
// translation into HTTP status codes happens in the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Pipeline stage errors.
var (
	// ErrRateLimited indicates the user exhausted the current window.
	ErrRateLimited = errors.New("rate limited")

	// ErrAudioTooLarge is returned when the downloaded (or declared) audio
	// exceeds the channel's byte cap.
	ErrAudioTooLarge = errors.New("audio too large")

	// ErrAudioTooLong is returned when the declared voice duration exceeds
	// the channel's limit. It is checked before any download.
	ErrAudioTooLong = errors.New("audio too long")

	// ErrDownloadFailed wraps transport or status failures while fetching audio.
	ErrDownloadFailed = errors.New("audio download failed")

	// ErrTranscriptionEmpty is returned when the transcriber produced no text.
	ErrTranscriptionEmpty = errors.New("transcription empty")

	// ErrUnknownPlatform is returned for events whose platform has no channel.
	ErrUnknownPlatform = errors.New("unknown platform")
)

// ServiceError describes a failed call to an upstream service (transcription,
// completion, channel API). Status is the upstream HTTP status when known.
type ServiceError struct {
	Service string
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Service, msg)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }
