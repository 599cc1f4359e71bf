package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrorReporter records unexpected failures for operators.
type ErrorReporter interface {
	Report(ctx context.Context, service, message string, metadata map[string]any)
}

// StoreReporter logs through zerolog and appends a system_logs row. A failed
// write is itself only logged.
type StoreReporter struct {
	Logs    LogStore
	Timeout time.Duration
}

// Report implements ErrorReporter.
func (r *StoreReporter) Report(ctx context.Context, service, message string, metadata map[string]any) {
	log.Error().Str("service", service).Interface("metadata", metadata).Msg(message)
	if r == nil || r.Logs == nil {
		return
	}
	// The run context may already be cancelled when reporting its failure.
	ctx = context.WithoutCancel(ctx)
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	if err := r.Logs.CreateSystemLog(ctx, "error", service, message, metadata); err != nil {
		log.Error().Err(err).Str("service", service).Msg("system log write failed")
	}
}
