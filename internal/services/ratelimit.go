package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// Policy is a fixed-window limit: at most Max requests per Window.
type Policy struct {
	Max    int
	Window time.Duration
}

// RateLimiter admits voice messages per (user, platform) against the
// platform's policy. Store failures fail open.
type RateLimiter struct {
	Counters CounterStore
	Policies map[domain.Platform]Policy
	Timeout  time.Duration

	Now func() time.Time
}

// Admit reports whether the request may proceed. An admitted request has
// already been counted.
func (l *RateLimiter) Admit(ctx context.Context, user string, platform domain.Platform) bool {
	tr := otel.Tracer("services/RateLimiter")
	ctx, span := tr.Start(ctx, "Admit", trace.WithAttributes(attribute.String("platform", string(platform))))
	defer span.End()

	if l == nil || l.Counters == nil {
		return true
	}
	pol, ok := l.Policies[platform]
	if !ok || pol.Max <= 0 || pol.Window <= 0 {
		return true
	}
	now := time.Now().UTC()
	if l.Now != nil {
		now = l.Now().UTC()
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	ok, err := l.Counters.CompareAndIncrement(ctx, user, platform, pol.Max, pol.Window, now)
	if err != nil {
		log.Warn().Err(err).Str("platform", string(platform)).Msg("rate limit check failed; admitting")
		return true
	}
	span.SetAttributes(attribute.Bool("admitted", ok))
	return ok
}
