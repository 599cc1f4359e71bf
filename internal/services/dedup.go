package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// Deduper suppresses repeated webhook deliveries of the same provider
// message. A nil Deduper or an empty key never suppresses; store errors fail
// open so a delivery is processed rather than lost.
type Deduper struct {
	Store   DeliveryStore
	TTL     time.Duration
	Timeout time.Duration
}

// Duplicate claims (platform, key) and reports whether it was already claimed.
func (d *Deduper) Duplicate(ctx context.Context, platform domain.Platform, key string) bool {
	if d == nil || d.Store == nil || strings.TrimSpace(key) == "" {
		return false
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	claimed, err := d.Store.ClaimDelivery(ctx, platform, key, d.TTL)
	if err != nil {
		log.Warn().Err(err).Str("platform", string(platform)).Msg("delivery claim failed; processing anyway")
		return false
	}
	return !claimed
}
