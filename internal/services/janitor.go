package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-voice-relay/internal/repo"
)

// Purger deletes expired rows.
type Purger interface {
	Purge(ctx context.Context, now time.Time, keepWindows time.Duration) (repo.PurgeResult, error)
}

// Janitor periodically purges expired cache entries, stale rate-limit
// windows and delivery records.
type Janitor struct {
	Store    Purger
	Interval time.Duration
	// Keep is how far back rate-limit windows are retained; use the longest
	// configured window.
	Keep time.Duration

	Now func() time.Time
}

// RunOnce performs a single purge.
func (j *Janitor) RunOnce(ctx context.Context) (repo.PurgeResult, error) {
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now().UTC()
	}
	res, err := j.Store.Purge(ctx, now, j.Keep)
	if err != nil {
		log.Error().Err(err).Msg("janitor purge failed")
		return res, err
	}
	log.Debug().
		Int64("cache", res.Cache).
		Int64("rate_limits", res.RateLimits).
		Int64("deliveries", res.Deliveries).
		Msg("janitor purge done")
	return res, nil
}

// Run purges every Interval until ctx is done. A non-positive interval
// disables the loop.
func (j *Janitor) Run(ctx context.Context) {
	if j.Interval <= 0 || j.Store == nil {
		return
	}
	t := time.NewTicker(j.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = j.RunOnce(ctx)
		}
	}
}
