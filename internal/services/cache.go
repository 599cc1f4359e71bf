package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// NormalizeQuery folds case, collapses whitespace runs and strips leading and
// trailing punctuation so that spoken variants of one question share a key.
func NormalizeQuery(s string) string {
	s = lower.String(strings.Join(strings.Fields(s), " "))
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

// QueryHash is the cache key for an already-normalized query.
func QueryHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ResponseCache is a TTL cache of completion replies keyed by the hash of the
// normalized transcription. All store failures are soft: a failed lookup is a
// miss and a failed write is logged.
type ResponseCache struct {
	Backend CacheStore
	TTL     time.Duration
	Timeout time.Duration

	Now func() time.Time
}

func (c *ResponseCache) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *ResponseCache) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// Lookup returns the live reply for normalized and bumps its hit counter.
func (c *ResponseCache) Lookup(ctx context.Context, normalized string) (string, bool) {
	tr := otel.Tracer("services/ResponseCache")
	ctx, span := tr.Start(ctx, "Lookup")
	defer span.End()

	if c == nil || c.Backend == nil || normalized == "" {
		return "", false
	}
	hash := QueryHash(normalized)
	ctx, cancel := c.scoped(ctx)
	defer cancel()

	rec, err := c.Backend.GetCached(ctx, hash, c.now())
	if err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("response cache lookup failed")
		return "", false
	}
	if rec == nil {
		cacheLookups.WithLabelValues("miss").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return "", false
	}
	if err := c.Backend.TouchCached(ctx, hash); err != nil {
		log.Warn().Err(err).Msg("response cache hit count update failed")
	}
	cacheLookups.WithLabelValues("hit").Inc()
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return rec.ResponseText, true
}

// Store saves reply under normalized, replacing any previous entry and
// resetting its expiry and hit counter.
func (c *ResponseCache) Store(ctx context.Context, normalized, reply string) error {
	tr := otel.Tracer("services/ResponseCache")
	ctx, span := tr.Start(ctx, "Store", trace.WithAttributes(attribute.Int("reply.len", len(reply))))
	defer span.End()

	if c == nil || c.Backend == nil || normalized == "" {
		return nil
	}
	ctx, cancel := c.scoped(ctx)
	defer cancel()

	if err := c.Backend.PutCached(ctx, QueryHash(normalized), normalized, reply, c.TTL, c.now()); err != nil {
		log.Warn().Err(err).Msg("response cache write failed")
		return &StoreError{Op: "cache put", Err: err}
	}
	return nil
}
