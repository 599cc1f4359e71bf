// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// This file handles Twilio's I-Twilio-Idempotency-Token header on webhook
// deliveries. Twilio sends the same token on every retry of one delivery, so
// the token is validated and, when a claim function is configured, recorded:
//   - GetIdempotencyKey returns the validated token
//   - IsReplay reports a delivery whose token was already claimed
//
// Persistence stays behind the IdempotencyClaim function type. A claim error
// fails open and the delivery is processed as new.
package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// HeaderTwilioIdempotency is set by Twilio on every webhook attempt; retries
// of one delivery carry the same token.
const HeaderTwilioIdempotency = "I-Twilio-Idempotency-Token"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
)

// IdempotencyClaim records key and reports whether it had been seen before.
// Errors are treated as "not seen".
type IdempotencyClaim func(ctx context.Context, key string) (replay bool, err error)

// IdempotencyOptions bounds the accepted token.
type IdempotencyOptions struct {
	MaxLen  int            // default 128
	Pattern *regexp.Regexp // default ^[A-Za-z0-9._~:-]+$
}

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~:\-]+$`)

// IdempotencyValidator validates the Twilio idempotency token when present,
// stashes it, and marks the request as a replay when claim has seen it.
// Handlers decide what a replay means; the webhook acknowledges it without
// running the pipeline again.
func IdempotencyValidator(opts IdempotencyOptions, claim IdempotencyClaim) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 128
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderTwilioIdempotency)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			rejected("whatsapp", "idempotency_token")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_request",
				"message":    "invalid " + HeaderTwilioIdempotency,
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)
		if claim != nil {
			if replay, err := claim(c.Request.Context(), key); err == nil && replay {
				c.Set(ctxKeyIdemReplay, true)
			}
		}
		c.Next()
	}
}

// GetIdempotencyKey returns the validated token, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IsReplay reports whether this delivery was already accepted once.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}
