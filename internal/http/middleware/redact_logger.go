// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// This file implements RedactingLogger, the structured access logger. Bodies
// are never logged. Phone numbers, emails and UUIDs in the path and query are
// scrubbed, which matters here because WhatsApp senders are phone numbers.
// Authorization, Cookie and the provider signature headers are masked, plus
// any extra headers named in RedactOptions.
//
// Usage:
//
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"X-API-Key"},
//	}))
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Provider authentication headers. Their values never reach the logs.
const (
	HeaderTwilioSignature = "X-Twilio-Signature"
	HeaderTelegramSecret  = "X-Telegram-Bot-Api-Secret-Token"
)

// RedactOptions adds headers to the always-masked set.
type RedactOptions struct {
	MaskHeaders []string
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// E.164 and local formats, including the whatsapp: address form
	phoneRE = regexp.MustCompile(`(?:whatsapp:)?\+?\b(?:\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
	// Telegram bot tokens: <bot id>:<35 char secret>
	botTokenRE = regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`)
)

// Redact scrubs bot tokens, ids, emails and phone numbers from s. UUIDs go
// before phones so the phone pattern cannot eat their digit groups.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = botTokenRE.ReplaceAllString(s, "[REDACTED:token]")
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger writes one access log line per request with the query and
// headers scrubbed, and attaches a request-scoped logger for LoggerFrom.
// Bodies are never logged: webhook payloads carry phone numbers and names.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization":                         {},
		"cookie":                                {},
		"set-cookie":                            {},
		strings.ToLower(HeaderTwilioSignature):  {},
		strings.ToLower(HeaderTelegramSecret):   {},
		strings.ToLower(HeaderTwilioIdempotency): {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = Redact(c.Request.URL.Path)
		}

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = Redact(strings.Join(vv, ", "))
		}

		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}
		l := log.With().Str("request_id", reqID).Str("path", path).Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", Redact(c.Errors.String()))
		}
		ev.Str("method", c.Request.Method).
			Str("query", Redact(unescape(c.Request.URL.RawQuery))).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// unescape decodes %2B and friends so encoded numbers are caught by Redact.
func unescape(q string) string {
	if u, err := url.QueryUnescape(q); err == nil {
		return u
	}
	return q
}
