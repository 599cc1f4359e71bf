// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// This file authenticates provider webhooks. VerifyTwilio checks
// X-Twilio-Signature (base64 HMAC-SHA1 over the public URL and the sorted
// form parameters, keyed by the account auth token). VerifyTelegramSecret
// compares X-Telegram-Bot-Api-Secret-Token in constant time. Failures are
// 403 and counted in webhook_rejected_total.
package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// TwilioSignature computes the X-Twilio-Signature value: base64 HMAC-SHA1,
// keyed by the auth token, over the full URL followed by every POST
// parameter name and value in name order.
func TwilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyTwilio rejects form posts whose X-Twilio-Signature does not match.
// publicBaseURL is the externally visible scheme://host Twilio was given.
func VerifyTwilio(authToken, publicBaseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sig := c.GetHeader(HeaderTwilioSignature)
		if sig == "" {
			forbid(c, "whatsapp", "missing_signature")
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			forbid(c, "whatsapp", "unreadable_form")
			return
		}
		want := TwilioSignature(authToken, requestURL(c.Request, publicBaseURL), c.Request.PostForm)
		if !hmac.Equal([]byte(sig), []byte(want)) {
			forbid(c, "whatsapp", "bad_signature")
			return
		}
		c.Next()
	}
}

// VerifyTelegramSecret checks X-Telegram-Bot-Api-Secret-Token against the
// secret registered with setWebhook. An empty secret disables the check.
func VerifyTelegramSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(HeaderTelegramSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			forbid(c, "telegram", "bad_secret")
			return
		}
		c.Next()
	}
}

func forbid(c *gin.Context, platform, reason string) {
	rejected(platform, reason)
	LoggerFrom(c).Warn().Str("platform", platform).Str("reason", reason).Msg("webhook rejected")
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       "forbidden",
		"message":    "request authentication failed",
	})
}
