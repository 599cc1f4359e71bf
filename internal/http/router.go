// Package httpapi wires the Gin engine: cross-cutting middleware, the
// provider webhooks, and the admin API over session history.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers
//
// Webhooks then add provider authentication and idempotency per route; the
// admin group adds the per-IP edge limiter, gzip and no-store.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-voice-relay/internal/config"
	"github.com/tbourn/go-voice-relay/internal/http/handlers"
	"github.com/tbourn/go-voice-relay/internal/http/middleware"
)

// maxBodyBytes caps webhook and admin request bodies. Provider payloads are
// small; audio is always fetched by reference.
const maxBodyBytes = 1 << 20

// Deps are the constructed handlers mounted by RegisterRoutes. Nil members
// leave their routes unregistered.
type Deps struct {
	Webhooks *handlers.WebhookHandler
	Admin    *handlers.AdminHandler
	Events   http.Handler

	// Idempotency claims Twilio idempotency tokens; nil only validates them.
	Idempotency middleware.IdempotencyClaim
}

// RegisterRoutes attaches middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": handlers.Version})
	})

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if w := deps.Webhooks; w != nil {
		if cfg.WhatsApp.Enabled {
			wa := r.Group("/webhook/whatsapp")
			wa.GET("", w.WhatsAppHealth)
			chain := []gin.HandlerFunc{}
			if cfg.WhatsApp.ValidateSignature {
				chain = append(chain, middleware.VerifyTwilio(cfg.WhatsApp.AuthToken, cfg.WhatsApp.PublicBaseURL))
			}
			chain = append(chain,
				middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, deps.Idempotency),
				w.WhatsAppWebhook,
			)
			wa.POST("", chain...)
		}
		if cfg.Telegram.Enabled {
			tg := r.Group("/webhook/telegram")
			tg.GET("", w.TelegramHealth)
			tg.POST("", middleware.VerifyTelegramSecret(cfg.Telegram.WebhookSecret), w.TelegramWebhook)
		}
	}

	// Telegram and Twilio deliver from a small set of addresses, so the
	// per-IP limiter only guards the admin surface.
	if deps.Admin != nil || deps.Events != nil {
		admin := groupWithPrefix(r, cfg.APIBasePath)
		admin.Use(middleware.NewEdgeLimiter(cfg.RateRPS, cfg.RateBurst).Handler())
		admin.Use(middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))

		if deps.Admin != nil {
			zipped := admin.Group("", gzip.Gzip(gzip.DefaultCompression))
			zipped.GET("/sessions", deps.Admin.ListSessions)
			zipped.GET("/stats", deps.Admin.Stats)
		}
		if deps.Events != nil {
			admin.GET("/events", gin.WrapH(deps.Events))
		}
	}
}

// corsMiddleware allows any origin when none are configured, and otherwise
// echoes allow-listed origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO even without an Origin header, for health checks behind proxies
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps the request body at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
