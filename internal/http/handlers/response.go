// Package handlers implements the HTTP surface of the relay: provider
// webhooks (WhatsApp via Twilio, Telegram Bot API) and the read-only admin
// API over session history.
//
// Webhooks acknowledge every well-formed delivery with 200 and hand voice
// notes to the dispatcher; pipeline failures are reported to the user over
// the channel, never through the HTTP status, since providers retry non-2xx.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-voice-relay/internal/http/middleware"
)

// ErrorResponse is the error envelope of every JSON endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID for log correlation
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code
	Code string `json:"code" example:"bad_request"`
	// Human-readable message
	Message string `json:"message" example:"invalid platform"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"        example:"1"`
	PageSize   int   `json:"page_size"   example:"20"`
	Total      int64 `json:"total"       example:"42"`
	TotalPages int   `json:"total_pages" example:"3"`
}

func newPagination(page, size int, total int64) Pagination {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return Pagination{Page: page, PageSize: size, Total: total, TotalPages: pages}
}

// Fail aborts with an ErrorResponse; 5xx are logged with the request logger.
func Fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}
