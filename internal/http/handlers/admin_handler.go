package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-voice-relay/internal/domain"
	"github.com/tbourn/go-voice-relay/internal/repo"
	"github.com/tbourn/go-voice-relay/internal/services"
	"github.com/tbourn/go-voice-relay/internal/utils"
)

// AdminService is the read side used by the dashboard endpoints.
type AdminService interface {
	ListSessions(ctx context.Context, platform string, page, pageSize int) ([]domain.VoiceSession, int64, error)
	Stats(ctx context.Context) (*repo.DashboardStats, error)
}

// AdminHandler serves session history and statistics.
type AdminHandler struct {
	Svc AdminService
}

// ListSessionsResponse is one page of session records, newest first.
type ListSessionsResponse struct {
	Sessions   []domain.VoiceSession `json:"sessions"`
	Pagination Pagination            `json:"pagination"`
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List voice sessions
// @Tags        admin
// @Produce     json
// @Param       page      query int    false "Page number (1-based)" default(1)
// @Param       page_size query int    false "Items per page"        default(20)
// @Param       platform  query string false "whatsapp or telegram"
// @Success     200 {object} ListSessionsResponse
// @Failure     400 {object} ErrorResponse
// @Failure     500 {object} ErrorResponse
// @Router      /sessions [get]
func (h *AdminHandler) ListSessions(c *gin.Context) {
	page, size := utils.PageParams(c.Query("page"), c.Query("page_size"), 20, 100)

	rows, total, err := h.Svc.ListSessions(c.Request.Context(), c.Query("platform"), page, size)
	switch {
	case errors.Is(err, services.ErrUnknownPlatform):
		Fail(c, http.StatusBadRequest, ErrCodeInvalidPlatform, "platform must be whatsapp or telegram")
		return
	case err != nil:
		Fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list sessions")
		return
	}
	if rows == nil {
		rows = []domain.VoiceSession{}
	}
	c.JSON(http.StatusOK, ListSessionsResponse{Sessions: rows, Pagination: newPagination(page, size, total)})
}

// Stats godoc
// @ID          stats
// @Summary     Relay statistics
// @Tags        admin
// @Produce     json
// @Success     200 {object} repo.DashboardStats
// @Failure     500 {object} ErrorResponse
// @Router      /stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	st, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		Fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not compute stats")
		return
	}
	c.JSON(http.StatusOK, st)
}
