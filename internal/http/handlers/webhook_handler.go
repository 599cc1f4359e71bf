package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-voice-relay/internal/channels"
	"github.com/tbourn/go-voice-relay/internal/domain"
	"github.com/tbourn/go-voice-relay/internal/http/middleware"
	"github.com/tbourn/go-voice-relay/internal/services"
)

// Version is reported by the webhook health documents.
const Version = "2.1.0"

// Submitter accepts voice events for background processing.
type Submitter interface {
	Submit(ev domain.VoiceEvent)
}

// DuplicateChecker claims provider delivery ids.
type DuplicateChecker interface {
	Duplicate(ctx context.Context, platform domain.Platform, key string) bool
}

// TextSender posts a plain reply on WhatsApp.
type TextSender interface {
	Send(ctx context.Context, chatID, text string) (string, error)
}

// TelegramResponder posts static replies and acknowledges button presses.
type TelegramResponder interface {
	SendStatic(ctx context.Context, chatID string, r services.StaticReply) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// WebhookHandler turns provider deliveries into voice events.
type WebhookHandler struct {
	Dispatch Submitter
	Dedup    DuplicateChecker // nil disables duplicate suppression

	WhatsApp TextSender
	Telegram TelegramResponder

	// ReplyTimeout bounds static replies sent inline; 10s when zero.
	ReplyTimeout time.Duration
	Now          func() time.Time
}

// HealthResponse is returned by GET on a webhook path.
type HealthResponse struct {
	Status    string `json:"status"    example:"ok"`
	Service   string `json:"service"   example:"whatsapp-voice-relay"`
	Timestamp string `json:"timestamp" example:"2025-01-01T10:00:00Z"`
	Ready     bool   `json:"ready"     example:"true"`
	Version   string `json:"version"   example:"2.1.0"`
}

// AckResponse acknowledges a Telegram update.
type AckResponse struct {
	OK bool `json:"ok" example:"true"`
}

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

func (h *WebhookHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *WebhookHandler) replyCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	d := h.ReplyTimeout
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), d)
}

func (h *WebhookHandler) health(c *gin.Context, service string) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   service,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Ready:     true,
		Version:   Version,
	})
}

// WhatsAppHealth godoc
// @ID          whatsappHealth
// @Summary     WhatsApp webhook health
// @Tags        webhooks
// @Produce     json
// @Success     200 {object} HealthResponse
// @Router      /webhook/whatsapp [get]
func (h *WebhookHandler) WhatsAppHealth(c *gin.Context) { h.health(c, "whatsapp-voice-relay") }

// TelegramHealth godoc
// @ID          telegramHealth
// @Summary     Telegram webhook health
// @Tags        webhooks
// @Produce     json
// @Success     200 {object} HealthResponse
// @Router      /webhook/telegram [get]
func (h *WebhookHandler) TelegramHealth(c *gin.Context) { h.health(c, "telegram-voice-relay") }

// WhatsAppWebhook godoc
// @ID          whatsappWebhook
// @Summary     Receive a Twilio WhatsApp message
// @Description Voice notes are queued for transcription and answered asynchronously.
// @Description Text messages get an informational reply.
// @Tags        webhooks
// @Accept      x-www-form-urlencoded
// @Produce     xml
// @Param       From              formData string true  "Sender, whatsapp:+<E.164>"
// @Param       MessageSid        formData string false "Twilio message SID"
// @Param       Body              formData string false "Text body"
// @Param       MediaUrl0         formData string false "First media URL"
// @Param       MediaContentType0 formData string false "First media content type"
// @Param       ProfileName       formData string false "Sender profile name"
// @Success     200 {string} string "empty TwiML"
// @Failure     400 {object} ErrorResponse
// @Failure     403 {object} ErrorResponse
// @Router      /webhook/whatsapp [post]
func (h *WebhookHandler) WhatsAppWebhook(c *gin.Context) {
	from := channels.StripPrefix(c.PostForm("From"))
	if from == "" {
		Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing required fields")
		return
	}
	lg := middleware.LoggerFrom(c)
	ack := func() { c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(emptyTwiML)) }

	if middleware.IsReplay(c) {
		lg.Info().Msg("twilio retry acknowledged")
		ack()
		return
	}

	sid := c.PostForm("MessageSid")
	mediaURL := strings.TrimSpace(c.PostForm("MediaUrl0"))
	mediaType := c.PostForm("MediaContentType0")

	switch {
	case mediaURL != "" && strings.Contains(strings.ToLower(mediaType), "audio"):
		if h.Dedup != nil && h.Dedup.Duplicate(c.Request.Context(), domain.PlatformWhatsApp, sid) {
			lg.Info().Msg("duplicate whatsapp delivery")
			break
		}
		h.Dispatch.Submit(domain.VoiceEvent{
			Platform:          domain.PlatformWhatsApp,
			UserIdentifier:    from,
			ChatIdentifier:    from,
			AudioReference:    mediaURL,
			ContentType:       mediaType,
			DisplayName:       c.PostForm("ProfileName"),
			ProviderMessageID: sid,
			ReceivedAt:        h.now().UTC(),
		})
	case mediaURL != "":
		h.replyWhatsApp(c, from, services.WhatsAppUnsupported)
	case strings.TrimSpace(c.PostForm("Body")) != "":
		h.replyWhatsApp(c, from, services.WhatsAppTextReply(c.PostForm("Body")))
	}
	ack()
}

func (h *WebhookHandler) replyWhatsApp(c *gin.Context, to, text string) {
	if h.WhatsApp == nil {
		return
	}
	ctx, cancel := h.replyCtx(c)
	defer cancel()
	if _, err := h.WhatsApp.Send(ctx, to, text); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("whatsapp static reply failed")
	}
}

// Telegram update subset the relay reads.
type tgUpdate struct {
	UpdateID      int64       `json:"update_id"`
	Message       *tgMessage  `json:"message"`
	EditedMessage *tgMessage  `json:"edited_message"`
	CallbackQuery *tgCallback `json:"callback_query"`
}

type tgMessage struct {
	MessageID int64    `json:"message_id"`
	From      *tgUser  `json:"from"`
	Chat      tgChat   `json:"chat"`
	Text      string   `json:"text"`
	Voice     *tgAudio `json:"voice"`
	Audio     *tgAudio `json:"audio"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgAudio struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	MimeType string `json:"mime_type"`
}

type tgCallback struct {
	ID      string     `json:"id"`
	From    tgUser     `json:"from"`
	Message *tgMessage `json:"message"`
	Data    string     `json:"data"`
}

// TelegramWebhook godoc
// @ID          telegramWebhook
// @Summary     Receive a Telegram update
// @Description Voice and audio messages are queued; commands and buttons get static replies.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Success     200 {object} AckResponse
// @Failure     400 {object} ErrorResponse
// @Failure     403 {object} ErrorResponse
// @Router      /webhook/telegram [post]
func (h *WebhookHandler) TelegramWebhook(c *gin.Context) {
	var up tgUpdate
	if err := c.ShouldBindJSON(&up); err != nil {
		Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update")
		return
	}
	// edited_message and other update kinds are acknowledged and ignored
	switch {
	case up.CallbackQuery != nil:
		h.telegramCallback(c, up.CallbackQuery)
	case up.Message != nil:
		h.telegramMessage(c, up.UpdateID, up.Message)
	}
	c.JSON(http.StatusOK, AckResponse{OK: true})
}

func (h *WebhookHandler) telegramCallback(c *gin.Context, cb *tgCallback) {
	if h.Telegram == nil {
		return
	}
	ctx, cancel := h.replyCtx(c)
	defer cancel()
	lg := middleware.LoggerFrom(c)
	if err := h.Telegram.AnswerCallback(ctx, cb.ID, "Processing..."); err != nil {
		lg.Warn().Err(err).Msg("answerCallbackQuery failed")
	}
	if cb.Message == nil {
		return
	}
	reply, ok := services.TelegramCommand(cb.Data, cb.From.FirstName)
	if !ok {
		return
	}
	if err := h.Telegram.SendStatic(ctx, chatID(cb.Message), reply); err != nil {
		lg.Warn().Err(err).Msg("telegram static reply failed")
	}
}

func (h *WebhookHandler) telegramMessage(c *gin.Context, updateID int64, m *tgMessage) {
	audio := m.Voice
	if audio == nil {
		audio = m.Audio
	}
	if audio != nil && audio.FileID != "" {
		if h.Dedup != nil && h.Dedup.Duplicate(c.Request.Context(), domain.PlatformTelegram, strconv.FormatInt(updateID, 10)) {
			middleware.LoggerFrom(c).Info().Msg("duplicate telegram update")
			return
		}
		ev := domain.VoiceEvent{
			Platform:          domain.PlatformTelegram,
			ChatIdentifier:    chatID(m),
			AudioReference:    audio.FileID,
			ContentType:       audio.MimeType,
			DurationSeconds:   audio.Duration,
			ProviderMessageID: strconv.FormatInt(updateID, 10),
			ReceivedAt:        h.now().UTC(),
		}
		if ev.ContentType == "" {
			ev.ContentType = "audio/ogg"
		}
		if m.From != nil {
			ev.UserIdentifier = strconv.FormatInt(m.From.ID, 10)
			ev.DisplayName = m.From.FirstName
		} else {
			ev.UserIdentifier = ev.ChatIdentifier
		}
		h.Dispatch.Submit(ev)
		return
	}

	if h.Telegram == nil {
		return
	}
	var reply services.StaticReply
	text := strings.TrimSpace(m.Text)
	switch {
	case strings.HasPrefix(text, "/"):
		name := ""
		if m.From != nil {
			name = m.From.FirstName
		}
		var ok bool
		if reply, ok = services.TelegramCommand(strings.Fields(text)[0], name); !ok {
			reply = services.TelegramTextReply()
		}
	case text != "":
		reply = services.TelegramTextReply()
	default:
		reply = services.StaticReply{Text: services.TelegramFallback}
	}
	ctx, cancel := h.replyCtx(c)
	defer cancel()
	if err := h.Telegram.SendStatic(ctx, chatID(m), reply); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("telegram static reply failed")
	}
}

func chatID(m *tgMessage) string {
	return strconv.FormatInt(m.Chat.ID, 10)
}
