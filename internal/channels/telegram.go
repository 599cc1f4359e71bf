package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tbourn/go-voice-relay/internal/domain"
	"github.com/tbourn/go-voice-relay/internal/providers"
	"github.com/tbourn/go-voice-relay/internal/services"
)

// Telegram talks to the Bot API.
type Telegram struct {
	Token       string
	APIBase     string // https://api.telegram.org
	MaxBytes    int64
	MaxDuration int // seconds
	HTTP        *http.Client
}

// Platform implements services.Channel.
func (t *Telegram) Platform() domain.Platform { return domain.PlatformTelegram }

// Profile implements services.Channel.
func (t *Telegram) Profile() services.ChannelProfile {
	return services.ChannelProfile{
		Name:               "Telegram",
		Footer:             services.FooterTelegram,
		MaxAudioBytes:      t.MaxBytes,
		MaxDurationSeconds: t.MaxDuration,
		ProgressUpdates:    true,
	}
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type tgFile struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

type tgMessage struct {
	MessageID int64 `json:"message_id"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	MessageID   int64        `json:"message_id,omitempty"`
	Text        string       `json:"text"`
	ParseMode   string       `json:"parse_mode,omitempty"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

// Send posts Markdown text and returns the message id as the edit handle.
func (t *Telegram) Send(ctx context.Context, chatID, text string) (string, error) {
	return t.send(ctx, sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "Markdown"})
}

// SendStatic posts an informational reply with its inline keyboard.
func (t *Telegram) SendStatic(ctx context.Context, chatID string, r services.StaticReply) error {
	req := sendMessageRequest{ChatID: chatID, Text: r.Text, ParseMode: "Markdown"}
	if len(r.Buttons) > 0 {
		req.ReplyMarkup = keyboard(r.Buttons)
	}
	_, err := t.send(ctx, req)
	return err
}

func (t *Telegram) send(ctx context.Context, req sendMessageRequest) (string, error) {
	var m tgMessage
	err := t.call(ctx, "sendMessage", req, &m)
	if isParseError(err) {
		// unbalanced markdown in model output; fall back to plain text
		req.ParseMode = ""
		err = t.call(ctx, "sendMessage", req, &m)
	}
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(m.MessageID, 10), nil
}

// Edit implements services.MessageEditor.
func (t *Telegram) Edit(ctx context.Context, chatID, handle, text string) error {
	id, err := strconv.ParseInt(handle, 10, 64)
	if err != nil {
		return &services.ServiceError{Service: serviceDelivery, Message: "invalid message handle", Err: err}
	}
	req := sendMessageRequest{ChatID: chatID, MessageID: id, Text: text, ParseMode: "Markdown"}
	err = t.call(ctx, "editMessageText", req, nil)
	if isParseError(err) {
		req.ParseMode = ""
		err = t.call(ctx, "editMessageText", req, nil)
	}
	return err
}

// AnswerCallback acknowledges an inline button press.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	body := map[string]string{"callback_query_id": callbackID, "text": text}
	return t.call(ctx, "answerCallbackQuery", body, nil)
}

// Download resolves a file id through getFile and fetches the file.
func (t *Telegram) Download(ctx context.Context, ref string, maxBytes int64) ([]byte, error) {
	var f tgFile
	q := url.Values{"file_id": {ref}}
	if err := t.get(ctx, "getFile?"+q.Encode(), &f); err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, &services.ServiceError{Service: serviceDownload, Message: "file path missing"}
	}
	if maxBytes > 0 && f.FileSize > maxBytes {
		return nil, services.ErrAudioTooLarge
	}
	u := fmt.Sprintf("%s/file/bot%s/%s", t.APIBase, t.Token, f.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, providers.Wrap(serviceDownload, err)
	}
	return fetchLimited(t.client(), req, maxBytes)
}

func (t *Telegram) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.APIBase, t.Token, method)
}

func (t *Telegram) get(ctx context.Context, methodAndQuery string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.methodURL(methodAndQuery), nil)
	if err != nil {
		return providers.Wrap(serviceDownload, err)
	}
	return t.do(req, serviceDownload, out)
}

func (t *Telegram) call(ctx context.Context, method string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return providers.Wrap(serviceDelivery, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL(method), bytes.NewReader(b))
	if err != nil {
		return providers.Wrap(serviceDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, serviceDelivery, out)
}

// do decodes the envelope; a non-ok envelope becomes a ServiceError with the
// Bot API error code as status.
func (t *Telegram) do(req *http.Request, service string, out any) error {
	resp, err := t.client().Do(req)
	if err != nil {
		return providers.Wrap(service, redactToken(err, t.Token))
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if cerr := providers.CheckResponse(service, resp); cerr != nil {
			return cerr
		}
		return providers.Wrap(service, err)
	}
	if !env.OK {
		status := env.ErrorCode
		if status == 0 {
			status = resp.StatusCode
		}
		return &services.ServiceError{Service: service, Status: status, Message: env.Description}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return providers.Wrap(service, err)
		}
	}
	return nil
}

func (t *Telegram) client() *http.Client {
	if t.HTTP != nil {
		return t.HTTP
	}
	return http.DefaultClient
}

func keyboard(rows [][]services.Button) *replyMarkup {
	m := &replyMarkup{InlineKeyboard: make([][]inlineButton, 0, len(rows))}
	for _, row := range rows {
		r := make([]inlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, inlineButton{Text: b.Text, CallbackData: b.Data, URL: b.URL})
		}
		m.InlineKeyboard = append(m.InlineKeyboard, r)
	}
	return m
}

func isParseError(err error) bool {
	se, ok := err.(*services.ServiceError)
	return ok && se.Status == http.StatusBadRequest && strings.Contains(se.Message, "parse entities")
}

// redactToken keeps the bot token out of transport errors, which embed the URL.
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}
