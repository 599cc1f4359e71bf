package channels

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/go-voice-relay/internal/domain"
	"github.com/tbourn/go-voice-relay/internal/services"
)

// fakeBotAPI records every method call and serves canned results.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []botCall
	// rejectMarkdown makes sendMessage fail when parse_mode is set.
	rejectMarkdown bool
	fileSize       int64
	fileBody       string
}

type botCall struct {
	Method string
	Body   map[string]any
}

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "/botTOKEN/"
		switch {
		case strings.HasPrefix(r.URL.Path, "/file/botTOKEN/"):
			_, _ = io.WriteString(w, f.fileBody)
			return
		case !strings.HasPrefix(r.URL.Path, prefix):
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, prefix)
		body := map[string]any{}
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		f.mu.Lock()
		f.calls = append(f.calls, botCall{Method: method, Body: body})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "getFile":
			if r.URL.Query().Get("file_id") != "voice-1" {
				t.Errorf("file_id = %q", r.URL.Query().Get("file_id"))
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{
				"file_id": "voice-1", "file_size": f.fileSize, "file_path": "voice/file_7.oga"}})
		case "sendMessage":
			if f.rejectMarkdown && body["parse_mode"] != nil {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: Can't find end of the entity"}`)
				return
			}
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":77}}`)
		case "editMessageText", "answerCallbackQuery":
			_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
		}
	})
}

func (f *fakeBotAPI) snapshot() []botCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]botCall(nil), f.calls...)
}

func newTelegram(t *testing.T, f *fakeBotAPI) *Telegram {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return &Telegram{Token: "TOKEN", APIBase: srv.URL, HTTP: srv.Client(), MaxBytes: 1024, MaxDuration: 120}
}

func TestTelegram_Profile(t *testing.T) {
	tg := &Telegram{MaxDuration: 120}
	p := tg.Profile()
	if tg.Platform() != domain.PlatformTelegram || p.Name != "Telegram" || p.Footer != services.FooterTelegram ||
		p.MaxDurationSeconds != 120 || !p.ProgressUpdates {
		t.Fatalf("profile = %+v", p)
	}
	var _ services.Channel = tg
	var _ services.MessageEditor = tg
}

func TestTelegram_SendAndEdit(t *testing.T) {
	f := &fakeBotAPI{}
	tg := newTelegram(t, f)
	ctx := context.Background()

	handle, err := tg.Send(ctx, "555", "🎧 Processing your voice message...")
	if err != nil || handle != "77" {
		t.Fatalf("Send = (%q, %v)", handle, err)
	}
	if err := tg.Edit(ctx, "555", handle, "done"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	calls := f.snapshot()
	if len(calls) != 2 || calls[0].Method != "sendMessage" || calls[1].Method != "editMessageText" {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].Body["chat_id"] != "555" || calls[0].Body["parse_mode"] != "Markdown" {
		t.Fatalf("sendMessage body = %v", calls[0].Body)
	}
	if calls[1].Body["message_id"] != float64(77) || calls[1].Body["text"] != "done" {
		t.Fatalf("editMessageText body = %v", calls[1].Body)
	}
	if err := tg.Edit(ctx, "555", "not-a-number", "x"); err == nil {
		t.Fatalf("expected error for bad handle")
	}
}

func TestTelegram_Send_FallsBackToPlainText(t *testing.T) {
	f := &fakeBotAPI{rejectMarkdown: true}
	tg := newTelegram(t, f)
	handle, err := tg.Send(context.Background(), "1", "unbalanced *bold")
	if err != nil || handle != "77" {
		t.Fatalf("Send = (%q, %v)", handle, err)
	}
	calls := f.snapshot()
	if len(calls) != 2 || calls[1].Body["parse_mode"] != nil {
		t.Fatalf("expected plain-text retry, calls = %+v", calls)
	}
}

func TestTelegram_SendStatic_InlineKeyboard(t *testing.T) {
	f := &fakeBotAPI{}
	tg := newTelegram(t, f)
	reply, _ := services.TelegramCommand("/start", "Ada")
	if err := tg.SendStatic(context.Background(), "9", reply); err != nil {
		t.Fatalf("SendStatic: %v", err)
	}
	calls := f.snapshot()
	markup, ok := calls[0].Body["reply_markup"].(map[string]any)
	if !ok {
		t.Fatalf("reply_markup missing: %v", calls[0].Body)
	}
	rows := markup["inline_keyboard"].([]any)
	first := rows[0].([]any)[0].(map[string]any)
	if len(rows) != 2 || first["callback_data"] != "help" {
		t.Fatalf("keyboard = %v", rows)
	}
	link := rows[1].([]any)[0].(map[string]any)
	if link["url"] == nil || link["callback_data"] != nil {
		t.Fatalf("url button = %v", link)
	}
}

func TestTelegram_AnswerCallback(t *testing.T) {
	f := &fakeBotAPI{}
	tg := newTelegram(t, f)
	if err := tg.AnswerCallback(context.Background(), "cb-1", "Processing..."); err != nil {
		t.Fatalf("AnswerCallback: %v", err)
	}
	c := f.snapshot()[0]
	if c.Method != "answerCallbackQuery" || c.Body["callback_query_id"] != "cb-1" {
		t.Fatalf("call = %+v", c)
	}
}

func TestTelegram_Download(t *testing.T) {
	f := &fakeBotAPI{fileSize: 5, fileBody: "OggS!"}
	tg := newTelegram(t, f)
	b, err := tg.Download(context.Background(), "voice-1", 1024)
	if err != nil || string(b) != "OggS!" {
		t.Fatalf("Download = (%q, %v)", b, err)
	}

	f.fileSize = 4096
	if _, err := tg.Download(context.Background(), "voice-1", 1024); !errors.Is(err, services.ErrAudioTooLarge) {
		t.Fatalf("declared size over cap: err = %v", err)
	}
}

func TestTelegram_ErrorEnvelope(t *testing.T) {
	f := &fakeBotAPI{}
	tg := newTelegram(t, f)
	err := tg.call(context.Background(), "sendVoice", map[string]string{}, nil)
	var se *services.ServiceError
	if !errors.As(err, &se) || se.Status != 400 || !strings.Contains(se.Message, "chat not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestRedactToken(t *testing.T) {
	err := redactToken(errors.New(`Post "https://api.telegram.org/bot123:ABC/sendMessage": dial tcp`), "123:ABC")
	if strings.Contains(err.Error(), "123:ABC") || !strings.Contains(err.Error(), "<token>") {
		t.Fatalf("err = %v", err)
	}
	orig := errors.New("plain")
	if redactToken(orig, "x") != orig {
		t.Fatalf("unrelated error must pass through")
	}
}
