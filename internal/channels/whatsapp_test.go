package channels

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tbourn/go-voice-relay/internal/domain"
	"github.com/tbourn/go-voice-relay/internal/services"
)

func TestPrefixHelpers(t *testing.T) {
	if got := WithPrefix("+2348000000001"); got != "whatsapp:+2348000000001" {
		t.Fatalf("WithPrefix = %q", got)
	}
	if got := WithPrefix("whatsapp:+1"); got != "whatsapp:+1" {
		t.Fatalf("WithPrefix must not double the prefix: %q", got)
	}
	if got := StripPrefix(" whatsapp:+1 "); got != "+1" {
		t.Fatalf("StripPrefix = %q", got)
	}
}

func TestWhatsApp_Profile(t *testing.T) {
	w := &WhatsApp{MaxBytes: 5 << 20}
	p := w.Profile()
	if w.Platform() != domain.PlatformWhatsApp || p.Name != "WhatsApp" || p.Footer != services.FooterWhatsApp ||
		p.MaxAudioBytes != 5<<20 || p.ProgressUpdates {
		t.Fatalf("profile = %+v", p)
	}
	var _ services.Channel = w
}

func TestWhatsApp_Send_PostsTwilioForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("From") != "whatsapp:+14155238886" || r.PostForm.Get("To") != "whatsapp:+2348000000001" ||
			r.PostForm.Get("Body") != "hello" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer srv.Close()

	wa := &WhatsApp{AccountSID: "AC123", AuthToken: "secret", From: "+14155238886", APIBase: srv.URL, HTTP: srv.Client()}
	sid, err := wa.Send(context.Background(), "+2348000000001", "hello")
	if err != nil || sid != "SM42" {
		t.Fatalf("Send = (%q, %v)", sid, err)
	}
}

func TestWhatsApp_Send_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	wa := &WhatsApp{AccountSID: "AC1", AuthToken: "t", APIBase: srv.URL, HTTP: srv.Client()}
	_, err := wa.Send(context.Background(), "+1", "x")
	var se *services.ServiceError
	if !errors.As(err, &se) || se.Service != "delivery" || se.Status != http.StatusBadRequest ||
		!strings.Contains(se.Message, "Invalid") {
		t.Fatalf("err = %v", err)
	}
}

func TestWhatsApp_Download(t *testing.T) {
	payload := strings.Repeat("a", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, p, _ := r.BasicAuth(); u != "AC1" || p != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/media/ok":
			_, _ = w.Write([]byte(payload))
		case "/media/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/media/chunked":
			// no Content-Length: the reader limit has to catch it
			w.(http.Flusher).Flush()
			_, _ = w.Write([]byte(payload))
		}
	}))
	defer srv.Close()
	wa := &WhatsApp{AccountSID: "AC1", AuthToken: "tok", HTTP: srv.Client()}
	ctx := context.Background()

	b, err := wa.Download(ctx, srv.URL+"/media/ok", 100)
	if err != nil || string(b) != payload {
		t.Fatalf("Download at cap = (%d bytes, %v)", len(b), err)
	}
	if _, err := wa.Download(ctx, srv.URL+"/media/ok", 99); !errors.Is(err, services.ErrAudioTooLarge) {
		t.Fatalf("declared length over cap: err = %v", err)
	}
	if _, err := wa.Download(ctx, srv.URL+"/media/chunked", 50); !errors.Is(err, services.ErrAudioTooLarge) {
		t.Fatalf("streamed body over cap: err = %v", err)
	}
	var se *services.ServiceError
	if _, err := wa.Download(ctx, srv.URL+"/media/missing", 100); !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Fatalf("missing media: err = %v", err)
	}
}
