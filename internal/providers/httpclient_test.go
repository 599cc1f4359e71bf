package providers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-voice-relay/internal/services"
)

func TestNewHTTPClient_Direct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c, err := NewHTTPClient("", 2*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	if c.Timeout != 2*time.Second {
		t.Fatalf("timeout = %v", c.Timeout)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if b, _ := io.ReadAll(resp.Body); string(b) != "ok" {
		t.Fatalf("body = %q", b)
	}
}

func TestNewHTTPClient_SocksProxyUnreachable(t *testing.T) {
	c, err := NewHTTPClient("127.0.0.1:1", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	if _, err := c.Get("http://example.invalid/"); err == nil {
		t.Fatalf("expected dial error through unreachable proxy")
	}
}

func TestCheckResponse(t *testing.T) {
	ok := &http.Response{StatusCode: 204, Body: io.NopCloser(strings.NewReader(""))}
	if err := CheckResponse("x", ok); err != nil {
		t.Fatalf("2xx must pass: %v", err)
	}
	bad := &http.Response{StatusCode: 502, Body: io.NopCloser(strings.NewReader(" upstream down \n"))}
	err := CheckResponse("delivery", bad)
	var se *services.ServiceError
	if !errors.As(err, &se) || se.Status != 502 || se.Message != "upstream down" || se.Service != "delivery" {
		t.Fatalf("err = %#v", err)
	}
}

func TestWrap(t *testing.T) {
	if Wrap("x", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	orig := &services.ServiceError{Service: "a", Status: 400}
	if Wrap("b", orig) != error(orig) {
		t.Fatalf("existing ServiceError must pass through")
	}
	var se *services.ServiceError
	if err := Wrap("b", errors.New("boom")); !errors.As(err, &se) || se.Service != "b" {
		t.Fatalf("err = %v", err)
	}
}
